package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/imyashkale/deployinsights/internal/jenkins"
	"github.com/imyashkale/deployinsights/internal/logger"
	"github.com/imyashkale/deployinsights/internal/middleware"
	"github.com/imyashkale/deployinsights/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultActivityLimit is used when the limit query parameter is absent
const DefaultActivityLimit = 10

// DeploymentInsights is implemented by services.DeploymentService
type DeploymentInsights interface {
	GetSummary(ctx context.Context) (*models.DeploymentSummary, error)
	GetLatestActivities(ctx context.Context, limit int) ([]models.Activity, error)
	GetListServices(ctx context.Context, jobParent string) ([]string, error)
	Services() []string
}

// DeploymentHandler handles deployment statistics requests
type DeploymentHandler struct {
	insights DeploymentInsights
}

// NewDeploymentHandler creates a new deployment handler
func NewDeploymentHandler(insights DeploymentInsights) *DeploymentHandler {
	return &DeploymentHandler{
		insights: insights,
	}
}

// Summary handles GET /api/deployments/summary
func (h *DeploymentHandler) Summary(c *gin.Context) {
	summary, err := h.insights.GetSummary(c.Request.Context())
	if err != nil {
		upstreamFailure(c, err, "Failed to compute deployment summary")
		return
	}

	c.JSON(http.StatusOK, summary)
}

// LatestActivities handles GET /api/activities/latest?limit=N
func (h *DeploymentHandler) LatestActivities(c *gin.Context) {
	limit := DefaultActivityLimit
	if raw, ok := c.GetQuery("limit"); ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.String(http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	activities, err := h.insights.GetLatestActivities(c.Request.Context(), limit)
	if err != nil {
		upstreamFailure(c, err, "Failed to collect latest activities")
		return
	}

	c.JSON(http.StatusOK, activities)
}

// upstreamFailure answers 500 with the error text as body
func upstreamFailure(c *gin.Context, err error, message string) {
	kind := "unknown"
	var reqErr *jenkins.RequestError
	var parseErr *jenkins.ParseError
	switch {
	case errors.As(err, &reqErr):
		kind = "request"
	case errors.As(err, &parseErr):
		kind = "parse"
	}

	logger.WithFields(logrus.Fields{
		"path":       c.FullPath(),
		"error":      err.Error(),
		"error_kind": kind,
		"request_id": c.GetString(middleware.RequestIDKey),
	}).Error(message)

	c.String(http.StatusInternalServerError, err.Error())
}
