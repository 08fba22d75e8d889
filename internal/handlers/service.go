package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ServiceHandler handles Jenkins service discovery requests
type ServiceHandler struct {
	insights DeploymentInsights
}

// NewServiceHandler creates a new service handler
func NewServiceHandler(insights DeploymentInsights) *ServiceHandler {
	return &ServiceHandler{
		insights: insights,
	}
}

// List handles GET /api/services and GET /api/services/:jobParent
func (h *ServiceHandler) List(c *gin.Context) {
	jobParent := c.Param("jobParent")

	services, err := h.insights.GetListServices(c.Request.Context(), jobParent)
	if err != nil {
		upstreamFailure(c, err, "Failed to list services")
		return
	}

	c.JSON(http.StatusOK, services)
}

// Tracked handles GET /api/tracked-services
func (h *ServiceHandler) Tracked(c *gin.Context) {
	c.JSON(http.StatusOK, h.insights.Services())
}
