package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	trackedServices int
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(trackedServices int) *HealthHandler {
	return &HealthHandler{trackedServices: trackedServices}
}

// Check reports liveness only; Jenkins is not contacted
func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"timestamp":        time.Now(),
		"service":          "deployinsights",
		"tracked_services": h.trackedServices,
	})
}
