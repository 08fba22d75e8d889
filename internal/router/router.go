package router

import (
	"github.com/gin-gonic/gin"
	"github.com/imyashkale/deployinsights/internal/handlers"
	"github.com/imyashkale/deployinsights/internal/metrics"
	"github.com/imyashkale/deployinsights/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup configures and returns the application router
func Setup(
	healthHandler *handlers.HealthHandler,
	deploymentHandler *handlers.DeploymentHandler,
	serviceHandler *handlers.ServiceHandler,
) *gin.Engine {

	router := gin.New()
	// Match on the escaped path so "/api/services/job%2Fteam%2F" reaches
	// :jobParent as "job/team/" instead of being split into segments.
	router.UseRawPath = true

	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.AccessLog(),
		middleware.Prometheus(),
		middleware.CORS(),
	)

	router.GET("/health", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	{
		api.GET("/deployments/summary", deploymentHandler.Summary)
		api.GET("/activities/latest", deploymentHandler.LatestActivities)

		api.GET("/services", serviceHandler.List)
		api.GET("/services/:jobParent", serviceHandler.List)
		api.GET("/tracked-services", serviceHandler.Tracked)
	}

	return router
}
