package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imyashkale/deployinsights/internal/config"
	"github.com/imyashkale/deployinsights/internal/handlers"
	"github.com/imyashkale/deployinsights/internal/jenkins"
	"github.com/imyashkale/deployinsights/internal/logger"
	"github.com/imyashkale/deployinsights/internal/metrics"
	"github.com/imyashkale/deployinsights/internal/router"
	"github.com/imyashkale/deployinsights/internal/services"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func main() {

	ctx := context.Background()

	// Load application configuration
	cfg := config.New()

	// Initialize logger
	logger.Init(cfg.GetLogLevel())
	logger.WithFields(logrus.Fields{
		"jenkins":         cfg.JenkinsBaseURL,
		"max_concurrency": cfg.MaxConcurrency,
		"latest_build":    cfg.LatestBuildStrategy,
	}).Info("Configuration loaded successfully")

	// Initialize Jenkins client
	client := jenkins.NewClient(jenkins.Options{
		BaseURL:                  cfg.JenkinsBaseURL,
		Username:                 cfg.JenkinsUsername,
		APIToken:                 cfg.JenkinsAPIToken,
		JobClass:                 cfg.JenkinsJobClass,
		AuthenticateBuildDetails: cfg.JenkinsAuthBuildDetails,
		Timeout:                  time.Duration(cfg.JenkinsTimeoutSeconds) * time.Second,
	})

	// Resolve the tracked services once; the set stays fixed for the process lifetime
	serviceNames, err := discoverServices(ctx, cfg, client)
	if err != nil {
		logger.Fatalf("Failed to discover services: %v", err)
	}
	if len(serviceNames) == 0 {
		logger.Fatalf("No services to track under %s", cfg.JenkinsBaseURL)
	}
	metrics.TrackedServices.Set(float64(len(serviceNames)))
	logger.WithField("services", serviceNames).Info("Tracked services resolved")

	// Initialize deployment service
	deploymentService := services.NewDeploymentService(client, serviceNames, services.DeploymentOptions{
		MaxConcurrency: cfg.MaxConcurrency,
		LatestBuild:    services.LatestBuildStrategy(cfg.LatestBuildStrategy),
	})

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(len(serviceNames))
	deploymentHandler := handlers.NewDeploymentHandler(deploymentService)
	serviceHandler := handlers.NewServiceHandler(deploymentService)

	// Setup router
	r := router.Setup(healthHandler, deploymentHandler, serviceHandler)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down server gracefully...")

		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Server shutdown did not complete")
		}
	}()

	// Start server
	logger.Infof("Starting server on %s", cfg.Address())
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("Server stopped")
}

// discoverServices reads the services file when configured, otherwise lists
// the root folder on Jenkins.
func discoverServices(ctx context.Context, cfg *config.Config, client *jenkins.Client) ([]string, error) {
	if cfg.ServicesFile != "" {
		logger.WithField("file", cfg.ServicesFile).Info("Loading tracked services from file")
		return config.LoadServicesFile(cfg.ServicesFile)
	}

	discoverCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.JenkinsTimeoutSeconds)*time.Second)
	defer cancel()

	return client.ListServices(discoverCtx, cfg.JenkinsRootFolder)
}
