package services

import (
	"context"
	"sort"

	"github.com/imyashkale/deployinsights/internal/jenkins"
	"github.com/imyashkale/deployinsights/internal/logger"
	"github.com/imyashkale/deployinsights/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const millisPerDay = 24 * 60 * 60 * 1000

// LatestBuildStrategy decides which entry of a build list is the latest build
type LatestBuildStrategy string

const (
	// LatestBuildFirst trusts the upstream ordering: the first entry is the latest
	LatestBuildFirst LatestBuildStrategy = "first"
	// LatestBuildHighestNumber picks the entry with the highest build number
	LatestBuildHighestNumber LatestBuildStrategy = "highest-number"
)

// BuildSource is the subset of the Jenkins client the deployment service needs
type BuildSource interface {
	ListBuilds(ctx context.Context, service string) ([]models.Build, error)
	GetBuildDetails(ctx context.Context, service string, number int64) (*models.BuildDetails, error)
	ListServices(ctx context.Context, parent string) ([]string, error)
}

// DeploymentOptions tunes the fan-out of the deployment service
type DeploymentOptions struct {
	// MaxConcurrency caps in-flight upstream chains. Zero or less means unbounded.
	MaxConcurrency int
	// LatestBuild defaults to LatestBuildFirst
	LatestBuild LatestBuildStrategy
}

// DeploymentService aggregates build data of a fixed set of services
type DeploymentService struct {
	client         BuildSource
	serviceNames   []string
	maxConcurrency int
	latestBuild    LatestBuildStrategy
}

// NewDeploymentService creates a new DeploymentService. serviceNames is
// copied, later changes by the caller are not observed.
func NewDeploymentService(client BuildSource, serviceNames []string, opts DeploymentOptions) *DeploymentService {
	names := make([]string, len(serviceNames))
	copy(names, serviceNames)

	strategy := opts.LatestBuild
	if strategy == "" {
		strategy = LatestBuildFirst
	}

	return &DeploymentService{
		client:         client,
		serviceNames:   names,
		maxConcurrency: opts.MaxConcurrency,
		latestBuild:    strategy,
	}
}

// Services returns the tracked service names
func (s *DeploymentService) Services() []string {
	names := make([]string, len(s.serviceNames))
	copy(names, s.serviceNames)
	return names
}

// GetSummary fetches the build lists of every tracked service concurrently
// and classifies them. The first upstream error aborts the whole summary.
func (s *DeploymentService) GetSummary(ctx context.Context) (*models.DeploymentSummary, error) {
	g, gctx := errgroup.WithContext(ctx)
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}

	results := make([][]models.Build, len(s.serviceNames))
	for i, name := range s.serviceNames {
		i, name := i, name // per-iteration copy (go 1.21 loop semantics)
		g.Go(func() error {
			builds, err := s.client.ListBuilds(gctx, name)
			if err != nil {
				return err
			}
			results[i] = builds
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Failed to build deployment summary")
		return nil, err
	}

	var all []models.Build
	for _, builds := range results {
		all = append(all, builds...)
	}

	summary := calculateSummary(all)

	logger.WithFields(logrus.Fields{
		"services": len(s.serviceNames),
		"builds":   summary.TotalDeployments,
		"success":  summary.SuccessCount,
		"failure":  summary.FailureCount,
	}).Info("Deployment summary computed")

	return &summary, nil
}

// calculateSummary classifies builds by result. The per-day rate uses the
// span between the oldest and newest timestamped build, at least one day.
// Without any timestamp the rate is 0.
func calculateSummary(builds []models.Build) models.DeploymentSummary {
	summary := models.DeploymentSummary{TotalDeployments: len(builds)}

	var minTs, maxTs int64
	timestamped := 0

	for _, build := range builds {
		if build.Result != nil {
			switch *build.Result {
			case models.ResultSuccess:
				summary.SuccessCount++
			case models.ResultFailure:
				summary.FailureCount++
			}
		}

		if build.Timestamp == nil {
			continue
		}
		ts := *build.Timestamp
		if timestamped == 0 || ts < minTs {
			minTs = ts
		}
		if timestamped == 0 || ts > maxTs {
			maxTs = ts
		}
		timestamped++
	}

	if timestamped > 0 {
		days := (maxTs - minTs) / millisPerDay
		if days < 1 {
			days = 1
		}
		summary.AvgDeploymentsPerDay = float64(summary.TotalDeployments) / float64(days)
	}

	return summary
}

// GetLatestActivities returns the latest build of each tracked service,
// newest first, truncated to limit. Services without builds are skipped.
// Upstream errors are reported even when limit is zero.
// Each service needs two sequential calls (list, then details); services are
// processed concurrently up to the configured limit. Any upstream error
// aborts the whole call.
func (s *DeploymentService) GetLatestActivities(ctx context.Context, limit int) ([]models.Activity, error) {
	g, gctx := errgroup.WithContext(ctx)

	var sem *semaphore.Weighted
	if s.maxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(s.maxConcurrency))
	}

	found := make([]*models.Activity, len(s.serviceNames))
	var acquireErr error

	for i, name := range s.serviceNames {
		i, name := i, name // per-iteration copy (go 1.21 loop semantics)
		if sem != nil {
			if err := sem.Acquire(gctx, 1); err != nil {
				acquireErr = err
				break
			}
		}

		g.Go(func() error {
			if sem != nil {
				defer sem.Release(1)
			}

			activity, err := s.latestActivity(gctx, name)
			if err != nil {
				return err
			}
			found[i] = activity
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = acquireErr
	}
	if err != nil {
		logger.WithError(err).Error("Failed to collect latest activities")
		return nil, err
	}

	activities := make([]models.Activity, 0, len(found))
	for _, activity := range found {
		if activity != nil {
			activities = append(activities, *activity)
		}
	}

	sort.SliceStable(activities, func(a, b int) bool {
		return activities[a].Timestamp > activities[b].Timestamp
	})

	if limit < 0 {
		limit = 0
	}
	if len(activities) > limit {
		activities = activities[:limit]
	}

	return activities, nil
}

// latestActivity returns nil without error when the service has no builds
func (s *DeploymentService) latestActivity(ctx context.Context, service string) (*models.Activity, error) {
	builds, err := s.client.ListBuilds(ctx, service)
	if err != nil {
		return nil, err
	}

	latest, ok := s.pickLatest(builds)
	if !ok {
		logger.WithField("service", service).Debug("Service has no builds")
		return nil, nil
	}

	details, err := s.client.GetBuildDetails(ctx, service, latest.Number)
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"service": service,
		"build":   latest.Number,
	}).Debug("Fetched latest build details")

	return &models.Activity{
		JobName:         details.FullDisplayName,
		Committer:       jenkins.ExtractCommitter(details.Actions),
		Status:          details.Result,
		DurationSeconds: float64(details.Duration) / 1000.0,
		Timestamp:       details.Timestamp,
	}, nil
}

func (s *DeploymentService) pickLatest(builds []models.Build) (models.Build, bool) {
	if len(builds) == 0 {
		return models.Build{}, false
	}

	if s.latestBuild != LatestBuildHighestNumber {
		return builds[0], true
	}

	latest := builds[0]
	for _, build := range builds[1:] {
		if build.Number > latest.Number {
			latest = build
		}
	}
	return latest, true
}

// GetListServices lists the services under a Jenkins folder
func (s *DeploymentService) GetListServices(ctx context.Context, jobParent string) ([]string, error) {
	return s.client.ListServices(ctx, jobParent)
}
