package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/imyashkale/deployinsights/internal/jenkins"
	"github.com/imyashkale/deployinsights/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeJenkins is an in-memory BuildSource
type fakeJenkins struct {
	builds      map[string][]models.Build
	details     map[string]*models.BuildDetails // keyed by "service#number"
	folders     map[string][]string
	buildErrs   map[string]error
	detailErrs  map[string]error
	delay       time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32

	mu           sync.Mutex
	detailCalls  []string
	listedBuilds []string
}

func newFakeJenkins() *fakeJenkins {
	return &fakeJenkins{
		builds:     map[string][]models.Build{},
		details:    map[string]*models.BuildDetails{},
		folders:    map[string][]string{},
		buildErrs:  map[string]error{},
		detailErrs: map[string]error{},
	}
}

func (f *fakeJenkins) enter() func() {
	n := f.inFlight.Add(1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeJenkins) ListBuilds(ctx context.Context, service string) ([]models.Build, error) {
	defer f.enter()()

	f.mu.Lock()
	f.listedBuilds = append(f.listedBuilds, service)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, &jenkins.RequestError{URL: service, Err: ctx.Err()}
		}
	}
	if err := f.buildErrs[service]; err != nil {
		return nil, err
	}
	return f.builds[service], nil
}

func (f *fakeJenkins) GetBuildDetails(ctx context.Context, service string, number int64) (*models.BuildDetails, error) {
	key := fmt.Sprintf("%s#%d", service, number)

	f.mu.Lock()
	f.detailCalls = append(f.detailCalls, key)
	f.mu.Unlock()

	if err := f.detailErrs[service]; err != nil {
		return nil, err
	}
	details, ok := f.details[key]
	if !ok {
		return nil, &jenkins.ParseError{URL: key, Err: errors.New("not found")}
	}
	return details, nil
}

func (f *fakeJenkins) ListServices(ctx context.Context, parent string) ([]string, error) {
	services, ok := f.folders[parent]
	if !ok {
		return nil, &jenkins.RequestError{URL: parent, Err: errors.New("connection refused")}
	}
	return services, nil
}

func result(r string) *string {
	return &r
}

func timestamp(ts int64) *int64 {
	return &ts
}

func causeActions(user string) []json.RawMessage {
	return []json.RawMessage{
		json.RawMessage(`{"_class":"hudson.model.ParametersAction"}`),
		json.RawMessage(fmt.Sprintf(`{"_class":"hudson.model.CauseAction","causes":[{"userId":%q}]}`, user)),
	}
}

func TestGetSummaryScenario(t *testing.T) {
	fake := newFakeJenkins()
	fake.builds["a"] = []models.Build{{Number: 1, Result: result("SUCCESS")}}
	fake.builds["b"] = []models.Build{{Number: 1, Result: result("FAILURE")}, {Number: 2, Result: result("SUCCESS")}}
	fake.builds["c"] = []models.Build{}

	svc := NewDeploymentService(fake, []string{"a", "b", "c"}, DeploymentOptions{})

	summary, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentSummary{
		TotalDeployments:     3,
		SuccessCount:         2,
		FailureCount:         1,
		AvgDeploymentsPerDay: 0.0,
	}, *summary)
}

func TestGetSummaryNoServices(t *testing.T) {
	svc := NewDeploymentService(newFakeJenkins(), nil, DeploymentOptions{})

	summary, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentSummary{}, *summary)
}

func TestGetSummaryFailFast(t *testing.T) {
	fake := newFakeJenkins()
	fake.builds["a"] = []models.Build{{Number: 1, Result: result("SUCCESS")}}
	upstreamErr := &jenkins.RequestError{URL: "b", Err: errors.New("connection refused")}
	fake.buildErrs["b"] = upstreamErr

	svc := NewDeploymentService(fake, []string{"a", "b"}, DeploymentOptions{})

	summary, err := svc.GetSummary(context.Background())
	assert.Nil(t, summary)
	require.Error(t, err)

	var reqErr *jenkins.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Same(t, upstreamErr, reqErr)
}

func TestGetSummaryRespectsConcurrencyLimit(t *testing.T) {
	fake := newFakeJenkins()
	fake.delay = 20 * time.Millisecond

	names := make([]string, 10)
	for i := range names {
		names[i] = fmt.Sprintf("svc-%d", i)
		fake.builds[names[i]] = []models.Build{{Number: 1, Result: result("SUCCESS")}}
	}

	svc := NewDeploymentService(fake, names, DeploymentOptions{MaxConcurrency: 3})

	summary, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, summary.SuccessCount)
	assert.LessOrEqual(t, fake.maxInFlight.Load(), int32(3))
}

func TestGetSummaryUnboundedFanOut(t *testing.T) {
	fake := newFakeJenkins()
	fake.delay = 50 * time.Millisecond

	names := []string{"a", "b", "c", "d"}
	svc := NewDeploymentService(fake, names, DeploymentOptions{MaxConcurrency: 0})

	_, err := svc.GetSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(4), fake.maxInFlight.Load())
}

func TestCalculateSummaryClassification(t *testing.T) {
	tests := []struct {
		name   string
		builds []models.Build
		want   models.DeploymentSummary
	}{
		{
			name:   "Success counts once",
			builds: []models.Build{{Number: 1, Result: result("SUCCESS")}},
			want:   models.DeploymentSummary{TotalDeployments: 1, SuccessCount: 1},
		},
		{
			name:   "Running build counts toward total only",
			builds: []models.Build{{Number: 1, Result: nil}},
			want:   models.DeploymentSummary{TotalDeployments: 1},
		},
		{
			name:   "Aborted build counts toward total only",
			builds: []models.Build{{Number: 1, Result: result("ABORTED")}},
			want:   models.DeploymentSummary{TotalDeployments: 1},
		},
		{
			name:   "Result match is case sensitive",
			builds: []models.Build{{Number: 1, Result: result("success")}},
			want:   models.DeploymentSummary{TotalDeployments: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, calculateSummary(tt.builds))
		})
	}
}

func TestCalculateSummaryRate(t *testing.T) {
	const day = int64(millisPerDay)
	base := int64(1700000000000)

	tests := []struct {
		name   string
		builds []models.Build
		want   float64
	}{
		{
			name:   "No timestamps",
			builds: []models.Build{{Number: 1}, {Number: 2}},
			want:   0,
		},
		{
			name: "Span below one day divides by one",
			builds: []models.Build{
				{Number: 1, Timestamp: timestamp(base)},
				{Number: 2, Timestamp: timestamp(base + day/2)},
			},
			want: 2,
		},
		{
			name: "Four builds over two days",
			builds: []models.Build{
				{Number: 1, Timestamp: timestamp(base + 2*day)},
				{Number: 2, Timestamp: timestamp(base)},
				{Number: 3, Timestamp: timestamp(base + day)},
				{Number: 4, Timestamp: timestamp(base + day + 1)},
			},
			want: 2,
		},
		{
			name: "Partial days are truncated",
			builds: []models.Build{
				{Number: 1, Timestamp: timestamp(base)},
				{Number: 2, Timestamp: timestamp(base + 2*day + day/2)},
				{Number: 3},
			},
			want: 1.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, calculateSummary(tt.builds).AvgDeploymentsPerDay, 1e-9)
		})
	}
}

func TestGetLatestActivities(t *testing.T) {
	fake := newFakeJenkins()
	fake.builds["api"] = []models.Build{{Number: 7}, {Number: 6}}
	fake.builds["web"] = []models.Build{{Number: 12}}
	fake.builds["docs"] = []models.Build{}
	fake.builds["worker"] = []models.Build{{Number: 3}}

	fake.details["api#7"] = &models.BuildDetails{
		Actions:         causeActions("alice"),
		Result:          result("SUCCESS"),
		Duration:        90500,
		Timestamp:       2000,
		FullDisplayName: "api #7",
	}
	fake.details["web#12"] = &models.BuildDetails{
		Actions:         []json.RawMessage{},
		Result:          nil,
		Duration:        0,
		Timestamp:       3000,
		FullDisplayName: "web #12",
	}
	fake.details["worker#3"] = &models.BuildDetails{
		Actions:         causeActions("bob"),
		Result:          result("FAILURE"),
		Duration:        1000,
		Timestamp:       1000,
		FullDisplayName: "worker #3",
	}

	svc := NewDeploymentService(fake, []string{"api", "web", "docs", "worker"}, DeploymentOptions{MaxConcurrency: 2})

	activities, err := svc.GetLatestActivities(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, activities, 3)

	assert.Equal(t, "web #12", activities[0].JobName)
	assert.Nil(t, activities[0].Committer)
	assert.Nil(t, activities[0].Status)

	assert.Equal(t, "api #7", activities[1].JobName)
	require.NotNil(t, activities[1].Committer)
	assert.Equal(t, "alice", *activities[1].Committer)
	assert.Equal(t, "SUCCESS", *activities[1].Status)
	assert.InDelta(t, 90.5, activities[1].DurationSeconds, 1e-9)
	assert.Equal(t, int64(2000), activities[1].Timestamp)

	assert.Equal(t, "worker #3", activities[2].JobName)

	assert.NotContains(t, fake.detailCalls, "api#6")
}

func TestGetLatestActivitiesLimit(t *testing.T) {
	fake := newFakeJenkins()
	names := []string{"a", "b", "c", "d"}
	for i, name := range names {
		fake.builds[name] = []models.Build{{Number: 1}}
		fake.details[name+"#1"] = &models.BuildDetails{
			Actions:         []json.RawMessage{},
			Timestamp:       int64(i * 100),
			FullDisplayName: name,
		}
	}

	svc := NewDeploymentService(fake, names, DeploymentOptions{})

	activities, err := svc.GetLatestActivities(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, "d", activities[0].JobName)
	assert.Equal(t, "c", activities[1].JobName)

	activities, err = svc.GetLatestActivities(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, activities)
	assert.Empty(t, activities)
}

func TestGetLatestActivitiesZeroLimitStillFetches(t *testing.T) {
	fake := newFakeJenkins()
	fake.buildErrs["api"] = &jenkins.RequestError{URL: "http://jenkins/job/api/api/json", Err: errors.New("connection refused")}

	activities, err := NewDeploymentService(fake, []string{"api"}, DeploymentOptions{}).
		GetLatestActivities(context.Background(), 0)

	require.Error(t, err)
	assert.Nil(t, activities)
	var reqErr *jenkins.RequestError
	assert.True(t, errors.As(err, &reqErr))
}

func TestGetLatestActivitiesTiesKeepServiceOrder(t *testing.T) {
	fake := newFakeJenkins()
	names := []string{"first", "second", "third"}
	for _, name := range names {
		fake.builds[name] = []models.Build{{Number: 1}}
		fake.details[name+"#1"] = &models.BuildDetails{
			Actions:         []json.RawMessage{},
			Timestamp:       500,
			FullDisplayName: name,
		}
	}

	svc := NewDeploymentService(fake, names, DeploymentOptions{MaxConcurrency: 0})

	for i := 0; i < 5; i++ {
		activities, err := svc.GetLatestActivities(context.Background(), 10)
		require.NoError(t, err)
		require.Len(t, activities, 3)
		assert.Equal(t, "first", activities[0].JobName)
		assert.Equal(t, "second", activities[1].JobName)
		assert.Equal(t, "third", activities[2].JobName)
	}
}

func TestGetLatestActivitiesDetailFailureAborts(t *testing.T) {
	fake := newFakeJenkins()
	fake.builds["api"] = []models.Build{{Number: 1}}
	fake.builds["web"] = []models.Build{{Number: 1}}
	fake.details["api#1"] = &models.BuildDetails{Actions: []json.RawMessage{}, FullDisplayName: "api"}
	fake.detailErrs["web"] = &jenkins.ParseError{URL: "web", Err: errors.New("unexpected token")}

	svc := NewDeploymentService(fake, []string{"api", "web"}, DeploymentOptions{MaxConcurrency: 1})

	activities, err := svc.GetLatestActivities(context.Background(), 10)
	assert.Nil(t, activities)

	var parseErr *jenkins.ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestGetLatestActivitiesListFailureAborts(t *testing.T) {
	fake := newFakeJenkins()
	fake.buildErrs["api"] = &jenkins.RequestError{URL: "api", Err: errors.New("timeout")}
	fake.builds["web"] = []models.Build{}

	svc := NewDeploymentService(fake, []string{"api", "web"}, DeploymentOptions{})

	_, err := svc.GetLatestActivities(context.Background(), 10)
	var reqErr *jenkins.RequestError
	assert.True(t, errors.As(err, &reqErr))
}

func TestGetLatestActivitiesCancelledContext(t *testing.T) {
	fake := newFakeJenkins()
	fake.delay = time.Second
	for _, name := range []string{"a", "b", "c"} {
		fake.builds[name] = []models.Build{{Number: 1}}
	}

	svc := NewDeploymentService(fake, []string{"a", "b", "c"}, DeploymentOptions{MaxConcurrency: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.GetLatestActivities(ctx, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLatestBuildStrategies(t *testing.T) {
	builds := []models.Build{{Number: 4}, {Number: 9}, {Number: 2}}

	first := NewDeploymentService(nil, nil, DeploymentOptions{})
	latest, ok := first.pickLatest(builds)
	require.True(t, ok)
	assert.Equal(t, int64(4), latest.Number)

	highest := NewDeploymentService(nil, nil, DeploymentOptions{LatestBuild: LatestBuildHighestNumber})
	latest, ok = highest.pickLatest(builds)
	require.True(t, ok)
	assert.Equal(t, int64(9), latest.Number)

	_, ok = highest.pickLatest(nil)
	assert.False(t, ok)
}

func TestGetLatestActivitiesHighestNumber(t *testing.T) {
	fake := newFakeJenkins()
	fake.builds["api"] = []models.Build{{Number: 1}, {Number: 3}, {Number: 2}}
	fake.details["api#3"] = &models.BuildDetails{Actions: []json.RawMessage{}, FullDisplayName: "api #3"}

	svc := NewDeploymentService(fake, []string{"api"}, DeploymentOptions{LatestBuild: LatestBuildHighestNumber})

	activities, err := svc.GetLatestActivities(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	assert.Equal(t, "api #3", activities[0].JobName)
}

func TestGetListServices(t *testing.T) {
	fake := newFakeJenkins()
	fake.folders[""] = []string{"a"}
	fake.folders["job/team/"] = []string{"team-api", "team-web"}

	svc := NewDeploymentService(fake, nil, DeploymentOptions{})

	services, err := svc.GetListServices(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, services)

	services, err = svc.GetListServices(context.Background(), "job/team/")
	require.NoError(t, err)
	assert.Equal(t, []string{"team-api", "team-web"}, services)

	_, err = svc.GetListServices(context.Background(), "job/missing/")
	var reqErr *jenkins.RequestError
	assert.True(t, errors.As(err, &reqErr))
}

func TestServicesSnapshotIsImmutable(t *testing.T) {
	names := []string{"a", "b"}
	svc := NewDeploymentService(newFakeJenkins(), names, DeploymentOptions{})

	names[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, svc.Services())

	got := svc.Services()
	got[1] = "changed"
	assert.Equal(t, []string{"a", "b"}, svc.Services())
}
