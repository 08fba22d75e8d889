package jenkins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/imyashkale/deployinsights/internal/logger"
	"github.com/imyashkale/deployinsights/internal/metrics"
	"github.com/imyashkale/deployinsights/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultJobClass is the folder entry class treated as a deployable service
	DefaultJobClass = "hudson.model.FreeStyleProject"

	// CauseActionClass marks the build action that lists what triggered a build
	CauseActionClass = "hudson.model.CauseAction"

	buildsTree = "builds[number,result,timestamp]"
)

// Endpoint labels used for logging and metrics
const (
	endpointBuilds       = "builds"
	endpointBuildDetails = "build_details"
	endpointFolder       = "folder"
)

// Options configures a Client
type Options struct {
	// BaseURL is the Jenkins (or folder) URL every path is appended to. It must end with a slash.
	BaseURL  string
	Username string
	APIToken string

	// JobClass selects which folder entries ListServices returns. Defaults to DefaultJobClass.
	JobClass string

	// AuthenticateBuildDetails attaches basic auth to build detail requests.
	// Jenkins instances observed so far serve those anonymously, so it is off by default.
	AuthenticateBuildDetails bool

	// Timeout bounds each request when HTTPClient is nil
	Timeout time.Duration

	HTTPClient *http.Client
}

// Client issues read-only requests against the Jenkins JSON API.
// It is safe for concurrent use; the underlying http.Client connection pool is shared.
type Client struct {
	baseURL     string
	username    string
	apiToken    string
	jobClass    string
	authDetails bool
	httpClient  *http.Client
}

// NewClient creates a new Jenkins API client
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	jobClass := opts.JobClass
	if jobClass == "" {
		jobClass = DefaultJobClass
	}

	baseURL := opts.BaseURL
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &Client{
		baseURL:     baseURL,
		username:    opts.Username,
		apiToken:    opts.APIToken,
		jobClass:    jobClass,
		authDetails: opts.AuthenticateBuildDetails,
		httpClient:  httpClient,
	}
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListBuilds returns the build list of a job, in the order Jenkins reports it
// (newest first on a stock Jenkins).
func (c *Client) ListBuilds(ctx context.Context, service string) ([]models.Build, error) {
	endpoint := fmt.Sprintf("%sjob/%s/api/json?tree=%s", c.baseURL, url.PathEscape(service), url.QueryEscape(buildsTree))

	var response models.JobResponse
	err := c.getJSON(ctx, endpointBuilds, endpoint, true, &response, func() error {
		if response.Builds == nil {
			return errors.New("missing field `builds`")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return response.Builds, nil
}

// GetBuildDetails fetches a single build of a job
func (c *Client) GetBuildDetails(ctx context.Context, service string, number int64) (*models.BuildDetails, error) {
	endpoint := fmt.Sprintf("%s%s/%s/api/json", c.baseURL, url.PathEscape(service), strconv.FormatInt(number, 10))

	var details models.BuildDetails
	err := c.getJSON(ctx, endpointBuildDetails, endpoint, c.authDetails, &details, func() error {
		if details.Actions == nil {
			return errors.New("missing field `actions`")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &details, nil
}

// ListServices lists the jobs of a folder whose class matches the configured
// job class. An empty parent lists the base URL itself.
func (c *Client) ListServices(ctx context.Context, parent string) ([]string, error) {
	endpoint := c.baseURL + folderPath(parent) + "api/json"

	var response models.FolderResponse
	err := c.getJSON(ctx, endpointFolder, endpoint, true, &response, func() error {
		if response.Jobs == nil {
			return errors.New("missing field `jobs`")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	services := make([]string, 0, len(response.Jobs))
	for _, job := range response.Jobs {
		if job.Class == c.jobClass {
			services = append(services, job.Name)
		}
	}

	logger.WithFields(logrus.Fields{
		"parent":   parent,
		"jobs":     len(response.Jobs),
		"services": len(services),
	}).Debug("Listed Jenkins folder")

	return services, nil
}

// folderPath turns a folder reference into a path relative to the base URL
func folderPath(parent string) string {
	parent = strings.TrimLeft(parent, "/")
	if parent == "" || strings.HasSuffix(parent, "/") {
		return parent
	}
	return parent + "/"
}

// getJSON performs a GET, decodes the body into out and runs check on the
// decoded value. The status code is not inspected: an error page simply fails
// to decode.
func (c *Client) getJSON(ctx context.Context, endpoint, target string, authenticate bool, out interface{}, check func() error) error {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return c.observeRequestError(endpoint, target, err)
	}
	req.Header.Set("Accept", "application/json")
	if authenticate {
		req.SetBasicAuth(c.username, c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.observeRequestError(endpoint, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.observeRequestError(endpoint, target, err)
	}

	logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"url":      target,
		"status":   resp.StatusCode,
	}).Debug("Jenkins responded")

	if err := json.Unmarshal(body, out); err != nil {
		return c.observeParseError(endpoint, target, err)
	}
	if err := check(); err != nil {
		return c.observeParseError(endpoint, target, err)
	}

	metrics.UpstreamRequests.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

func (c *Client) observeRequestError(endpoint, target string, err error) error {
	metrics.UpstreamRequests.WithLabelValues(endpoint, "request_error").Inc()
	logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"url":      target,
		"error":    err.Error(),
	}).Warn("Jenkins request failed")
	return &RequestError{URL: target, Err: err}
}

func (c *Client) observeParseError(endpoint, target string, err error) error {
	metrics.UpstreamRequests.WithLabelValues(endpoint, "parse_error").Inc()
	logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"url":      target,
		"error":    err.Error(),
	}).Warn("Jenkins response could not be parsed")
	return &ParseError{URL: target, Err: err}
}
