package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Latest build strategies understood by the deployment service
const (
	LatestBuildFirst         = "first"
	LatestBuildHighestNumber = "highest-number"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port        string
	BindAddress string

	// Logging configuration
	LogLevel string

	// Jenkins configuration
	JenkinsBaseURL          string
	JenkinsUsername         string
	JenkinsAPIToken         string
	JenkinsRootFolder       string
	JenkinsJobClass         string
	JenkinsAuthBuildDetails bool
	JenkinsTimeoutSeconds   int

	// Aggregation configuration
	LatestBuildStrategy string
	MaxConcurrency      int

	// Optional YAML file with a fixed list of tracked services
	ServicesFile string
}

// ServicesFile is the layout of the optional services YAML file
type ServicesFile struct {
	Services []string `yaml:"services"`
}

// New creates a new Config instance by loading environment variables
// from .env file (if present) and OS environment.
// OS environment variables take precedence over .env file values.
// Panics if required configuration values are missing or invalid.
func New() *Config {
	envPath := filepath.Join(".", ".env")
	_ = godotenv.Load(envPath)

	cfg, err := Load()
	if err != nil {
		panic(err.Error())
	}
	return cfg
}

// Load reads the configuration from the process environment and validates it
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "3000"),
		BindAddress: getEnvOrDefault("BIND_ADDRESS", "0.0.0.0"),

		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),

		JenkinsBaseURL:          withTrailingSlash(os.Getenv("JENKINS_BASE_URL")),
		JenkinsUsername:         os.Getenv("JENKINS_USERNAME"),
		JenkinsAPIToken:         os.Getenv("JENKINS_API_TOKEN"),
		JenkinsRootFolder:       os.Getenv("JENKINS_ROOT_FOLDER"),
		JenkinsJobClass:         getEnvOrDefault("JENKINS_JOB_CLASS", "hudson.model.FreeStyleProject"),

		LatestBuildStrategy: strings.ToLower(getEnvOrDefault("LATEST_BUILD_STRATEGY", LatestBuildFirst)),

		ServicesFile: os.Getenv("SERVICES_FILE"),
	}

	var err error
	if cfg.JenkinsAuthBuildDetails, err = getEnvBool("JENKINS_AUTH_BUILD_DETAILS", false); err != nil {
		return nil, err
	}
	if cfg.JenkinsTimeoutSeconds, err = getEnvInt("JENKINS_TIMEOUT_SECONDS", 30); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency, err = getEnvInt("MAX_CONCURRENCY", 8); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration values are present and valid
func (c *Config) validate() error {
	var missing []string

	if c.JenkinsBaseURL == "" {
		missing = append(missing, "JENKINS_BASE_URL")
	}
	if c.JenkinsUsername == "" {
		missing = append(missing, "JENKINS_USERNAME")
	}
	if c.JenkinsAPIToken == "" {
		missing = append(missing, "JENKINS_API_TOKEN")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration values: %v", missing)
	}

	if !strings.HasPrefix(c.JenkinsBaseURL, "http://") && !strings.HasPrefix(c.JenkinsBaseURL, "https://") {
		return fmt.Errorf("JENKINS_BASE_URL must start with http:// or https:// (got '%s')", c.JenkinsBaseURL)
	}

	switch c.LatestBuildStrategy {
	case LatestBuildFirst, LatestBuildHighestNumber:
	default:
		return fmt.Errorf("LATEST_BUILD_STRATEGY must be '%s' or '%s' (got '%s')",
			LatestBuildFirst, LatestBuildHighestNumber, c.LatestBuildStrategy)
	}

	if c.MaxConcurrency < 0 {
		return fmt.Errorf("MAX_CONCURRENCY must not be negative (got %d)", c.MaxConcurrency)
	}
	if c.JenkinsTimeoutSeconds <= 0 {
		return fmt.Errorf("JENKINS_TIMEOUT_SECONDS must be positive (got %d)", c.JenkinsTimeoutSeconds)
	}

	return nil
}

// LoadServicesFile reads the tracked service names from a YAML file.
// Blank and duplicate entries are dropped, order is preserved.
func LoadServicesFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read services file: %w", err)
	}

	var file ServicesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse services file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Services))
	services := make([]string, 0, len(file.Services))
	for _, name := range file.Services {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		services = append(services, name)
	}

	return services, nil
}

// getEnvOrDefault returns the value of an environment variable or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or the default when unset
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got '%s')", key, value)
	}
	return parsed, nil
}

// getEnvBool returns a boolean environment variable or the default when unset
func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean (got '%s')", key, value)
	}
	return parsed, nil
}

func withTrailingSlash(url string) string {
	if url == "" || strings.HasSuffix(url, "/") {
		return url
	}
	return url + "/"
}

// Address returns the listen address for the HTTP server
func (c *Config) Address() string {
	return c.BindAddress + ":" + c.Port
}

// GetLogLevel returns the logging level
func (c *Config) GetLogLevel() string {
	return c.LogLevel
}
