package models

import "encoding/json"

// Jenkins build results the summary distinguishes
const (
	ResultSuccess = "SUCCESS"
	ResultFailure = "FAILURE"
)

// JobResponse is the body of GET job/{name}/api/json
type JobResponse struct {
	Builds []Build `json:"builds"`
}

// Build is one entry of a job's build list.
// Result is nil while the build is running; Timestamp is nil when Jenkins omits it.
type Build struct {
	Number    int64   `json:"number"`
	Result    *string `json:"result"`
	Timestamp *int64  `json:"timestamp,omitempty"`
}

// BuildDetails is the body of GET {job}/{number}/api/json
type BuildDetails struct {
	Actions         []json.RawMessage `json:"actions"`
	Result          *string           `json:"result"`
	Duration        int64             `json:"duration"`  // milliseconds
	Timestamp       int64             `json:"timestamp"` // epoch milliseconds
	FullDisplayName string            `json:"fullDisplayName"`
}

// FolderResponse is the body of a folder (or root) api/json listing
type FolderResponse struct {
	Jobs []Job `json:"jobs"`
}

// Job is a single folder entry
type Job struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Class string `json:"_class"`
}
