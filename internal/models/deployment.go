package models

// DeploymentSummary aggregates build outcomes across the tracked services.
// Builds that are neither SUCCESS nor FAILURE only count toward TotalDeployments.
type DeploymentSummary struct {
	TotalDeployments     int     `json:"total_deployments"`
	SuccessCount         int     `json:"success_count"`
	FailureCount         int     `json:"failure_count"`
	AvgDeploymentsPerDay float64 `json:"avg_deployments_per_day"`
}

// Activity describes the most recent build of one service
type Activity struct {
	JobName         string  `json:"job_name"`
	Committer       *string `json:"committer"`
	Status          *string `json:"status"`
	DurationSeconds float64 `json:"duration_seconds"`
	Timestamp       int64   `json:"timestamp"`
}
