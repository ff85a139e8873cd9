package models

import "time"

// ReportRecord is the persisted and served form of a build report.
type ReportRecord struct {
	BuildID              string       `json:"build_id"`
	ARN                  string       `json:"arn"`
	Project              string       `json:"project"`
	InvocationID         string       `json:"invocation_id,omitempty"`
	StartTime            *time.Time   `json:"start_time,omitempty"`
	Status               BuildStatus  `json:"status"`
	CurrentPhase         string       `json:"current_phase,omitempty"`
	SourceType           string       `json:"source_type,omitempty"`
	SourceLocation       string       `json:"source_location,omitempty"`
	SourceVersion        string       `json:"source_version,omitempty"`
	GitCloneDepth        string       `json:"git_clone_depth,omitempty"`
	ReportBuildStatus    string       `json:"report_build_status,omitempty"`
	Phases               []BuildPhase `json:"phases,omitempty"`
	Logs                 []string     `json:"logs,omitempty"`
	DashboardURL         string       `json:"dashboard_url,omitempty"`
	S3ArtifactURL        string       `json:"s3_artifact_url,omitempty"`
	S3BucketName         string       `json:"s3_bucket_name,omitempty"`
	ArtifactTypeOverride string       `json:"artifact_type_override,omitempty"`
	CloudWatchLogsURL    string       `json:"cloudwatch_logs_url,omitempty"`
	S3LogsURL            string       `json:"s3_logs_url,omitempty"`
	ArtifactsLocation    string       `json:"artifacts_location,omitempty"`
	Succeeded            *bool        `json:"succeeded,omitempty"`
	UpdatedAt            time.Time    `json:"updated_at"`
}
