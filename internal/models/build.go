package models

import "time"

// BuildStatus represents the remote status of a build.
type BuildStatus string

const (
	BuildStatusInProgress BuildStatus = "IN_PROGRESS"
	BuildStatusSucceeded  BuildStatus = "SUCCEEDED"
	BuildStatusFailed     BuildStatus = "FAILED"
	BuildStatusFault      BuildStatus = "FAULT"
	BuildStatusStopped    BuildStatus = "STOPPED"
	BuildStatusTimedOut   BuildStatus = "TIMED_OUT"
)

// Phase types referenced by the runner.
const (
	PhaseUploadArtifacts = "UPLOAD_ARTIFACTS"
	PhaseCompleted       = "COMPLETED"
)

// SourceDescriptor describes the primary source of a build.
type SourceDescriptor struct {
	Type              string `json:"type"`
	Location          string `json:"location"`
	GitCloneDepth     *int32 `json:"git_clone_depth,omitempty"`
	ReportBuildStatus *bool  `json:"report_build_status,omitempty"`
}

// PhaseContext carries the status detail of a build phase.
type PhaseContext struct {
	StatusCode string `json:"status_code,omitempty"`
	Message    string `json:"message,omitempty"`
}

// BuildPhase is one phase of a remote build.
type BuildPhase struct {
	Type            string         `json:"type"`
	Status          string         `json:"status,omitempty"`
	Contexts        []PhaseContext `json:"contexts,omitempty"`
	StartTime       *time.Time     `json:"start_time,omitempty"`
	EndTime         *time.Time     `json:"end_time,omitempty"`
	DurationSeconds *int64         `json:"duration_seconds,omitempty"`
}

// LogsLocation points at the build's logs. Empty fields are absent.
type LogsLocation struct {
	GroupName  string `json:"group_name,omitempty"`
	StreamName string `json:"stream_name,omitempty"`
	DeepLink   string `json:"deep_link,omitempty"`
	S3DeepLink string `json:"s3_deep_link,omitempty"`
}

// BuildSnapshot is one read of remote build state. It is never mutated.
type BuildSnapshot struct {
	ID               string            `json:"id"`
	ARN              string            `json:"arn"`
	Status           BuildStatus       `json:"status"`
	CurrentPhase     string            `json:"current_phase"`
	StartTime        *time.Time        `json:"start_time,omitempty"`
	Source           *SourceDescriptor `json:"source,omitempty"`
	SourceVersion    *string           `json:"source_version,omitempty"`
	Phases           []BuildPhase      `json:"phases,omitempty"`
	ArtifactLocation *string           `json:"artifact_location,omitempty"`
	Logs             *LogsLocation     `json:"logs,omitempty"`
}

// InProgress reports whether the build has not reached a terminal status.
func (s *BuildSnapshot) InProgress() bool {
	return s.Status == BuildStatusInProgress
}

// Completed reports whether the build's current phase is COMPLETED.
func (s *BuildSnapshot) Completed() bool {
	return s.CurrentPhase == PhaseCompleted
}
