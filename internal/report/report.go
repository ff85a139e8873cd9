// Package report accumulates the structured record of one remote build as it
// progresses: identity, phases, log lines and console links.
package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// uploadLogsErrorMarker appears in the UPLOAD_ARTIFACTS phase context when
// logs could not be written to S3.
const uploadLogsErrorMarker = "Error uploading logs:"

var (
	// ErrConflictingFinalize is returned when Finalize is called twice with
	// different values.
	ErrConflictingFinalize = errors.New("report already finalized with a different result")

	// ErrNotInitialized is returned when the report is updated before Initialize.
	ErrNotInitialized = errors.New("report not initialized")
)

// LogMonitor tails the build's logs. Poll returns only lines not returned by
// an earlier call.
type LogMonitor interface {
	SetLocation(loc *models.LogsLocation)
	Location() *models.LogsLocation
	Poll(ctx context.Context) ([]string, error)
}

// Context carries invocation data that is not part of a build snapshot.
type Context struct {
	Region               string
	Project              string
	InvocationID         string
	ArtifactLocation     string
	ArtifactType         string
	ArtifactTypeOverride string
}

// Changes describes what one Update added to the report.
type Changes struct {
	NewLines          []string
	CloudWatchLogsURL string
	S3LogsURL         string
}

// Report is owned by a single poll loop and is not safe for concurrent use.
type Report struct {
	initialized bool

	buildID      string
	arn          string
	project      string
	invocationID string
	startTime    *time.Time

	sourceType        string
	sourceLocation    string
	sourceVersion     string
	gitCloneDepth     string
	reportBuildStatus string

	dashboardURL         string
	s3ArtifactURL        string
	s3BucketName         string
	artifactTypeOverride string

	status       models.BuildStatus
	currentPhase string
	phases       []models.BuildPhase
	logs         []string

	// Set at most once.
	cloudWatchLogsURL string
	s3LogsURL         string

	artifactsLocation string
	succeeded         *bool
	updatedAt         time.Time
}

// New returns an empty report.
func New() *Report {
	return &Report{}
}

// Initialized reports whether Initialize has run.
func (r *Report) Initialized() bool {
	return r.initialized
}

// Initialize populates identity and display fields from the first snapshot.
// Later calls are ignored.
func (r *Report) Initialize(snap *models.BuildSnapshot, rc Context) {
	if r.initialized || snap == nil {
		return
	}
	r.initialized = true

	r.buildID = snap.ID
	r.arn = snap.ARN
	r.project = rc.Project
	r.invocationID = rc.InvocationID
	r.startTime = snap.StartTime
	r.status = snap.Status
	r.currentPhase = snap.CurrentPhase

	if src := snap.Source; src != nil {
		r.sourceType = src.Type
		r.sourceLocation = src.Location
		if snap.SourceVersion != nil {
			r.sourceVersion = *snap.SourceVersion
		}
		r.gitCloneDepth = CloneDepthDisplay(src.GitCloneDepth)
		if src.ReportBuildStatus != nil {
			r.reportBuildStatus = strconv.FormatBool(*src.ReportBuildStatus)
		}
	}

	r.s3ArtifactURL = S3ArtifactURL(rc.ArtifactLocation, rc.ArtifactType)
	r.artifactTypeOverride = rc.ArtifactTypeOverride
	r.dashboardURL = DashboardURL(rc.Region, rc.Project, snap.ID)
	r.s3BucketName = rc.ArtifactLocation
	r.logs = []string{}
	r.updatedAt = time.Now()
}

// Update records a new snapshot. Status and phases are overwritten, new log
// lines appended, and log URLs set the first time their preconditions hold.
// A log polling error is returned after the rest of the update is applied.
func (r *Report) Update(ctx context.Context, snap *models.BuildSnapshot, monitor LogMonitor) (Changes, error) {
	var changes Changes
	if !r.initialized {
		return changes, ErrNotInitialized
	}

	r.status = snap.Status
	r.currentPhase = snap.CurrentPhase
	r.phases = snap.Phases
	r.updatedAt = time.Now()

	loc := snap.Logs
	var pollErr error
	if monitor != nil {
		monitor.SetLocation(snap.Logs)
		changes.NewLines, pollErr = monitor.Poll(ctx)
		r.logs = append(r.logs, changes.NewLines...)
		loc = monitor.Location()
	}
	if loc == nil {
		return changes, pollErr
	}

	if r.cloudWatchLogsURL == "" && loc.GroupName != "" && loc.StreamName != "" && loc.DeepLink != "" {
		r.cloudWatchLogsURL = loc.DeepLink
		changes.CloudWatchLogsURL = loc.DeepLink
	}

	if r.s3LogsURL == "" && loc.S3DeepLink != "" && s3LogsUploaded(snap.Phases) {
		r.s3LogsURL = loc.S3DeepLink
		changes.S3LogsURL = loc.S3DeepLink
	}

	return changes, pollErr
}

// s3LogsUploaded reports whether the artifact upload phase finished without
// a log upload error.
func s3LogsUploaded(phases []models.BuildPhase) bool {
	for _, phase := range phases {
		if phase.Type != models.PhaseUploadArtifacts || len(phase.Contexts) == 0 {
			continue
		}
		msg := phase.Contexts[0].Message
		if msg != "" && !strings.Contains(msg, uploadLogsErrorMarker) {
			return true
		}
	}
	return false
}

// SetArtifactsLocation records where the build's artifacts were written.
func (r *Report) SetArtifactsLocation(location *string) {
	if location != nil {
		r.artifactsLocation = *location
	}
}

// Finalize records the terminal result. Repeating the same value is a no-op.
func (r *Report) Finalize(succeeded bool) error {
	if r.succeeded != nil {
		if *r.succeeded != succeeded {
			return ErrConflictingFinalize
		}
		return nil
	}
	r.succeeded = &succeeded
	r.updatedAt = time.Now()
	return nil
}

// Succeeded returns the terminal result and whether one was recorded.
func (r *Report) Succeeded() (succeeded, ok bool) {
	if r.succeeded == nil {
		return false, false
	}
	return *r.succeeded, true
}

// BuildID returns the remote build id.
func (r *Report) BuildID() string { return r.buildID }

// ARN returns the remote build ARN.
func (r *Report) ARN() string { return r.arn }

// CloudWatchLogsURL returns the CloudWatch deep link once known.
func (r *Report) CloudWatchLogsURL() string { return r.cloudWatchLogsURL }

// S3LogsURL returns the S3 logs deep link once known.
func (r *Report) S3LogsURL() string { return r.s3LogsURL }

// DashboardURL returns the build console link.
func (r *Report) DashboardURL() string { return r.dashboardURL }

// ArtifactsLocation returns the artifacts location recorded at completion.
func (r *Report) ArtifactsLocation() string { return r.artifactsLocation }

// Logs returns a copy of the accumulated log lines.
func (r *Report) Logs() []string {
	out := make([]string, len(r.logs))
	copy(out, r.logs)
	return out
}

// PhaseErrorMessage describes every phase that did not succeed, one per
// line, using the phase context messages.
func (r *Report) PhaseErrorMessage() string {
	var lines []string
	for _, phase := range r.phases {
		if phase.Status == "" || phase.Status == string(models.BuildStatusSucceeded) {
			continue
		}
		line := fmt.Sprintf("Build phase %s %s", phase.Type, phase.Status)
		for _, c := range phase.Contexts {
			switch {
			case c.StatusCode != "" && c.Message != "":
				line += fmt.Sprintf(": %s: %s", c.StatusCode, c.Message)
			case c.Message != "":
				line += ": " + c.Message
			}
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Record returns a snapshot of the report for persistence and serving.
func (r *Report) Record() *models.ReportRecord {
	rec := &models.ReportRecord{
		BuildID:              r.buildID,
		ARN:                  r.arn,
		Project:              r.project,
		InvocationID:         r.invocationID,
		StartTime:            r.startTime,
		Status:               r.status,
		CurrentPhase:         r.currentPhase,
		SourceType:           r.sourceType,
		SourceLocation:       r.sourceLocation,
		SourceVersion:        r.sourceVersion,
		GitCloneDepth:        r.gitCloneDepth,
		ReportBuildStatus:    r.reportBuildStatus,
		Phases:               append([]models.BuildPhase(nil), r.phases...),
		Logs:                 r.Logs(),
		DashboardURL:         r.dashboardURL,
		S3ArtifactURL:        r.s3ArtifactURL,
		S3BucketName:         r.s3BucketName,
		ArtifactTypeOverride: r.artifactTypeOverride,
		CloudWatchLogsURL:    r.cloudWatchLogsURL,
		S3LogsURL:            r.s3LogsURL,
		ArtifactsLocation:    r.artifactsLocation,
		UpdatedAt:            r.updatedAt,
	}
	if r.succeeded != nil {
		s := *r.succeeded
		rec.Succeeded = &s
	}
	return rec
}

// CloneDepthDisplay renders a clone depth, with nil or zero shown as "Full".
func CloneDepthDisplay(depth *int32) string {
	if depth == nil || *depth == 0 {
		return "Full"
	}
	return strconv.FormatInt(int64(*depth), 10)
}
