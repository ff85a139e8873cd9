package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// fakeMonitor returns queued batches of lines, one batch per Poll.
type fakeMonitor struct {
	loc     *models.LogsLocation
	batches [][]string
	err     error
}

func (m *fakeMonitor) SetLocation(loc *models.LogsLocation) { m.loc = loc }
func (m *fakeMonitor) Location() *models.LogsLocation       { return m.loc }

func (m *fakeMonitor) Poll(ctx context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(m.batches) == 0 {
		return nil, nil
	}
	next := m.batches[0]
	m.batches = m.batches[1:]
	return next, nil
}

func int32Ptr(v int32) *int32 { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func snapshot(status models.BuildStatus, phases ...models.BuildPhase) *models.BuildSnapshot {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.BuildSnapshot{
		ID:           "proj:1234",
		ARN:          "arn:aws:codebuild:us-east-1:123456789012:build/proj:1234",
		Status:       status,
		CurrentPhase: "BUILD",
		StartTime:    &start,
		Source: &models.SourceDescriptor{
			Type:              "S3",
			Location:          "bucket/source.zip",
			ReportBuildStatus: boolPtr(true),
		},
		SourceVersion: strPtr("v-abc"),
		Phases:        phases,
	}
}

var testContext = Context{
	Region:           "us-west-2",
	Project:          "proj",
	ArtifactLocation: "artifact-bucket",
	ArtifactType:     "S3",
}

func TestInitialize(t *testing.T) {
	r := New()
	r.Initialize(snapshot(models.BuildStatusInProgress), testContext)

	rec := r.Record()
	if rec.BuildID != "proj:1234" || rec.Project != "proj" {
		t.Errorf("identity = %q %q", rec.BuildID, rec.Project)
	}
	if rec.GitCloneDepth != "Full" {
		t.Errorf("GitCloneDepth = %q, want Full", rec.GitCloneDepth)
	}
	if rec.ReportBuildStatus != "true" {
		t.Errorf("ReportBuildStatus = %q, want true", rec.ReportBuildStatus)
	}
	if rec.SourceVersion != "v-abc" {
		t.Errorf("SourceVersion = %q", rec.SourceVersion)
	}
	wantDashboard := "https://us-west-2.console.aws.amazon.com/codesuite/codebuild/projects/proj/build/proj:1234/log?region=us-west-2"
	if rec.DashboardURL != wantDashboard {
		t.Errorf("DashboardURL = %q, want %q", rec.DashboardURL, wantDashboard)
	}
	if rec.S3ArtifactURL != "https://console.aws.amazon.com/s3/buckets/artifact-bucket" {
		t.Errorf("S3ArtifactURL = %q", rec.S3ArtifactURL)
	}
	if rec.Logs == nil || len(rec.Logs) != 0 {
		t.Errorf("Logs = %v, want empty", rec.Logs)
	}

	// A second Initialize does not overwrite the first.
	other := snapshot(models.BuildStatusInProgress)
	other.ID = "proj:other"
	r.Initialize(other, testContext)
	if r.BuildID() != "proj:1234" {
		t.Errorf("BuildID after second Initialize = %q", r.BuildID())
	}
}

func TestCloneDepthDisplay(t *testing.T) {
	tests := []struct {
		depth *int32
		want  string
	}{
		{nil, "Full"},
		{int32Ptr(0), "Full"},
		{int32Ptr(1), "1"},
		{int32Ptr(50), "50"},
	}
	for _, tt := range tests {
		if got := CloneDepthDisplay(tt.depth); got != tt.want {
			t.Errorf("CloneDepthDisplay(%v) = %q, want %q", tt.depth, got, tt.want)
		}
	}
}

func TestS3ArtifactURL(t *testing.T) {
	tests := []struct {
		location, artifactType, want string
	}{
		{"bucket/path with space", "S3", "https://console.aws.amazon.com/s3/buckets/bucket%2Fpath+with+space"},
		{"bucket", "NO_ARTIFACTS", ""},
		{"", "S3", ""},
	}
	for _, tt := range tests {
		if got := S3ArtifactURL(tt.location, tt.artifactType); got != tt.want {
			t.Errorf("S3ArtifactURL(%q, %q) = %q, want %q", tt.location, tt.artifactType, got, tt.want)
		}
	}
}

func TestUpdateBeforeInitialize(t *testing.T) {
	_, err := New().Update(context.Background(), snapshot(models.BuildStatusInProgress), nil)
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Update() error = %v, want ErrNotInitialized", err)
	}
}

func TestUpdateAppendsLogs(t *testing.T) {
	r := New()
	r.Initialize(snapshot(models.BuildStatusInProgress), testContext)
	mon := &fakeMonitor{batches: [][]string{{"line 1", "line 2"}, {}, {"line 3"}}}

	for i := 0; i < 3; i++ {
		if _, err := r.Update(context.Background(), snapshot(models.BuildStatusInProgress), mon); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}

	got := r.Logs()
	want := []string{"line 1", "line 2", "line 3"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Logs() = %v, want %v", got, want)
	}
}

func TestUpdateReturnsPollErrorAfterApplying(t *testing.T) {
	r := New()
	r.Initialize(snapshot(models.BuildStatusInProgress), testContext)
	mon := &fakeMonitor{err: errors.New("throttled")}

	snap := snapshot(models.BuildStatusFailed)
	_, err := r.Update(context.Background(), snap, mon)
	if err == nil {
		t.Fatal("Update() error = nil, want poll error")
	}
	if r.Record().Status != models.BuildStatusFailed {
		t.Errorf("Status = %q, want FAILED", r.Record().Status)
	}
}

func TestCloudWatchURLPreconditions(t *testing.T) {
	r := New()
	r.Initialize(snapshot(models.BuildStatusInProgress), testContext)
	mon := &fakeMonitor{}

	partial := snapshot(models.BuildStatusInProgress)
	partial.Logs = &models.LogsLocation{GroupName: "/aws/codebuild/proj", DeepLink: "https://cw/1"}
	changes, _ := r.Update(context.Background(), partial, mon)
	if changes.CloudWatchLogsURL != "" || r.CloudWatchLogsURL() != "" {
		t.Fatalf("CloudWatch URL set without stream name")
	}

	full := snapshot(models.BuildStatusInProgress)
	full.Logs = &models.LogsLocation{GroupName: "/aws/codebuild/proj", StreamName: "1234", DeepLink: "https://cw/1"}
	changes, _ = r.Update(context.Background(), full, mon)
	if changes.CloudWatchLogsURL != "https://cw/1" || r.CloudWatchLogsURL() != "https://cw/1" {
		t.Errorf("CloudWatch URL = %q, change = %q", r.CloudWatchLogsURL(), changes.CloudWatchLogsURL)
	}

	changes, _ = r.Update(context.Background(), full, mon)
	if changes.CloudWatchLogsURL != "" {
		t.Errorf("second update reported CloudWatch URL change %q", changes.CloudWatchLogsURL)
	}
}

func TestS3LogsURLPreconditions(t *testing.T) {
	uploaded := models.BuildPhase{
		Type:     models.PhaseUploadArtifacts,
		Status:   "SUCCEEDED",
		Contexts: []models.PhaseContext{{Message: "Uploaded"}},
	}
	uploadFailed := models.BuildPhase{
		Type:     models.PhaseUploadArtifacts,
		Status:   "FAILED",
		Contexts: []models.PhaseContext{{Message: "Error uploading logs: access denied"}},
	}
	logs := &models.LogsLocation{S3DeepLink: "https://s3/logs"}

	tests := []struct {
		name   string
		phases []models.BuildPhase
		want   string
	}{
		{"no upload phase", []models.BuildPhase{{Type: "BUILD"}}, ""},
		{"upload without contexts", []models.BuildPhase{{Type: models.PhaseUploadArtifacts}}, ""},
		{"upload error", []models.BuildPhase{uploadFailed}, ""},
		{"uploaded", []models.BuildPhase{{Type: "BUILD"}, uploaded}, "https://s3/logs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			r.Initialize(snapshot(models.BuildStatusInProgress), testContext)
			snap := snapshot(models.BuildStatusInProgress, tt.phases...)
			snap.Logs = logs
			if _, err := r.Update(context.Background(), snap, nil); err != nil {
				t.Fatalf("Update() error = %v", err)
			}
			if got := r.S3LogsURL(); got != tt.want {
				t.Errorf("S3LogsURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFinalize(t *testing.T) {
	r := New()
	if err := r.Finalize(true); err != nil {
		t.Fatalf("Finalize(true) error = %v", err)
	}
	if err := r.Finalize(true); err != nil {
		t.Errorf("repeated Finalize(true) error = %v", err)
	}
	if err := r.Finalize(false); !errors.Is(err, ErrConflictingFinalize) {
		t.Errorf("Finalize(false) error = %v, want ErrConflictingFinalize", err)
	}
	if ok, set := r.Succeeded(); !ok || !set {
		t.Errorf("Succeeded() = %v, %v", ok, set)
	}
}

func TestPhaseErrorMessage(t *testing.T) {
	r := New()
	r.Initialize(snapshot(models.BuildStatusInProgress), testContext)
	snap := snapshot(models.BuildStatusFailed,
		models.BuildPhase{Type: "SUBMITTED", Status: "SUCCEEDED"},
		models.BuildPhase{Type: "BUILD", Status: "FAILED", Contexts: []models.PhaseContext{
			{StatusCode: "COMMAND_EXECUTION_ERROR", Message: "Error while executing command: make. Reason: exit status 2"},
		}},
		models.BuildPhase{Type: "COMPLETED"},
	)
	if _, err := r.Update(context.Background(), snap, nil); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got := r.PhaseErrorMessage()
	want := "Build phase BUILD FAILED: COMMAND_EXECUTION_ERROR: Error while executing command: make. Reason: exit status 2"
	if got != want {
		t.Errorf("PhaseErrorMessage() = %q, want %q", got, want)
	}
}

// Once a log URL is set, later updates with different pointers never change it.
func TestLogURLsSetOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	link := gen.Identifier().Map(func(s string) string { return "https://" + s })

	properties.Property("first complete pointers win", prop.ForAll(
		func(first string, later []string) bool {
			r := New()
			r.Initialize(snapshot(models.BuildStatusInProgress), testContext)
			uploaded := models.BuildPhase{
				Type:     models.PhaseUploadArtifacts,
				Contexts: []models.PhaseContext{{Message: "ok"}},
			}

			update := func(deepLink string) {
				snap := snapshot(models.BuildStatusInProgress, uploaded)
				snap.Logs = &models.LogsLocation{
					GroupName:  "group",
					StreamName: "stream",
					DeepLink:   deepLink,
					S3DeepLink: deepLink + "/s3",
				}
				r.Update(context.Background(), snap, &fakeMonitor{})
			}

			update(first)
			for _, l := range later {
				update(l)
			}
			return r.CloudWatchLogsURL() == first && r.S3LogsURL() == first+"/s3"
		},
		link,
		gen.SliceOf(link),
	))

	properties.TestingRun(t)
}
