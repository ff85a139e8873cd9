package logs

import (
	"context"
	"log/slog"

	"github.com/narvanalabs/codebuild-runner/internal/codebuild"
	"github.com/narvanalabs/codebuild-runner/internal/models"
)

// maxPagesPerPoll bounds how many pages one Poll reads so a chatty build
// cannot starve the status loop.
const maxPagesPerPoll = 20

// CloudWatchMonitor tails a build's CloudWatch log stream. It is owned by a
// single poll loop.
type CloudWatchMonitor struct {
	client   codebuild.LogService
	disabled bool
	logger   *slog.Logger

	loc       *models.LogsLocation
	nextToken string
}

// MonitorOption configures a CloudWatchMonitor.
type MonitorOption func(*CloudWatchMonitor)

// WithStreamingDisabled turns Poll into a no-op. Log locations are still
// tracked so console links are reported.
func WithStreamingDisabled(disabled bool) MonitorOption {
	return func(m *CloudWatchMonitor) {
		m.disabled = disabled
	}
}

// WithMonitorLogger sets the structured logger.
func WithMonitorLogger(l *slog.Logger) MonitorOption {
	return func(m *CloudWatchMonitor) {
		m.logger = l
	}
}

// NewCloudWatchMonitor creates a monitor reading through client.
func NewCloudWatchMonitor(client codebuild.LogService, opts ...MonitorOption) *CloudWatchMonitor {
	m := &CloudWatchMonitor{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetLocation updates the stream to read. Moving to a different stream
// restarts from its head.
func (m *CloudWatchMonitor) SetLocation(loc *models.LogsLocation) {
	if loc == nil {
		return
	}
	if m.loc != nil && (m.loc.GroupName != loc.GroupName || m.loc.StreamName != loc.StreamName) {
		m.nextToken = ""
	}
	copied := *loc
	m.loc = &copied
}

// Location returns the current log location, or nil before one is known.
func (m *CloudWatchMonitor) Location() *models.LogsLocation {
	return m.loc
}

// Poll returns lines written since the previous call.
func (m *CloudWatchMonitor) Poll(ctx context.Context) ([]string, error) {
	if m.disabled || m.client == nil || m.loc == nil || m.loc.GroupName == "" || m.loc.StreamName == "" {
		return nil, nil
	}

	var lines []string
	for i := 0; i < maxPagesPerPoll; i++ {
		page, err := m.client.GetLogEvents(ctx, &codebuild.LogEventsInput{
			GroupName:  m.loc.GroupName,
			StreamName: m.loc.StreamName,
			NextToken:  m.nextToken,
		})
		if err != nil {
			return lines, err
		}
		lines = append(lines, page.Messages...)

		// The forward token repeats once the end of the stream is reached.
		done := page.NextToken == "" || page.NextToken == m.nextToken
		if page.NextToken != "" {
			m.nextToken = page.NextToken
		}
		if done {
			break
		}
	}

	if len(lines) > 0 {
		m.logger.Debug("read log events", "stream", m.loc.StreamName, "lines", len(lines))
	}
	return lines, nil
}
