package builder

import (
	"context"
	"fmt"

	"github.com/narvanalabs/codebuild-runner/internal/logs"
	"github.com/narvanalabs/codebuild-runner/internal/models"
	"github.com/narvanalabs/codebuild-runner/internal/store"
	"github.com/narvanalabs/codebuild-runner/internal/store/cache"
)

// Sink receives the report after every change. newLines are the log lines
// the sink has not yet accepted and first is the index of newLines[0] in the
// full log. After an error the same lines are offered again on the next call.
// Sinks are called synchronously from the poll loop; an error is logged and
// never changes the outcome.
type Sink interface {
	Publish(ctx context.Context, rec *models.ReportRecord, newLines []string, first int) error
}

// StoreSink persists reports in a store.ReportStore.
type StoreSink struct {
	Reports store.ReportStore
}

// Publish saves rec without its log and appends newLines to the stored log.
func (s StoreSink) Publish(ctx context.Context, rec *models.ReportRecord, newLines []string, _ int) error {
	saved := *rec
	saved.Logs = nil
	if err := s.Reports.Save(ctx, &saved); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	if err := s.Reports.AppendLogs(ctx, rec.BuildID, newLines); err != nil {
		return fmt.Errorf("appending logs: %w", err)
	}
	return nil
}

// CacheSink keeps the latest report in Redis and relays new log lines.
type CacheSink struct {
	Cache *cache.Cache
}

// Publish caches rec and publishes newLines.
func (s CacheSink) Publish(ctx context.Context, rec *models.ReportRecord, newLines []string, _ int) error {
	if err := s.Cache.SetReport(ctx, rec); err != nil {
		return err
	}
	return s.Cache.PublishLines(ctx, rec.BuildID, newLines)
}

// BrokerSink fans new log lines out to in-process subscribers.
type BrokerSink struct {
	Broker *logs.Broker
}

// Publish delivers newLines to subscribers of the build.
func (s BrokerSink) Publish(_ context.Context, rec *models.ReportRecord, newLines []string, first int) error {
	s.Broker.PublishLines(rec.BuildID, first, newLines)
	return nil
}
