// Package builder drives one remote build from submission to a terminal
// outcome: validate, submit, poll with backoff, and stop on cancellation.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	builderrors "github.com/narvanalabs/codebuild-runner/internal/builder/errors"
	"github.com/narvanalabs/codebuild-runner/internal/builder/retry"
	"github.com/narvanalabs/codebuild-runner/internal/codebuild"
	"github.com/narvanalabs/codebuild-runner/internal/logs"
	"github.com/narvanalabs/codebuild-runner/internal/models"
	"github.com/narvanalabs/codebuild-runner/internal/report"
	"github.com/narvanalabs/codebuild-runner/pkg/logger"
)

const tracerName = "github.com/narvanalabs/codebuild-runner/internal/builder"

// MonitorFactory creates the log monitor for one build.
type MonitorFactory func(client codebuild.LogService, streamingDisabled bool) report.LogMonitor

// Orchestrator runs build invocations. One Orchestrator may run several
// invocations, each on its own goroutine.
type Orchestrator struct {
	factory    codebuild.Factory
	console    *logger.Console
	logger     *slog.Logger
	policy     retry.PollingPolicy
	jitter     retry.JitterFunc
	sleep      retry.SleepFunc
	sinks      []Sink
	tracer     trace.Tracer
	tempDir    string
	newMonitor MonitorFactory
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConsole sets the operator-visible build log.
func WithConsole(c *logger.Console) Option {
	return func(o *Orchestrator) {
		o.console = c
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPolicy sets the polling policy.
func WithPolicy(p retry.PollingPolicy) Option {
	return func(o *Orchestrator) {
		o.policy = p
	}
}

// WithJitter replaces the random jitter source.
func WithJitter(fn retry.JitterFunc) Option {
	return func(o *Orchestrator) {
		o.jitter = fn
	}
}

// WithSleep replaces the sleep function.
func WithSleep(fn retry.SleepFunc) Option {
	return func(o *Orchestrator) {
		o.sleep = fn
	}
}

// WithSinks adds report sinks.
func WithSinks(sinks ...Sink) Option {
	return func(o *Orchestrator) {
		o.sinks = append(o.sinks, sinks...)
	}
}

// WithTracer sets the tracer used for submit, poll and stop spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// WithTempDir sets where uploaded source is staged.
func WithTempDir(dir string) Option {
	return func(o *Orchestrator) {
		o.tempDir = dir
	}
}

// WithMonitorFactory replaces the CloudWatch log monitor.
func WithMonitorFactory(fn MonitorFactory) Option {
	return func(o *Orchestrator) {
		o.newMonitor = fn
	}
}

// New creates an Orchestrator building clients through factory.
func New(factory codebuild.Factory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		factory: factory,
		logger:  slog.Default(),
		policy:  retry.DefaultPolicy(),
		jitter:  retry.RandomJitter,
		sleep:   retry.Sleep,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.newMonitor == nil {
		o.newMonitor = func(client codebuild.LogService, disabled bool) report.LogMonitor {
			return logs.NewCloudWatchMonitor(client,
				logs.WithStreamingDisabled(disabled),
				logs.WithMonitorLogger(o.logger),
			)
		}
	}
	return o
}

// Invocation is the input of one Run.
type Invocation struct {
	Config models.BuildConfig
	// ID correlates logs and persisted reports. Generated when empty.
	ID string
	// HardStop ends the post-cancellation drain early when closed or
	// signalled. Nil means the drain waits for the build to complete.
	HardStop <-chan struct{}
}

// run is the state of one invocation. It is owned by a single goroutine.
type run struct {
	inv     Invocation
	cfg     models.BuildConfig
	logger  *slog.Logger
	clients *codebuild.Clients
	project *models.ProjectInfo
	buildID string
	report  *report.Report
	monitor report.LogMonitor
	// delivered is, per sink, the number of log lines that sink accepted.
	delivered []int
}

// Run executes one invocation and returns its outcome. The report is nil
// when no status was ever fetched. Cancelling ctx requests that the remote
// build stop; Run then waits for it to complete unless HardStop fires.
func (o *Orchestrator) Run(ctx context.Context, inv Invocation) (models.Outcome, *report.Report) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	r := &run{
		inv:       inv,
		cfg:       inv.Config,
		logger:    o.logger.With("invocation_id", inv.ID, "project", inv.Config.ProjectName),
		report:    report.New(),
		delivered: make([]int, len(o.sinks)),
	}

	id, err := o.submit(ctx, r)
	if err != nil {
		if builderrors.KindOf(err) == builderrors.KindCancel || ctx.Err() != nil {
			r.logger.Info("invocation cancelled before the build started")
			return models.Aborted(), nil
		}
		primary, secondary := builderrors.Describe(err)
		r.logger.Error("build submission failed", "error", err, "kind", builderrors.KindOf(err).String())
		return models.Failure(primary, secondary), nil
	}
	r.buildID = id
	r.logger = r.logger.With("build_id", id)
	r.monitor = o.newMonitor(r.clients.Logs, strings.EqualFold(strings.TrimSpace(r.cfg.CWLStreamingDisabled), "true"))

	outcome := o.poll(ctx, r)
	if !r.report.Initialized() {
		return outcome, nil
	}
	return outcome, r.report
}

// poll fetches status until the build leaves IN_PROGRESS.
func (o *Orchestrator) poll(ctx context.Context, r *run) models.Outcome {
	ctx, span := o.tracer.Start(ctx, "codebuild.poll", trace.WithAttributes(attribute.String("build.id", r.buildID)))
	defer span.End()

	backoff := retry.NewBackoff(o.policy, retry.WithJitterFunc(o.jitter))
	for {
		if ctx.Err() != nil {
			return o.stop(ctx, r)
		}

		snap, err := o.fetch(ctx, r)
		if err != nil {
			switch {
			case ctx.Err() != nil || builderrors.KindOf(err) == builderrors.KindCancel:
				return o.stop(ctx, r)
			case builderrors.IsTransient(err):
				r.logger.Warn("transient error fetching build status", "error", err, "poll_count", backoff.PollCount())
				if err := o.sleep(ctx, backoff.Next()); err != nil {
					return o.stop(ctx, r)
				}
				continue
			default:
				span.RecordError(err)
				span.SetStatus(codes.Error, "fetch failed")
				primary, secondary := builderrors.Describe(err)
				r.logger.Error("fetching build status failed", "error", err)
				return models.Failure(primary, secondary)
			}
		}

		o.observe(ctx, r, snap)
		if !snap.InProgress() {
			return o.finish(ctx, r, snap, span)
		}

		if err := o.sleep(ctx, backoff.Next()); err != nil {
			return o.stop(ctx, r)
		}
	}
}

// fetch returns the single status record of the build.
func (o *Orchestrator) fetch(ctx context.Context, r *run) (*models.BuildSnapshot, error) {
	builds, err := r.clients.Builds.FetchBuilds(ctx, r.buildID)
	if err != nil {
		return nil, err
	}
	if len(builds) != 1 {
		return nil, builderrors.New(builderrors.KindFatal, builderrors.MsgMultipleBuilds).
			WithSecondary(fmt.Sprintf("%d records returned for %s", len(builds), r.buildID))
	}
	return &builds[0], nil
}

// observe records snap in the report, echoes new console output and feeds
// the sinks.
func (o *Orchestrator) observe(ctx context.Context, r *run, snap *models.BuildSnapshot) {
	if !r.report.Initialized() {
		r.report.Initialize(snap, report.Context{
			Region:               r.cfg.Region,
			Project:              r.cfg.ProjectName,
			InvocationID:         r.inv.ID,
			ArtifactLocation:     r.project.ArtifactLocation,
			ArtifactType:         r.project.ArtifactType,
			ArtifactTypeOverride: r.cfg.ArtifactTypeOverride,
		})
		r.logger.Info("build initialized", "arn", r.report.ARN())
	}

	changes, err := r.report.Update(ctx, snap, r.monitor)
	if err != nil {
		r.logger.Warn("reading build logs failed", "error", err)
	}
	o.console.Lines(changes.NewLines)
	if changes.CloudWatchLogsURL != "" {
		o.console.Log("CloudWatch dashboard: " + changes.CloudWatchLogsURL)
	}
	if changes.S3LogsURL != "" {
		o.console.Log("S3 logs location: " + changes.S3LogsURL)
	}

	o.publish(ctx, r)
}

// publish hands the current record to every sink together with the log
// lines that sink has not yet accepted. A sink that fails is sent the same
// lines again on the next call.
func (o *Orchestrator) publish(ctx context.Context, r *run) {
	if len(o.sinks) == 0 {
		return
	}
	rec := r.report.Record()
	for i, sink := range o.sinks {
		first := r.delivered[i]
		if err := sink.Publish(ctx, rec, rec.Logs[first:], first); err != nil {
			r.logger.Warn("publishing report failed", "sink", fmt.Sprintf("%T", sink), "error", err, "pending_lines", len(rec.Logs)-first)
			continue
		}
		r.delivered[i] = len(rec.Logs)
	}
}

// finish turns a terminal snapshot into the outcome.
func (o *Orchestrator) finish(ctx context.Context, r *run, snap *models.BuildSnapshot, span trace.Span) models.Outcome {
	r.report.SetArtifactsLocation(snap.ArtifactLocation)
	succeeded := snap.Status == models.BuildStatusSucceeded
	if err := r.report.Finalize(succeeded); err != nil {
		r.logger.Error("finalizing report", "error", err)
	}
	o.publish(ctx, r)

	span.SetAttributes(attribute.String("build.status", string(snap.Status)))
	r.logger.Info("build finished", "status", snap.Status)
	if succeeded {
		return models.Success()
	}
	span.SetStatus(codes.Error, string(snap.Status))
	return models.Failure(fmt.Sprintf("Build %s failed", r.buildID), r.report.PhaseErrorMessage())
}

// stop asks the remote build to stop and drains its status until the
// COMPLETED phase is reached or HardStop fires. It runs detached from the
// cancelled ctx.
func (o *Orchestrator) stop(ctx context.Context, r *run) models.Outcome {
	detached, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	if r.inv.HardStop != nil {
		go func() {
			select {
			case <-r.inv.HardStop:
				cancel()
			case <-detached.Done():
			}
		}()
	}

	drainCtx, span := o.tracer.Start(detached, "codebuild.stop", trace.WithAttributes(attribute.String("build.id", r.buildID)))
	defer span.End()

	r.logger.Info("stopping build")
	o.console.Log("Stopping build " + r.buildID)

	snap, err := o.fetch(drainCtx, r)
	if err != nil {
		r.logger.Warn("fetching status before stop failed", "error", err)
	}
	if snap == nil || !snap.Completed() {
		if err := r.clients.Builds.StopBuild(drainCtx, r.buildID); err != nil {
			span.RecordError(err)
			r.logger.Error("stopping build failed", "error", err)
			o.console.Log("Failed to stop build "+r.buildID, err.Error())
		}
	}
	if snap != nil {
		o.observe(drainCtx, r, snap)
	}

	for snap == nil || !snap.Completed() {
		if err := o.sleep(drainCtx, retry.StopPollInterval); err != nil {
			r.logger.Warn("drain ended before the build completed")
			break
		}
		next, err := o.fetch(drainCtx, r)
		if err != nil {
			if drainCtx.Err() != nil || !builderrors.IsTransient(err) {
				r.logger.Warn("drain ended on fetch error", "error", err)
				break
			}
			continue
		}
		snap = next
		o.observe(drainCtx, r, snap)
	}

	if r.report.Initialized() {
		if err := r.report.Finalize(false); err != nil {
			r.logger.Error("finalizing report", "error", err)
		}
		o.publish(drainCtx, r)
	}
	return models.Aborted()
}
