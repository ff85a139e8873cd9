package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/narvanalabs/codebuild-runner/internal/api"
	"github.com/narvanalabs/codebuild-runner/internal/builder"
	"github.com/narvanalabs/codebuild-runner/internal/builder/retry"
	"github.com/narvanalabs/codebuild-runner/internal/codebuild"
	"github.com/narvanalabs/codebuild-runner/internal/jobfile"
	"github.com/narvanalabs/codebuild-runner/internal/logs"
	"github.com/narvanalabs/codebuild-runner/internal/models"
	"github.com/narvanalabs/codebuild-runner/internal/result"
	"github.com/narvanalabs/codebuild-runner/internal/shutdown"
	"github.com/narvanalabs/codebuild-runner/internal/telemetry"
	"github.com/narvanalabs/codebuild-runner/pkg/logger"
)

// brokerHistory is the number of lines kept per build for late stream
// subscribers.
const brokerHistory = 5000

type runOptions struct {
	jobFile      string
	resultFile   string
	identityFile string
	listen       string
	tempDir      string
	settings     *jobfile.Flags
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a build and wait for it to finish",
		Long: `Start a build and wait for it to finish.

Build settings come from the job file given with --job, overlaid by the
setting flags. $VAR references in settings are expanded from the
environment. The first interrupt stops the remote build and waits for it;
a second interrupt exits without waiting.

Exit status is 0 on success, 1 on build failure, 2 on a hard error and
130 when the build was aborted.`,
		Example: `  codebuild-runner run --job build.hcl
  codebuild-runner run --project-name web --source-control-type project --region eu-west-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.jobFile, "job", "", "HCL job file with build settings")
	f.StringVar(&opts.resultFile, "result-file", "", "write the build result as JSON to this file")
	f.StringVar(&opts.identityFile, "age-identity-file", "", "age identity file for encrypted secret keys")
	f.StringVar(&opts.listen, "listen", "", "serve the report API on this address while the build runs")
	f.StringVar(&opts.tempDir, "temp-dir", "", "directory for staging uploaded source")
	opts.settings = jobfile.BindFlags(f)

	return cmd
}

// loadBuildConfig reads the job file, applies flags and expands variables.
func loadBuildConfig(opts *runOptions) (models.BuildConfig, error) {
	var cfg models.BuildConfig
	if opts.jobFile != "" {
		var err error
		cfg, err = jobfile.Load(opts.jobFile, os.Environ())
		if err != nil {
			return cfg, err
		}
	}
	cfg = opts.settings.Overlay(cfg)
	return cfg.Expand(os.ExpandEnv), nil
}

func (a *app) run(cmd *cobra.Command, opts *runOptions) error {
	log := a.log.WithComponent("runner")
	console := logger.NewConsole(cmd.OutOrStdout())

	buildCfg, err := loadBuildConfig(opts)
	if err != nil {
		return &exitError{code: result.ExitHardError, err: err}
	}

	policy, err := retry.PolicyFromSeconds(a.cfg.Polling.MinSleepSeconds, a.cfg.Polling.MaxSleepSeconds, a.cfg.Polling.JitterSeconds)
	if err != nil {
		return &exitError{code: result.ExitHardError, err: err}
	}

	factoryOpts := []codebuild.FactoryOption{codebuild.WithFactoryLogger(a.log.WithComponent("codebuild").Logger)}
	secretSvc, err := a.secretService(opts.identityFile)
	if err != nil {
		return &exitError{code: result.ExitHardError, err: err}
	}
	if secretSvc != nil {
		factoryOpts = append(factoryOpts, codebuild.WithSecretResolver(secretSvc.Resolve))
	}

	if a.cfg.Tracing {
		shutdownTracer := telemetry.InitTracer("codebuild-runner", Version, cmd.ErrOrStderr(), log.Logger)
		defer shutdownTracer(context.Background())
	}

	coord := shutdown.NewCoordinator(shutdown.WithTimeout(a.cfg.ShutdownTimeout), shutdown.WithLogger(log.Logger))
	defer coord.Shutdown()

	ctx, hardStop, stopSignals := shutdown.Interrupts(cmd.Context(), log.Logger)
	defer stopSignals()

	// Report backends must outlive a cancelled build so the stop is recorded.
	setupCtx := context.WithoutCancel(ctx)
	b, err := a.openBackends(setupCtx, coord)
	if err != nil {
		return &exitError{code: result.ExitHardError, err: err}
	}

	var sinks []builder.Sink
	if b.db != nil {
		sinks = append(sinks, builder.StoreSink{Reports: b.db.Reports()})
	}
	if b.cache != nil {
		sinks = append(sinks, builder.CacheSink{Cache: b.cache})
	}
	if opts.listen != "" {
		broker := logs.NewBroker(brokerHistory, log.Logger)
		sinks = append(sinks, builder.BrokerSink{Broker: broker})
		if err := a.startReportServer(setupCtx, opts.listen, b, broker, coord); err != nil {
			return &exitError{code: result.ExitHardError, err: err}
		}
	}

	orch := builder.New(codebuild.NewAWSFactory(factoryOpts...),
		builder.WithConsole(console),
		builder.WithLogger(a.log.WithComponent("builder").Logger),
		builder.WithPolicy(policy),
		builder.WithSinks(sinks...),
		builder.WithTempDir(opts.tempDir),
	)

	invocationID := uuid.NewString()
	log.Info("starting invocation", "invocation_id", invocationID, "project", buildCfg.ProjectName)

	outcome, rep := orch.Run(ctx, builder.Invocation{
		Config:   buildCfg,
		ID:       invocationID,
		HardStop: hardStop,
	})

	res, reportErr := result.NewReporter(console, log.Logger).Report(outcome, rep, buildCfg.ExceptionFailureMode)
	if opts.resultFile != "" {
		if err := result.WriteFile(opts.resultFile, res); err != nil {
			log.Error("failed to write result file", "error", err, "path", opts.resultFile)
			return &exitError{code: result.ExitHardError, err: err}
		}
	}

	if code := result.ExitCode(res, reportErr); code != result.ExitSuccess {
		return &exitError{code: code, err: reportErr}
	}
	return nil
}

// startReportServer serves the report API until coord shuts down.
func (a *app) startReportServer(ctx context.Context, addr string, b *backends, broker *logs.Broker, coord *shutdown.Coordinator) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	authSvc, err := a.authService()
	if err != nil {
		ln.Close()
		return err
	}

	srv := api.NewServer(api.Config{ListenAddr: addr, ShutdownTimeout: a.cfg.ShutdownTimeout},
		b.apiBackends(broker), authSvc, a.log.WithComponent("api").Logger)

	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(serveCtx, ln); err != nil {
			a.log.Error("report API server error", "error", err)
		}
	}()

	coord.Register(shutdown.NewFuncComponent("api", func(ctx context.Context) error {
		cancel()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))
	return nil
}
