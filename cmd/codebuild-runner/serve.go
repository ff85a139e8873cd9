package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/narvanalabs/codebuild-runner/internal/api"
	"github.com/narvanalabs/codebuild-runner/internal/result"
	"github.com/narvanalabs/codebuild-runner/internal/shutdown"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve persisted build reports and live logs",
		Long: `Serve the read-only report API.

Reports are read from the configured database, falling back to the redis
cache. Live logs are streamed from redis. Requests to /v1 need a bearer
token signed with api.jwt_secret (see the token command).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				a.cfg.API.ListenAddr = listen
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default api.listen_addr)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	log := a.log.WithComponent("serve")

	if a.cfg.DatabaseDSN == "" && a.cfg.RedisURL == "" {
		return &exitError{code: result.ExitHardError, err: errors.New("serve needs database_url or redis_url")}
	}

	coord := shutdown.NewCoordinator(shutdown.WithTimeout(a.cfg.ShutdownTimeout), shutdown.WithLogger(log.Logger))

	b, err := a.openBackends(ctx, coord)
	if err != nil {
		coord.Shutdown()
		return &exitError{code: result.ExitHardError, err: err}
	}

	authSvc, err := a.authService()
	if err != nil {
		coord.Shutdown()
		return &exitError{code: result.ExitHardError, err: err}
	}

	srv := api.NewServer(api.Config{
		ListenAddr:      a.cfg.API.ListenAddr,
		ShutdownTimeout: a.cfg.ShutdownTimeout,
	}, b.apiBackends(nil), authSvc, a.log.WithComponent("api").Logger)

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		err = srv.Start(serveCtx)
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

	waitCtx, stopWaiting := context.WithCancel(ctx)
	go coord.WaitForSignal(waitCtx)

	<-done
	stopWaiting()
	coord.Wait()

	if err != nil {
		log.Error("report API server failed", "error", err)
		return &exitError{code: result.ExitHardError, err: err}
	}
	if code := coord.ExitCode(); code != 0 {
		return &exitError{code: code}
	}
	return nil
}
