package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Interrupts turns SIGINT and SIGTERM into a two stage cancellation. The
// first signal cancels the returned context so a running build is stopped
// and drained. The second closes hardStop to abandon the drain. stop
// releases the signal handler.
func Interrupts(parent context.Context, logger *slog.Logger) (ctx context.Context, hardStop <-chan struct{}, stop func()) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctx, hard, release := interrupts(parent, sigCh, logger)
	return ctx, hard, func() {
		signal.Stop(sigCh)
		release()
	}
}

func interrupts(parent context.Context, sigCh <-chan os.Signal, logger *slog.Logger) (context.Context, <-chan struct{}, func()) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	hard := make(chan struct{})
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("interrupt received, stopping build; interrupt again to exit without waiting", "signal", sig)
			cancel()
		case <-done:
			return
		}
		select {
		case sig := <-sigCh:
			logger.Warn("second interrupt received, abandoning build stop", "signal", sig)
			close(hard)
		case <-done:
		}
	}()

	return ctx, hard, func() {
		close(done)
		cancel()
	}
}
