package workflow

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imtaco/meeting-coordinator/internal/log"
)

type GracefulShutdownAction func(ctx context.Context)

// WaitGracefulShutdown blocks until ctx is done or SIGINT/SIGTERM arrives,
// then runs action with timeout to finish. A panic in action is logged.
func WaitGracefulShutdown(ctx context.Context, logger *log.Logger, action GracefulShutdownAction, timeout time.Duration) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("Shutting down", log.Duration("timeout", timeout))
	runShutdown(logger, action, timeout)
}

func runShutdown(logger *log.Logger, action GracefulShutdownAction, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Shutdown action panicked", log.Any("panic", r))
			}
		}()
		action(ctx)
	}()

	select {
	case <-done:
		logger.Info("Shutdown completed")
		return true
	case <-ctx.Done():
		logger.Warn("Shutdown timed out")
		return false
	}
}
