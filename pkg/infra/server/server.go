// Package server runs long-lived components until the process is told to stop.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"golang.org/x/sync/errgroup"
)

// Runnable is a component with a blocking Start and a graceful Stop.
type Runnable interface {
	// Name returns the component name for logs.
	Name() string
	// Start runs the component until it fails or Stop is called.
	Start(ctx context.Context) error
	// Stop stops the component gracefully.
	Stop(ctx context.Context) error
}

// Run starts every runnable and blocks until ctx is cancelled or one of them
// fails. All runnables are then stopped, each bounded by shutdownTimeout.
func Run(ctx context.Context, shutdownTimeout time.Duration, runnables ...Runnable) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range runnables {
		g.Go(func() error {
			logger.Infow("Starting component", "name", r.Name())
			if err := r.Start(gctx); err != nil {
				return fmt.Errorf("%s: %w", r.Name(), err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down components...")
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		var firstErr error
		for i := len(runnables) - 1; i >= 0; i-- {
			r := runnables[i]
			if err := r.Stop(stopCtx); err != nil {
				logger.Errorw("Failed to stop component", "name", r.Name(), "error", err.Error())
				if firstErr == nil {
					firstErr = fmt.Errorf("stop %s: %w", r.Name(), err)
				}
			}
		}
		return firstErr
	})

	return g.Wait()
}
