// Package app runs the long-lived components of polybot and manages their
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner serves until its context is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler is started once and stopped on shutdown.
type Scheduler interface {
	Start() error
	Stop() error
}

// App represents the running application.
type App struct {
	logger    *slog.Logger
	server    Runner
	scheduler Scheduler
}

// New creates an App from its components.
func New(logger *slog.Logger, server Runner, scheduler Scheduler) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		logger:    logger.With("component", "app"),
		server:    server,
		scheduler: scheduler,
	}
}

// Run starts the server and the scheduler and blocks until ctx is cancelled
// or one of them fails. It returns nil on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting application...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := a.server.Run(gCtx)
		if err != nil {
			a.logger.Error("HTTP server failed", "error", err)
			return err
		}
		if gCtx.Err() == nil {
			a.logger.Warn("HTTP server stopped unexpectedly without context cancellation.")
			return fmt.Errorf("http server stopped unexpectedly")
		}
		return nil
	})

	if a.scheduler != nil {
		g.Go(func() error {
			a.logger.Info("Starting scheduler...")
			if err := a.scheduler.Start(); err != nil {
				a.logger.Error("Failed to start scheduler", "error", err)
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			a.logger.Info("Shutdown signal received, stopping scheduler...")

			if err := a.scheduler.Stop(); err != nil {
				a.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	a.logger.Info("Application running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Application stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Application stopped gracefully.")
	return nil
}
