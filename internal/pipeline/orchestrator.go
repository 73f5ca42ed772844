package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matchpulse/matchpulse/internal/domain"
)

// Orchestrator manages the pipeline goroutines: the evaluation tick loop and
// the cold-storage archival loop.
type Orchestrator struct {
	engine          *Engine
	archiver        *Archiver // optional
	tickInterval    time.Duration
	archiveInterval time.Duration
	logger          *slog.Logger
}

// NewOrchestrator creates an Orchestrator. archiver may be nil when no blob
// storage is configured.
func NewOrchestrator(
	engine *Engine,
	archiver *Archiver,
	tickInterval time.Duration,
	archiveInterval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		engine:          engine,
		archiver:        archiver,
		tickInterval:    tickInterval,
		archiveInterval: archiveInterval,
		logger:          logger.With(slog.String("component", "orchestrator")),
	}
}

// Run starts all loops as concurrent goroutines using an errgroup. Each
// goroutine respects ctx cancellation. If any goroutine returns a non-context
// error, the errgroup cancels the shared context and Run returns that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("tick_interval", o.tickInterval),
		slog.Duration("archive_interval", o.archiveInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.logger.Info("starting evaluation loop")
		err := o.runTicks(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("evaluation loop: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			o.logger.Info("starting archiver loop")
			err := o.archiver.RunLoop(ctx, o.archiveInterval)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}

// runTicks evaluates immediately on start, then on every interval. A failed
// tick is logged and the loop continues; the feed being down is an expected
// condition, not a crash.
func (o *Orchestrator) runTicks(ctx context.Context) error {
	if err := o.engine.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
		o.logTickError(err)
	}

	ticker := time.NewTicker(o.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("evaluation loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := o.engine.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logTickError(err)
			}
		}
	}
}

func (o *Orchestrator) logTickError(err error) {
	if errors.Is(err, domain.ErrFeedUnavailable) {
		o.logger.Warn("feed unavailable this tick", slog.String("error", err.Error()))
		return
	}
	o.logger.Error("tick failed", slog.String("error", err.Error()))
}
