package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run drives the orchestrator from a ticker whose period equals the dispatch
// window half-width. One pass runs immediately on start. Blocks until the
// context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("Scheduler loop started", zap.Duration("tick_interval", o.window))

	ticker := time.NewTicker(o.window)
	defer ticker.Stop()

	if err := o.Tick(ctx); err != nil {
		o.logger.Error("Tick failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("Scheduler loop stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := o.Tick(ctx); err != nil {
				o.logger.Error("Tick failed", zap.Error(err))
			}
		}
	}
}
