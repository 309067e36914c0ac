package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/andyscpalmer/atproto-scheduler/internal/models"
	"github.com/andyscpalmer/atproto-scheduler/pkg/logging"
	"github.com/andyscpalmer/atproto-scheduler/pkg/telemetry"
)

// Orchestrator runs one scheduling pass per tick: stale-schedule cleanup,
// interval assignment and reply resolution per account, then dispatch of due
// posts to the publisher. Ticks never overlap; a tick arriving while the
// previous one still runs is dropped.
type Orchestrator struct {
	accounts  AccountSource
	posts     PostStore
	publisher Publisher
	interval  *IntervalScheduler
	selector  *DispatchSelector
	window    time.Duration
	logger    *zap.Logger
	now       func() time.Time
	mu        sync.Mutex
}

// NewOrchestrator wires the scheduling components together. window is the
// dispatch half-width and equals the tick period.
func NewOrchestrator(accounts AccountSource, posts PostStore, publisher Publisher, window time.Duration) *Orchestrator {
	replies := NewReplyResolver(posts, window)
	return &Orchestrator{
		accounts:  accounts,
		posts:     posts,
		publisher: publisher,
		interval:  NewIntervalScheduler(posts, replies),
		selector:  NewDispatchSelector(posts, window),
		window:    window,
		logger:    logging.WithComponent("orchestrator"),
		now:       time.Now,
	}
}

// Tick runs one scheduling pass. Safe to call from a timer; an overlapping
// invocation returns immediately without doing work.
func (o *Orchestrator) Tick(ctx context.Context) error {
	if !o.mu.TryLock() {
		o.logger.Warn("Previous tick still running, dropping this one")
		return nil
	}
	defer o.mu.Unlock()

	ctx, span := telemetry.StartSpan(ctx, "scheduler.tick")
	defer span.End()

	accounts, err := o.accounts.List(ctx)
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}

	if isPlaceholderConfig(accounts) {
		o.logger.Debug("No accounts configured, skipping tick")
		return nil
	}

	// Posts whose intended dispatch was missed (downtime, long outage) get
	// their schedule cleared and re-derived by the interval pass below.
	cleared, err := o.posts.ClearScheduledBefore(ctx, o.now().Add(-o.window))
	if err != nil {
		return fmt.Errorf("clear stale schedules: %w", err)
	}
	if cleared > 0 {
		o.logger.Info("Cleared stale scheduled times", zap.Int64("count", cleared))
	}

	for _, account := range accounts {
		if !account.AllowPosts {
			o.logger.Debug("Publishing disabled, skipping account",
				zap.String("account", account.Username))
			continue
		}

		// One account's failure must not block the rest.
		if err := o.processAccount(ctx, account); err != nil {
			o.logger.Error("Account processing failed",
				zap.String("account", account.Username),
				zap.Error(err))
		}
	}

	return nil
}

// processAccount schedules the account's unscheduled posts, then hands
// anything due within the dispatch window to the publisher.
func (o *Orchestrator) processAccount(ctx context.Context, account *models.Account) error {
	ctx, span := telemetry.StartSpan(ctx, "scheduler.process_account")
	defer span.End()

	if err := o.interval.ScheduleAccount(ctx, account); err != nil {
		return err
	}

	due, err := o.selector.SelectDue(ctx, account)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	o.logger.Info("Dispatching due posts",
		zap.String("account", account.Username),
		zap.Int("count", len(due)))

	if err := o.publisher.Publish(ctx, account, due); err != nil {
		return fmt.Errorf("publish for %s: %w", account.Username, err)
	}

	return nil
}

// isPlaceholderConfig reports whether the account configuration is absent or
// still the installation placeholder.
func isPlaceholderConfig(accounts []*models.Account) bool {
	return len(accounts) == 0 || accounts[0].IsPlaceholder()
}
