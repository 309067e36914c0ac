package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andyscpalmer/atproto-scheduler/internal/models"
	"github.com/andyscpalmer/atproto-scheduler/pkg/logging"
)

// minScheduleLead keeps a freshly assigned post from dispatching on the very
// next tick.
const minScheduleLead = time.Minute

// IntervalScheduler assigns scheduled times to an account's unscheduled
// posts, spaced by the account's posting interval. Reply posts are never
// assigned directly; they are handed to the ReplyResolver.
type IntervalScheduler struct {
	posts   PostStore
	replies *ReplyResolver
	logger  *zap.Logger
	now     func() time.Time
}

// NewIntervalScheduler creates an interval scheduler.
func NewIntervalScheduler(posts PostStore, replies *ReplyResolver) *IntervalScheduler {
	return &IntervalScheduler{
		posts:   posts,
		replies: replies,
		logger:  logging.WithComponent("interval-scheduler"),
		now:     time.Now,
	}
}

// ScheduleAccount fills in scheduled times for the account's unscheduled
// eligible posts. The reference time starts one interval after the latest
// already-scheduled post, or one minute from now when the account has
// nothing scheduled. Each assignment is persisted immediately, so a failure
// partway through leaves a consistent prefix scheduled.
func (s *IntervalScheduler) ScheduleAccount(ctx context.Context, account *models.Account) error {
	unscheduled, err := s.posts.Unscheduled(ctx, account.Username)
	if err != nil {
		return fmt.Errorf("load unscheduled posts for %s: %w", account.Username, err)
	}
	if len(unscheduled) == 0 {
		return nil
	}

	interval := account.PostingInterval()

	latest, err := s.posts.LatestScheduled(ctx, account.Username)
	if err != nil {
		return fmt.Errorf("load latest scheduled post for %s: %w", account.Username, err)
	}

	var reference time.Time
	if latest != nil {
		reference = latest.ScheduledAt.Time.Add(interval)
	} else {
		reference = s.now().Add(minScheduleLead)
	}

	for _, post := range unscheduled {
		if post.ReplyToID.Valid {
			// Reply timing is the resolver's job, never the interval walk's.
			if err := s.replies.Resolve(ctx, post); err != nil {
				return fmt.Errorf("resolve reply post %d: %w", post.ID, err)
			}
			continue
		}

		at := reference
		if err := s.posts.SetScheduledAt(ctx, post.ID, &at); err != nil {
			return fmt.Errorf("schedule post %d: %w", post.ID, err)
		}
		post.ScheduledAt = sql.NullTime{Time: at, Valid: true}

		s.logger.Info("Scheduled post",
			zap.String("account", account.Username),
			zap.Int64("post_id", post.ID),
			zap.Time("scheduled_at", at))

		reference = reference.Add(interval)
	}

	return nil
}
