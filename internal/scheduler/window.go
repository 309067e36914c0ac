package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andyscpalmer/atproto-scheduler/internal/models"
	"github.com/andyscpalmer/atproto-scheduler/pkg/logging"
)

// DispatchSelector picks an account's posts whose scheduled time falls
// within the symmetric dispatch window around now. The window half-width
// equals the tick period, so a post whose timestamp lands slightly before a
// tick fires is still caught; the unpublished filter keeps confirmed posts
// from being picked up twice.
type DispatchSelector struct {
	posts  PostStore
	window time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewDispatchSelector creates a selector with the given window half-width.
func NewDispatchSelector(posts PostStore, window time.Duration) *DispatchSelector {
	return &DispatchSelector{
		posts:  posts,
		window: window,
		logger: logging.WithComponent("dispatch-selector"),
		now:    time.Now,
	}
}

// SelectDue returns the publisher payloads for the account's posts due now.
func (s *DispatchSelector) SelectDue(ctx context.Context, account *models.Account) ([]models.PostPayload, error) {
	now := s.now()
	from := now.Add(-s.window)
	to := now.Add(s.window)

	due, err := s.posts.ScheduledInWindow(ctx, account.Username, from, to)
	if err != nil {
		return nil, fmt.Errorf("load dispatch window for %s: %w", account.Username, err)
	}

	payloads := make([]models.PostPayload, 0, len(due))
	for _, post := range due {
		payloads = append(payloads, post.Payload())
	}

	if len(payloads) > 0 {
		s.logger.Debug("Selected posts for dispatch",
			zap.String("account", account.Username),
			zap.Int("count", len(payloads)),
			zap.Time("window_begin", from),
			zap.Time("window_end", to))
	}

	return payloads, nil
}
