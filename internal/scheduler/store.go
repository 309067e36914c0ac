package scheduler

import (
	"context"
	"time"

	"github.com/andyscpalmer/atproto-scheduler/internal/models"
)

// PostStore is the repository capability the scheduler needs. All reads
// reflect current state; the scheduler keeps no cache across ticks.
type PostStore interface {
	// GetByID returns a post by id, or (nil, nil) when it does not exist.
	GetByID(ctx context.Context, id int64) (*models.Post, error)

	// Unscheduled returns an account's non-draft unpublished posts with no
	// scheduled time, in creation order.
	Unscheduled(ctx context.Context, username string) ([]*models.Post, error)

	// LatestScheduled returns the account's non-draft unpublished post with
	// the latest scheduled time, or nil when nothing is scheduled.
	LatestScheduled(ctx context.Context, username string) (*models.Post, error)

	// ScheduledInWindow returns an account's non-draft unpublished posts
	// scheduled within [from, to].
	ScheduledInWindow(ctx context.Context, username string, from, to time.Time) ([]*models.Post, error)

	// ClearScheduledBefore un-schedules non-draft unpublished posts whose
	// scheduled time is older than cutoff.
	ClearScheduledBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// SetScheduledAt writes a post's scheduled time; nil un-schedules.
	SetScheduledAt(ctx context.Context, id int64, at *time.Time) error

	// MarkDraft forces a post back into draft state.
	MarkDraft(ctx context.Context, id int64) error

	// RecordError writes diagnostic text onto a post.
	RecordError(ctx context.Context, id int64, message string) error
}

// AccountSource lists the configured accounts in stable order.
type AccountSource interface {
	List(ctx context.Context) ([]*models.Account, error)
}

// Publisher sends an account's due posts out. Per-post failures are the
// publisher's responsibility to record; an error here means the whole
// account's batch could not be attempted (for example a failed login).
type Publisher interface {
	Publish(ctx context.Context, account *models.Account, posts []models.PostPayload) error
}
