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

// replyAction is the resolved outcome for a (parent, reply) pair. The
// classification rules are ordered and mutually exclusive: the first match
// wins.
type replyAction int

const (
	// replyNoAction covers the steady states, e.g. parent and reply both
	// unscheduled.
	replyNoAction replyAction = iota

	// replyScheduleAfterPublish: parent is fully published and the reply has
	// no scheduled time yet. Schedule it two window-widths out so it cannot
	// race the parent's dispatch confirmation.
	replyScheduleAfterPublish

	// replyScheduleAfterParent: parent is scheduled but not yet posted.
	// Schedule the reply two window-widths after the parent.
	replyScheduleAfterParent

	// replyUnschedule: parent has neither a scheduled time nor a post
	// timestamp while the reply holds a scheduled time. The reply cannot go
	// out before its parent, so clear it.
	replyUnschedule

	// replyCascadeDraft: parent is a draft, so the reply becomes one too.
	replyCascadeDraft

	// replyIntegrityFault: parent carries partial publish data (some but not
	// all of cid, uri, posted-at). Flag the reply and pull it to draft.
	replyIntegrityFault
)

func (a replyAction) String() string {
	switch a {
	case replyScheduleAfterPublish:
		return "schedule-after-publish"
	case replyScheduleAfterParent:
		return "schedule-after-parent"
	case replyUnschedule:
		return "unschedule"
	case replyCascadeDraft:
		return "cascade-draft"
	case replyIntegrityFault:
		return "integrity-fault"
	default:
		return "no-action"
	}
}

// classifyReply applies the ordered rule list to a snapshot of parent and
// reply state.
func classifyReply(parent, reply *models.Post) replyAction {
	switch {
	case parent.HasFullReceipt() && !reply.ScheduledAt.Valid:
		return replyScheduleAfterPublish
	case parent.ScheduledAt.Valid && !parent.PostedAt.Valid:
		return replyScheduleAfterParent
	case !parent.ScheduledAt.Valid && reply.ScheduledAt.Valid:
		return replyUnschedule
	case parent.IsDraft:
		return replyCascadeDraft
	case parent.HasPartialPublishData():
		return replyIntegrityFault
	default:
		return replyNoAction
	}
}

// ReplyResolver keeps a reply's scheduled time consistent with its parent's
// publication state. Resolving the same state twice is a no-op in effect, so
// it is safe to run every scheduling pass.
type ReplyResolver struct {
	posts  PostStore
	window time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewReplyResolver creates a resolver. window is the dispatch window
// half-width; replies are margined by twice its value.
func NewReplyResolver(posts PostStore, window time.Duration) *ReplyResolver {
	return &ReplyResolver{
		posts:  posts,
		window: window,
		logger: logging.WithComponent("reply-resolver"),
		now:    time.Now,
	}
}

// Resolve applies the matching rule for one reply post. Called once per
// scheduling pass per reply encountered; chains deeper than one hop converge
// over successive ticks.
func (r *ReplyResolver) Resolve(ctx context.Context, reply *models.Post) error {
	if !reply.ReplyToID.Valid {
		return nil
	}

	parent, err := r.posts.GetByID(ctx, reply.ReplyToID.Int64)
	if err != nil {
		return fmt.Errorf("look up parent post %d: %w", reply.ReplyToID.Int64, err)
	}
	if parent == nil {
		// Dangling reply reference; the producing side violated the forest
		// contract. Leave the post alone.
		r.logger.Warn("Reply references missing parent",
			zap.Int64("post_id", reply.ID),
			zap.Int64("parent_id", reply.ReplyToID.Int64))
		return nil
	}

	action := classifyReply(parent, reply)
	margin := 2 * r.window

	switch action {
	case replyScheduleAfterPublish:
		at := r.now().Add(margin)
		if err := r.posts.SetScheduledAt(ctx, reply.ID, &at); err != nil {
			return err
		}
		reply.ScheduledAt = sql.NullTime{Time: at, Valid: true}
		r.logger.Info("Scheduled reply after published parent",
			zap.Int64("post_id", reply.ID),
			zap.Time("scheduled_at", at))

	case replyScheduleAfterParent:
		at := parent.ScheduledAt.Time.Add(margin)
		if err := r.posts.SetScheduledAt(ctx, reply.ID, &at); err != nil {
			return err
		}
		reply.ScheduledAt = sql.NullTime{Time: at, Valid: true}
		r.logger.Info("Scheduled reply after parent's slot",
			zap.Int64("post_id", reply.ID),
			zap.Int64("parent_id", parent.ID),
			zap.Time("scheduled_at", at))

	case replyUnschedule:
		if err := r.posts.SetScheduledAt(ctx, reply.ID, nil); err != nil {
			return err
		}
		reply.ScheduledAt = sql.NullTime{}
		r.logger.Info("Unscheduled reply with unscheduled parent",
			zap.Int64("post_id", reply.ID),
			zap.Int64("parent_id", parent.ID))

	case replyCascadeDraft:
		if err := r.posts.MarkDraft(ctx, reply.ID); err != nil {
			return err
		}
		reply.IsDraft = true
		r.logger.Info("Parent is draft, drafting reply",
			zap.Int64("post_id", reply.ID),
			zap.Int64("parent_id", parent.ID))

	case replyIntegrityFault:
		message := fmt.Sprintf("incomplete publish data on parent post %d", parent.ID)
		if err := r.posts.RecordError(ctx, reply.ID, message); err != nil {
			return err
		}
		if err := r.posts.MarkDraft(ctx, reply.ID); err != nil {
			return err
		}
		reply.IsDraft = true
		reply.Error = message
		r.logger.Error("Parent post has partial publish data",
			zap.Int64("post_id", reply.ID),
			zap.Int64("parent_id", parent.ID))

	default:
		r.logger.Debug("No reply action applicable",
			zap.Int64("post_id", reply.ID),
			zap.Int64("parent_id", parent.ID))
	}

	return nil
}
