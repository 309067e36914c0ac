package scheduler

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/andyscpalmer/atproto-scheduler/internal/models"
)

// memStore is an in-memory PostStore mirroring the repository's query
// contract, so the scheduling logic can be exercised without a database.
type memStore struct {
	posts map[int64]*models.Post

	// fail, when set, is returned by every method to simulate repository
	// outage.
	fail error
}

func newMemStore(posts ...*models.Post) *memStore {
	s := &memStore{posts: make(map[int64]*models.Post)}
	for _, p := range posts {
		s.posts[p.ID] = p
	}
	return s
}

func (s *memStore) live(p *models.Post) bool {
	return !p.IsDraft && !p.PostedAt.Valid && (p.CID == "" || p.URI == "")
}

func (s *memStore) byCreation(posts []*models.Post) []*models.Post {
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID < posts[j].ID
		}
		return posts[i].CreatedAt.Before(posts[j].CreatedAt)
	})
	return posts
}

func (s *memStore) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	p, ok := s.posts[id]
	if !ok {
		return nil, nil
	}
	return p, nil
}

func (s *memStore) Unscheduled(ctx context.Context, username string) ([]*models.Post, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	var out []*models.Post
	for _, p := range s.posts {
		if s.live(p) && p.Username.Valid && p.Username.String == username && !p.ScheduledAt.Valid {
			out = append(out, p)
		}
	}
	return s.byCreation(out), nil
}

func (s *memStore) LatestScheduled(ctx context.Context, username string) (*models.Post, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	var latest *models.Post
	for _, p := range s.posts {
		if !s.live(p) || !p.Username.Valid || p.Username.String != username || !p.ScheduledAt.Valid {
			continue
		}
		if latest == nil || p.ScheduledAt.Time.After(latest.ScheduledAt.Time) {
			latest = p
		}
	}
	return latest, nil
}

func (s *memStore) ScheduledInWindow(ctx context.Context, username string, from, to time.Time) ([]*models.Post, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	var out []*models.Post
	for _, p := range s.posts {
		if !s.live(p) || !p.Username.Valid || p.Username.String != username || !p.ScheduledAt.Valid {
			continue
		}
		at := p.ScheduledAt.Time
		if !at.Before(from) && !at.After(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledAt.Time.Equal(out[j].ScheduledAt.Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledAt.Time.Before(out[j].ScheduledAt.Time)
	})
	return out, nil
}

func (s *memStore) ClearScheduledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.fail != nil {
		return 0, s.fail
	}
	var cleared int64
	for _, p := range s.posts {
		if s.live(p) && p.ScheduledAt.Valid && p.ScheduledAt.Time.Before(cutoff) {
			p.ScheduledAt.Valid = false
			cleared++
		}
	}
	return cleared, nil
}

func (s *memStore) SetScheduledAt(ctx context.Context, id int64, at *time.Time) error {
	if s.fail != nil {
		return s.fail
	}
	p := s.posts[id]
	if at == nil {
		p.ScheduledAt.Valid = false
		return nil
	}
	p.ScheduledAt.Time = *at
	p.ScheduledAt.Valid = true
	return nil
}

func (s *memStore) MarkDraft(ctx context.Context, id int64) error {
	if s.fail != nil {
		return s.fail
	}
	s.posts[id].IsDraft = true
	return nil
}

func (s *memStore) RecordError(ctx context.Context, id int64, message string) error {
	if s.fail != nil {
		return s.fail
	}
	s.posts[id].Error = message
	return nil
}

// memAccounts is a fixed AccountSource.
type memAccounts struct {
	accounts []*models.Account
	fail     error
}

func (s *memAccounts) List(ctx context.Context) ([]*models.Account, error) {
	if s.fail != nil {
		return nil, s.fail
	}
	return s.accounts, nil
}

// capturePublisher records publish batches instead of sending them.
type capturePublisher struct {
	batches []publishedBatch

	// failFor, when non-empty, makes Publish error for that account.
	failFor string
	err     error
}

type publishedBatch struct {
	account string
	posts   []models.PostPayload
}

func (p *capturePublisher) Publish(ctx context.Context, account *models.Account, posts []models.PostPayload) error {
	if p.failFor != "" && account.Username == p.failFor {
		return p.err
	}
	p.batches = append(p.batches, publishedBatch{account: account.Username, posts: posts})
	return nil
}

// Post builders shared by the scheduler tests.

func livePost(id int64, username string, createdAt time.Time) *models.Post {
	return &models.Post{
		ID:        id,
		Text:      "post",
		Username:  sql.NullString{String: username, Valid: true},
		CreatedAt: createdAt,
		IsDraft:   false,
	}
}

func withSchedule(p *models.Post, at time.Time) *models.Post {
	p.ScheduledAt = sql.NullTime{Time: at, Valid: true}
	return p
}

func withReplyTo(p *models.Post, parentID int64) *models.Post {
	p.ReplyToID = sql.NullInt64{Int64: parentID, Valid: true}
	return p
}

func withReceipt(p *models.Post, postedAt time.Time) *models.Post {
	p.CID = "cid-test"
	p.URI = "at://did:plc:test/app.bsky.feed.post/test"
	p.PostedAt = sql.NullTime{Time: postedAt, Valid: true}
	return p
}

// fixedClock returns a now-func pinned to t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// newTestOrchestrator builds an orchestrator with every component's clock
// pinned to now.
func newTestOrchestrator(accounts AccountSource, posts PostStore, pub Publisher, window time.Duration, now time.Time) *Orchestrator {
	o := NewOrchestrator(accounts, posts, pub, window)
	clock := fixedClock(now)
	o.now = clock
	o.interval.now = clock
	o.interval.replies.now = clock
	o.selector.now = clock
	return o
}
