package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/andyscpalmer/atproto-scheduler/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AccountRepository provides account-related database operations
type AccountRepository struct {
	*Repository
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(repo *Repository) *AccountRepository {
	return &AccountRepository{Repository: repo}
}

// List retrieves all configured accounts in stable username order.
func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	if err := r.db.WithContext(ctx).
		Order("bluesky_username ASC").
		Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

// GetByUsername retrieves an account by username
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).
		Where("bluesky_username = ?", username).
		First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// Create creates a new account
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

// Update updates an account
func (r *AccountRepository) Update(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// livePosts scopes a query to non-draft posts that have not yet gone out.
// A post counts as published once it carries the cid+uri receipt or a
// posted-at timestamp.
func livePosts(db *gorm.DB) *gorm.DB {
	return db.
		Where("is_draft = ?", false).
		Where("posted_at IS NULL").
		Where("(cid = '' OR uri = '')")
}

// GetByID retrieves a post by ID
func (r *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// Unscheduled retrieves an account's live posts with no scheduled time, in
// creation order. These are the candidates for interval assignment.
func (r *PostRepository) Unscheduled(ctx context.Context, username string) ([]*models.Post, error) {
	var posts []*models.Post
	if err := livePosts(r.db.WithContext(ctx)).
		Where("bluesky_username = ?", username).
		Where("scheduled_post_time IS NULL").
		Order("created_at ASC, id ASC").
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// LatestScheduled retrieves the account's live post with the latest
// scheduled time, or nil when nothing is scheduled.
func (r *PostRepository) LatestScheduled(ctx context.Context, username string) (*models.Post, error) {
	var post models.Post
	if err := livePosts(r.db.WithContext(ctx)).
		Where("bluesky_username = ?", username).
		Where("scheduled_post_time IS NOT NULL").
		Order("scheduled_post_time DESC").
		First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// ScheduledInWindow retrieves an account's live posts whose scheduled time
// falls within [from, to], ordered by scheduled time.
func (r *PostRepository) ScheduledInWindow(ctx context.Context, username string, from, to time.Time) ([]*models.Post, error) {
	var posts []*models.Post
	if err := livePosts(r.db.WithContext(ctx)).
		Where("bluesky_username = ?", username).
		Where("scheduled_post_time >= ? AND scheduled_post_time <= ?", from, to).
		Order("scheduled_post_time ASC, id ASC").
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// ClearScheduledBefore removes scheduled times older than the cutoff from
// live posts, returning how many were cleared. Cleared posts are picked up
// again by the next interval pass.
func (r *PostRepository) ClearScheduledBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := livePosts(r.db.WithContext(ctx).Model(&models.Post{})).
		Where("scheduled_post_time < ?", cutoff).
		Update("scheduled_post_time", nil)
	return result.RowsAffected, result.Error
}

// SetScheduledAt writes a post's scheduled time; a nil value un-schedules it.
func (r *PostRepository) SetScheduledAt(ctx context.Context, id int64, at *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Update("scheduled_post_time", at).Error
}

// MarkDraft forces a post back into draft state.
func (r *PostRepository) MarkDraft(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Update("is_draft", true).Error
}

// RecordError writes diagnostic text onto a post. An empty string clears a
// previous error.
func (r *PostRepository) RecordError(ctx context.Context, id int64, message string) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Update("error", message).Error
}

// MarkPublished records the publish receipt and timestamp for a post.
func (r *PostRepository) MarkPublished(ctx context.Context, id int64, cid, uri string, postedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"cid":       cid,
			"uri":       uri,
			"posted_at": postedAt,
		}).Error
}

// Create creates a new post
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// Update updates a post
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

// ListByAccount retrieves all of an account's posts, newest first. Used by
// the inspection API.
func (r *PostRepository) ListByAccount(ctx context.Context, username string) ([]*models.Post, error) {
	var posts []*models.Post
	if err := r.db.WithContext(ctx).
		Where("bluesky_username = ?", username).
		Order("created_at DESC, id DESC").
		Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}
