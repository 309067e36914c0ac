package models

import (
	"time"
)

// PlaceholderUsername is the sentinel username written when no real account
// has been configured yet. A configuration whose first account carries this
// name is treated as "nothing configured".
const PlaceholderUsername = "placeholder"

// MinPostingInterval is the floor for an account's posting interval.
const MinPostingInterval = time.Minute

// Account represents a Bluesky account configuration
type Account struct {
	Username        string `gorm:"primaryKey;type:varchar(100);column:bluesky_username"`
	AppPassword     string `gorm:"type:varchar(50);not null;column:app_password"`
	IntervalSeconds int64  `gorm:"not null;default:86400;column:interval_seconds"`
	AllowPosts      bool   `gorm:"not null;default:false;column:allow_posts"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "scheduler_accounts"
}

// PostingInterval returns the configured spacing between this account's
// posts, clamped to the one minute minimum.
func (a *Account) PostingInterval() time.Duration {
	interval := time.Duration(a.IntervalSeconds) * time.Second
	if interval < MinPostingInterval {
		return MinPostingInterval
	}
	return interval
}

// IsPlaceholder reports whether this account is the unconfigured sentinel.
func (a *Account) IsPlaceholder() bool {
	return a.Username == PlaceholderUsername
}
