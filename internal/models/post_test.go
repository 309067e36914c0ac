package models

import (
	"database/sql"
	"testing"
	"time"
)

func TestPost_IsPublished(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		post     Post
		expected bool
	}{
		{
			name:     "nothing set",
			post:     Post{},
			expected: false,
		},
		{
			name:     "full receipt",
			post:     Post{CID: "cid123", URI: "at://did/app.bsky.feed.post/abc"},
			expected: true,
		},
		{
			name:     "timestamp only",
			post:     Post{PostedAt: sql.NullTime{Time: now, Valid: true}},
			expected: true,
		},
		{
			name:     "cid alone is not a receipt",
			post:     Post{CID: "cid123"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.post.IsPublished(); got != tt.expected {
				t.Errorf("IsPublished() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPost_HasPartialPublishData(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		post     Post
		expected bool
	}{
		{
			name:     "none set",
			post:     Post{},
			expected: false,
		},
		{
			name: "all set",
			post: Post{
				CID:      "cid123",
				URI:      "at://did/app.bsky.feed.post/abc",
				PostedAt: sql.NullTime{Time: now, Valid: true},
			},
			expected: false,
		},
		{
			name:     "cid only",
			post:     Post{CID: "cid123"},
			expected: true,
		},
		{
			name:     "uri only",
			post:     Post{URI: "at://did/app.bsky.feed.post/abc"},
			expected: true,
		},
		{
			name:     "cid and uri without timestamp",
			post:     Post{CID: "cid123", URI: "at://did/app.bsky.feed.post/abc"},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.post.HasPartialPublishData(); got != tt.expected {
				t.Errorf("HasPartialPublishData() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPost_Links(t *testing.T) {
	post := Post{Link1: "https://a.example", Link3: "https://b.example"}

	links := post.Links()
	if len(links) != 2 {
		t.Fatalf("Expected 2 links, got %d", len(links))
	}
	if links[0] != "https://a.example" || links[1] != "https://b.example" {
		t.Errorf("Links out of order: %v", links)
	}
}

func TestPost_IsLinkCard(t *testing.T) {
	tests := []struct {
		name     string
		post     Post
		expected bool
	}{
		{
			name: "single link with card fields",
			post: Post{
				Link1:               "https://a.example",
				LinkCardTitle:       "Title",
				LinkCardDescription: "Description",
			},
			expected: true,
		},
		{
			name: "two links",
			post: Post{
				Link1:               "https://a.example",
				Link2:               "https://b.example",
				LinkCardTitle:       "Title",
				LinkCardDescription: "Description",
			},
			expected: false,
		},
		{
			name: "missing description",
			post: Post{
				Link1:         "https://a.example",
				LinkCardTitle: "Title",
			},
			expected: false,
		},
		{
			name:     "no links",
			post:     Post{LinkCardTitle: "Title", LinkCardDescription: "Description"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.post.IsLinkCard(); got != tt.expected {
				t.Errorf("IsLinkCard() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestPost_ImagesWithAlts(t *testing.T) {
	post := Post{
		Image1: "images/cat.png",
		Image3: "images/dog.png",
		Alt1:   "a cat",
		Alt2:   "a dog",
	}

	refs := post.ImagesWithAlts()
	if len(refs) != 2 {
		t.Fatalf("Expected 2 image refs, got %d", len(refs))
	}
	// Alt texts pair positionally against the compacted image list.
	if refs[0].Path != "images/cat.png" || refs[0].AltText != "a cat" {
		t.Errorf("First ref mismatch: %+v", refs[0])
	}
	if refs[1].Path != "images/dog.png" || refs[1].AltText != "a dog" {
		t.Errorf("Second ref mismatch: %+v", refs[1])
	}
}

func TestPost_Status(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		post     Post
		expected string
	}{
		{
			name:     "draft with error",
			post:     Post{IsDraft: true, Error: "publish failed"},
			expected: "error",
		},
		{
			name:     "plain draft",
			post:     Post{IsDraft: true},
			expected: "draft",
		},
		{
			name:     "published",
			post:     Post{PostedAt: sql.NullTime{Time: now, Valid: true}},
			expected: "published",
		},
		{
			name:     "awaiting schedule",
			post:     Post{},
			expected: "scheduled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.post.Status(); got != tt.expected {
				t.Errorf("Status() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPost_Payload(t *testing.T) {
	post := Post{
		ID:                  42,
		Text:                "hello",
		Username:            sql.NullString{String: "alice.bsky.social", Valid: true},
		Link1:               "https://a.example",
		LinkCardTitle:       "Title",
		LinkCardDescription: "Description",
		Image1:              "images/cat.png",
		Alt1:                "a cat",
		ReplyToID:           sql.NullInt64{Int64: 7, Valid: true},
	}

	payload := post.Payload()
	if payload.ID != 42 || payload.Username != "alice.bsky.social" {
		t.Errorf("Payload identity mismatch: %+v", payload)
	}
	if !payload.IsLinkCard {
		t.Error("Expected link card payload")
	}
	if payload.ReplyTo != 7 {
		t.Errorf("Expected reply_to=7, got %d", payload.ReplyTo)
	}

	// Non-reply posts use the 0 sentinel.
	post.ReplyToID = sql.NullInt64{}
	if got := post.Payload().ReplyTo; got != 0 {
		t.Errorf("Expected reply_to=0 for top-level post, got %d", got)
	}
}

func TestAccount_PostingInterval(t *testing.T) {
	account := Account{IntervalSeconds: 3600}
	if got := account.PostingInterval(); got != time.Hour {
		t.Errorf("Expected 1h interval, got %s", got)
	}

	// Sub-minute intervals are clamped.
	account.IntervalSeconds = 5
	if got := account.PostingInterval(); got != time.Minute {
		t.Errorf("Expected clamped 1m interval, got %s", got)
	}
}
