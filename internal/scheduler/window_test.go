package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestSelectDue_SymmetricWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute
	account := minuteAccount("alice.bsky.social")

	farPast := withSchedule(livePost(1, account.Username, now.Add(-5*time.Hour)), now.Add(-10*time.Minute))
	justPast := withSchedule(livePost(2, account.Username, now.Add(-4*time.Hour)), now.Add(-2*time.Minute))
	justAhead := withSchedule(livePost(3, account.Username, now.Add(-3*time.Hour)), now.Add(2*time.Minute))
	farAhead := withSchedule(livePost(4, account.Username, now.Add(-2*time.Hour)), now.Add(10*time.Minute))
	store := newMemStore(farPast, justPast, justAhead, farAhead)

	s := NewDispatchSelector(store, window)
	s.now = fixedClock(now)

	due, err := s.SelectDue(context.Background(), account)
	if err != nil {
		t.Fatalf("SelectDue failed: %v", err)
	}

	if len(due) != 2 {
		t.Fatalf("Expected 2 due posts, got %d", len(due))
	}
	if due[0].ID != 2 || due[1].ID != 3 {
		t.Errorf("Expected posts 2 and 3 in scheduled order, got %d and %d", due[0].ID, due[1].ID)
	}
}

func TestSelectDue_WindowBoundariesInclusive(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute
	account := minuteAccount("alice.bsky.social")

	atLowerEdge := withSchedule(livePost(1, account.Username, now.Add(-2*time.Hour)), now.Add(-window))
	atUpperEdge := withSchedule(livePost(2, account.Username, now.Add(-1*time.Hour)), now.Add(window))
	store := newMemStore(atLowerEdge, atUpperEdge)

	s := NewDispatchSelector(store, window)
	s.now = fixedClock(now)

	due, err := s.SelectDue(context.Background(), account)
	if err != nil {
		t.Fatalf("SelectDue failed: %v", err)
	}
	if len(due) != 2 {
		t.Errorf("Window edges are inclusive, expected 2 posts, got %d", len(due))
	}
}

func TestSelectDue_ExcludesPublishedAndDrafts(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	account := minuteAccount("alice.bsky.social")

	published := withReceipt(withSchedule(livePost(1, account.Username, now.Add(-2*time.Hour)), now), now.Add(-time.Minute))
	draft := withSchedule(livePost(2, account.Username, now.Add(-time.Hour)), now)
	draft.IsDraft = true
	ready := withSchedule(livePost(3, account.Username, now.Add(-time.Hour)), now)
	store := newMemStore(published, draft, ready)

	s := NewDispatchSelector(store, 5*time.Minute)
	s.now = fixedClock(now)

	due, err := s.SelectDue(context.Background(), account)
	if err != nil {
		t.Fatalf("SelectDue failed: %v", err)
	}
	if len(due) != 1 || due[0].ID != 3 {
		t.Errorf("Only the live post should be selected, got %+v", due)
	}
}

func TestSelectDue_PayloadMapping(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	account := minuteAccount("alice.bsky.social")

	post := withSchedule(livePost(1, account.Username, now.Add(-time.Hour)), now)
	post.Text = "see this"
	post.Link1 = "https://a.example"
	post.LinkCardTitle = "Title"
	post.LinkCardDescription = "Description"
	reply := withReplyTo(withSchedule(livePost(2, account.Username, now.Add(-30*time.Minute)), now.Add(time.Minute)), 1)
	store := newMemStore(post, reply)

	s := NewDispatchSelector(store, 5*time.Minute)
	s.now = fixedClock(now)

	due, err := s.SelectDue(context.Background(), account)
	if err != nil {
		t.Fatalf("SelectDue failed: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("Expected 2 payloads, got %d", len(due))
	}

	if !due[0].IsLinkCard || len(due[0].Links) != 1 {
		t.Errorf("First payload should be a link card: %+v", due[0])
	}
	if due[0].ReplyTo != 0 {
		t.Errorf("Top-level payload should carry the 0 sentinel, got %d", due[0].ReplyTo)
	}
	if due[1].ReplyTo != 1 {
		t.Errorf("Reply payload should carry parent id 1, got %d", due[1].ReplyTo)
	}
}
