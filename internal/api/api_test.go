package api

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andyscpalmer/atproto-scheduler/internal/models"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("generates id when absent", func(t *testing.T) {
		engine := gin.New()
		engine.Use(RequestID())
		engine.GET("/", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		engine.ServeHTTP(w, req)

		if w.Header().Get(requestIDHeader) == "" {
			t.Error("expected a generated request id header")
		}
	})

	t.Run("honors client id", func(t *testing.T) {
		engine := gin.New()
		engine.Use(RequestID())
		engine.GET("/", func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, "client-supplied")
		engine.ServeHTTP(w, req)

		if got := w.Header().Get(requestIDHeader); got != "client-supplied" {
			t.Errorf("request id = %q, want client-supplied", got)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(RequestID(), RequestLogger(zap.NewNop()))
	engine.GET("/", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	engine.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestToPostView(t *testing.T) {
	scheduled := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	post := &models.Post{
		ID:          7,
		Text:        "hello",
		Username:    sql.NullString{String: "alice.bsky.social", Valid: true},
		ScheduledAt: sql.NullTime{Time: scheduled, Valid: true},
		ReplyToID:   sql.NullInt64{Int64: 3, Valid: true},
	}

	view := toPostView(post)
	if view.ID != 7 || view.Username != "alice.bsky.social" {
		t.Errorf("unexpected view identity: %+v", view)
	}
	if view.Status != "scheduled" {
		t.Errorf("status = %q, want scheduled", view.Status)
	}
	if view.ScheduledAt == nil || !view.ScheduledAt.Equal(scheduled) {
		t.Errorf("scheduled_at = %v, want %v", view.ScheduledAt, scheduled)
	}
	if view.PostedAt != nil {
		t.Errorf("posted_at = %v, want nil", view.PostedAt)
	}
	if view.ReplyToID != 3 {
		t.Errorf("reply_to_id = %d, want 3", view.ReplyToID)
	}
}

func TestToAccountViewHidesPassword(t *testing.T) {
	account := &models.Account{
		Username:        "alice.bsky.social",
		AppPassword:     "secret",
		IntervalSeconds: 3600,
		AllowPosts:      true,
	}

	view := toAccountView(account)
	if view.Username != account.Username || !view.AllowPosts {
		t.Errorf("unexpected view: %+v", view)
	}
	if view.IntervalSeconds != account.IntervalSeconds {
		t.Errorf("interval_seconds = %d, want %d", view.IntervalSeconds, account.IntervalSeconds)
	}
}
