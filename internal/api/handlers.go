package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andyscpalmer/atproto-scheduler/internal/models"
)

// accountView is the API shape of an account. The app password never
// leaves the service.
type accountView struct {
	Username        string `json:"username"`
	IntervalSeconds int64  `json:"interval_seconds"`
	AllowPosts      bool   `json:"allow_posts"`
}

func toAccountView(a *models.Account) accountView {
	return accountView{
		Username:        a.Username,
		IntervalSeconds: a.IntervalSeconds,
		AllowPosts:      a.AllowPosts,
	}
}

// postView is the API shape of a post.
type postView struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username,omitempty"`
	Text        string     `json:"text"`
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	URI         string     `json:"uri,omitempty"`
	ReplyToID   int64      `json:"reply_to_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toPostView(p *models.Post) postView {
	view := postView{
		ID:        p.ID,
		Text:      p.Text,
		Status:    p.Status(),
		URI:       p.URI,
		ReplyToID: p.ParentID(),
		Error:     p.Error,
		CreatedAt: p.CreatedAt,
	}
	if p.Username.Valid {
		view.Username = p.Username.String
	}
	if p.ScheduledAt.Valid {
		t := p.ScheduledAt.Time
		view.ScheduledAt = &t
	}
	if p.PostedAt.Valid {
		t := p.PostedAt.Time
		view.PostedAt = &t
	}
	return view
}

func (r *Router) listAccounts(c *gin.Context) {
	accounts, err := r.accounts.List(c.Request.Context())
	if err != nil {
		r.serverError(c, "list accounts", err)
		return
	}

	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, toAccountView(a))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": views})
}

func (r *Router) getAccount(c *gin.Context) {
	account, err := r.accounts.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		r.serverError(c, "get account", err)
		return
	}
	if account == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	c.JSON(http.StatusOK, toAccountView(account))
}

type createAccountRequest struct {
	Username        string `json:"username" binding:"required"`
	AppPassword     string `json:"app_password" binding:"required"`
	IntervalSeconds int64  `json:"interval_seconds"`
	AllowPosts      bool   `json:"allow_posts"`
}

func (r *Router) createAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account := &models.Account{
		Username:        req.Username,
		AppPassword:     req.AppPassword,
		IntervalSeconds: req.IntervalSeconds,
		AllowPosts:      req.AllowPosts,
	}
	if err := r.accounts.Create(c.Request.Context(), account); err != nil {
		r.serverError(c, "create account", err)
		return
	}
	c.JSON(http.StatusCreated, toAccountView(account))
}

type updateAccountRequest struct {
	AppPassword     *string `json:"app_password"`
	IntervalSeconds *int64  `json:"interval_seconds"`
	AllowPosts      *bool   `json:"allow_posts"`
}

func (r *Router) updateAccount(c *gin.Context) {
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := r.accounts.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		r.serverError(c, "get account", err)
		return
	}
	if account == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}

	if req.AppPassword != nil {
		account.AppPassword = *req.AppPassword
	}
	if req.IntervalSeconds != nil {
		account.IntervalSeconds = *req.IntervalSeconds
	}
	if req.AllowPosts != nil {
		account.AllowPosts = *req.AllowPosts
	}

	if err := r.accounts.Update(c.Request.Context(), account); err != nil {
		r.serverError(c, "update account", err)
		return
	}
	c.JSON(http.StatusOK, toAccountView(account))
}

func (r *Router) listAccountPosts(c *gin.Context) {
	posts, err := r.posts.ListByAccount(c.Request.Context(), c.Param("username"))
	if err != nil {
		r.serverError(c, "list posts", err)
		return
	}

	views := make([]postView, 0, len(posts))
	for _, p := range posts {
		views = append(views, toPostView(p))
	}
	c.JSON(http.StatusOK, gin.H{"posts": views})
}

func (r *Router) getPost(c *gin.Context) {
	id, ok := r.postID(c)
	if !ok {
		return
	}

	post, err := r.posts.GetByID(c.Request.Context(), id)
	if err != nil {
		r.serverError(c, "get post", err)
		return
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	c.JSON(http.StatusOK, toPostView(post))
}

type createPostRequest struct {
	Username  string   `json:"username" binding:"required"`
	Text      string   `json:"text" binding:"required"`
	Links     []string `json:"links"`
	CardTitle string   `json:"link_card_title"`
	CardDesc  string   `json:"link_card_description"`
	IsDraft   bool     `json:"is_draft"`
	ReplyToID int64    `json:"reply_to_id"`
}

func (r *Router) createPost(c *gin.Context) {
	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Links) > 4 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at most 4 links per post"})
		return
	}

	post := &models.Post{
		Text:                req.Text,
		Username:            sql.NullString{String: req.Username, Valid: true},
		LinkCardTitle:       req.CardTitle,
		LinkCardDescription: req.CardDesc,
		IsDraft:             req.IsDraft,
	}
	links := [4]*string{&post.Link1, &post.Link2, &post.Link3, &post.Link4}
	for i, link := range req.Links {
		*links[i] = link
	}
	if req.ReplyToID != 0 {
		post.ReplyToID = sql.NullInt64{Int64: req.ReplyToID, Valid: true}
	}

	if err := r.posts.Create(c.Request.Context(), post); err != nil {
		r.serverError(c, "create post", err)
		return
	}
	c.JSON(http.StatusCreated, toPostView(post))
}

// draftPost pulls a post out of scheduling by flagging it as a draft.
func (r *Router) draftPost(c *gin.Context) {
	id, ok := r.postID(c)
	if !ok {
		return
	}
	if err := r.posts.MarkDraft(c.Request.Context(), id); err != nil {
		r.serverError(c, "mark draft", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": "draft"})
}

// unschedulePost clears a post's scheduled time; the next scheduler tick
// assigns it a fresh slot.
func (r *Router) unschedulePost(c *gin.Context) {
	id, ok := r.postID(c)
	if !ok {
		return
	}
	if err := r.posts.SetScheduledAt(c.Request.Context(), id, nil); err != nil {
		r.serverError(c, "clear schedule", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "scheduled_at": nil})
}

func (r *Router) postID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return 0, false
	}
	return id, true
}

func (r *Router) serverError(c *gin.Context, op string, err error) {
	r.logger.Error("Request failed",
		zap.String("request_id", c.GetString("request_id")),
		zap.String("op", op),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
