package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andyscpalmer/atproto-scheduler/internal/cache"
	"github.com/andyscpalmer/atproto-scheduler/internal/db"
	"github.com/andyscpalmer/atproto-scheduler/pkg/logging"
)

// Router sets up API routes
type Router struct {
	accounts *db.AccountRepository
	posts    *db.PostRepository
	db       *db.DB
	cache    *cache.Cache
	logger   *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(database *db.DB, redisCache *cache.Cache) *Router {
	repo := db.NewRepository(database.DB)
	return &Router{
		accounts: db.NewAccountRepository(repo),
		posts:    db.NewPostRepository(repo),
		db:       database,
		cache:    redisCache,
		logger:   logging.WithComponent("api-router"),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.Use(RequestID(), RequestLogger(r.logger))

	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	v1 := engine.Group("/api/v1")
	{
		v1.GET("/accounts", r.listAccounts)
		v1.GET("/accounts/:username", r.getAccount)
		v1.POST("/accounts", r.createAccount)
		v1.PATCH("/accounts/:username", r.updateAccount)

		v1.GET("/accounts/:username/posts", r.listAccountPosts)
		v1.GET("/posts/:id", r.getPost)
		v1.POST("/posts", r.createPost)
		v1.POST("/posts/:id/draft", r.draftPost)
		v1.POST("/posts/:id/unschedule", r.unschedulePost)
	}
}

// healthHandler reports service liveness plus database and cache
// reachability.
func (r *Router) healthHandler(c *gin.Context) {
	status := gin.H{
		"status":  "OK",
		"service": "atproto-scheduler",
	}

	if err := r.db.Health(c.Request.Context()); err != nil {
		status["status"] = "DEGRADED"
		status["database"] = err.Error()
	}
	if r.cache != nil {
		if err := r.cache.Health(c.Request.Context()); err != nil {
			status["status"] = "DEGRADED"
			status["cache"] = err.Error()
		}
	}

	code := http.StatusOK
	if status["status"] != "OK" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}
