package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gitscribe/gitscribe/internal/cache"
	"github.com/gitscribe/gitscribe/internal/db"
	"github.com/gitscribe/gitscribe/internal/models"
	"github.com/gitscribe/gitscribe/internal/pipeline"
	"github.com/gitscribe/gitscribe/pkg/logging"
)

// PostStore is the post persistence surface the handlers need
type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, filter db.PostFilter) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
	DraftsByAuthor(ctx context.Context, author string) ([]*models.Post, error)
	Publish(ctx context.Context, id string) error
	Tags(ctx context.Context) ([]string, error)
	Repos(ctx context.Context) ([]string, error)
}

// SettingsStore is the user settings persistence surface
type SettingsStore interface {
	Get(ctx context.Context, username string) (*models.UserSettings, error)
	Upsert(ctx context.Context, settings *models.UserSettings) error
}

// GitHubService is the source-control host surface
type GitHubService interface {
	ListCommits(ctx context.Context, token, owner, repo string, since, until *time.Time, perPage int) ([]models.CommitInfo, error)
	GetCommitDiff(ctx context.Context, token, owner, repo, sha string) (*models.CommitDiff, error)
	ListUserRepos(ctx context.Context, token string) ([]models.Repo, error)
	GetViewer(ctx context.Context, token string) (string, error)
}

// Drafter turns commit diffs into a post draft
type Drafter interface {
	AnalyzeCommits(ctx context.Context, commitDiffs []models.CommitDiff, repoFullName string) (*models.GenerateResult, error)
}

// Sweeper runs the auto-post sweep
type Sweeper interface {
	RunSweep(ctx context.Context) ([]pipeline.Result, error)
}

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Health(ctx context.Context) error
}

// Router sets up API routes
type Router struct {
	posts      PostStore
	settings   SettingsStore
	github     GitHubService
	drafter    Drafter
	sweeper    Sweeper
	database   Pinger
	cache      *cache.Cache
	cronSecret string
	logger     *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(posts PostStore, settings SettingsStore, gh GitHubService, drafter Drafter, sweeper Sweeper, database Pinger, redisCache *cache.Cache, cronSecret string) *Router {
	return &Router{
		posts:      posts,
		settings:   settings,
		github:     gh,
		drafter:    drafter,
		sweeper:    sweeper,
		database:   database,
		cache:      redisCache,
		cronSecret: cronSecret,
		logger:     logging.WithComponent("api-router"),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)

	engine.GET("/cron/auto-post", r.cronAutoPost)

	engine.POST("/generate", r.requireAuth, r.generate)

	engine.GET("/github", r.optionalAuth, r.listCommits)
	engine.GET("/github/repos", r.requireAuth, r.listUserRepos)

	posts := engine.Group("/posts")
	{
		posts.GET("", r.listPosts)
		posts.POST("", r.requireAuth, r.createPost)
		posts.GET("/drafts", r.requireAuth, r.listDrafts)
		posts.POST("/drafts", r.requireAuth, r.draftAction)
		posts.GET("/:id", r.optionalAuth, r.getPost)
		posts.PUT("/:id", r.requireAuth, r.updatePost)
		posts.DELETE("/:id", r.requireAuth, r.deletePost)
	}

	engine.GET("/settings", r.requireAuth, r.getSettings)
	engine.PUT("/settings", r.requireAuth, r.updateSettings)
}

// healthHandler reports liveness and backing store reachability.
// A down database degrades the service; a down cache does not, since
// every cache path falls through to its source.
func (r *Router) healthHandler(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	health := gin.H{
		"status":  "OK",
		"service": "gitscribe-api",
	}

	if r.database != nil {
		if err := r.database.Health(ctx); err != nil {
			r.logger.Error("Database health check failed", zap.Error(err))
			status = http.StatusServiceUnavailable
			health["status"] = "DEGRADED"
			health["database"] = "unreachable"
		}
	}
	if err := r.cache.Health(ctx); err != nil && err != cache.ErrCacheDisabled {
		r.logger.Warn("Cache health check failed", zap.Error(err))
		health["cache"] = "unreachable"
	}

	c.JSON(status, health)
}
