package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gitscribe/gitscribe/internal/models"
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx runs fn with repositories bound to a single transaction.
// Used by the draft pipeline so post creation and commit recording
// commit or roll back together.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// PostFilter narrows post listings
type PostFilter struct {
	// Query matches case-insensitively against title, summary and content
	Query string
	// Tag requires exact tag membership
	Tag string
	// Repo requires an exact "owner/name" match
	Repo string
	// IncludeDrafts lists drafts alongside published posts
	IncludeDrafts bool
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// GetByID retrieves a post by ID
func (r *PostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// List retrieves posts matching the filter, newest first
func (r *PostRepository) List(ctx context.Context, filter PostFilter) ([]*models.Post, error) {
	q := r.db.WithContext(ctx).Model(&models.Post{})

	if !filter.IncludeDrafts {
		q = q.Where("status = ?", models.PostStatusPublished)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		q = q.Where("title ILIKE ? OR summary ILIKE ? OR content ILIKE ?", like, like, like)
	}
	if filter.Tag != "" {
		q = q.Where("? = ANY(tags)", filter.Tag)
	}
	if filter.Repo != "" {
		q = q.Where("repo = ?", filter.Repo)
	}

	// Initialized so an empty listing marshals as [] rather than null
	posts := make([]*models.Post, 0)
	if err := q.Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

// DraftsByAuthor retrieves an author's draft posts, newest first
func (r *PostRepository) DraftsByAuthor(ctx context.Context, author string) ([]*models.Post, error) {
	posts := make([]*models.Post, 0)
	err := r.db.WithContext(ctx).
		Where("status = ? AND author = ?", models.PostStatusDraft, author).
		Order("created_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Create creates a new post, assigning a unique date-stamped slug
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	slug, err := r.uniqueSlug(ctx, Slugify(post.Title))
	if err != nil {
		return err
	}
	post.Slug = slug
	return r.db.WithContext(ctx).Create(post).Error
}

// uniqueSlug resolves slug collisions by appending an incrementing
// numeric suffix until no existing post carries the candidate
func (r *PostRepository) uniqueSlug(ctx context.Context, base string) (string, error) {
	exists := func(candidate string) (bool, error) {
		var count int64
		err := r.db.WithContext(ctx).Model(&models.Post{}).
			Where("slug = ?", candidate).
			Count(&count).Error
		return count > 0, err
	}
	return ResolveSlug(base, exists)
}

// Update replaces a post's title, content and metadata
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

// Publish transitions a draft to published
func (r *PostRepository) Publish(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND status = ?", id, models.PostStatusDraft).
		Update("status", models.PostStatusPublished)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a post by ID
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Post{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Tags retrieves the distinct set of tags across published posts
func (r *PostRepository) Tags(ctx context.Context) ([]string, error) {
	tags := make([]string, 0)
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("DISTINCT unnest(tags)").
		Where("status = ?", models.PostStatusPublished).
		Order("1").
		Scan(&tags).Error
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// Repos retrieves the distinct set of source repositories across published posts
func (r *PostRepository) Repos(ctx context.Context) ([]string, error) {
	repos := make([]string, 0)
	err := r.db.WithContext(ctx).Model(&models.Post{}).
		Select("DISTINCT repo").
		Where("status = ? AND repo <> ''", models.PostStatusPublished).
		Order("repo").
		Scan(&repos).Error
	if err != nil {
		return nil, err
	}
	return repos, nil
}

// SettingsRepository provides user settings database operations
type SettingsRepository struct {
	*Repository
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(repo *Repository) *SettingsRepository {
	return &SettingsRepository{Repository: repo}
}

// Get retrieves settings for a username
func (r *SettingsRepository) Get(ctx context.Context, username string) (*models.UserSettings, error) {
	var settings models.UserSettings
	if err := r.db.WithContext(ctx).Where("github_username = ?", username).First(&settings).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

// Upsert creates or replaces the settings row keyed by username
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.UserSettings) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "github_username"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"posting_mode", "auto_repos", "auto_schedule", "updated_at",
		}),
	}).Create(settings).Error
}

// AutoModeUsers retrieves all users with auto posting enabled
func (r *SettingsRepository) AutoModeUsers(ctx context.Context) ([]*models.UserSettings, error) {
	var users []*models.UserSettings
	err := r.db.WithContext(ctx).
		Where("posting_mode = ?", models.PostingModeAuto).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// ProcessedCommitRepository tracks which commits already produced a post
type ProcessedCommitRepository struct {
	*Repository
}

// NewProcessedCommitRepository creates a new processed commit repository
func NewProcessedCommitRepository(repo *Repository) *ProcessedCommitRepository {
	return &ProcessedCommitRepository{Repository: repo}
}

// Shas retrieves the processed commit SHAs for a (username, repo) pair
func (r *ProcessedCommitRepository) Shas(ctx context.Context, username, repo string) ([]string, error) {
	var shas []string
	err := r.db.WithContext(ctx).Model(&models.ProcessedCommit{}).
		Where("github_username = ? AND repo = ?", username, repo).
		Pluck("commit_sha", &shas).Error
	if err != nil {
		return nil, err
	}
	return shas, nil
}

// Record marks commits as processed against the resulting post.
// The unique constraint on (repo, commit_sha) makes re-recording a no-op.
func (r *ProcessedCommitRepository) Record(ctx context.Context, username, repo string, shas []string, postID string) error {
	if len(shas) == 0 {
		return nil
	}
	rows := make([]models.ProcessedCommit, 0, len(shas))
	for _, sha := range shas {
		rows = append(rows, models.ProcessedCommit{
			GithubUsername: username,
			Repo:           repo,
			CommitSha:      sha,
			PostID:         postID,
		})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "repo"}, {Name: "commit_sha"}},
		DoNothing: true,
	}).Create(&rows).Error
}
