package pipeline

import (
	"context"

	"github.com/gitscribe/gitscribe/internal/db"
	"github.com/gitscribe/gitscribe/internal/models"
)

// DBStore is the database-backed pipeline store
type DBStore struct {
	repo *db.Repository
}

// NewDBStore creates a pipeline store over the shared repository
func NewDBStore(repo *db.Repository) *DBStore {
	return &DBStore{repo: repo}
}

// AutoModeUsers lists users with auto posting enabled
func (s *DBStore) AutoModeUsers(ctx context.Context) ([]*models.UserSettings, error) {
	return db.NewSettingsRepository(s.repo).AutoModeUsers(ctx)
}

// ProcessedShas lists the already-processed commit SHAs for a (user, repo) pair
func (s *DBStore) ProcessedShas(ctx context.Context, username, repo string) ([]string, error) {
	return db.NewProcessedCommitRepository(s.repo).Shas(ctx, username, repo)
}

// CreateDraftWithCommits creates the draft and records its commits in
// one transaction, so a crash cannot leave the SHAs unrecorded behind
// a created post
func (s *DBStore) CreateDraftWithCommits(ctx context.Context, post *models.Post, shas []string) error {
	return s.repo.WithTx(ctx, func(tx *db.Repository) error {
		if err := db.NewPostRepository(tx).Create(ctx, post); err != nil {
			return err
		}
		return db.NewProcessedCommitRepository(tx).Record(ctx, post.Author, post.Repo, shas, post.ID)
	})
}
