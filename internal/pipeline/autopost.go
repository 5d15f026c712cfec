package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gitscribe/gitscribe/internal/models"
	"github.com/gitscribe/gitscribe/pkg/logging"
	"github.com/gitscribe/gitscribe/pkg/telemetry"
)

// fetchWindow is how many recent commits are pulled from the host per run
const fetchWindow = 30

// batchCap bounds how many unseen commits feed one draft, purely to
// bound prompt size and AI cost
const batchCap = 10

// Sweep result statuses
const (
	StatusNoNewCommits = "no_new_commits"
	StatusSuccess      = "success"
	StatusError        = "error"
)

// Result is one sweep entry for a (user, repo) pair
type Result struct {
	Username string `json:"username"`
	Repo     string `json:"repo"`
	Status   string `json:"status"`
	PostID   string `json:"postId,omitempty"`
}

// CommitSource lists commits and fetches diffs from the source host
type CommitSource interface {
	ListCommits(ctx context.Context, token, owner, repo string, since, until *time.Time, perPage int) ([]models.CommitInfo, error)
	GetCommitDiff(ctx context.Context, token, owner, repo, sha string) (*models.CommitDiff, error)
}

// Drafter turns a commit diff batch into a blog post draft
type Drafter interface {
	AnalyzeCommits(ctx context.Context, commitDiffs []models.CommitDiff, repoFullName string) (*models.GenerateResult, error)
}

// Store is the durable state the pipeline reads and writes
type Store interface {
	AutoModeUsers(ctx context.Context) ([]*models.UserSettings, error)
	ProcessedShas(ctx context.Context, username, repo string) ([]string, error)
	// CreateDraftWithCommits creates the draft post and records the
	// processed SHAs in a single transaction
	CreateDraftWithCommits(ctx context.Context, post *models.Post, shas []string) error
}

// Pipeline runs the idempotent draft-from-unseen-commits flow
type Pipeline struct {
	source  CommitSource
	drafter Drafter
	store   Store
	logger  *zap.Logger
}

// New creates a new draft pipeline
func New(source CommitSource, drafter Drafter, store Store) *Pipeline {
	return &Pipeline{
		source:  source,
		drafter: drafter,
		store:   store,
		logger:  logging.WithComponent("pipeline"),
	}
}

// RunSweep drafts posts for every auto-mode user across all their
// opted-in repositories. A failure for one (user, repo) pair is
// reported in its entry and never aborts the rest of the sweep.
func (p *Pipeline) RunSweep(ctx context.Context) ([]Result, error) {
	return p.runSweep(ctx, "")
}

// RunSweepForSchedule is RunSweep restricted to users on one cadence
func (p *Pipeline) RunSweepForSchedule(ctx context.Context, schedule string) ([]Result, error) {
	return p.runSweep(ctx, schedule)
}

func (p *Pipeline) runSweep(ctx context.Context, schedule string) ([]Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.run_sweep")
	defer span.End()

	users, err := p.store.AutoModeUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load auto-mode users: %w", err)
	}

	results := make([]Result, 0)
	for _, user := range users {
		if schedule != "" && user.AutoSchedule != schedule {
			continue
		}
		for _, repo := range user.AutoRepos {
			result := Result{Username: user.GithubUsername, Repo: repo}

			postID, status, err := p.DraftForRepo(ctx, user.GithubUsername, repo)
			if err != nil {
				p.logger.Error("Auto-post failed",
					zap.String("username", user.GithubUsername),
					zap.String("repo", repo),
					zap.Error(err))
				result.Status = StatusError
			} else {
				result.Status = status
				result.PostID = postID
			}
			results = append(results, result)
		}
	}

	p.logger.Info("Sweep finished", zap.Int("processed", len(results)))
	return results, nil
}

// DraftForRepo produces at most one new draft covering up to batchCap
// not-yet-processed commits for a (username, repo) pair, and durably
// marks those commits processed. Re-running with no new upstream
// commits is a no-op.
func (p *Pipeline) DraftForRepo(ctx context.Context, username, repoFullName string) (string, string, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.draft_for_repo")
	defer span.End()

	owner, repoName, ok := strings.Cut(repoFullName, "/")
	if !ok || owner == "" || repoName == "" {
		return "", "", fmt.Errorf("invalid repository name %q", repoFullName)
	}

	commits, err := p.source.ListCommits(ctx, "", owner, repoName, nil, nil, fetchWindow)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch commits: %w", err)
	}

	processed, err := p.store.ProcessedShas(ctx, username, repoFullName)
	if err != nil {
		return "", "", fmt.Errorf("failed to load processed commits: %w", err)
	}

	unseen := UnseenCommits(commits, processed)
	if len(unseen) == 0 {
		return "", StatusNoNewCommits, nil
	}

	// The host returns newest first; reverse so the batch reads in the
	// order the work happened, then cap it
	batch := reverse(unseen)
	if len(batch) > batchCap {
		batch = batch[:batchCap]
	}

	diffs, err := p.fetchDiffs(ctx, owner, repoName, batch)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch diffs: %w", err)
	}

	result, err := p.drafter.AnalyzeCommits(ctx, diffs, repoFullName)
	if err != nil {
		return "", "", fmt.Errorf("drafting failed: %w", err)
	}

	post := &models.Post{
		Title:   result.Title,
		Content: result.Content,
		Summary: result.Summary,
		Repo:    repoFullName,
		Commits: result.Commits,
		Tags:    result.Tags,
		Status:  models.PostStatusDraft,
		Author:  username,
	}

	if err := p.store.CreateDraftWithCommits(ctx, post, result.Commits); err != nil {
		return "", "", fmt.Errorf("failed to store draft: %w", err)
	}

	p.logger.Info("Draft created",
		zap.String("username", username),
		zap.String("repo", repoFullName),
		zap.String("post_id", post.ID),
		zap.Int("commits", len(result.Commits)))

	return post.ID, StatusSuccess, nil
}

// fetchDiffs fetches all diffs concurrently; the first failure cancels
// the rest and aborts the batch, so no partial post is ever created
func (p *Pipeline) fetchDiffs(ctx context.Context, owner, repoName string, batch []models.CommitInfo) ([]models.CommitDiff, error) {
	g, ctx := errgroup.WithContext(ctx)
	diffs := make([]models.CommitDiff, len(batch))

	for i, commit := range batch {
		i, commit := i, commit
		g.Go(func() error {
			diff, err := p.source.GetCommitDiff(ctx, "", owner, repoName, commit.Sha)
			if err != nil {
				return err
			}
			diffs[i] = *diff
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return diffs, nil
}

func reverse(commits []models.CommitInfo) []models.CommitInfo {
	out := make([]models.CommitInfo, len(commits))
	for i, c := range commits {
		out[len(commits)-1-i] = c
	}
	return out
}
