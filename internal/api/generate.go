package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/gitscribe/gitscribe/internal/models"
	"github.com/gitscribe/gitscribe/pkg/telemetry"
)

// maxGenerateCommits bounds how many commits feed one manual generation
const maxGenerateCommits = 10

type generateRequest struct {
	Owner      string   `json:"owner"`
	Repo       string   `json:"repo"`
	Since      string   `json:"since"`
	Until      string   `json:"until"`
	CommitShas []string `json:"commit_shas"`
	Publish    bool     `json:"publish"`
}

type generateResponse struct {
	models.GenerateResult
	ID        string `json:"id"`
	Published bool   `json:"published"`
}

// generate drafts a post from explicitly chosen or recent commits
func (r *Router) generate(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "api.generate")
	defer span.End()

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Owner == "" || req.Repo == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner and repo are required"})
		return
	}

	since, err := parseTimeParam(req.Since)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
		return
	}
	until, err := parseTimeParam(req.Until)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "until must be RFC3339"})
		return
	}

	token := currentToken(c)

	shas := req.CommitShas
	if len(shas) == 0 {
		commits, err := r.github.ListCommits(ctx, token, req.Owner, req.Repo, since, until, maxGenerateCommits)
		if err != nil {
			respondError(c, err)
			return
		}
		for _, commit := range commits {
			shas = append(shas, commit.Sha)
		}
	}
	if len(shas) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no commits to analyze"})
		return
	}
	if len(shas) > maxGenerateCommits {
		shas = shas[:maxGenerateCommits]
	}

	diffs, err := r.fetchDiffs(ctx, token, req.Owner, req.Repo, shas)
	if err != nil {
		respondError(c, err)
		return
	}

	repoFullName := req.Owner + "/" + req.Repo
	result, err := r.drafter.AnalyzeCommits(ctx, diffs, repoFullName)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := generateResponse{GenerateResult: *result, Published: req.Publish}
	if req.Publish {
		post := &models.Post{
			Title:   result.Title,
			Content: result.Content,
			Summary: result.Summary,
			Repo:    repoFullName,
			Commits: result.Commits,
			Tags:    result.Tags,
			Status:  models.PostStatusPublished,
			Author:  currentUsername(c),
		}
		if err := r.posts.Create(ctx, post); err != nil {
			respondError(c, err)
			return
		}
		resp.ID = post.ID
	}

	c.JSON(http.StatusOK, resp)
}

// fetchDiffs fetches commit diffs concurrently; the first failure
// cancels the batch
func (r *Router) fetchDiffs(ctx context.Context, token, owner, repo string, shas []string) ([]models.CommitDiff, error) {
	g, gctx := errgroup.WithContext(ctx)
	diffs := make([]models.CommitDiff, len(shas))

	for i, sha := range shas {
		i, sha := i, sha
		g.Go(func() error {
			diff, err := r.github.GetCommitDiff(gctx, token, owner, repo, sha)
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

func parseTimeParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
