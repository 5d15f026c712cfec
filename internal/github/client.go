package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/gitscribe/gitscribe/internal/models"
	"github.com/gitscribe/gitscribe/pkg/config"
	"github.com/gitscribe/gitscribe/pkg/logging"
	"github.com/gitscribe/gitscribe/pkg/telemetry"
)

// ErrNotFound is returned when the repository, commit or user does not exist
var ErrNotFound = fmt.Errorf("github: not found")

// ErrUnauthorized is returned when the token is missing or rejected
var ErrUnauthorized = fmt.Errorf("github: unauthorized")

// ErrNoToken is returned when neither a session token nor a server
// fallback token is available
var ErrNoToken = fmt.Errorf("github: no token available")

// Client wraps the GitHub REST API
type Client struct {
	baseURL string
	// fallbackToken is the server-wide token used when a call carries
	// no session token (the cron path)
	fallbackToken string
	httpClient    *http.Client
	logger        *zap.Logger
}

// New creates a new GitHub client
func New(cfg *config.GitHubConfig) *Client {
	return &Client{
		baseURL:       cfg.APIURL,
		fallbackToken: cfg.Token,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		logger:        logging.WithComponent("github-client"),
	}
}

// ListCommits fetches up to perPage recent commits for a repository,
// newest first, optionally bounded by a time window.
// An empty token falls back to the server-wide token.
func (c *Client) ListCommits(ctx context.Context, token, owner, repo string, since, until *time.Time, perPage int) ([]models.CommitInfo, error) {
	ctx, span := telemetry.StartSpan(ctx, "github.list_commits")
	defer span.End()

	query := url.Values{}
	query.Set("per_page", strconv.Itoa(perPage))
	if since != nil {
		query.Set("since", since.Format(time.RFC3339))
	}
	if until != nil {
		query.Set("until", until.Format(time.RFC3339))
	}

	path := fmt.Sprintf("/repos/%s/%s/commits?%s", owner, repo, query.Encode())

	var raw []commitResponse
	if err := c.get(ctx, token, path, &raw); err != nil {
		return nil, fmt.Errorf("failed to list commits for %s/%s: %w", owner, repo, err)
	}

	commits := make([]models.CommitInfo, 0, len(raw))
	for _, rc := range raw {
		commits = append(commits, rc.toCommitInfo())
	}
	return commits, nil
}

// GetCommitDiff fetches the full diff for a single commit
func (c *Client) GetCommitDiff(ctx context.Context, token, owner, repo, sha string) (*models.CommitDiff, error) {
	ctx, span := telemetry.StartSpan(ctx, "github.get_commit_diff")
	defer span.End()

	path := fmt.Sprintf("/repos/%s/%s/commits/%s", owner, repo, url.PathEscape(sha))

	var raw commitDetailResponse
	if err := c.get(ctx, token, path, &raw); err != nil {
		return nil, fmt.Errorf("failed to get commit %s in %s/%s: %w", sha, owner, repo, err)
	}

	files := make([]models.FileDiff, 0, len(raw.Files))
	for _, f := range raw.Files {
		status := f.Status
		if status == "" {
			status = "modified"
		}
		files = append(files, models.FileDiff{
			Filename:  f.Filename,
			Status:    status,
			Additions: f.Additions,
			Deletions: f.Deletions,
			Patch:     f.Patch,
		})
	}

	return &models.CommitDiff{
		Commit: raw.commitResponse.toCommitInfo(),
		Files:  files,
		Stats: models.DiffStats{
			Total:     raw.Stats.Total,
			Additions: raw.Stats.Additions,
			Deletions: raw.Stats.Deletions,
		},
	}, nil
}

// ListUserRepos fetches the authenticated user's repositories,
// most recently updated first
func (c *Client) ListUserRepos(ctx context.Context, token string) ([]models.Repo, error) {
	ctx, span := telemetry.StartSpan(ctx, "github.list_user_repos")
	defer span.End()

	var raw []repoResponse
	if err := c.get(ctx, token, "/user/repos?sort=updated&per_page=100", &raw); err != nil {
		return nil, fmt.Errorf("failed to list user repos: %w", err)
	}

	repos := make([]models.Repo, 0, len(raw))
	for _, rr := range raw {
		repos = append(repos, models.Repo{
			Name:        rr.Name,
			FullName:    rr.FullName,
			Private:     rr.Private,
			Description: rr.Description,
			URL:         rr.HTMLURL,
			UpdatedAt:   rr.UpdatedAt,
		})
	}
	return repos, nil
}

// GetViewer resolves a token to its GitHub username
func (c *Client) GetViewer(ctx context.Context, token string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "github.get_viewer")
	defer span.End()

	var raw struct {
		Login string `json:"login"`
	}
	if err := c.get(ctx, token, "/user", &raw); err != nil {
		return "", fmt.Errorf("failed to resolve viewer: %w", err)
	}
	if raw.Login == "" {
		return "", fmt.Errorf("github: empty login in /user response")
	}
	return raw.Login, nil
}

// get performs an authenticated GET and decodes the JSON response
func (c *Client) get(ctx context.Context, token, path string, out interface{}) error {
	authToken := token
	if authToken == "" {
		authToken = c.fallbackToken
	}
	if authToken == "" {
		return ErrNoToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		c.logger.Warn("GitHub API error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, apiErrorMessage(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func apiErrorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return "no error message"
}

// commitResponse mirrors the commit object in GitHub list/get responses
type commitResponse struct {
	Sha     string `json:"sha"`
	HTMLURL string `json:"html_url"`
	Commit  struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

func (rc commitResponse) toCommitInfo() models.CommitInfo {
	author := rc.Commit.Author.Name
	if author == "" {
		author = "Unknown"
	}
	return models.CommitInfo{
		Sha:     rc.Sha,
		Message: rc.Commit.Message,
		Author:  author,
		Date:    rc.Commit.Author.Date,
		URL:     rc.HTMLURL,
	}
}

type commitDetailResponse struct {
	commitResponse
	Stats struct {
		Total     int `json:"total"`
		Additions int `json:"additions"`
		Deletions int `json:"deletions"`
	} `json:"stats"`
	Files []struct {
		Filename  string `json:"filename"`
		Status    string `json:"status"`
		Additions int    `json:"additions"`
		Deletions int    `json:"deletions"`
		Patch     string `json:"patch"`
	} `json:"files"`
}

type repoResponse struct {
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Private     bool      `json:"private"`
	Description string    `json:"description"`
	HTMLURL     string    `json:"html_url"`
	UpdatedAt   time.Time `json:"updated_at"`
}
