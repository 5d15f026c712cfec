package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gitscribe/gitscribe/internal/db"
	"github.com/gitscribe/gitscribe/internal/models"
	"github.com/gitscribe/gitscribe/internal/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakePosts is an in-memory PostStore
type fakePosts struct {
	byID map[string]*models.Post
	seq  int
}

func newFakePosts() *fakePosts {
	return &fakePosts{byID: make(map[string]*models.Post)}
}

func (f *fakePosts) Create(ctx context.Context, post *models.Post) error {
	f.seq++
	post.ID = fmt.Sprintf("id-%d", f.seq)
	post.Slug = fmt.Sprintf("slug-%d", f.seq)
	clone := *post
	f.byID[post.ID] = &clone
	return nil
}

func (f *fakePosts) GetByID(ctx context.Context, id string) (*models.Post, error) {
	post, ok := f.byID[id]
	if !ok {
		return nil, nil
	}
	clone := *post
	return &clone, nil
}

func (f *fakePosts) List(ctx context.Context, filter db.PostFilter) ([]*models.Post, error) {
	posts := make([]*models.Post, 0)
	for _, post := range f.byID {
		if !filter.IncludeDrafts && post.Status != models.PostStatusPublished {
			continue
		}
		if filter.Repo != "" && post.Repo != filter.Repo {
			continue
		}
		if filter.Tag != "" && !contains(post.Tags, filter.Tag) {
			continue
		}
		if filter.Query != "" &&
			!strings.Contains(strings.ToLower(post.Title+post.Summary+post.Content), strings.ToLower(filter.Query)) {
			continue
		}
		clone := *post
		posts = append(posts, &clone)
	}
	return posts, nil
}

func (f *fakePosts) Update(ctx context.Context, post *models.Post) error {
	clone := *post
	f.byID[post.ID] = &clone
	return nil
}

func (f *fakePosts) Delete(ctx context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

func (f *fakePosts) DraftsByAuthor(ctx context.Context, author string) ([]*models.Post, error) {
	drafts := make([]*models.Post, 0)
	for _, post := range f.byID {
		if post.Status == models.PostStatusDraft && post.Author == author {
			clone := *post
			drafts = append(drafts, &clone)
		}
	}
	return drafts, nil
}

func (f *fakePosts) Publish(ctx context.Context, id string) error {
	post, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("not found")
	}
	post.Status = models.PostStatusPublished
	return nil
}

func (f *fakePosts) Tags(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	tags := make([]string, 0)
	for _, post := range f.byID {
		for _, tag := range post.Tags {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	}
	return tags, nil
}

func (f *fakePosts) Repos(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	repos := make([]string, 0)
	for _, post := range f.byID {
		if post.Repo != "" && !seen[post.Repo] {
			seen[post.Repo] = true
			repos = append(repos, post.Repo)
		}
	}
	return repos, nil
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// fakeSettings is an in-memory SettingsStore
type fakeSettings struct {
	byUser map[string]*models.UserSettings
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{byUser: make(map[string]*models.UserSettings)}
}

func (f *fakeSettings) Get(ctx context.Context, username string) (*models.UserSettings, error) {
	s, ok := f.byUser[username]
	if !ok {
		return nil, nil
	}
	clone := *s
	return &clone, nil
}

func (f *fakeSettings) Upsert(ctx context.Context, settings *models.UserSettings) error {
	clone := *settings
	f.byUser[settings.GithubUsername] = &clone
	return nil
}

// fakeGitHub serves canned commits and resolves every token to a
// fixed username
type fakeGitHub struct {
	commits []models.CommitInfo
	viewers map[string]string
}

func (f *fakeGitHub) ListCommits(ctx context.Context, token, owner, repo string, since, until *time.Time, perPage int) ([]models.CommitInfo, error) {
	return f.commits, nil
}

func (f *fakeGitHub) GetCommitDiff(ctx context.Context, token, owner, repo, sha string) (*models.CommitDiff, error) {
	return &models.CommitDiff{Commit: models.CommitInfo{Sha: sha}}, nil
}

func (f *fakeGitHub) ListUserRepos(ctx context.Context, token string) ([]models.Repo, error) {
	return []models.Repo{{FullName: "octo/repo"}}, nil
}

func (f *fakeGitHub) GetViewer(ctx context.Context, token string) (string, error) {
	if username, ok := f.viewers[token]; ok {
		return username, nil
	}
	return "", fmt.Errorf("bad token")
}

// fakeDrafter returns a fixed result
type fakeDrafter struct{}

func (fakeDrafter) AnalyzeCommits(ctx context.Context, diffs []models.CommitDiff, repo string) (*models.GenerateResult, error) {
	shas := make([]string, 0, len(diffs))
	for _, cd := range diffs {
		shas = append(shas, cd.Commit.Sha)
	}
	return &models.GenerateResult{
		Title:   "Generated Title",
		Content: "## Body",
		Summary: "Summary",
		Tags:    []string{"go"},
		Commits: shas,
		Repo:    repo,
	}, nil
}

// fakeSweeper returns fixed sweep results
type fakeSweeper struct {
	results []pipeline.Result
}

func (f *fakeSweeper) RunSweep(ctx context.Context) ([]pipeline.Result, error) {
	return f.results, nil
}

type testEnv struct {
	engine   *gin.Engine
	posts    *fakePosts
	settings *fakeSettings
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	posts := newFakePosts()
	settings := newFakeSettings()
	gh := &fakeGitHub{
		commits: []models.CommitInfo{{Sha: "sha1"}, {Sha: "sha2"}},
		viewers: map[string]string{"good-token": "octocat"},
	}
	sweeper := &fakeSweeper{results: []pipeline.Result{
		{Username: "octocat", Repo: "octo/repo", Status: pipeline.StatusSuccess, PostID: "id-1"},
	}}

	router := NewRouter(posts, settings, gh, fakeDrafter{}, sweeper, nil, nil, "cron-secret")
	engine := gin.New()
	router.SetupRoutes(engine)

	return &testEnv{engine: engine, posts: posts, settings: settings}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/generate"},
		{http.MethodGet, "/github/repos"},
		{http.MethodPost, "/posts"},
		{http.MethodGet, "/posts/drafts"},
		{http.MethodGet, "/settings"},
		{http.MethodPut, "/settings"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if w := env.do(t, tt.method, tt.path, "", nil); w.Code != http.StatusUnauthorized {
				t.Errorf("no token: status = %d, want 401", w.Code)
			}
			if w := env.do(t, tt.method, tt.path, "bad-token", nil); w.Code != http.StatusUnauthorized {
				t.Errorf("bad token: status = %d, want 401", w.Code)
			}
		})
	}
}

func TestCronAutoPost(t *testing.T) {
	env := newTestEnv(t)

	// Missing and wrong secrets are rejected before any work happens
	if w := env.do(t, http.MethodGet, "/cron/auto-post", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing secret: status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/cron/auto-post", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong secret: status = %d, want 401", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/cron/auto-post", nil)
	req.Header.Set("Authorization", "Bearer cron-secret")
	w = httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("correct secret: status = %d, want 200", w.Code)
	}

	body := decode(t, w)
	if body["processed"] != float64(1) {
		t.Errorf("processed = %v, want 1", body["processed"])
	}
}

func TestGenerateEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/generate", "good-token", map[string]interface{}{
		"owner":       "octo",
		"repo":        "repo",
		"commit_shas": []string{"sha1"},
		"publish":     true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	body := decode(t, w)
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("expected a non-empty id")
	}
	if body["published"] != true {
		t.Error("expected published = true")
	}

	// The published post shows up in the public listing
	w = env.do(t, http.MethodGet, "/posts", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /posts status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), id) {
		t.Errorf("GET /posts should include post %s, got %s", id, w.Body.String())
	}
}

func TestGenerateValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/generate", "good-token", map[string]interface{}{
		"owner": "", "repo": "repo",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing owner: status = %d, want 400", w.Code)
	}

	w = env.do(t, http.MethodPost, "/generate", "good-token", map[string]interface{}{
		"owner": "octo", "repo": "repo", "since": "not-a-date",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad since: status = %d, want 400", w.Code)
	}
}

func TestListPostsRepoFilter(t *testing.T) {
	env := newTestEnv(t)

	for _, repo := range []string{"org/x", "org/x-other"} {
		env.posts.Create(context.Background(), &models.Post{
			Title: "t", Content: "c", Repo: repo, Status: models.PostStatusPublished,
		})
	}

	w := env.do(t, http.MethodGet, "/posts?repo=org%2Fx", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp struct {
		Posts []models.Post `json:"posts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Posts) != 1 || resp.Posts[0].Repo != "org/x" {
		t.Errorf("repo filter must match exactly, got %+v", resp.Posts)
	}
}

func TestListPostsEmptyIsArray(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/posts", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"posts":[]`) {
		t.Errorf(`empty listing must marshal as "posts":[], got %s`, w.Body.String())
	}
}

func TestCommitCacheKeyScopedToCaller(t *testing.T) {
	base := commitCacheKey("alice", "octo", "repo", "", "")

	if got := commitCacheKey("bob", "octo", "repo", "", ""); got == base {
		t.Error("different callers must never share a cached commit listing")
	}
	if got := commitCacheKey("", "octo", "repo", "", ""); got == base {
		t.Error("anonymous callers must not see a signed-in user's cached listing")
	}
	if got := commitCacheKey("alice", "octo", "repo", "", ""); got != base {
		t.Error("same caller and window must share the cache entry")
	}
	if got := commitCacheKey("alice", "octo", "repo", "2026-03-01T00:00:00Z", ""); got == base {
		t.Error("different windows must not share the cache entry")
	}
}

type stubPinger struct {
	err error
}

func (s *stubPinger) Health(ctx context.Context) error {
	return s.err
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	// A down database degrades the service
	router := NewRouter(newFakePosts(), newFakeSettings(), &fakeGitHub{}, fakeDrafter{},
		&fakeSweeper{}, &stubPinger{err: fmt.Errorf("connection refused")}, nil, "")
	engine := gin.New()
	router.SetupRoutes(engine)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when the database is down", w.Code)
	}
	if !strings.Contains(w.Body.String(), "DEGRADED") {
		t.Errorf("expected DEGRADED status, got %s", w.Body.String())
	}
}

func TestDraftVisibility(t *testing.T) {
	env := newTestEnv(t)

	draft := &models.Post{
		Title: "d", Content: "c",
		Status: models.PostStatusDraft, Author: "someone-else",
	}
	env.posts.Create(context.Background(), draft)

	// Drafts never appear in the public listing
	w := env.do(t, http.MethodGet, "/posts", "", nil)
	if strings.Contains(w.Body.String(), draft.ID) {
		t.Error("draft leaked into public listing")
	}

	// And are invisible to non-authors by id
	w = env.do(t, http.MethodGet, "/posts/"+draft.ID, "good-token", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("foreign draft: status = %d, want 404", w.Code)
	}
}

func TestDraftPublishAction(t *testing.T) {
	env := newTestEnv(t)

	draft := &models.Post{
		Title: "d", Content: "c",
		Status: models.PostStatusDraft, Author: "octocat",
	}
	env.posts.Create(context.Background(), draft)

	w := env.do(t, http.MethodPost, "/posts/drafts", "good-token", map[string]interface{}{
		"action": "publish", "post_id": draft.ID,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("publish: status = %d, body = %s", w.Code, w.Body.String())
	}

	stored, _ := env.posts.GetByID(context.Background(), draft.ID)
	if stored.Status != models.PostStatusPublished {
		t.Errorf("status = %q, want published", stored.Status)
	}

	w = env.do(t, http.MethodPost, "/posts/drafts", "good-token", map[string]interface{}{
		"action": "frobnicate", "post_id": draft.ID,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid action: status = %d, want 400", w.Code)
	}
}

func TestUpdateRequiresAuthorship(t *testing.T) {
	env := newTestEnv(t)

	post := &models.Post{
		Title: "t", Content: "c",
		Status: models.PostStatusPublished, Author: "someone-else",
	}
	env.posts.Create(context.Background(), post)

	w := env.do(t, http.MethodPut, "/posts/"+post.ID, "good-token", map[string]interface{}{
		"title": "new", "content": "new",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign post update: status = %d, want 403", w.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	env := newTestEnv(t)

	// Defaults before anything is saved
	w := env.do(t, http.MethodGet, "/settings", "good-token", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /settings status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"posting_mode":"manual"`) {
		t.Errorf("expected manual default, got %s", w.Body.String())
	}

	mode := models.PostingModeAuto
	schedule := models.ScheduleWeekly
	w = env.do(t, http.MethodPut, "/settings", "good-token", map[string]interface{}{
		"posting_mode":  mode,
		"auto_repos":    []string{"octo/repo"},
		"auto_schedule": schedule,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /settings status = %d, body = %s", w.Code, w.Body.String())
	}

	stored, _ := env.settings.Get(context.Background(), "octocat")
	if stored == nil || stored.PostingMode != models.PostingModeAuto || stored.AutoSchedule != models.ScheduleWeekly {
		t.Errorf("unexpected stored settings: %+v", stored)
	}

	w = env.do(t, http.MethodPut, "/settings", "good-token", map[string]interface{}{
		"posting_mode": "sometimes",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid mode: status = %d, want 400", w.Code)
	}
}
