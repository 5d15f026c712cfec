package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gitscribe/gitscribe/pkg/config"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := New(&config.GitHubConfig{
		APIURL: server.URL,
		Token:  "server-token",
	})
	return client, server
}

func TestListCommits(t *testing.T) {
	var gotAuth, gotQuery string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"sha":"abc123","html_url":"https://example.com/c/abc123",
			 "commit":{"message":"fix bug","author":{"name":"octocat","date":"2026-03-14T10:00:00Z"}}},
			{"sha":"def456","html_url":"https://example.com/c/def456",
			 "commit":{"message":"add feature","author":{"name":"","date":"2026-03-13T10:00:00Z"}}}
		]`))
	}))
	defer server.Close()

	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	commits, err := client.ListCommits(context.Background(), "session-token", "octo", "repo", &since, nil, 30)
	if err != nil {
		t.Fatalf("ListCommits() error: %v", err)
	}

	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}
	if commits[0].Sha != "abc123" || commits[0].Message != "fix bug" {
		t.Errorf("unexpected first commit: %+v", commits[0])
	}
	if commits[1].Author != "Unknown" {
		t.Errorf("missing author name should map to Unknown, got %q", commits[1].Author)
	}
	if gotAuth != "Bearer session-token" {
		t.Errorf("session token should take precedence, got %q", gotAuth)
	}
	if gotQuery != "per_page=30&since=2026-03-01T00%3A00%3A00Z" {
		t.Errorf("unexpected query: %q", gotQuery)
	}
}

func TestListCommitsFallbackToken(t *testing.T) {
	var gotAuth string
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	if _, err := client.ListCommits(context.Background(), "", "octo", "repo", nil, nil, 30); err != nil {
		t.Fatalf("ListCommits() error: %v", err)
	}
	if gotAuth != "Bearer server-token" {
		t.Errorf("empty session token should fall back to server token, got %q", gotAuth)
	}
}

func TestGetCommitDiff(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octo/repo/commits/abc123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`{
			"sha":"abc123","html_url":"https://example.com/c/abc123",
			"commit":{"message":"fix bug","author":{"name":"octocat","date":"2026-03-14T10:00:00Z"}},
			"stats":{"total":3,"additions":2,"deletions":1},
			"files":[{"filename":"main.go","status":"","additions":2,"deletions":1,"patch":"@@ -1 +1 @@"}]
		}`))
	}))
	defer server.Close()

	diff, err := client.GetCommitDiff(context.Background(), "", "octo", "repo", "abc123")
	if err != nil {
		t.Fatalf("GetCommitDiff() error: %v", err)
	}

	if diff.Commit.Sha != "abc123" {
		t.Errorf("unexpected sha: %s", diff.Commit.Sha)
	}
	if diff.Stats.Additions != 2 || diff.Stats.Deletions != 1 {
		t.Errorf("unexpected stats: %+v", diff.Stats)
	}
	if len(diff.Files) != 1 || diff.Files[0].Status != "modified" {
		t.Errorf("empty file status should default to modified, got %+v", diff.Files)
	}
}

func TestGetViewer(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"login":"octocat"}`))
	}))
	defer server.Close()

	login, err := client.GetViewer(context.Background(), "session-token")
	if err != nil {
		t.Fatalf("GetViewer() error: %v", err)
	}
	if login != "octocat" {
		t.Errorf("GetViewer() = %q, want octocat", login)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected error
	}{
		{name: "not found", status: http.StatusNotFound, expected: ErrNotFound},
		{name: "unauthorized", status: http.StatusUnauthorized, expected: ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"nope"}`))
			}))
			defer server.Close()

			_, err := client.GetCommitDiff(context.Background(), "", "octo", "repo", "abc")
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestNoTokenAvailable(t *testing.T) {
	client := New(&config.GitHubConfig{APIURL: "http://localhost:0", Token: ""})

	_, err := client.GetViewer(context.Background(), "")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("expected ErrNoToken, got %v", err)
	}
}
