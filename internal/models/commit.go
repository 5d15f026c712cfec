package models

import "time"

// CommitInfo describes a single commit as returned by the source host.
// Not persisted; fetched fresh each time.
type CommitInfo struct {
	Sha     string    `json:"sha"`
	Message string    `json:"message"`
	Author  string    `json:"author"`
	Date    time.Time `json:"date"`
	URL     string    `json:"url"`
}

// FileDiff describes the changes to one file within a commit
type FileDiff struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Patch     string `json:"patch,omitempty"`
}

// DiffStats aggregates change counts across a commit
type DiffStats struct {
	Total     int `json:"total"`
	Additions int `json:"additions"`
	Deletions int `json:"deletions"`
}

// CommitDiff is the full diff for one commit
type CommitDiff struct {
	Commit CommitInfo `json:"commit"`
	Files  []FileDiff `json:"files"`
	Stats  DiffStats  `json:"stats"`
}

// Repo describes a repository of the signed-in user
type Repo struct {
	Name        string    `json:"name"`
	FullName    string    `json:"full_name"`
	Private     bool      `json:"private"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GenerateResult is the drafting output for one commit batch
type GenerateResult struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Commits []string `json:"commits"`
	Repo    string   `json:"repo"`
}
