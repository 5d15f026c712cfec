package models

import (
	"time"

	"github.com/lib/pq"
)

// Posting modes
const (
	PostingModeAuto   = "auto"
	PostingModeManual = "manual"
)

// Auto-post cadences
const (
	ScheduleDaily  = "daily"
	ScheduleWeekly = "weekly"
)

// UserSettings holds per-user auto-posting configuration.
// At most one row exists per GitHub username.
type UserSettings struct {
	ID             int64          `gorm:"primaryKey;autoIncrement;column:id" json:"-"`
	GithubUsername string         `gorm:"type:varchar(64);not null;uniqueIndex:user_settings_username_ux;column:github_username" json:"github_username"`
	PostingMode    string         `gorm:"type:varchar(16);not null;default:'manual';column:posting_mode" json:"posting_mode"`
	AutoRepos      pq.StringArray `gorm:"type:text[];column:auto_repos" json:"auto_repos"`
	AutoSchedule   string         `gorm:"type:varchar(16);not null;default:'daily';column:auto_schedule" json:"auto_schedule"`
	CreatedAt      time.Time      `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for UserSettings
func (UserSettings) TableName() string {
	return "user_settings"
}

// ProcessedCommit records that a commit has already produced a post.
// A given (repo, commit_sha) pair is recorded at most once.
type ProcessedCommit struct {
	ID             int64     `gorm:"primaryKey;autoIncrement;column:id"`
	GithubUsername string    `gorm:"type:varchar(64);not null;index;column:github_username"`
	Repo           string    `gorm:"type:varchar(255);not null;uniqueIndex:processed_commits_repo_sha_ux;column:repo"`
	CommitSha      string    `gorm:"type:varchar(64);not null;uniqueIndex:processed_commits_repo_sha_ux;column:commit_sha"`
	PostID         string    `gorm:"type:uuid;column:post_id"`
	CreatedAt      time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for ProcessedCommit
func (ProcessedCommit) TableName() string {
	return "processed_commits"
}
