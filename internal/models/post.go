package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Post lifecycle statuses
const (
	PostStatusDraft     = "draft"
	PostStatusPublished = "published"
)

// Post represents a generated blog post
type Post struct {
	ID      string `gorm:"type:uuid;primaryKey;column:id" json:"id"`
	Slug    string `gorm:"type:varchar(255);not null;uniqueIndex:posts_slug_ux;column:slug" json:"slug"`
	Title   string `gorm:"type:varchar(255);not null;column:title" json:"title"`
	Content string `gorm:"type:text;not null;column:content" json:"content"`
	Summary string `gorm:"type:text;column:summary" json:"summary"`

	// Repo is the source repository full name ("owner/name")
	Repo    string         `gorm:"type:varchar(255);index;column:repo" json:"repo"`
	Commits pq.StringArray `gorm:"type:text[];column:commits" json:"commits"`
	Tags    pq.StringArray `gorm:"type:text[];column:tags" json:"tags"`

	Status string `gorm:"type:varchar(16);not null;default:'draft';column:status" json:"status"`
	Author string `gorm:"type:varchar(64);index;column:author" json:"author"`

	CreatedAt time.Time `gorm:"not null;column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// BeforeCreate assigns a UUID primary key
func (p *Post) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsDraft reports whether the post is still a draft
func (p *Post) IsDraft() bool {
	return p.Status == PostStatusDraft
}
