package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gitscribe/gitscribe/internal/db"
	"github.com/gitscribe/gitscribe/internal/models"
)

type postRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Summary string   `json:"summary"`
	Repo    string   `json:"repo"`
	Commits []string `json:"commits"`
	Tags    []string `json:"tags"`
}

// listPosts lists published posts, optionally filtered by free text,
// tag membership or exact repo match
func (r *Router) listPosts(c *gin.Context) {
	filter := db.PostFilter{
		Query: c.Query("q"),
		Tag:   c.Query("tag"),
		Repo:  c.Query("repo"),
	}

	ctx := c.Request.Context()
	posts, err := r.posts.List(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	// Distinct tags and repos feed the listing page's filter controls
	tags, err := r.posts.Tags(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	repos, err := r.posts.Repos(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts, "tags": tags, "repos": repos})
}

// getPost returns a single post. Drafts are visible only to their author.
func (r *Router) getPost(c *gin.Context) {
	post, err := r.posts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if post == nil || (post.IsDraft() && post.Author != currentUsername(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": post})
}

// createPost creates a published post authored by the caller
func (r *Router) createPost(c *gin.Context) {
	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Title == "" || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and content are required"})
		return
	}

	post := &models.Post{
		Title:   req.Title,
		Content: req.Content,
		Summary: req.Summary,
		Repo:    req.Repo,
		Commits: req.Commits,
		Tags:    req.Tags,
		Status:  models.PostStatusPublished,
		Author:  currentUsername(c),
	}
	if err := r.posts.Create(c.Request.Context(), post); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": post.ID, "slug": post.Slug})
}

// updatePost fully replaces a post's title, content and metadata
func (r *Router) updatePost(c *gin.Context) {
	post, ok := r.ownedPost(c)
	if !ok {
		return
	}

	var req postRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Title == "" || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and content are required"})
		return
	}

	post.Title = req.Title
	post.Content = req.Content
	post.Summary = req.Summary
	post.Repo = req.Repo
	post.Commits = req.Commits
	post.Tags = req.Tags

	if err := r.posts.Update(c.Request.Context(), post); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// deletePost removes a post owned by the caller
func (r *Router) deletePost(c *gin.Context) {
	post, ok := r.ownedPost(c)
	if !ok {
		return
	}

	if err := r.posts.Delete(c.Request.Context(), post.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// listDrafts lists the caller's draft posts
func (r *Router) listDrafts(c *gin.Context) {
	drafts, err := r.posts.DraftsByAuthor(c.Request.Context(), currentUsername(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drafts": drafts})
}

type draftActionRequest struct {
	Action string `json:"action"`
	PostID string `json:"post_id"`
}

// draftAction publishes or deletes one of the caller's drafts
func (r *Router) draftAction(c *gin.Context) {
	var req draftActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.PostID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "post_id is required"})
		return
	}

	post, err := r.posts.GetByID(c.Request.Context(), req.PostID)
	if err != nil {
		respondError(c, err)
		return
	}
	if post == nil || post.Author != currentUsername(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return
	}
	if !post.IsDraft() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "post is not a draft"})
		return
	}

	switch req.Action {
	case "publish":
		if err := r.posts.Publish(c.Request.Context(), req.PostID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "published", "postId": req.PostID})
	case "delete":
		if err := r.posts.Delete(c.Request.Context(), req.PostID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "deleted", "postId": req.PostID})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action"})
	}
}

// ownedPost loads the :id post and verifies the caller authored it.
// Writes the error response itself when that fails.
func (r *Router) ownedPost(c *gin.Context) (*models.Post, bool) {
	post, err := r.posts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if post == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
		return nil, false
	}
	if post.Author != currentUsername(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the author"})
		return nil, false
	}
	return post, true
}
