package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gitscribe/gitscribe/internal/cache"
	"github.com/gitscribe/gitscribe/internal/models"
)

// commitListLimit caps how many commits the browse endpoint returns
const commitListLimit = 30

const repoListTTL = 5 * time.Minute

const commitListTTL = time.Minute

// commitCacheKey scopes cached commit listings to the caller, so one
// user's view of a private repository is never served to another.
// Anonymous requests share the server-token view under an empty
// username.
func commitCacheKey(username, owner, repo, since, until string) string {
	return "commits:" + cache.HashKey(username, owner, repo, since, until)
}

// listCommits returns recent commits for a repository, optionally
// bounded by a time window. Uses the session token when present, the
// server-wide fallback otherwise.
func (r *Router) listCommits(c *gin.Context) {
	owner := c.Query("owner")
	repo := c.Query("repo")
	if owner == "" || repo == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner and repo are required"})
		return
	}

	since, err := parseTimeParam(c.Query("since"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
		return
	}
	until, err := parseTimeParam(c.Query("until"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "until must be RFC3339"})
		return
	}

	ctx := c.Request.Context()
	key := commitCacheKey(currentUsername(c), owner, repo, c.Query("since"), c.Query("until"))

	if cached, err := r.cache.Get(ctx, key); err == nil && cached != "" {
		var commits []models.CommitInfo
		if err := json.Unmarshal([]byte(cached), &commits); err == nil {
			c.JSON(http.StatusOK, gin.H{"commits": commits})
			return
		}
	}

	commits, err := r.github.ListCommits(ctx, currentToken(c), owner, repo, since, until, commitListLimit)
	if err != nil {
		respondError(c, err)
		return
	}

	if payload, err := json.Marshal(commits); err == nil {
		if err := r.cache.Set(ctx, key, payload, commitListTTL); err != nil && err != cache.ErrCacheDisabled {
			r.logger.Warn("Failed to cache commit list", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"commits": commits})
}

// listUserRepos returns the signed-in user's repositories, cached
// briefly so repeated form loads do not hammer the host API
func (r *Router) listUserRepos(c *gin.Context) {
	ctx := c.Request.Context()
	key := "repos:" + currentUsername(c)

	if cached, err := r.cache.Get(ctx, key); err == nil && cached != "" {
		var repos []models.Repo
		if err := json.Unmarshal([]byte(cached), &repos); err == nil {
			c.JSON(http.StatusOK, gin.H{"repos": repos})
			return
		}
	}

	repos, err := r.github.ListUserRepos(ctx, currentToken(c))
	if err != nil {
		respondError(c, err)
		return
	}

	if payload, err := json.Marshal(repos); err == nil {
		if err := r.cache.Set(ctx, key, payload, repoListTTL); err != nil && err != cache.ErrCacheDisabled {
			r.logger.Warn("Failed to cache repo list", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"repos": repos})
}
