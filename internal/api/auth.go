package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gitscribe/gitscribe/internal/cache"
)

// Context keys set by the auth middleware
const (
	ctxUsername = "auth.username"
	ctxToken    = "auth.token"
)

const sessionTTL = time.Hour

// sessionToken extracts the caller's GitHub token from the
// Authorization header. Both "token <t>" and "Bearer <t>" forms are
// accepted.
func sessionToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	for _, prefix := range []string{"token ", "Bearer "} {
		if strings.HasPrefix(header, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(header, prefix))
		}
	}
	return ""
}

// requireAuth resolves the session token to a GitHub username and puts
// both into the request context. Requests without a valid token get 401
// and never reach the handler.
func (r *Router) requireAuth(c *gin.Context) {
	token := sessionToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	username, err := r.resolveUser(c, token)
	if err != nil {
		r.logger.Debug("Session resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	c.Set(ctxUsername, username)
	c.Set(ctxToken, token)
	c.Next()
}

// optionalAuth is requireAuth without the 401: anonymous requests
// continue with no identity in the context
func (r *Router) optionalAuth(c *gin.Context) {
	token := sessionToken(c)
	if token == "" {
		c.Next()
		return
	}
	if username, err := r.resolveUser(c, token); err == nil {
		c.Set(ctxUsername, username)
		c.Set(ctxToken, token)
	}
	c.Next()
}

// resolveUser maps a token to its GitHub username, consulting the
// cache before the GitHub API
func (r *Router) resolveUser(c *gin.Context, token string) (string, error) {
	ctx := c.Request.Context()
	key := "session:" + cache.HashKey(token)

	if username, err := r.cache.Get(ctx, key); err == nil && username != "" {
		return username, nil
	}

	username, err := r.github.GetViewer(ctx, token)
	if err != nil {
		return "", err
	}

	if err := r.cache.Set(ctx, key, username, sessionTTL); err != nil && err != cache.ErrCacheDisabled {
		r.logger.Warn("Failed to cache session", zap.Error(err))
	}
	return username, nil
}

func currentUsername(c *gin.Context) string {
	return c.GetString(ctxUsername)
}

func currentToken(c *gin.Context) string {
	return c.GetString(ctxToken)
}
