package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gitscribe/gitscribe/pkg/telemetry"
)

// cronAutoPost runs the auto-post sweep. The route is guarded by the
// configured cron secret, not by a user session: external schedulers
// call it with `Authorization: Bearer <secret>`.
func (r *Router) cronAutoPost(c *gin.Context) {
	if r.cronSecret == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cron secret not configured"})
		return
	}

	header := c.GetHeader("Authorization")
	presented := strings.TrimPrefix(header, "Bearer ")
	if header == presented || subtle.ConstantTimeCompare([]byte(presented), []byte(r.cronSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
		return
	}

	ctx, span := telemetry.StartSpan(c.Request.Context(), "api.cron_auto_post")
	defer span.End()

	results, err := r.sweeper.RunSweep(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "auto-post sweep finished",
		"processed": len(results),
		"results":   results,
	})
}
