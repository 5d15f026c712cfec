package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gitscribe/gitscribe/internal/models"
)

type settingsRequest struct {
	PostingMode  *string  `json:"posting_mode"`
	AutoRepos    []string `json:"auto_repos"`
	AutoSchedule *string  `json:"auto_schedule"`
}

// getSettings returns the caller's settings, or defaults when none
// have been saved yet
func (r *Router) getSettings(c *gin.Context) {
	username := currentUsername(c)

	settings, err := r.settings.Get(c.Request.Context(), username)
	if err != nil {
		respondError(c, err)
		return
	}
	if settings == nil {
		settings = &models.UserSettings{
			GithubUsername: username,
			PostingMode:    models.PostingModeManual,
			AutoRepos:      []string{},
			AutoSchedule:   models.ScheduleDaily,
		}
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}

// updateSettings upserts the caller's settings, keyed by username
func (r *Router) updateSettings(c *gin.Context) {
	username := currentUsername(c)

	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// Start from stored values so partial updates keep the rest
	settings, err := r.settings.Get(c.Request.Context(), username)
	if err != nil {
		respondError(c, err)
		return
	}
	if settings == nil {
		settings = &models.UserSettings{
			GithubUsername: username,
			PostingMode:    models.PostingModeManual,
			AutoRepos:      []string{},
			AutoSchedule:   models.ScheduleDaily,
		}
	}

	if req.PostingMode != nil {
		if *req.PostingMode != models.PostingModeAuto && *req.PostingMode != models.PostingModeManual {
			c.JSON(http.StatusBadRequest, gin.H{"error": "posting_mode must be auto or manual"})
			return
		}
		settings.PostingMode = *req.PostingMode
	}
	if req.AutoSchedule != nil {
		if *req.AutoSchedule != models.ScheduleDaily && *req.AutoSchedule != models.ScheduleWeekly {
			c.JSON(http.StatusBadRequest, gin.H{"error": "auto_schedule must be daily or weekly"})
			return
		}
		settings.AutoSchedule = *req.AutoSchedule
	}
	if req.AutoRepos != nil {
		settings.AutoRepos = req.AutoRepos
	}

	if err := r.settings.Upsert(c.Request.Context(), settings); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": settings})
}
