package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/feeder/models"
	"github.com/use-agent/feeder/progress"
)

// ListProgress returns a handler for GET /api/v1/progress.
func ListProgress(tr *progress.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.ProgressResponse{
			Success:  true,
			Progress: tr.Snapshot(),
		})
	}
}

// GetProgress returns a handler for GET /api/v1/progress/:target.
// Targets are stored lower-cased, so the lookup is case-insensitive.
func GetProgress(tr *progress.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := strings.ToLower(c.Param("target"))

		p, ok := tr.Get(target)
		if !ok {
			c.JSON(http.StatusNotFound, models.ProgressResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeNotFound,
					Message: "unknown target: " + target,
				},
			})
			return
		}

		c.JSON(http.StatusOK, models.ProgressResponse{
			Success:  true,
			Progress: []models.Progress{p},
		})
	}
}
