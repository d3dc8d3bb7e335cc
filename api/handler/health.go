package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/feeder/models"
	"github.com/use-agent/feeder/progress"
)

// Health returns a handler for GET /healthz.
//
// Status is "feeding" while any target is still running and "idle" after.
func Health(tr *progress.Tracker, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		running := tr.Running()

		status := "idle"
		if running > 0 {
			status = "feeding"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Targets: len(tr.Snapshot()),
			Running: running,
		})
	}
}
