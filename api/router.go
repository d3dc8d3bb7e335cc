package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/feeder/api/handler"
	"github.com/use-agent/feeder/api/middleware"
	"github.com/use-agent/feeder/config"
	"github.com/use-agent/feeder/progress"
)

// NewRouter creates the read-only status API.
//
// Middleware chain:
//
//	Global:  Recovery → RequestLog
//	API:     RateLimit
//
// Health stays outside the rate limit so monitoring probes always work.
func NewRouter(tr *progress.Tracker, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLog())

	r.GET("/healthz", handler.Health(tr, startTime))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.RateLimit))
	v1.GET("/progress", handler.ListProgress(tr))
	v1.GET("/progress/:target", handler.GetProgress(tr))

	return r
}
