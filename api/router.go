package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/reviewlens/api/handler"
	"github.com/use-agent/reviewlens/api/middleware"
	"github.com/use-agent/reviewlens/cache"
	"github.com/use-agent/reviewlens/config"
	"github.com/use-agent/reviewlens/models"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → CORS
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(svc handler.Scraper, stats func() models.PoolStats, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	r.GET("/api/v1/health", handler.Health(stats, startTime))

	protected := r.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	reviews := handler.Reviews(svc, cc)
	protected.GET("/api/reviews", reviews)
	protected.GET("/api/v1/reviews", reviews)

	return r
}
