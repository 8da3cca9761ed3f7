package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/reviewlens/models"
)

// Version is reported by the health endpoint.
var Version = "0.1.0"

// Health returns a handler for GET /api/v1/health. stats may be nil when
// the service runs without a browser.
//
// Status is "degraded" when the browser is unavailable or more than 80% of
// its pages are busy.
func Health(stats func() models.PoolStats, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ps models.PoolStats
		if stats != nil {
			ps = stats()
		}

		status := "healthy"
		if !ps.BrowserEnabled || (ps.MaxPages > 0 && ps.ActivePages > int(float64(ps.MaxPages)*0.8)) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: ps,
			Version:   Version,
		})
	}
}
