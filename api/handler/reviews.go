package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/reviewlens/cache"
	"github.com/use-agent/reviewlens/models"
)

// Scraper runs one review extraction.
type Scraper interface {
	Scrape(ctx context.Context, req models.ScrapeRequest) *models.ScrapeResult
}

// Reviews returns a handler for GET /api/reviews and GET /api/v1/reviews.
//
// The target URL comes from the "page" query parameter; "url" is accepted
// as an alias and "page" wins when both are present. "max_pages" optionally
// lowers the pagination cap.
//
// Status mapping:
//
//	success, NO_MATCH, PARTIAL, TIMEOUT with reviews  200
//	INVALID_URL                                       400
//	NETWORK, HTTP                                     502
//	TIMEOUT before any review                         504
func Reviews(svc Scraper, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		target := strings.TrimSpace(c.Query("page"))
		if target == "" {
			target = strings.TrimSpace(c.Query("url"))
		}
		if target == "" {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: "missing 'page' query parameter: pass the product or review page URL",
				Kind:  models.ErrKindInvalidURL,
			})
			return
		}

		maxPages := 0
		if v := c.Query("max_pages"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error: "max_pages must be a positive integer",
					Kind:  models.ErrKindInvalidURL,
				})
				return
			}
			maxPages = n
		}

		key := cache.Key(target, maxPages)
		if cached, hit := cc.Get(key); hit {
			cached.CacheStatus = "hit"
			c.JSON(http.StatusOK, cached)
			return
		}

		res := svc.Scrape(c.Request.Context(), models.ScrapeRequest{TargetURL: target, MaxPages: maxPages})
		status, body := Render(res)

		if res.Error == nil && cc != nil {
			resp := body.(models.ReviewsResponse)
			cc.Set(key, resp)
			resp.CacheStatus = "miss"
			body = resp
		}

		slog.InfoContext(c.Request.Context(), "reviews request",
			"url", target, "status", status, "reviews", len(res.Reviews),
			"pages", res.PageCount, "duration", time.Since(start))
		c.JSON(status, body)
	}
}

// Render maps a scrape result to an HTTP status and response body.
func Render(res *models.ScrapeResult) (int, any) {
	resp := models.ReviewsResponse{
		Reviews:   res.Reviews,
		SourceURL: res.SourceURL,
		PageCount: res.PageCount,
		Profile:   res.Profile,
	}
	if resp.Reviews == nil {
		resp.Reviews = []models.Review{}
	}
	if res.Product != (models.ProductInfo{}) {
		product := res.Product
		resp.Product = &product
	}

	e := res.Error
	switch {
	case e == nil:
		return http.StatusOK, resp
	case res.Partial():
		resp.Warning = e.Message
		resp.Kind = e.Kind
		return http.StatusOK, resp
	case e.Kind == models.ErrKindNoMatch || e.Kind == models.ErrKindPartial:
		resp.Error = e.Message
		resp.Kind = e.Kind
		return http.StatusOK, resp
	}
	return StatusFor(e.Kind), models.ErrorResponse{Error: e.Message, Kind: e.Kind}
}

// StatusFor translates an error kind to an HTTP status code.
func StatusFor(kind string) int {
	switch kind {
	case models.ErrKindInvalidURL:
		return http.StatusBadRequest // 400
	case models.ErrKindNetwork, models.ErrKindHTTP:
		return http.StatusBadGateway // 502
	case models.ErrKindTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrKindRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrKindUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrKindNoMatch, models.ErrKindPartial:
		return http.StatusOK
	default:
		return http.StatusInternalServerError // 500
	}
}
