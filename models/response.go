package models

// ReviewsResponse is the response for GET /api/reviews.
//
// On success only Reviews (plus bookkeeping fields) is set. On failure Error
// holds a human-readable message and Kind the error class. Partial results
// carry Reviews together with Warning and Kind.
type ReviewsResponse struct {
	Reviews   []Review     `json:"reviews"`
	SourceURL string       `json:"source_url,omitempty"`
	PageCount int          `json:"page_count,omitempty"`
	Profile   string       `json:"profile,omitempty"`
	Product   *ProductInfo `json:"product,omitempty"`

	// CacheStatus indicates whether the response was served from cache.
	// Values: "hit", "miss", or empty (caching disabled).
	CacheStatus string `json:"cache_status,omitempty"`

	Warning string `json:"warning,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    string `json:"kind,omitempty"`
}

// ErrorResponse is returned for requests that never produced a result
// (invalid input, fatal fetch failures, auth and rate-limit rejections).
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	BrowserEnabled bool `json:"browser_enabled"`
	MaxPages       int  `json:"max_pages"`
	ActivePages    int  `json:"active_pages"`
}
