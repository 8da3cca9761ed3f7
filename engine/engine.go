package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier (e.g. "http", "rod").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL          string
	Headers      map[string]string
	Timeout      time.Duration
	MaxRedirects int

	// RenderJS asks the dispatcher to start with the browser engine.
	RenderJS bool

	// WaitSelector, when set, makes the browser wait for a matching element
	// before snapshotting the DOM.
	WaitSelector string

	// Expand lists selectors of "read more" controls the browser clicks
	// before snapshotting the DOM.
	Expand []string
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string
}

// StatusError reports an upstream HTTP status >= 400. It is authoritative:
// the dispatcher does not escalate to another engine after receiving one.
type StatusError struct {
	StatusCode int
	URL        string

	// RetryAfter is the parsed Retry-After hint, 0 when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d for %s", e.StatusCode, e.URL)
}

// ParseRetryAfter interprets a Retry-After header value given either as
// delta-seconds or as an HTTP-date relative to now.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
