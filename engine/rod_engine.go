package engine

import (
	"context"
	"fmt"
)

// RodFetchFunc is the callback type that wraps scraper.Render.
// It is injected by review.NewRuntime so engine does not import scraper.
type RodFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine is the browser-based engine. It delegates to the rod page pool
// owned by the scraper package via a callback.
type RodEngine struct {
	fetchFunc RodFetchFunc
}

// NewRodEngine creates a RodEngine around the injected render callback.
func NewRodEngine(fetchFunc RodFetchFunc) *RodEngine {
	return &RodEngine{fetchFunc: fetchFunc}
}

func (e *RodEngine) Name() string { return "rod" }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.fetchFunc == nil {
		return nil, fmt.Errorf("rod: fetchFunc not configured")
	}

	// Clone the request so we don't mutate the caller's copy.
	r := *req
	result, err := e.fetchFunc(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("rod: %w", err)
	}
	if result.StatusCode >= 400 {
		return nil, &StatusError{StatusCode: result.StatusCode, URL: req.URL}
	}

	result.EngineName = e.Name()
	return result, nil
}
