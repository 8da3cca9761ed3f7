package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Dispatcher coordinates engine racing with staged escalation.
// It starts the preferred engine first and lets the next engine join the
// race after escalationDelay if the first has not produced a usable page.
type Dispatcher struct {
	engines         []Engine
	escalationDelay time.Duration
	memory          *DomainMemory
}

// NewDispatcher creates a Dispatcher. engines are in default preference
// order (cheapest first); memory may be nil.
func NewDispatcher(engines []Engine, escalationDelay time.Duration, memory *DomainMemory) *Dispatcher {
	return &Dispatcher{
		engines:         engines,
		escalationDelay: escalationDelay,
		memory:          memory,
	}
}

func (d *Dispatcher) Name() string { return "dispatcher" }

// HasBrowser reports whether a browser engine is registered.
func (d *Dispatcher) HasBrowser() bool {
	for _, e := range d.engines {
		if e.Name() == "rod" {
			return true
		}
	}
	return false
}

// Fetch runs the engine race for the given request and returns the first
// usable result. An upstream status error ends the race immediately.
func (d *Dispatcher) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, fmt.Errorf("dispatcher: no engines configured")
	}
	domain := extractDomain(req.URL)

	if d.memory != nil {
		if remembered := d.memory.Get(domain); remembered != "" {
			for _, eng := range d.engines {
				if eng.Name() != remembered {
					continue
				}
				slog.DebugContext(ctx, "domain memory hit", "domain", domain, "engine", remembered)
				result, err := eng.Fetch(ctx, req)
				if err == nil {
					return result, nil
				}
				var se *StatusError
				if errors.As(err, &se) || ctx.Err() != nil {
					return nil, err
				}
				slog.InfoContext(ctx, "domain memory miss (engine failed), running full race",
					"domain", domain, "engine", remembered, "error", err)
				d.memory.Delete(domain)
				break
			}
		}
	}

	return d.race(ctx, req, domain)
}

// order returns the engines in the order they should start for req.
func (d *Dispatcher) order(req *FetchRequest) []Engine {
	ordered := make([]Engine, 0, len(d.engines))
	if req.RenderJS {
		for _, e := range d.engines {
			if e.Name() == "rod" {
				ordered = append(ordered, e)
			}
		}
	}
	for _, e := range d.engines {
		if req.RenderJS && e.Name() == "rod" {
			continue
		}
		ordered = append(ordered, e)
	}
	return ordered
}

// race runs the engines with staged delays and returns the first success.
func (d *Dispatcher) race(ctx context.Context, req *FetchRequest, domain string) (*FetchResult, error) {
	type raceResult struct {
		result *FetchResult
		err    error
	}

	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	engines := d.order(req)
	hasBrowser := d.HasBrowser()
	results := make(chan raceResult, len(engines))
	var wg sync.WaitGroup

	for i, eng := range engines {
		delay := time.Duration(i) * d.escalationDelay
		wg.Add(1)
		go func(e Engine, delay time.Duration) {
			defer wg.Done()

			if delay > 0 {
				timer := time.NewTimer(delay)
				defer timer.Stop()
				select {
				case <-raceCtx.Done():
					return
				case <-timer.C:
				}
			}
			if raceCtx.Err() != nil {
				return
			}

			slog.DebugContext(raceCtx, "engine starting", "engine", e.Name(), "url", req.URL)
			result, err := e.Fetch(raceCtx, req)
			if err != nil {
				slog.DebugContext(raceCtx, "engine failed", "engine", e.Name(), "url", req.URL, "error", err)
			}
			results <- raceResult{result: result, err: err}
		}(eng, delay)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		lastErr  error
		fallback *FetchResult
	)
	for rr := range results {
		if rr.err != nil {
			var se *StatusError
			if errors.As(rr.err, &se) {
				return nil, rr.err
			}
			lastErr = rr.err
			continue
		}
		// A static page that still looks like an empty JS shell is kept as a
		// fallback while the browser engine gets its turn.
		if rr.result.EngineName == "http" && hasBrowser && NeedsBrowser(rr.result.HTML) {
			fallback = rr.result
			continue
		}
		raceCancel()
		slog.InfoContext(ctx, "engine won race", "engine", rr.result.EngineName, "url", req.URL)
		if d.memory != nil {
			d.memory.Set(domain, rr.result.EngineName)
		}
		return rr.result, nil
	}

	if fallback != nil && ctx.Err() == nil {
		return fallback, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}

// extractDomain parses the hostname from a URL string.
func extractDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
