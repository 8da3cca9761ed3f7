package fetcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// HostLimiter throttles fetches per upstream host with a token bucket and
// caps how many fetches to one host may be in flight. It is shared by every
// request in the process.
type HostLimiter struct {
	mu            sync.Mutex
	hosts         map[string]*hostEntry
	rps           rate.Limit
	burst         int
	maxConcurrent int
	idleTTL       time.Duration
	now           func() time.Time
}

type hostEntry struct {
	limiter  *rate.Limiter
	sem      chan struct{}
	lastSeen time.Time
}

// NewHostLimiter creates a limiter allowing rps requests per second (with
// burst) and at most maxConcurrent in-flight fetches per host.
func NewHostLimiter(rps float64, burst, maxConcurrent int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &HostLimiter{
		hosts:         make(map[string]*hostEntry),
		rps:           limit,
		burst:         burst,
		maxConcurrent: maxConcurrent,
		idleTTL:       10 * time.Minute,
		now:           time.Now,
	}
}

// Acquire blocks until a fetch to host may start. The returned release
// func must be called exactly once when the fetch is done.
func (h *HostLimiter) Acquire(ctx context.Context, host string) (func(), error) {
	e := h.entry(host)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := e.limiter.Wait(ctx); err != nil {
		<-e.sem
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-e.sem })
	}, nil
}

func (h *HostLimiter) entry(host string) *hostEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	e, ok := h.hosts[host]
	if !ok {
		e = &hostEntry{
			limiter:  rate.NewLimiter(h.rps, h.burst),
			sem:      make(chan struct{}, h.maxConcurrent),
			lastSeen: now,
		}
		h.hosts[host] = e
		h.evictLocked(now)
	}
	e.lastSeen = now
	return e
}

// evictLocked drops hosts that have been idle for longer than idleTTL and
// have nothing in flight.
func (h *HostLimiter) evictLocked(now time.Time) {
	for host, e := range h.hosts {
		if now.Sub(e.lastSeen) > h.idleTTL && len(e.sem) == 0 {
			delete(h.hosts, host)
		}
	}
}

// Hosts returns the number of tracked hosts.
func (h *HostLimiter) Hosts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.hosts)
}
