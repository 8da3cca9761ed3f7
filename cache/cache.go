// Package cache holds recently served review responses in memory, keyed by
// target URL and page cap.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/reviewlens/models"
)

type entry struct {
	response  models.ReviewsResponse
	createdAt time.Time
}

// Cache is an in-memory TTL cache of review responses. It is safe for
// concurrent use. A nil *Cache is valid and caches nothing.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// New creates a Cache. It returns nil when ttl <= 0, which disables caching.
// A background goroutine evicts expired entries until Close is called.
func New(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		return nil
	}
	if maxEntries <= 0 {
		maxEntries = 500
	}
	c := &Cache{
		store:      make(map[string]*entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// Key derives the cache key for a target URL and page cap.
func Key(targetURL string, maxPages int) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(targetURL)))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.Itoa(maxPages)))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a copy of the cached response for key if it has not expired.
func (c *Cache) Get(key string) (models.ReviewsResponse, bool) {
	if c == nil {
		return models.ReviewsResponse{}, false
	}
	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok || c.now().Sub(e.createdAt) > c.ttl {
		return models.ReviewsResponse{}, false
	}

	resp := e.response
	resp.Reviews = append([]models.Review(nil), e.response.Reviews...)
	return resp, true
}

// Set stores resp under key. At capacity an arbitrary entry is evicted.
func (c *Cache) Set(key string, resp models.ReviewsResponse) {
	if c == nil {
		return
	}
	resp.Reviews = append([]models.Review(nil), resp.Reviews...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		// Map iteration order is random.
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}
	c.store[key] = &entry{response: resp, createdAt: c.now()}
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

func (c *Cache) prune() {
	cutoff := c.now().Add(-c.ttl)
	c.mu.Lock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
	c.mu.Unlock()
}

func (c *Cache) cleanupLoop() {
	interval := c.ttl
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.prune()
		}
	}
}

// Close stops the background sweep and waits for it to exit. It is safe to
// call more than once and on a nil *Cache.
func (c *Cache) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() { close(c.done) })
	<-c.stopped
}
