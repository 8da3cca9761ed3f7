package engine

import (
	"sync"
	"time"
)

// DomainMemory remembers which engine produced a usable page for each host,
// so repeat requests (and later pagination pages) skip the race. Entries
// expire after the TTL; expired entries are dropped lazily and by Prune.
type DomainMemory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	engine    string
	expiresAt time.Time
}

// NewDomainMemory creates a DomainMemory with the given TTL.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	return &DomainMemory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the remembered engine name for a host, or "" if not found or expired.
func (dm *DomainMemory) Get(host string) string {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	e, ok := dm.entries[host]
	if !ok {
		return ""
	}
	if dm.now().After(e.expiresAt) {
		delete(dm.entries, host)
		return ""
	}
	return e.engine
}

// Set records which engine succeeded for a host. Every Set also prunes
// expired entries once the map grows past a small bound.
func (dm *DomainMemory) Set(host, engineName string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	dm.entries[host] = memoryEntry{engine: engineName, expiresAt: dm.now().Add(dm.ttl)}
	if len(dm.entries) > 1024 {
		dm.pruneLocked()
	}
}

// Delete forgets a host (e.g. after the remembered engine failed).
func (dm *DomainMemory) Delete(host string) {
	dm.mu.Lock()
	delete(dm.entries, host)
	dm.mu.Unlock()
}

// Len returns the number of tracked hosts, expired or not.
func (dm *DomainMemory) Len() int {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.entries)
}

// Prune removes expired entries.
func (dm *DomainMemory) Prune() {
	dm.mu.Lock()
	dm.pruneLocked()
	dm.mu.Unlock()
}

func (dm *DomainMemory) pruneLocked() {
	now := dm.now()
	for host, e := range dm.entries {
		if now.After(e.expiresAt) {
			delete(dm.entries, host)
		}
	}
}
