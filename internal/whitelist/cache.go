// Package whitelist provides a TTL-cached view of the allow-entry list for
// the hot classification path.
package whitelist

import (
	"context"
	"log"
	"sync"
	"time"

	"activity-compliance-plane/backend/internal/whitelist/domain"
	"activity-compliance-plane/backend/internal/whitelist/repository"
)

// DefaultTTL bounds how stale the cached entry list may be.
const DefaultTTL = 30 * time.Second

// Cache serves the whitelist from memory, refreshing from the repository
// when the TTL expires. A failed refresh keeps serving the previous list so
// classification never blocks on the database.
type Cache struct {
	repo repository.Repository
	ttl  time.Duration

	mu        sync.Mutex
	entries   []domain.Entry
	fetchedAt time.Time
}

// NewCache returns a cache over repo with the given TTL (DefaultTTL if non-positive).
func NewCache(repo repository.Repository, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{repo: repo, ttl: ttl}
}

// Entries returns the current allow-entries, refreshing if stale.
func (c *Cache) Entries(ctx context.Context) []domain.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	// fetchedAt, not the slice, tracks freshness: an empty whitelist is a
	// valid cached state and must not send every lookup to the database.
	if !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < c.ttl {
		return c.entries
	}
	fresh, err := c.repo.List(ctx)
	if err != nil {
		log.Printf("whitelist: refresh failed, serving stale list (%d entries): %v", len(c.entries), err)
		return c.entries
	}
	c.entries = fresh
	c.fetchedAt = time.Now()
	return c.entries
}
