package routing

import (
	"sync"
	"time"

	"github.com/example/tripview/internal/models"
)

// GeometryCache stores resolved road geometry keyed by the route's point
// signature, so an unchanged itinerary never repeats an external call.
type GeometryCache interface {
	Get(signature string) ([]models.Coord, bool)
	Set(signature string, geometry []models.Coord)
}

// Cache is a tiny in-memory GeometryCache with a TTL.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	geom []models.Coord
	ts   time.Time
}

// NewCache creates a cache with the provided TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl}
}

// Get returns cached geometry and true if present and not expired.
func (c *Cache) Get(signature string) ([]models.Coord, bool) {
	c.mu.RLock()
	e, ok := c.store[signature]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, signature)
		c.mu.Unlock()
		return nil, false
	}
	return e.geom, true
}

// Set stores geometry in the cache.
func (c *Cache) Set(signature string, geometry []models.Coord) {
	c.mu.Lock()
	c.store[signature] = cacheEntry{geom: geometry, ts: time.Now()}
	c.mu.Unlock()
}
