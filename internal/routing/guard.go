package routing

import (
	"sync"
	"time"
)

// Guard suppresses external directions calls for a cooldown window after
// the service answers 429. It is a single global timer, not exponential
// backoff; the browser-facing dashboards never need anything finer.
type Guard struct {
	mu       sync.Mutex
	until    time.Time
	cooldown time.Duration
}

func NewGuard(cooldown time.Duration) *Guard {
	return &Guard{cooldown: cooldown}
}

// ShouldSkip reports whether external calls are currently suppressed.
func (g *Guard) ShouldSkip(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.until.IsZero() && now.Before(g.until)
}

// RecordRateLimited starts (or restarts) the cooldown window.
func (g *Guard) RecordRateLimited(now time.Time) {
	g.mu.Lock()
	g.until = now.Add(g.cooldown)
	g.mu.Unlock()
}

// SuppressedUntil returns the current cooldown deadline, zero when none.
func (g *Guard) SuppressedUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.until
}
