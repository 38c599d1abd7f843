package routing

import (
	"testing"
	"time"

	"github.com/example/tripview/internal/models"
)

func TestCache_HitAndExpiry(t *testing.T) {
	c := NewCache(20 * time.Millisecond)
	geom := []models.Coord{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}}

	if _, ok := c.Get("sig"); ok {
		t.Fatalf("empty cache must miss")
	}
	c.Set("sig", geom)
	got, ok := c.Get("sig")
	if !ok || len(got) != 2 {
		t.Fatalf("expected a hit with 2 points, got ok=%v len=%d", ok, len(got))
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("sig"); ok {
		t.Fatalf("expired entry must miss")
	}
}
