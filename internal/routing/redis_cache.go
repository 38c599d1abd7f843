package routing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/tripview/internal/models"
)

// RedisCache implements GeometryCache on Redis, letting several dashboard
// instances share one pool of resolved geometry. Errors degrade to a cache
// miss; the resolver falls back to its usual sources.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	ctx    context.Context
}

func NewRedisCache(addr, password string, ttl time.Duration) *RedisCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisCache{client: c, ttl: ttl, ctx: context.Background()}
}

func (r *RedisCache) Get(signature string) ([]models.Coord, bool) {
	raw, err := r.client.Get(r.ctx, geomKey(signature)).Bytes()
	if err != nil {
		return nil, false
	}
	var geom []models.Coord
	if err := json.Unmarshal(raw, &geom); err != nil {
		return nil, false
	}
	if len(geom) < 2 {
		return nil, false
	}
	return geom, true
}

func (r *RedisCache) Set(signature string, geometry []models.Coord) {
	raw, err := json.Marshal(geometry)
	if err != nil {
		return
	}
	_ = r.client.Set(r.ctx, geomKey(signature), raw, r.ttl).Err()
}

func (r *RedisCache) Close() error { return r.client.Close() }

func geomKey(signature string) string { return "route:geom:" + signature }
