// Package catalog caches the remote booking catalog (clubs, services,
// bays). The original kept clubs in module-scope globals; this is the
// explicit replacement: Redis with a TTL, refreshes deduplicated
// through singleflight, and a straight pass-through when Redis is down.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/fairwaylabs/clubhouse/internal/domain"
	"github.com/fairwaylabs/clubhouse/pkg/logger"
)

// Source is the remote catalog, normally the gymmaster client.
type Source interface {
	Clubs(ctx context.Context) ([]domain.Club, error)
	Services(ctx context.Context, clubID int64) ([]domain.Service, error)
	Bays(ctx context.Context, serviceID int64) ([]domain.Bay, error)
}

type Cache struct {
	source Source
	rdb    *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// New builds the cache. rdb may be nil; every read then goes to the
// source (still singleflight-deduplicated).
func New(source Source, rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &Cache{source: source, rdb: rdb, ttl: ttl}
}

func (c *Cache) Clubs(ctx context.Context) ([]domain.Club, error) {
	var out []domain.Club
	err := c.fetch(ctx, "catalog:clubs", &out, func() (interface{}, error) {
		return c.source.Clubs(ctx)
	})
	return out, err
}

func (c *Cache) Services(ctx context.Context, clubID int64) ([]domain.Service, error) {
	var out []domain.Service
	key := fmt.Sprintf("catalog:services:%d", clubID)
	err := c.fetch(ctx, key, &out, func() (interface{}, error) {
		return c.source.Services(ctx, clubID)
	})
	return out, err
}

func (c *Cache) Bays(ctx context.Context, serviceID int64) ([]domain.Bay, error) {
	var out []domain.Bay
	key := fmt.Sprintf("catalog:bays:%d", serviceID)
	err := c.fetch(ctx, key, &out, func() (interface{}, error) {
		return c.source.Bays(ctx, serviceID)
	})
	return out, err
}

// Invalidate drops every cached catalog entry.
func (c *Cache) Invalidate(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, "catalog:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Cache) fetch(ctx context.Context, key string, dest interface{}, load func() (interface{}, error)) error {
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, key).Result()
		if err == nil {
			if err := json.Unmarshal([]byte(raw), dest); err == nil {
				return nil
			}
			// unreadable cache entry, fall through to a refresh
		} else if err != redis.Nil {
			logger.WarnContext(ctx, "Catalog cache read failed", "error", err, "key", key)
		}
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		fresh, err := load()
		if err != nil {
			return nil, err
		}
		if c.rdb != nil {
			if payload, err := json.Marshal(fresh); err == nil {
				if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
					logger.WarnContext(ctx, "Catalog cache write failed", "error", err, "key", key)
				}
			}
		}
		return fresh, nil
	})
	if err != nil {
		return err
	}

	// round-trip through JSON to fill dest regardless of concrete type
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, dest)
}
