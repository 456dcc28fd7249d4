// Package session implements the Redis-backed session cache. A cache entry
// is the authoritative in-memory copy of an authenticated identity and the
// system's sole definition of "logged in": deleting it logs the identity
// out even while its tokens remain cryptographically valid.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"coursehub/internal/identity"
)

var (
	// ErrNotFound is returned when no cache entry exists for the identity.
	ErrNotFound = errors.New("session not found")
	// ErrCacheUnavailable wraps Redis infrastructure failures.
	ErrCacheUnavailable = errors.New("session cache unavailable")
)

const keyPrefix = "ch:user:"

// Cache stores identity snapshots keyed by identity id. Entries carry a TTL
// bound to the refresh-token validity window, so an abandoned session
// auto-revokes instead of persisting indefinitely.
type Cache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewCache builds a Cache over an existing Redis client. ttl should equal
// the refresh-token TTL; a non-positive ttl falls back to 72 hours.
func NewCache(rdb redis.UniversalClient, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

// Put overwrites the cached snapshot unconditionally and resets its TTL.
// Last writer wins: two concurrent writes for the same identity interleave
// and the second silently replaces the first. The Snapshot type carries no
// credential material, so nothing sensitive can reach the wire here.
func (c *Cache) Put(ctx context.Context, snap identity.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("session: encode snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, key(snap.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Get loads the cached snapshot for an identity id. A missing entry means
// the identity is logged out.
func (c *Cache) Get(ctx context.Context, id string) (*identity.Snapshot, error) {
	data, err := c.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	var snap identity.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("session: decode snapshot: %w", err)
	}
	return &snap, nil
}

// Delete removes the cache entry, logging the identity out. Deleting an
// absent entry is not an error.
func (c *Cache) Delete(ctx context.Context, id string) error {
	if err := c.rdb.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
