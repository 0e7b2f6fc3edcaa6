package ranking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/waitroomxyz/api/internal/app/domain/waitlist"
	"github.com/waitroomxyz/api/internal/logging"
)

const cacheKeyPrefix = "waitroom:ranked:"

// Cache keeps ranked entry lists in Redis keyed by project. A nil *Cache is
// valid and caches nothing, so callers never branch on whether Redis is
// configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    *logging.Logger
}

// NewCache connects to Redis at addr. The connection is verified lazily;
// cache misses caused by an unreachable server degrade to recomputation.
func NewCache(addr, password string, ttl time.Duration, log *logging.Logger) *Cache {
	if log == nil {
		log = logging.NewDefault("ranking-cache")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &Cache{client: client, ttl: ttl, log: log}
}

// Get returns the cached ranked list for projectID, if present.
func (c *Cache) Get(ctx context.Context, projectID string) ([]waitlist.Entry, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKeyPrefix+projectID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).WithField("project_id", projectID).Debug("cache read failed")
		}
		return nil, false
	}
	var entries []waitlist.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		c.log.WithError(err).WithField("project_id", projectID).Warn("dropping corrupt cache entry")
		c.client.Del(ctx, cacheKeyPrefix+projectID)
		return nil, false
	}
	return entries, true
}

// Put stores the ranked list for projectID.
func (c *Cache) Put(ctx context.Context, projectID string, entries []waitlist.Entry) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+projectID, raw, c.ttl).Err(); err != nil {
		c.log.WithError(err).WithField("project_id", projectID).Debug("cache write failed")
	}
}

// Invalidate removes the cached list for projectID. Called after any write
// that can change scores or positions.
func (c *Cache) Invalidate(ctx context.Context, projectID string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKeyPrefix+projectID).Err(); err != nil {
		c.log.WithError(err).WithField("project_id", projectID).Debug("cache invalidate failed")
	}
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
