// Package cache provides a read-through Redis cache for follow sets.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sn-go/internal/sn"
)

// NewRedisClient creates a client for addr. It does not connect until first use.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// GraphCache wraps a Store and caches follower and following sets in Redis
// sorted sets, scored by position so reads keep the store's order.
//
// The store stays the source of truth. Every follow mutation writes the store
// first and then drops the affected key; Redis failures are logged and reads
// fall through to the store.
type GraphCache struct {
	sn.Store

	client *redis.Client
	ttl    time.Duration
	logger sn.Logger
}

// NewGraphCache wraps store. Entries expire after ttl.
func NewGraphCache(store sn.Store, client *redis.Client, ttl time.Duration, logger sn.Logger) *GraphCache {
	if logger == nil {
		logger = sn.NewNopLogger()
	}
	return &GraphCache{Store: store, client: client, ttl: ttl, logger: logger}
}

// Uncached returns the wrapped store, for reads that must not see stale entries.
func (c *GraphCache) Uncached() sn.Store {
	return c.Store
}

func followersKey(userID string) string { return userID + ":followers" }
func followeesKey(userID string) string { return userID + ":followees" }

func (c *GraphCache) ListFollowers(ctx context.Context, userID string) ([]string, error) {
	return c.readThrough(ctx, followersKey(userID), func() ([]string, error) {
		return c.Store.ListFollowers(ctx, userID)
	})
}

func (c *GraphCache) ListFollowing(ctx context.Context, userID string) ([]string, error) {
	return c.readThrough(ctx, followeesKey(userID), func() ([]string, error) {
		return c.Store.ListFollowing(ctx, userID)
	})
}

func (c *GraphCache) AddFollower(ctx context.Context, userID, followerID string) error {
	if err := c.Store.AddFollower(ctx, userID, followerID); err != nil {
		return err
	}
	c.invalidate(ctx, followersKey(userID))
	return nil
}

func (c *GraphCache) RemoveFollower(ctx context.Context, userID, followerID string) error {
	if err := c.Store.RemoveFollower(ctx, userID, followerID); err != nil {
		return err
	}
	c.invalidate(ctx, followersKey(userID))
	return nil
}

func (c *GraphCache) AddFollowing(ctx context.Context, userID, targetID string) error {
	if err := c.Store.AddFollowing(ctx, userID, targetID); err != nil {
		return err
	}
	c.invalidate(ctx, followeesKey(userID))
	return nil
}

func (c *GraphCache) RemoveFollowing(ctx context.Context, userID, targetID string) error {
	if err := c.Store.RemoveFollowing(ctx, userID, targetID); err != nil {
		return err
	}
	c.invalidate(ctx, followeesKey(userID))
	return nil
}

// Ping checks the store and then Redis.
func (c *GraphCache) Ping(ctx context.Context) error {
	if err := c.Store.Ping(ctx); err != nil {
		return err
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return sn.NewExternalError("cache", "ping", true, err)
	}
	return nil
}

// Close closes the Redis client and the wrapped store.
func (c *GraphCache) Close() error {
	cerr := c.client.Close()
	if err := c.Store.Close(); err != nil {
		return err
	}
	if cerr != nil {
		return fmt.Errorf("closing redis client: %w", cerr)
	}
	return nil
}

// readThrough serves key from Redis, loading and caching it on a miss.
// An empty set is never cached: a missing key and an empty set look the same.
func (c *GraphCache) readThrough(ctx context.Context, key string, load func() ([]string, error)) ([]string, error) {
	ids, err := c.client.ZRange(ctx, key, 0, -1).Result()
	if err == nil && len(ids) > 0 {
		return ids, nil
	}
	if err != nil {
		c.logger.Warn("reading follow set from redis failed", "key", key, "error", err)
	}

	ids, err = load()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		members := make([]redis.Z, len(ids))
		for i, id := range ids {
			members[i] = redis.Z{Score: float64(i), Member: id}
		}
		pipe.ZAdd(ctx, key, members...)
		if c.ttl > 0 {
			pipe.Expire(ctx, key, c.ttl)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("caching follow set in redis failed", "key", key, "error", err)
	}
	return ids, nil
}

func (c *GraphCache) invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		// The entry may now be stale until it expires.
		c.logger.Error("invalidating follow set in redis failed", "key", key, "ttl", c.ttl, "error", err)
	}
}

var _ sn.CachedStore = (*GraphCache)(nil)
