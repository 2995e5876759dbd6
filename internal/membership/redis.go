// Package membership caches user-to-group lookups in front of the store.
package membership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"acl-go/internal/acl"
)

// RedisCache is a read-through cache of group memberships. Entries expire
// after the TTL; Invalidate drops a user's entry immediately after their
// memberships change.
type RedisCache struct {
	client *redis.Client
	next   acl.MembershipResolver
	prefix string
	ttl    time.Duration
	logger acl.Logger
}

// NewRedisCache connects to redisURL and wraps next.
func NewRedisCache(redisURL string, next acl.MembershipResolver, ttl time.Duration, logger acl.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisCacheWithClient(client, next, ttl, logger), nil
}

// NewRedisCacheWithClient wraps an existing client.
func NewRedisCacheWithClient(client *redis.Client, next acl.MembershipResolver, ttl time.Duration, logger acl.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		next:   next,
		prefix: "acl:groups:",
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisCache) key(userID string) string {
	return c.prefix + userID
}

// GroupsForUser serves from Redis when possible. A Redis failure is logged
// and the lookup falls through to the store, so the cache never makes
// resolution fail.
func (c *RedisCache) GroupsForUser(ctx context.Context, userID string) ([]string, error) {
	data, err := c.client.Get(ctx, c.key(userID)).Bytes()
	switch {
	case err == nil:
		var groups []string
		if err := json.Unmarshal(data, &groups); err == nil {
			return groups, nil
		}
		c.logger.Warn("discarding corrupt membership cache entry", "user", userID)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("membership cache read failed", "user", userID, "error", err)
	}

	groups, err := c.next.GroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if groups == nil {
		groups = []string{}
	}

	encoded, err := json.Marshal(groups)
	if err != nil {
		return nil, fmt.Errorf("marshal groups: %w", err)
	}
	if err := c.client.Set(ctx, c.key(userID), encoded, c.ttl).Err(); err != nil {
		c.logger.Warn("membership cache write failed", "user", userID, "error", err)
	}
	return groups, nil
}

// Invalidate removes a user's cached memberships.
func (c *RedisCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("invalidate membership cache: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ acl.MembershipResolver = (*RedisCache)(nil)
