package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const entitlementTTL = 24 * time.Hour

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetCatalogCache retrieves a cached catalog payload. A miss is (nil, false, nil).
func (c *Client) GetCatalogCache(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.rdb.Get(ctx, "catalog:"+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// SetCatalogCache stores a catalog payload with a TTL
func (c *Client) SetCatalogCache(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, "catalog:"+key, data, ttl).Err()
}

// InvalidateCatalogCache drops all cached catalog payloads after an admin mutation
func (c *Client) InvalidateCatalogCache(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = "catalog:" + k
	}
	return c.rdb.Del(ctx, prefixed...).Err()
}

// AddEntitlement adds a course to the cached entitlement set for an account.
// The cache is advisory; the database join table stays the source of truth.
func (c *Client) AddEntitlement(ctx context.Context, accountID, courseID string) error {
	key := fmt.Sprintf("entitlements:%s", accountID)

	pipe := c.rdb.Pipeline()
	pipe.SAdd(ctx, key, courseID)
	pipe.Expire(ctx, key, entitlementTTL)

	_, err := pipe.Exec(ctx)
	return err
}

// WarmEntitlements replaces the cached entitlement set for an account
func (c *Client) WarmEntitlements(ctx context.Context, accountID string, courseIDs []string) error {
	key := fmt.Sprintf("entitlements:%s", accountID)

	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, key)
	if len(courseIDs) > 0 {
		members := make([]interface{}, len(courseIDs))
		for i, id := range courseIDs {
			members[i] = id
		}
		pipe.SAdd(ctx, key, members...)
		pipe.Expire(ctx, key, entitlementTTL)
	}

	_, err := pipe.Exec(ctx)
	return err
}

// IsEntitled checks the cached entitlement set. Only a positive answer is
// trustworthy; callers fall back to the database on a negative.
func (c *Client) IsEntitled(ctx context.Context, accountID, courseID string) (bool, error) {
	key := fmt.Sprintf("entitlements:%s", accountID)
	return c.rdb.SIsMember(ctx, key, courseID).Result()
}

// MarkSessionSeen marks a provider session id as delivered. Returns true
// for first sight, false for a duplicate. Advisory only: the unique key on
// purchases is what actually enforces idempotency.
func (c *Client) MarkSessionSeen(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("webhook:seen:%s", sessionID), "1", ttl).Result()
}
