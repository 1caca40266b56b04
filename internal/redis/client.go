// Package redis provides Redis client utilities for Helioscope.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key the agent writes.
const KeyPrefix = "helioscope"

// RecordsKey returns the list key holding a node's records.
func RecordsKey(nodeID string) string {
	if nodeID == "" {
		nodeID = "unknown"
	}
	return fmt.Sprintf("%s:node:%s:records", KeyPrefix, nodeID)
}

// Client wraps go-redis client with convenience methods
type Client struct {
	*redis.Client
}

// ParseRedisURL parses a redis://, rediss:// or unix:// URL and returns options
func ParseRedisURL(rawURL string) (*redis.Options, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("empty Redis URL")
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	opts.ClientName = KeyPrefix
	return opts, nil
}

// NewClient creates a new Redis client from URL
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	client, err := NewClientLazy(redisURL)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// NewClientLazy creates a client without testing connection
func NewClientLazy(redisURL string) (*Client, error) {
	opts, err := ParseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &Client{Client: redis.NewClient(opts)}, nil
}

// AppendCapped pushes payloads onto the list at key, keeps only the newest
// maxLen entries and refreshes the expiry. All three commands share one
// round trip. maxLen <= 0 disables trimming; ttl <= 0 disables expiry.
func (c *Client) AppendCapped(ctx context.Context, key string, maxLen int64, ttl time.Duration, payloads ...[]byte) error {
	if len(payloads) == 0 {
		return nil
	}

	values := make([]interface{}, len(payloads))
	for i, p := range payloads {
		values[i] = p
	}

	pipe := c.Pipeline()
	pipe.RPush(ctx, key, values...)
	if maxLen > 0 {
		pipe.LTrim(ctx, key, -maxLen, -1)
	}
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append to %s: %w", key, err)
	}
	return nil
}

// Tail returns the newest limit entries of the list at key, oldest first.
func (c *Client) Tail(ctx context.Context, key string, limit int64) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	return c.LRange(ctx, key, -limit, -1).Result()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.Client.Close()
}
