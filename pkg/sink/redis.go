package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gravito-framework/helioscope-go/internal/redis"
	"github.com/gravito-framework/helioscope-go/pkg/types"
)

// DefaultMaxRecords caps the per-node record list.
const DefaultMaxRecords = 10000

// RedisSink appends records as JSON to a capped, expiring per-node list.
type RedisSink struct {
	client     *redis.Client
	key        string
	maxRecords int64
	ttl        time.Duration
}

// RedisOption configures a RedisSink.
type RedisOption func(*RedisSink)

// WithMaxRecords sets how many records the list keeps. n <= 0 keeps all.
func WithMaxRecords(n int64) RedisOption {
	return func(s *RedisSink) {
		s.maxRecords = n
	}
}

// WithTTL sets the list expiry, refreshed on every write.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisSink) {
		s.ttl = ttl
	}
}

// NewRedisSink writes to the record list of nodeID. The caller owns client.
func NewRedisSink(client *redis.Client, nodeID string, opts ...RedisOption) *RedisSink {
	s := &RedisSink{
		client:     client,
		key:        redis.RecordsKey(nodeID),
		maxRecords: DefaultMaxRecords,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the list key records are appended to.
func (s *RedisSink) Key() string { return s.key }

func (s *RedisSink) Emit(ctx context.Context, rec types.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return s.client.AppendCapped(ctx, s.key, s.maxRecords, s.ttl, payload)
}

// Ensure RedisSink implements Sink
var _ Sink = (*RedisSink)(nil)
