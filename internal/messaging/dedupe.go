package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultDedupeTTL is how long a message id is remembered
const DefaultDedupeTTL = 24 * time.Hour

// RedisDeduper records message ids with SETNX
type RedisDeduper struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper storing keys under prefix
func NewRedisDeduper(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	return &RedisDeduper{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (d *RedisDeduper) key(messageID string) string {
	return fmt.Sprintf("%sintake:%s", d.prefix, messageID)
}

// FirstSeen implements Deduper
func (d *RedisDeduper) FirstSeen(ctx context.Context, messageID string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, d.key(messageID), time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx failed: %w", err)
	}
	return ok, nil
}

// Forget implements Deduper
func (d *RedisDeduper) Forget(ctx context.Context, messageID string) error {
	if err := d.rdb.Del(ctx, d.key(messageID)).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}
