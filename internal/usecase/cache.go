package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/example/flower-lookup/internal/wiki"
)

// ErrCacheMiss is returned by RecordCache.Get when no record is stored for a label.
var ErrCacheMiss = errors.New("cache miss")

// RecordCache stores lookup records by label.
type RecordCache interface {
	Get(ctx context.Context, label string) (wiki.Record, error)
	Set(ctx context.Context, label string, record wiki.Record) error
}

// RedisCache is a RecordCache backed by go-redis. Records are stored as JSON.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache constructs a Redis-backed record cache.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// Get reads the record cached for label.
func (c *RedisCache) Get(ctx context.Context, label string) (wiki.Record, error) {
	raw, err := c.client.Get(ctx, cacheKey(label)).Result()
	if errors.Is(err, redis.Nil) {
		return wiki.Record{}, ErrCacheMiss
	}
	if err != nil {
		return wiki.Record{}, err
	}
	var record wiki.Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return wiki.Record{}, fmt.Errorf("decode cached record: %w", err)
	}
	return record, nil
}

// Set writes record for label with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, label string, record wiki.Record) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cacheKey(label), payload, c.ttl).Err()
}

func cacheKey(label string) string {
	return "lookup:" + strings.ToLower(strings.TrimSpace(label))
}
