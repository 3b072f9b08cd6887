// Package cache stores small binary records in Redis hashes with a TTL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const SpeechTTL = 24 * time.Hour

// ErrMiss is returned by Fetch when the record does not exist or has expired.
var ErrMiss = errors.New("cache miss")

// Record is one cached hash. Values are binary-safe.
type Record map[string][]byte

type Cache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to url (redis://...) and pings it once.
func NewRedisCache(url string, prefix string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewCache(client, prefix), nil
}

func NewCache(client *redis.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

// Key joins parts with ':' under the cache prefix.
func (c *Cache) Key(parts ...string) string {
	key := strings.Join(parts, ":")
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Put replaces the record at key and sets its expiry in one transaction.
func (c *Cache) Put(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	if len(rec) == 0 {
		return fmt.Errorf("refusing to cache empty record %s", key)
	}
	fields := make(map[string]any, len(rec))
	for k, v := range rec {
		fields[k] = v
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Fetch reads the record at key. A record missing any of the required fields
// counts as a miss.
func (c *Cache) Fetch(ctx context.Context, key string, required ...string) (Record, error) {
	values, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if len(values) == 0 {
		return nil, ErrMiss
	}
	rec := make(Record, len(values))
	for k, v := range values {
		rec[k] = []byte(v)
	}
	for _, f := range required {
		if _, ok := rec[f]; !ok {
			return nil, ErrMiss
		}
	}
	return rec, nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.client.TTL(ctx, key).Result()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
