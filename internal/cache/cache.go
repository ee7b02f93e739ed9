// Package cache is a small JSON cache over Redis. A disabled cache misses
// every read and drops every write, so callers never branch on it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const defaultOperationTimeout = 3 * time.Second

// ErrMiss is returned by Get when the key is absent or the cache is disabled.
var ErrMiss = errors.New("cache miss")

// Options configures the Redis connection.
type Options struct {
	Enabled bool
	Addr    string
	TTL     time.Duration
	// Prefix namespaces every key.
	Prefix string
}

type Cache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
	prefix  string
	logger  zerolog.Logger
}

// New connects to Redis and pings it. With Enabled false it returns a
// disabled cache without dialing.
func New(ctx context.Context, opts Options, logger zerolog.Logger) (*Cache, error) {
	c := &Cache{
		ttl:    opts.TTL,
		prefix: opts.Prefix,
		logger: logger.With().Str("component", "cache").Logger(),
	}
	if !opts.Enabled {
		c.logger.Debug().Msg("cache disabled")
		return c, nil
	}
	if opts.Addr == "" {
		return nil, errors.New("cache enabled without an address")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}

	c.client = client
	c.enabled = true
	c.logger.Info().Str("addr", opts.Addr).Dur("ttl", opts.TTL).Msg("cache connected")
	return c, nil
}

// Enabled reports whether reads can hit.
func (c *Cache) Enabled() bool {
	return c.enabled
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

// Get decodes the value stored at key into dst.
func (c *Cache) Get(ctx context.Context, key string, dst any) error {
	if !c.enabled {
		return ErrMiss
	}
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// Set stores v as JSON under key with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, v any) error {
	if !c.enabled {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()
	return c.client.Set(ctx, c.key(key), data, c.ttl).Err()
}

// Delete removes keys matching the glob pattern.
func (c *Cache) Delete(ctx context.Context, pattern string) error {
	if !c.enabled {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	iter := c.client.Scan(ctx, 0, c.key(pattern), 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Ping checks the connection. A disabled cache is always healthy.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if !c.enabled {
		return nil
	}
	return c.client.Close()
}
