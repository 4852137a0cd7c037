// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fencing

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "nova:fencing:"

// RedisCache is a Redis-backed Cache for Server Edge deployments running
// more than one replica behind a load balancer. Entries expire after ttl so
// a replica that crashes without clearing its connections' entries doesn't
// leave them stuck forever.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConfig holds the connection settings for a RedisCache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache dials addr and verifies the connection with a PING before
// returning, so a misconfigured endpoint fails at startup rather than on
// the first playback.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("fencing: redis connection failed: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

func (c *RedisCache) Set(ctx context.Context, connID, playbackRequestID string) error {
	return c.client.Set(ctx, keyPrefix+connID, playbackRequestID, c.ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, connID string) (string, bool, error) {
	v, err := c.client.Get(ctx, keyPrefix+connID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, connID string) error {
	return c.client.Del(ctx, keyPrefix+connID).Err()
}

// Close releases the underlying Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
