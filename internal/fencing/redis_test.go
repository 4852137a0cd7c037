// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fencing

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, &RedisCache{client: client, ttl: time.Minute}
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	_, cache := setupMiniRedis(t)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "conn-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Set(ctx, "conn-1", "pbreq-1"))

	got, ok, err := cache.Get(ctx, "conn-1")
	require.NoError(t, err)
	require.True(t, ok)
	if diff := cmp.Diff("pbreq-1", got); diff != "" {
		t.Fatalf("active playback mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, cache.Delete(ctx, "conn-1"))
	_, ok, err = cache.Get(ctx, "conn-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_SetOverwritesPriorValue(t *testing.T) {
	_, cache := setupMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "conn-1", "pbreq-1"))
	require.NoError(t, cache.Set(ctx, "conn-1", "pbreq-2"))

	got, ok, err := cache.Get(ctx, "conn-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "pbreq-2", got)
}
