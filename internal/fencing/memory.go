// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fencing

import (
	"context"
	"sync"
)

// MemoryCache is the default single-process Cache: a plain mutex-guarded
// map, with no expiration since entries are cleared explicitly on
// disconnect rather than aged out.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryCache constructs an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]string)}
}

func (c *MemoryCache) Set(_ context.Context, connID, playbackRequestID string) error {
	c.mu.Lock()
	c.entries[connID] = playbackRequestID
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Get(_ context.Context, connID string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[connID]
	return v, ok, nil
}

func (c *MemoryCache) Delete(_ context.Context, connID string) error {
	c.mu.Lock()
	delete(c.entries, connID)
	c.mu.Unlock()
	return nil
}
