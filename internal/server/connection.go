// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"context"
	"sync"

	"github.com/nova-telemetry/nova/internal/auth"
	"github.com/nova-telemetry/nova/internal/fencing"
	"github.com/nova-telemetry/nova/internal/log"
)

// connection holds one WebSocket client's server-side state: identity,
// fencing, and the outbound send queue the write pump drains.
//
// activePlaybackID implements the Server Edge fencing contract (spec §6):
// a startStream request replaces it, and any streamChunk whose
// playbackRequestId doesn't match the current value is dropped rather than
// forwarded, so a cancelled or superseded stream can't deliver stale data
// after a client moves on. The local field is authoritative and is what
// admits() checks; fenceCache mirrors it so a multi-replica Server Edge can
// answer "what is conn X playing" from any replica, not just the one
// holding the socket.
type connection struct {
	id        string
	principal *auth.Principal

	mu               sync.Mutex
	activePlaybackID string

	fenceCache fencing.Cache

	send chan serverMessage
	done chan struct{}
}

func newConnection(id string, principal *auth.Principal, fenceCache fencing.Cache) *connection {
	return &connection{
		id:         id,
		principal:  principal,
		fenceCache: fenceCache,
		send:       make(chan serverMessage, 64),
		done:       make(chan struct{}),
	}
}

// setActivePlayback records a newly started playback request as the one
// whose chunks this connection should forward.
func (c *connection) setActivePlayback(playbackRequestID string) {
	c.mu.Lock()
	c.activePlaybackID = playbackRequestID
	c.mu.Unlock()

	if c.fenceCache != nil {
		if err := c.fenceCache.Set(context.Background(), c.id, playbackRequestID); err != nil {
			log.WithComponent("server").Warn().Err(err).Str("connId", c.id).Msg("fencing cache set failed")
		}
	}
}

// admits reports whether a chunk tagged playbackRequestID should still be
// forwarded to the client.
func (c *connection) admits(playbackRequestID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activePlaybackID != "" && c.activePlaybackID == playbackRequestID
}

func (c *connection) hasScope(scope string) bool {
	for _, s := range c.principal.Scopes {
		if s == scope || s == "ALL" {
			return true
		}
	}
	return false
}

// Scopes implements presentation.ScopeSet.
func (c *connection) Scopes() []string { return c.principal.Scopes }

// enqueue pushes msg to the client's outbound queue, dropping it if the
// connection is already closing rather than blocking the caller.
func (c *connection) enqueue(msg serverMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	}
}

func (c *connection) close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	if c.fenceCache != nil {
		if err := c.fenceCache.Delete(context.Background(), c.id); err != nil {
			log.WithComponent("server").Warn().Err(err).Str("connId", c.id).Msg("fencing cache delete failed")
		}
	}
}

// registry tracks every live connection, keyed by connId, so presentation
// updates and chat messages can be broadcast to all of them.
type registry struct {
	mu   sync.RWMutex
	byID map[string]*connection
}

func newRegistry() *registry { return &registry{byID: map[string]*connection{}} }

func (r *registry) add(c *connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[c.id] = c
}

func (r *registry) remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, connID)
}

func (r *registry) get(connID string) (*connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[connID]
	return c, ok
}

func (r *registry) broadcast(msg serverMessage) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byID {
		c.enqueue(msg)
	}
}
