// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fencing mirrors each connection's active playbackRequestId so a
// Server Edge deployment of more than one replica can answer "is this
// playback still the one in flight" from any replica, not just the one
// holding the WebSocket. A single-replica deployment never needs this: the
// in-process connection field in internal/server is authoritative there.
package fencing

import "context"

// Cache records the active playbackRequestId per client connection.
type Cache interface {
	// Set records playbackRequestID as the active one for connID.
	Set(ctx context.Context, connID, playbackRequestID string) error
	// Get returns the active playbackRequestId for connID, if any.
	Get(ctx context.Context, connID string) (playbackRequestID string, ok bool, err error)
	// Delete clears connID's entry, called when the connection closes.
	Delete(ctx context.Context, connID string) error
}
