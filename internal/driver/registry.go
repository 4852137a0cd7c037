// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package driver

import (
	"sync"

	"github.com/nova-telemetry/nova/internal/metrics"
	"github.com/nova-telemetry/nova/internal/truth"
)

// key identifies a driver slot: exact (lane, messageType), or lane-wide when
// MessageType is empty.
type key struct {
	lane        truth.Lane
	messageType string
}

// Registry holds drivers keyed by (lane, messageType?) and implements the
// deterministic selection precedence of spec §4.7: exact match, then
// lane-wide match, then no driver (stream-only).
//
// The registry is an explicitly-constructed collaborator, not a
// process-wide global. The export pipeline is its only user: the Core holds
// no registry, and ingest does not route events through drivers.
type Registry struct {
	mu      sync.RWMutex
	drivers map[key]Driver
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[key]Driver)}
}

// Register installs d under its declared (lane, messageType?). Registering
// over an existing slot replaces it; used at boot and in tests, not at
// runtime under load.
func (r *Registry) Register(d Driver) {
	caps := d.Capabilities()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[key{lane: caps.Lane, messageType: caps.MessageType}] = d
}

// Select returns the driver for ev per the precedence rule, or nil if no
// driver applies (event is not persisted to files).
func (r *Registry) Select(ev truth.Event) Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.drivers[key{lane: ev.Lane, messageType: ev.MessageType}]; ok {
		return d
	}
	if d, ok := r.drivers[key{lane: ev.Lane, messageType: ""}]; ok {
		return d
	}
	return nil
}

// Write routes ev through Select and writes it if a driver applies.
func (r *Registry) Write(ev truth.Event) (string, error) {
	d := r.Select(ev)
	if d == nil {
		return "", nil
	}
	path, err := d.Write(ev)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.DriverWritesTotal.WithLabelValues(d.Capabilities().DriverID, outcome).Inc()
	return path, err
}

// FinalizeAll closes every registered driver's open handles. Registrations
// that alias the same underlying Driver (e.g. two message types sharing one
// instance) are only finalized once.
func (r *Registry) FinalizeAll() error {
	r.mu.RLock()
	seen := make(map[Driver]struct{}, len(r.drivers))
	unique := make([]Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			unique = append(unique, d)
		}
	}
	r.mu.RUnlock()

	var firstErr error
	for _, d := range unique {
		if err := d.Finalize(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
