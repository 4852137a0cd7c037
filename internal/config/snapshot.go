// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

// Snapshot is an immutable, epoch-stamped view of AppConfig, the same shape
// as the teacher's config.Snapshot: every successful reload swaps in a new
// one rather than mutating fields in place.
type Snapshot struct {
	Epoch uint64
	App   AppConfig
}
