// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playback implements the unified LIVE/REPLAY streaming engine that
// serves queries and tails with rate control and cancellation, and is the
// source of cursor for bound Output Stream Manager feeds.
package playback

import (
	"time"

	"github.com/nova-telemetry/nova/internal/truth"
)

// Mode selects LIVE tailing or REPLAY over a bounded window.
type Mode string

const (
	ModeLive   Mode = "live"
	ModeReplay Mode = "replay"
)

// Timebase selects which time field REPLAY pacing and range bounds are
// expressed in. NOVA orders strictly by canonicalTruthTime; timebase only
// affects how callers express start/stop, not ordering.
type Timebase string

const (
	TimebaseSource    Timebase = "source"
	TimebaseCanonical Timebase = "canonical"
)

// Backpressure is the overflow policy for a client whose consumption falls
// behind the produced stream.
type Backpressure string

const (
	BackpressureCatchUp    Backpressure = "catchUp"
	BackpressureDisconnect Backpressure = "disconnect"
)

// ChunkSize and ChunkDeadline bound how many events accumulate into one
// wire chunk before it is flushed.
const (
	ChunkSize     = 200
	ChunkDeadline = 10 * time.Millisecond
)

// StartStreamRequest is the full parameter set for (re)starting a client's
// playback session.
type StartStreamRequest struct {
	ClientConnID      string
	PlaybackRequestID string
	ScopeID           string
	Lanes             truth.LaneSet
	Filters           truth.Filters

	Mode     Mode
	Timebase Timebase
	Rate     float64 // REPLAY only; 0 means "as fast as possible"

	StartTime time.Time
	StopTime  *time.Time // REPLAY only

	Backpressure Backpressure
}

// Chunk is a batch of events tagged with the playbackRequestId that
// produced them, per the Server Edge fencing contract.
type Chunk struct {
	PlaybackRequestID string
	Events            []truth.Event
	Complete          bool // true on the terminal chunk of a REPLAY range
}
