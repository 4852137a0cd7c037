// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics exposes the node's Prometheus instrumentation, following
// the teacher's promauto-registered package-level vars (spec §A.3).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestEventsTotal counts ingested events by lane and outcome
	// (accepted, duplicate, rejected).
	IngestEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nova_ingest_events_total",
		Help: "Total events ingested into the Truth Store by lane and outcome",
	}, []string{"lane", "outcome"})

	// TruthStoreSizeBytes reports the on-disk size of the append-only log.
	TruthStoreSizeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nova_truth_store_size_bytes",
		Help: "Current on-disk size of the Truth Store",
	})

	// PlaybackSessionsActive tracks concurrently open playback sessions by mode.
	PlaybackSessionsActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nova_playback_sessions_active",
		Help: "Number of active playback sessions by mode",
	}, []string{"mode"})

	// PlaybackChunkLatency tracks the time from chunk assembly to enqueue.
	PlaybackChunkLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nova_playback_chunk_latency_seconds",
		Help:    "Latency from chunk assembly to delivery enqueue",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	// OutputStreamClients tracks connected clients per output stream definition.
	OutputStreamClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nova_output_stream_clients",
		Help: "Connected clients per output stream definition",
	}, []string{"streamId", "transport"})

	// OutputStreamDrops counts events dropped by an output stream's transport.
	OutputStreamDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nova_output_stream_drops_total",
		Help: "Events dropped while fanning out to an output stream",
	}, []string{"streamId", "transport", "reason"})

	// DriverWritesTotal counts Driver Registry writes by driver and outcome.
	DriverWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nova_driver_writes_total",
		Help: "Total Driver Registry writes by driver and outcome",
	}, []string{"driver", "outcome"})

	// ExportDuration tracks the wall time of export pipeline runs.
	ExportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nova_export_duration_seconds",
		Help:    "Wall time of export pipeline runs",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	// CommandIdempotentReplaysTotal counts command submissions that matched
	// an already-recorded eventId (spec invariant I5).
	CommandIdempotentReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nova_command_idempotent_replays_total",
		Help: "Command submissions resolved by idempotency replay instead of a new event",
	})
)
