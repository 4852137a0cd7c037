// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the Core and Server
// Edge.
const (
	IPCRequestKindKey = "ipc.request_kind"
	IPCClientConnKey  = "ipc.client_conn_id"
	IPCRequestIDKey   = "ipc.request_id"

	PlaybackModeKey     = "playback.mode"
	PlaybackTimebaseKey = "playback.timebase"
	PlaybackScopeKey    = "playback.scope_id"

	ExportIDKey    = "export.id"
	ExportScopeKey = "export.scope_id"

	DriverIDKey = "driver.id"
	LaneKey     = "lane"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// IPCAttributes creates span attributes for one dispatched Core request.
func IPCAttributes(kind, clientConnID, requestID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(IPCRequestKindKey, kind),
		attribute.String(IPCClientConnKey, clientConnID),
		attribute.String(IPCRequestIDKey, requestID),
	}
}

// PlaybackAttributes creates span attributes for one playback session.
func PlaybackAttributes(mode, timebase, scopeID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PlaybackModeKey, mode),
		attribute.String(PlaybackTimebaseKey, timebase),
		attribute.String(PlaybackScopeKey, scopeID),
	}
}

// ExportAttributes creates span attributes for one export run.
func ExportAttributes(exportID, scopeID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ExportIDKey, exportID),
		attribute.String(ExportScopeKey, scopeID),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
