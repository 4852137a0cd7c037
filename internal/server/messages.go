// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package server implements the Server Edge (spec §4, §6): the WebSocket
// and HTTP boundary between clients and the Core process, owning per-
// connection state, playback fencing, and permission checks.
package server

import (
	"encoding/json"
	"time"

	"github.com/nova-telemetry/nova/internal/truth"
)

// clientMessageType enumerates the client->server WebSocket message kinds.
type clientMessageType string

const (
	msgQuery        clientMessageType = "query"
	msgStartStream  clientMessageType = "startStream"
	msgCancelStream clientMessageType = "cancelStream"
	msgCommand      clientMessageType = "command"
	msgChat         clientMessageType = "chat"
	msgExport       clientMessageType = "export"
	msgListExports  clientMessageType = "listExports"
)

// serverMessageType enumerates the server->client WebSocket message kinds.
type serverMessageType string

const (
	msgAuthResponse        serverMessageType = "authResponse"
	msgQueryResponse       serverMessageType = "queryResponse"
	msgStreamStarted       serverMessageType = "streamStarted"
	msgStreamChunk         serverMessageType = "streamChunk"
	msgStreamCanceled      serverMessageType = "streamCanceled"
	msgStreamComplete      serverMessageType = "streamComplete"
	msgCommandResponse     serverMessageType = "commandResponse"
	msgExportResponse      serverMessageType = "exportResponse"
	msgExportsListResponse serverMessageType = "exportsListResponse"
	msgChatBroadcast       serverMessageType = "chat"
	msgPresentationUpdate  serverMessageType = "presentationUpdate"
	msgError               serverMessageType = "error"
)

// clientMessage is the envelope every inbound WebSocket frame is decoded
// into; exactly the fields relevant to Type are populated.
type clientMessage struct {
	Type      clientMessageType `json:"type"`
	RequestID string            `json:"requestId,omitempty"`

	ScopeID   string        `json:"scopeId,omitempty"`
	Lanes     []truth.Lane  `json:"lanes,omitempty"`
	Filters   truth.Filters `json:"filters,omitempty"`
	StartTime *time.Time    `json:"startTime,omitempty"`
	StopTime  *time.Time    `json:"stopTime,omitempty"`

	PlaybackRequestID string  `json:"playbackRequestId,omitempty"`
	Mode              string  `json:"mode,omitempty"`
	Timebase          string  `json:"timebase,omitempty"`
	Rate              float64 `json:"rate,omitempty"`
	Backpressure      string  `json:"backpressure,omitempty"`

	Identity     truth.Identity  `json:"identity,omitempty"`
	CommandType  string          `json:"commandType,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	TimelineMode string          `json:"timelineMode,omitempty"`

	Text string `json:"text,omitempty"`
}

// serverMessage is the envelope every outbound WebSocket frame is encoded
// from.
type serverMessage struct {
	Type      serverMessageType `json:"type"`
	RequestID string            `json:"requestId,omitempty"`

	Events            []truth.Event `json:"events,omitempty"`
	PlaybackRequestID string        `json:"playbackRequestId,omitempty"`
	Complete          bool          `json:"complete,omitempty"`

	EventID    string `json:"eventId,omitempty"`
	Idempotent bool   `json:"idempotent,omitempty"`

	ExportID    string `json:"exportId,omitempty"`
	DownloadURL string `json:"downloadUrl,omitempty"`

	Exports []exportListing `json:"exports,omitempty"`

	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`

	From string `json:"from,omitempty"`
	Text string `json:"text,omitempty"`

	ScopeID  string          `json:"scopeId,omitempty"`
	UniqueID string          `json:"uniqueId,omitempty"`
	Attrs    json.RawMessage `json:"attrs,omitempty"`

	Error string `json:"error,omitempty"`
}

// exportListing is one entry of the exportsListResponse payload.
type exportListing struct {
	ExportID    string    `json:"exportId"`
	CreatedAt   time.Time `json:"createdAt"`
	DownloadURL string    `json:"downloadUrl"`
}
