// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ipc models the bidirectional request/response channel between the
// Core and Server Edge processes as two typed queues, per spec §4.4.
//
// Grounded on the teacher's internal/v3/bus.Bus abstraction (Publish /
// Subscribe over an in-memory channel), generalized from an untyped
// publish/subscribe topic bus into a typed, two-queue request/response
// transport with the same backpressure posture (bounded channel, newest
// send wins on overflow is avoided here in favor of blocking sends, since
// IPC requests must not be silently dropped the way bus broadcast fan-out
// may be).
package ipc

import (
	"context"
	"time"

	"github.com/nova-telemetry/nova/internal/truth"
)

// RequestKind enumerates the Server->Core request types of the §4.4 table.
type RequestKind string

const (
	KindQuery           RequestKind = "query"
	KindStartStream     RequestKind = "startStream"
	KindCancelStream    RequestKind = "cancelStream"
	KindSetPlaybackRate RequestKind = "setPlaybackRate"
	KindSubmitCommand   RequestKind = "submitCommand"
	KindIngestMetadata  RequestKind = "ingestMetadata"
	KindExport          RequestKind = "export"
	KindStreamRaw       RequestKind = "streamRaw"
	KindCancelStreamRaw RequestKind = "cancelStreamRaw"
)

// ResponseKind enumerates the Core->Server response/push types.
type ResponseKind string

const (
	KindQueryResponse   ResponseKind = "queryResponse"
	KindStreamStarted   ResponseKind = "streamStarted"
	KindStreamChunk     ResponseKind = "streamChunk"
	KindCommandResponse ResponseKind = "commandResponse"
	KindIngestAck       ResponseKind = "ingestAck"
	KindExportResponse  ResponseKind = "exportResponse"
	KindErrorResponse   ResponseKind = "error"
)

// QueryParams serves the "query" request.
type QueryParams struct {
	ScopeID   string
	Lanes     truth.LaneSet
	Filters   truth.Filters
	StartTime time.Time
	StopTime  time.Time
	Timebase  string
}

// StartStreamParams serves "startStream" (both LIVE and REPLAY).
type StartStreamParams struct {
	PlaybackRequestID string
	ScopeID           string
	Lanes             truth.LaneSet
	Filters           truth.Filters
	Mode              string // "live" | "replay"
	Timebase          string
	Rate              float64
	StartTime         time.Time
	StopTime          *time.Time
	Backpressure      string
}

// CancelStreamParams serves "cancelStream".
type CancelStreamParams struct{}

// SetRateParams serves "setPlaybackRate".
type SetRateParams struct {
	Rate float64
}

// SubmitCommandParams serves "submitCommand".
type SubmitCommandParams struct {
	Identity     truth.Identity
	ScopeID      string
	CommandType  string
	Payload      []byte
	TimelineMode string // "live" | "replay"
	RequestID    string
}

// IngestMetadataParams serves "ingestMetadata".
type IngestMetadataParams struct {
	Identity    truth.Identity
	ScopeID     string
	MessageType string
	Payload     []byte
}

// ExportParams serves "export".
type ExportParams struct {
	ScopeID   string
	Filters   truth.Filters
	StartTime time.Time
	StopTime  time.Time
	Timebase  string
}

// StreamRawParams serves "streamRaw" (feeds the Output Stream Manager).
type StreamRawParams struct {
	ScopeID         string
	Filters         truth.Filters
	Lane            truth.Lane
	BoundInstanceID string
}

// CancelStreamRawParams serves "cancelStreamRaw".
type CancelStreamRawParams struct{}

// Request is one Server->Core message. Exactly one of the Kind-matching
// fields is populated.
type Request struct {
	RequestID    string
	ClientConnID string
	Kind         RequestKind

	Query           *QueryParams
	StartStream     *StartStreamParams
	CancelStream    *CancelStreamParams
	SetRate         *SetRateParams
	SubmitCommand   *SubmitCommandParams
	IngestMetadata  *IngestMetadataParams
	Export          *ExportParams
	StreamRaw       *StreamRawParams
	CancelStreamRaw *CancelStreamRawParams
}

// QueryResponse carries a materialized result set for a bounded "query".
type QueryResponse struct {
	Events []truth.Event
}

// StreamStartedAck acknowledges a "startStream" request.
type StreamStartedAck struct {
	PlaybackRequestID string
}

// StreamChunkPayload is routed by ClientConnID, not RequestID, per §4.4.
type StreamChunkPayload struct {
	PlaybackRequestID string
	Events            []truth.Event
	Complete          bool
}

// CommandResponsePayload acknowledges "submitCommand".
type CommandResponsePayload struct {
	EventID   string
	RequestID string
	Idempotent bool
}

// IngestAckPayload acknowledges "ingestMetadata".
type IngestAckPayload struct {
	EventID string
}

// ExportResponsePayload acknowledges "export".
type ExportResponsePayload struct {
	ExportID    string
	DownloadURL string
}

// ErrorPayload carries a typed-kind error back to the Server Edge.
type ErrorPayload struct {
	Kind    string
	Message string
}

// Response is one Core->Server message.
type Response struct {
	RequestID    string
	ClientConnID string
	Kind         ResponseKind

	QueryResponse   *QueryResponse
	StreamStarted   *StreamStartedAck
	StreamChunk     *StreamChunkPayload
	CommandResponse *CommandResponsePayload
	IngestAck       *IngestAckPayload
	ExportResponse  *ExportResponsePayload
	Error           *ErrorPayload
}

// Channel is the bidirectional Core<->Server transport: two independently
// buffered queues, one per direction.
type Channel struct {
	requests  chan Request
	responses chan Response
}

// NewChannel constructs a Channel with the given per-direction queue depth.
func NewChannel(depth int) *Channel {
	return &Channel{
		requests:  make(chan Request, depth),
		responses: make(chan Response, depth),
	}
}

// SendRequest enqueues req for the Core to consume. Blocks if the request
// queue is full, applying natural backpressure to the Server Edge.
func (c *Channel) SendRequest(ctx context.Context, req Request) error {
	select {
	case c.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Requests returns the channel the Core reads requests from.
func (c *Channel) Requests() <-chan Request { return c.requests }

// SendResponse enqueues resp for the Server Edge to consume.
func (c *Channel) SendResponse(ctx context.Context, resp Response) error {
	select {
	case c.responses <- resp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Responses returns the channel the Server Edge reads responses from.
func (c *Channel) Responses() <-chan Response { return c.responses }
