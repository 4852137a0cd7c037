// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package outputstream implements the Output Stream Manager (spec §4.6):
// long-lived mirrors of a filtered Truth Store lane over TCP, UDP, or
// WebSocket, definitions persisted separately from truth.
package outputstream

import (
	"fmt"

	"github.com/nova-telemetry/nova/internal/errs"
	"github.com/nova-telemetry/nova/internal/playback"
	"github.com/nova-telemetry/nova/internal/truth"
)

// Protocol is the transport a stream definition runs over.
type Protocol string

const (
	ProtocolTCP       Protocol = "tcp"
	ProtocolWebSocket Protocol = "websocket"
	ProtocolUDP       Protocol = "udp"
)

func (p Protocol) valid() bool {
	switch p {
	case ProtocolTCP, ProtocolWebSocket, ProtocolUDP:
		return true
	}
	return false
}

// OutputFormat selects how events are serialized onto the wire.
type OutputFormat string

const (
	FormatPayloadOnly         OutputFormat = "payloadOnly"
	FormatHierarchyPerMessage OutputFormat = "hierarchyPerMessage"
)

func (f OutputFormat) valid() bool {
	switch f {
	case FormatPayloadOnly, FormatHierarchyPerMessage:
		return true
	}
	return false
}

// Visibility controls who may see and bind a stream definition.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
)

// Definition is a persisted stream definition. Runtime sessions built from
// it are ephemeral and rebuilt on Start.
type Definition struct {
	StreamID     string               `json:"streamId"`
	Name         string               `json:"name"`
	Protocol     Protocol             `json:"protocol"`
	Endpoint     string               `json:"endpoint"` // port (tcp), host:port (udp), path segment (websocket)
	Lane         truth.Lane           `json:"lane"`
	Filters      truth.Filters        `json:"identityFilters"`
	OutputFormat OutputFormat         `json:"outputFormat"`
	Backpressure playback.Backpressure `json:"backpressure"`
	Enabled      bool                 `json:"enabled"`
	Visibility   Visibility           `json:"visibility"`
}

// Validate enforces the format/endpoint rules spec §4.6 requires before a
// definition is persisted.
func (d Definition) Validate() error {
	if d.Name == "" {
		return errs.New("outputstream.Validate", errs.SchemaError, fmt.Errorf("name is required"))
	}
	if !d.Protocol.valid() {
		return errs.New("outputstream.Validate", errs.SchemaError, fmt.Errorf("invalid protocol %q", d.Protocol))
	}
	if d.Endpoint == "" {
		return errs.New("outputstream.Validate", errs.SchemaError, fmt.Errorf("endpoint is required"))
	}
	if !d.Lane.Valid() {
		return errs.New("outputstream.Validate", errs.SchemaError, fmt.Errorf("invalid lane %q", d.Lane))
	}
	if !d.OutputFormat.valid() {
		return errs.New("outputstream.Validate", errs.SchemaError, fmt.Errorf("invalid outputFormat %q", d.OutputFormat))
	}
	if d.OutputFormat == FormatPayloadOnly && !d.Filters.ResolvesSingleIdentity() {
		return errs.New("outputstream.Validate", errs.SchemaError, fmt.Errorf("payloadOnly requires systemId, containerId and uniqueId filters"))
	}
	switch d.Backpressure {
	case playback.BackpressureCatchUp, playback.BackpressureDisconnect:
	default:
		return errs.New("outputstream.Validate", errs.SchemaError, fmt.Errorf("invalid backpressure %q", d.Backpressure))
	}
	return nil
}
