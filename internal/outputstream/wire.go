// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package outputstream

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/nova-telemetry/nova/internal/truth"
)

// hierarchyLine is the wire shape for hierarchyPerMessage: identity, truth
// time and payload, one JSON object per line (spec §6).
type hierarchyLine struct {
	SystemID    string          `json:"s"`
	ContainerID string          `json:"c"`
	UniqueID    string          `json:"u"`
	Time        time.Time       `json:"t"`
	Payload     json.RawMessage `json:"p,omitempty"`
}

// encode formats ev per format, terminated by a newline for line-delimited
// protocols (TCP/WebSocket text frames). raw+payloadOnly is the one case
// that must NOT be reframed: exact original bytes, no length prefix, no
// trailing newline.
func encode(ev truth.Event, lane truth.Lane, format OutputFormat) []byte {
	if lane == truth.LaneRaw && format == FormatPayloadOnly {
		return ev.Bytes
	}

	if format == FormatHierarchyPerMessage {
		line := hierarchyLine{
			SystemID:    ev.Identity.SystemID,
			ContainerID: ev.Identity.ContainerID,
			UniqueID:    ev.Identity.UniqueID,
			Time:        ev.CanonicalTruthTime,
			Payload:     payloadBytes(ev),
		}
		data, err := json.Marshal(line)
		if err != nil {
			return nil
		}
		return append(data, '\n')
	}

	// payloadOnly, non-raw lane: JSON payload, one per line.
	data := payloadBytes(ev)
	if len(data) == 0 {
		return nil
	}
	return append(bytes.TrimRight(data, "\n"), '\n')
}

func payloadBytes(ev truth.Event) json.RawMessage {
	if len(ev.Payload) > 0 {
		return ev.Payload
	}
	if len(ev.Bytes) > 0 {
		encoded, err := json.Marshal(string(ev.Bytes))
		if err != nil {
			return nil
		}
		return encoded
	}
	return nil
}
