// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package truth

import (
	"encoding/json"
	"time"
)

// Identity is the ordered triple that names a truth entity.
type Identity struct {
	SystemID    string `json:"systemId"`
	ContainerID string `json:"containerId"`
	UniqueID    string `json:"uniqueId"`
}

func (id Identity) Empty() bool {
	return id.SystemID == "" && id.ContainerID == "" && id.UniqueID == ""
}

// Event is a single row of truth. Only the fields relevant to a given lane
// are populated; the rest are left at their zero value.
type Event struct {
	ScopeID  string   `json:"scopeId"`
	Lane     Lane     `json:"lane"`
	Identity Identity `json:"identity"`
	EventID  string   `json:"eventId"`

	MessageType string `json:"messageType,omitempty"`

	// ui lane
	ViewID          string `json:"viewId,omitempty"`
	ManifestID      string `json:"manifestId,omitempty"`
	ManifestVersion int    `json:"manifestVersion,omitempty"`

	SourceTruthTime    *time.Time `json:"sourceTruthTime,omitempty"`
	CanonicalTruthTime time.Time  `json:"canonicalTruthTime"`
	EffectiveTime      *time.Time `json:"effectiveTime,omitempty"`

	Payload json.RawMessage `json:"payload,omitempty"`
	Bytes   []byte          `json:"bytes,omitempty"`

	// command lane
	RequestID string `json:"requestId,omitempty"`
}

// Cursor is an opaque, comparable position in the total order of a scope.
// It encodes (canonicalTruthTime, eventId).
type Cursor struct {
	Time    time.Time
	EventID string
}

// Zero is the cursor preceding every possible event.
var Zero = Cursor{}

// Less reports whether c sorts strictly before o under the spec's total
// order: (canonicalTruthTime, eventId), ties broken lexicographically.
func (c Cursor) Less(o Cursor) bool {
	if !c.Time.Equal(o.Time) {
		return c.Time.Before(o.Time)
	}
	return c.EventID < o.EventID
}

// CursorOf returns the ordering position of ev.
func CursorOf(ev Event) Cursor {
	return Cursor{Time: ev.CanonicalTruthTime, EventID: ev.EventID}
}

// String renders the cursor in a stable wire form: RFC3339Nano time + eventId.
func (c Cursor) String() string {
	if c.EventID == "" && c.Time.IsZero() {
		return ""
	}
	return c.Time.UTC().Format(time.RFC3339Nano) + "|" + c.EventID
}

// ParseCursor parses the String() form back into a Cursor. An empty string
// parses to the Zero cursor.
func ParseCursor(s string) (Cursor, error) {
	if s == "" {
		return Zero, nil
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '|' {
			t, err := time.Parse(time.RFC3339Nano, s[:i])
			if err != nil {
				return Cursor{}, err
			}
			return Cursor{Time: t, EventID: s[i+1:]}, nil
		}
	}
	return Cursor{}, errInvalidCursor
}
