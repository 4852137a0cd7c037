// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package truth

// Filters narrows a range/tail query. All set fields are ANDed together.
type Filters struct {
	SystemID    string `json:"systemId,omitempty"`
	ContainerID string `json:"containerId,omitempty"`
	UniqueID    string `json:"uniqueId,omitempty"`
	MessageType string `json:"messageType,omitempty"`
}

// Match reports whether ev satisfies all set filter fields.
func (f Filters) Match(ev Event) bool {
	if f.SystemID != "" && ev.Identity.SystemID != f.SystemID {
		return false
	}
	if f.ContainerID != "" && ev.Identity.ContainerID != f.ContainerID {
		return false
	}
	if f.UniqueID != "" && ev.Identity.UniqueID != f.UniqueID {
		return false
	}
	if f.MessageType != "" && ev.MessageType != f.MessageType {
		return false
	}
	return true
}

// ResolvesSingleIdentity reports whether all three identity filters are set,
// i.e. the filter narrows to exactly one entity. Used by the Output Stream
// Manager to validate payloadOnly stream definitions.
func (f Filters) ResolvesSingleIdentity() bool {
	return f.SystemID != "" && f.ContainerID != "" && f.UniqueID != ""
}

// LaneSet is a small set of lanes selected for a query.
type LaneSet map[Lane]struct{}

// NewLaneSet builds a LaneSet from a slice. Lanes are not validated.
func NewLaneSet(lanes ...Lane) LaneSet {
	s := make(LaneSet, len(lanes))
	for _, l := range lanes {
		s[l] = struct{}{}
	}
	return s
}

func (s LaneSet) Has(l Lane) bool {
	_, ok := s[l]
	return ok
}

func (s LaneSet) Slice() []Lane {
	out := make([]Lane, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	return out
}
