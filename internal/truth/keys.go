// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package truth

import (
	"encoding/binary"
	"errors"
	"time"
)

var errInvalidCursor = errors.New("truth: invalid cursor encoding")

const (
	prefixEvent    = "e\x00"
	prefixDedupe   = "d\x00"
	prefixLaneHead = "h\x00"
	prefixScopeHead = "s\x00"
)

// timeKey renders t as a lexicographically-sortable 8-byte big-endian
// representation of its Unix nanoseconds, matching numeric ordering.
func timeKey(t time.Time) []byte {
	buf := make([]byte, 8)
	// Unix nanoseconds fits in an int64 and stays positive for any date this
	// system cares about; encode as unsigned so ordering is monotonic.
	binary.BigEndian.PutUint64(buf, uint64(t.UnixNano()))
	return buf
}

func timeFromKey(b []byte) time.Time {
	ns := int64(binary.BigEndian.Uint64(b))
	return time.Unix(0, ns).UTC()
}

// eventKey builds the primary storage key for ev, assuming CanonicalTruthTime
// and EventID are already final.
func eventKey(scope string, lane Lane, t time.Time, eventID string) []byte {
	key := make([]byte, 0, len(prefixEvent)+len(scope)+1+len(lane)+1+8+1+len(eventID))
	key = append(key, prefixEvent...)
	key = append(key, scope...)
	key = append(key, 0)
	key = append(key, lane...)
	key = append(key, 0)
	key = append(key, timeKey(t)...)
	key = append(key, 0)
	key = append(key, eventID...)
	return key
}

// eventRangePrefix builds the shared prefix for all events of (scope, lane).
func eventRangePrefix(scope string, lane Lane) []byte {
	key := make([]byte, 0, len(prefixEvent)+len(scope)+1+len(lane)+1)
	key = append(key, prefixEvent...)
	key = append(key, scope...)
	key = append(key, 0)
	key = append(key, lane...)
	key = append(key, 0)
	return key
}

func dedupeKey(scope, eventID string) []byte {
	key := make([]byte, 0, len(prefixDedupe)+len(scope)+1+len(eventID))
	key = append(key, prefixDedupe...)
	key = append(key, scope...)
	key = append(key, 0)
	key = append(key, eventID...)
	return key
}

func laneHeadKey(scope string, lane Lane) []byte {
	key := make([]byte, 0, len(prefixLaneHead)+len(scope)+1+len(lane))
	key = append(key, prefixLaneHead...)
	key = append(key, scope...)
	key = append(key, 0)
	key = append(key, lane...)
	return key
}

func scopeHeadKey(scope string) []byte {
	return append([]byte(prefixScopeHead), scope...)
}

func encodeCursorValue(c Cursor) []byte {
	buf := make([]byte, 0, 8+1+len(c.EventID))
	buf = append(buf, timeKey(c.Time)...)
	buf = append(buf, 0)
	buf = append(buf, c.EventID...)
	return buf
}

func decodeCursorValue(b []byte) Cursor {
	if len(b) < 9 {
		return Zero
	}
	t := timeFromKey(b[:8])
	return Cursor{Time: t, EventID: string(b[9:])}
}
