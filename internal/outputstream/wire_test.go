// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package outputstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova-telemetry/nova/internal/truth"
)

func TestEncode_RawPayloadOnlyPreservesExactBytes(t *testing.T) {
	ev := truth.Event{Bytes: []byte{0x01, 0x02, 0xFF, 0x00}}
	got := encode(ev, truth.LaneRaw, FormatPayloadOnly)
	require.Equal(t, ev.Bytes, got)
}

func TestEncode_ParsedPayloadOnlyIsJSONPerLine(t *testing.T) {
	ev := truth.Event{Payload: []byte(`{"lat":1.5}`)}
	got := encode(ev, truth.LaneParsed, FormatPayloadOnly)
	require.Equal(t, "{\"lat\":1.5}\n", string(got))
}

func TestEncode_HierarchyPerMessageIncludesIdentityAndTime(t *testing.T) {
	ts := time.Unix(1_700_000_000, 0).UTC()
	ev := truth.Event{
		Identity:           truth.Identity{SystemID: "s", ContainerID: "c", UniqueID: "u"},
		CanonicalTruthTime: ts,
		Payload:            []byte(`{"x":1}`),
	}
	got := encode(ev, truth.LaneParsed, FormatHierarchyPerMessage)
	require.Contains(t, string(got), `"s":"s"`)
	require.Contains(t, string(got), `"c":"c"`)
	require.Contains(t, string(got), `"u":"u"`)
	require.Contains(t, string(got), `"p":{"x":1}`)
	require.True(t, got[len(got)-1] == '\n')
}
