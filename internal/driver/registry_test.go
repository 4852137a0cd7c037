// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package driver

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova-telemetry/nova/internal/truth"
)

func TestRegistry_SelectionPrecedence(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry()
	raw := NewRawDriver(root)
	pos := NewPositionsDriver(root)
	reg.Register(raw)
	reg.Register(pos)
	defer func() { _ = reg.FinalizeAll() }()

	ev := truth.Event{
		ScopeID:            "s",
		Lane:               truth.LaneParsed,
		MessageType:         "Position",
		Identity:            truth.Identity{SystemID: "a", ContainerID: "b", UniqueID: "c"},
		EventID:             "e1",
		CanonicalTruthTime:  time.Now(),
		Payload:             []byte(`{"lat":1.5,"lon":2.5,"altM":10,"speedMS":3,"heading":90}`),
	}
	require.Equal(t, pos, reg.Select(ev))

	unknown := truth.Event{Lane: truth.LaneParsed, MessageType: "Other"}
	require.Nil(t, reg.Select(unknown))

	rawEv := truth.Event{Lane: truth.LaneRaw}
	require.Equal(t, raw, reg.Select(rawEv))
}

func TestPositionsDriver_HeaderWrittenOnce(t *testing.T) {
	root := t.TempDir()
	d := NewPositionsDriver(root)

	ev := truth.Event{
		Lane:               truth.LaneParsed,
		MessageType:         "Position",
		Identity:            truth.Identity{SystemID: "a", ContainerID: "b", UniqueID: "c"},
		EventID:             "e1",
		CanonicalTruthTime:  time.Now(),
		Payload:             []byte(`{"lat":1,"lon":2}`),
	}
	path, err := d.Write(ev)
	require.NoError(t, err)

	ev.EventID = "e2"
	_, err = d.Write(ev)
	require.NoError(t, err)
	require.NoError(t, d.Finalize())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, 1, countOccurrences(string(data), "canonicalTruthTime"))
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
			i += len(substr) - 1
		}
	}
	return count
}
