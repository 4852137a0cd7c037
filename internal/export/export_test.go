// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package export

import (
	"archive/zip"
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova-telemetry/nova/internal/truth"
)

func seedStore(t *testing.T) *truth.Store {
	t.Helper()
	store, err := truth.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	base := time.Unix(1_700_000_000, 0).UTC()
	for i := 0; i < 3; i++ {
		_, _, err := store.Append(context.Background(), truth.Event{
			ScopeID:            "s",
			Lane:               truth.LaneRaw,
			Identity:           truth.Identity{SystemID: "sys", ContainerID: "box", UniqueID: "dev"},
			EventID:            string(rune('a' + i)),
			CanonicalTruthTime: base.Add(time.Duration(i) * time.Second),
			Bytes:              []byte{byte(i)},
		})
		require.NoError(t, err)
	}
	return store
}

func TestPipeline_ProducesDeterministicZip(t *testing.T) {
	store := seedStore(t)
	p := New(store, t.TempDir(), t.TempDir())

	req := Request{
		ExportID:  "exp1",
		ScopeID:   "s",
		Lanes:     truth.NewLaneSet(truth.LaneRaw),
		StartTime: time.Unix(1_700_000_000, 0),
		StopTime:  time.Unix(1_700_000_010, 0),
	}

	path1, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	req.ExportID = "exp2"
	path2, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	data1, err := os.ReadFile(path1)
	require.NoError(t, err)
	data2, err := os.ReadFile(path2)
	require.NoError(t, err)
	require.Equal(t, data1, data2, "repeated exports of the same range must be byte-identical")

	r, err := zip.OpenReader(path1)
	require.NoError(t, err)
	defer r.Close()
	require.NotEmpty(t, r.File)
}

func TestPipeline_EmptyLanesDefaultsToAllLanes(t *testing.T) {
	store := seedStore(t)
	p := New(store, t.TempDir(), t.TempDir())

	req := Request{
		ExportID:  "exp-no-lanes",
		ScopeID:   "s",
		StartTime: time.Unix(1_700_000_000, 0),
		StopTime:  time.Unix(1_700_000_010, 0),
	}

	path, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	require.NotEmpty(t, r.File, "an unset Lanes must still export the raw lane's events, not produce an empty archive")
}

func TestPipeline_RejectsInvertedWindow(t *testing.T) {
	store := seedStore(t)
	p := New(store, t.TempDir(), t.TempDir())
	_, err := p.Run(context.Background(), Request{
		ExportID:  "bad",
		ScopeID:   "s",
		StartTime: time.Unix(10, 0),
		StopTime:  time.Unix(0, 0),
	})
	require.Error(t, err)
}
