// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova-telemetry/nova/internal/truth"
)

func newEngine(t *testing.T) (*Engine, *truth.Store) {
	t.Helper()
	store, err := truth.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store), store
}

func TestReplay_DeliversAllEventsThenCompletes(t *testing.T) {
	eng, store := newEngine(t)
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()

	for i := 0; i < 5; i++ {
		_, _, err := store.Append(ctx, truth.Event{
			ScopeID:            "s",
			Lane:               truth.LaneParsed,
			Identity:           truth.Identity{SystemID: "a", ContainerID: "b", UniqueID: "c"},
			EventID:            string(rune('a' + i)),
			CanonicalTruthTime: base.Add(time.Duration(i) * 100 * time.Millisecond),
		})
		require.NoError(t, err)
	}

	stop := base.Add(time.Second)
	chunks, err := eng.StartStream(ctx, StartStreamRequest{
		ClientConnID:      "conn1",
		PlaybackRequestID: "p1",
		ScopeID:           "s",
		Lanes:             truth.NewLaneSet(truth.LaneParsed),
		Mode:              ModeReplay,
		Rate:              0, // as fast as possible
		StartTime:         base,
		StopTime:          &stop,
	})
	require.NoError(t, err)

	var total int
	var sawComplete bool
	timeout := time.After(3 * time.Second)
	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				require.True(t, sawComplete)
				require.Equal(t, 5, total)
				return
			}
			total += len(c.Events)
			if c.Complete {
				sawComplete = true
			}
			require.Equal(t, "p1", c.PlaybackRequestID)
		case <-timeout:
			t.Fatalf("timed out, total=%d", total)
		}
	}
}

func TestReplay_RejectsInvertedWindow(t *testing.T) {
	eng, _ := newEngine(t)
	stop := time.Unix(0, 0)
	_, err := eng.StartStream(context.Background(), StartStreamRequest{
		ClientConnID: "conn1",
		Mode:         ModeReplay,
		StartTime:    time.Unix(10, 0),
		StopTime:     &stop,
	})
	require.Error(t, err)
}

func TestCancelStream_StopsProducingChunks(t *testing.T) {
	eng, store := newEngine(t)
	ctx := context.Background()

	chunks, err := eng.StartStream(ctx, StartStreamRequest{
		ClientConnID:      "conn1",
		PlaybackRequestID: "p1",
		ScopeID:           "s",
		Lanes:             truth.NewLaneSet(truth.LaneRaw),
		Mode:              ModeLive,
	})
	require.NoError(t, err)

	eng.CancelStream("conn1")

	select {
	case _, ok := <-chunks:
		require.False(t, ok, "channel should close promptly on cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("cancel did not close the chunk channel in time")
	}

	// A late append must not resurrect the cancelled session.
	_, _, err = store.Append(ctx, truth.Event{
		ScopeID:  "s",
		Lane:     truth.LaneRaw,
		Identity: truth.Identity{SystemID: "a", ContainerID: "b", UniqueID: "c"},
		EventID:  "late",
	})
	require.NoError(t, err)
}

func TestStartStream_SupersedesPriorSession(t *testing.T) {
	eng, _ := newEngine(t)
	ctx := context.Background()

	first, err := eng.StartStream(ctx, StartStreamRequest{
		ClientConnID:      "conn1",
		PlaybackRequestID: "p1",
		ScopeID:           "s",
		Lanes:             truth.NewLaneSet(truth.LaneRaw),
		Mode:              ModeLive,
	})
	require.NoError(t, err)

	_, err = eng.StartStream(ctx, StartStreamRequest{
		ClientConnID:      "conn1",
		PlaybackRequestID: "p2",
		ScopeID:           "s",
		Lanes:             truth.NewLaneSet(truth.LaneRaw),
		Mode:              ModeLive,
	})
	require.NoError(t, err)

	select {
	case _, ok := <-first:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("superseded session was not cancelled")
	}
}
