// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package outputstream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nova-telemetry/nova/internal/playback"
	"github.com/nova-telemetry/nova/internal/truth"
)

// fakeCursorSource is a cursorSource that records every StartStream/Cancel
// call instead of running a real Playback Engine, so Bind/Unbind/Rebind can
// be tested without a Truth Store.
type fakeCursorSource struct {
	mu        sync.Mutex
	started   []playback.StartStreamRequest
	cancelled []string
}

func (f *fakeCursorSource) StartStream(ctx context.Context, req playback.StartStreamRequest) (<-chan playback.Chunk, error) {
	f.mu.Lock()
	f.started = append(f.started, req)
	f.mu.Unlock()
	ch := make(chan playback.Chunk)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (f *fakeCursorSource) CancelStream(connID string) {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, connID)
	f.mu.Unlock()
}

func (f *fakeCursorSource) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}

func (f *fakeCursorSource) lastStart() playback.StartStreamRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started[len(f.started)-1]
}

// newRunningManager wires a Manager with one already-running session for
// streamID, bypassing Start's real network listener.
func newRunningManager(t *testing.T, streamID string) (*Manager, *fakeCursorSource) {
	t.Helper()
	defs := openTestDefs(t)
	fake := &fakeCursorSource{}
	m := NewManager(defs, fake)

	def := sampleDef("feed-bind", "9100")
	def.StreamID = streamID
	m.sessions[streamID] = newRunningSession(def, func() {})
	return m, fake
}

func TestBind_SetsBoundConnIDAndStartsFeedFromCursor(t *testing.T) {
	m, fake := newRunningManager(t, "s1")
	from := truth.Cursor{Time: time.Unix(100, 0).UTC(), EventID: "e1"}

	require.NoError(t, m.Bind(context.Background(), "s1", "conn-a", from))

	m.mu.Lock()
	sess := m.sessions["s1"]
	m.mu.Unlock()
	sess.mu.Lock()
	bound := sess.boundConnID
	sess.mu.Unlock()
	require.Equal(t, "conn-a", bound)

	require.Equal(t, 1, fake.startCount())
	require.Equal(t, from.Time, fake.lastStart().StartTime)
}

func TestUnbind_ClearsBoundConnIDAndRestartsLiveFeed(t *testing.T) {
	m, fake := newRunningManager(t, "s1")
	require.NoError(t, m.Bind(context.Background(), "s1", "conn-a", truth.Cursor{Time: time.Unix(100, 0).UTC()}))

	require.NoError(t, m.Unbind(context.Background(), "s1"))

	m.mu.Lock()
	sess := m.sessions["s1"]
	m.mu.Unlock()
	sess.mu.Lock()
	bound := sess.boundConnID
	sess.mu.Unlock()
	require.Empty(t, bound)
	require.Equal(t, 2, fake.startCount())
	require.True(t, fake.lastStart().StartTime.IsZero(), "unbind must revert to LIVE-follow from now, not a pinned cursor")
}

func TestStreamsBoundTo_ReturnsOnlyMatchingStreams(t *testing.T) {
	m, _ := newRunningManager(t, "s1")
	m.sessions["s2"] = newRunningSession(sampleDef("feed-other", "9101"), func() {})

	require.NoError(t, m.Bind(context.Background(), "s1", "conn-a", truth.Cursor{}))
	require.NoError(t, m.Bind(context.Background(), "s2", "conn-b", truth.Cursor{}))

	require.Equal(t, []string{"s1"}, m.StreamsBoundTo("conn-a"))
	require.Equal(t, []string{"s2"}, m.StreamsBoundTo("conn-b"))
}

func TestUnbindConnection_RevertsEveryStreamBoundToThatConn(t *testing.T) {
	m, _ := newRunningManager(t, "s1")
	m.sessions["s2"] = newRunningSession(sampleDef("feed-other", "9101"), func() {})
	require.NoError(t, m.Bind(context.Background(), "s1", "conn-a", truth.Cursor{}))
	require.NoError(t, m.Bind(context.Background(), "s2", "conn-a", truth.Cursor{}))

	m.UnbindConnection(context.Background(), "conn-a")

	require.Empty(t, m.StreamsBoundTo("conn-a"))
}

func TestRebind_RestartsBoundStreamFromNewCursor(t *testing.T) {
	m, fake := newRunningManager(t, "s1")
	require.NoError(t, m.Bind(context.Background(), "s1", "conn-a", truth.Cursor{Time: time.Unix(100, 0).UTC()}))

	newCursor := truth.Cursor{Time: time.Unix(200, 0).UTC()}
	m.Rebind(context.Background(), "conn-a", newCursor)

	require.Equal(t, 2, fake.startCount())
	require.Equal(t, newCursor.Time, fake.lastStart().StartTime)
}

func TestRebind_NoOpWhenConnectionHasNoBoundStreams(t *testing.T) {
	m, fake := newRunningManager(t, "s1")
	m.Rebind(context.Background(), "conn-with-no-binding", truth.Cursor{Time: time.Unix(200, 0).UTC()})
	require.Equal(t, 0, fake.startCount())
}
