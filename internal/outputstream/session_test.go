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

// recordingWriter records every Write call's bytes, safe for concurrent use.
type recordingWriter struct {
	mu   sync.Mutex
	data [][]byte
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.data = append(w.data, append([]byte(nil), p...))
	return len(p), nil
}

func (w *recordingWriter) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.data)
}

// blockingWriter blocks on Write until released, to force a client's queue
// to fill up and exercise backpressure policy.
type blockingWriter struct {
	mu      sync.Mutex
	writes  [][]byte
	release chan struct{}
}

func newBlockingWriter() *blockingWriter {
	return &blockingWriter{release: make(chan struct{})}
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	<-w.release
	w.mu.Lock()
	w.writes = append(w.writes, append([]byte(nil), p...))
	w.mu.Unlock()
	return len(p), nil
}

func (w *blockingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.writes)
}

func TestRunningSession_BroadcastDeliversToAllClients(t *testing.T) {
	sess := newRunningSession(Definition{Backpressure: playback.BackpressureCatchUp}, func() {})

	var buf1, buf2 recordingWriter
	sess.addClient("c1", &buf1)
	sess.addClient("c2", &buf2)

	sess.broadcast([]byte("hello\n"))

	require.Eventually(t, func() bool { return buf1.len() > 0 && buf2.len() > 0 }, time.Second, time.Millisecond)
}

func TestRunningSession_DisconnectPolicyDropsSlowClient(t *testing.T) {
	sess := newRunningSession(Definition{Backpressure: playback.BackpressureDisconnect}, func() {})
	bw := newBlockingWriter()
	sess.addClient("slow", bw)

	for i := 0; i < clientQueueDepth+4; i++ {
		sess.broadcast([]byte("x"))
	}

	require.Eventually(t, func() bool { return sess.clientCount() == 0 }, time.Second, time.Millisecond)
}

func TestRunningSession_CatchUpPolicyCoalescesInsteadOfDropping(t *testing.T) {
	sess := newRunningSession(Definition{Backpressure: playback.BackpressureCatchUp}, func() {})
	bw := newBlockingWriter()
	sess.addClient("slow", bw)

	for i := 0; i < clientQueueDepth+4; i++ {
		sess.broadcast([]byte("x"))
	}

	require.Equal(t, 1, sess.clientCount())
	close(bw.release)
}

func TestRunningSession_FeedFormatsAndBroadcasts(t *testing.T) {
	sess := newRunningSession(Definition{Backpressure: playback.BackpressureCatchUp, OutputFormat: FormatPayloadOnly}, func() {})
	var buf recordingWriter
	sess.addClient("c1", &buf)

	chunks := make(chan playback.Chunk, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sess.feed(ctx, chunks)

	chunks <- playback.Chunk{Events: []truth.Event{{Payload: []byte(`{"x":1}`)}}}
	close(chunks)

	require.Eventually(t, func() bool { return buf.len() > 0 }, time.Second, time.Millisecond)
}
