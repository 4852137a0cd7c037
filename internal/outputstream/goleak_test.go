// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package outputstream

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nova-telemetry/nova/internal/playback"
	"github.com/nova-telemetry/nova/internal/truth"
)

// TestRunningSession_Feed_NoGoroutineLeak guards the feed loop and every
// client drain goroutine it fans out to: cancelling the feed context and
// removing the client must leave nothing running behind.
func TestRunningSession_Feed_NoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sess := newRunningSession(Definition{Backpressure: playback.BackpressureCatchUp, OutputFormat: FormatPayloadOnly}, func() {})
	var buf recordingWriter
	removeClient := sess.addClient("c1", &buf)

	chunks := make(chan playback.Chunk, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sess.feed(ctx, chunks)
		close(done)
	}()

	chunks <- playback.Chunk{Events: []truth.Event{{Payload: []byte(`{"x":1}`)}}}
	cancel()
	<-done
	removeClient()

	time.Sleep(10 * time.Millisecond)
}
