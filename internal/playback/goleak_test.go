// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nova-telemetry/nova/internal/truth"
)

// TestEngine_CancelStream_NoGoroutineLeak guards the LIVE tail goroutine
// started by StartStream: CancelStream must unwind runLive/pump fully, not
// just close the session's out channel and leave the tail reader running.
func TestEngine_CancelStream_NoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	engine, _ := newEngine(t)
	ctx := context.Background()

	chunks, err := engine.StartStream(ctx, StartStreamRequest{
		ClientConnID: "conn-1",
		ScopeID:      "scope-leak",
		Lanes:        truth.NewLaneSet(truth.LaneRaw),
		Mode:         ModeLive,
	})
	require.NoError(t, err)

	engine.CancelStream("conn-1")

	require.Eventually(t, func() bool {
		_, ok := <-chunks
		return !ok
	}, time.Second, time.Millisecond)
}
