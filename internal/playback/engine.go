// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nova-telemetry/nova/internal/errs"
	"github.com/nova-telemetry/nova/internal/log"
	"github.com/nova-telemetry/nova/internal/metrics"
	"github.com/nova-telemetry/nova/internal/telemetry"
	"github.com/nova-telemetry/nova/internal/truth"
)

var tracer = telemetry.Tracer("nova/playback")

// session tracks the state of one client connection's active playback.
type session struct {
	playbackRequestID string
	cancel            context.CancelFunc
	rateBits          atomic.Uint64 // math.Float64bits(rate)
	out               chan Chunk
	span              trace.Span
}

func (s *session) setRate(r float64) { s.rateBits.Store(math.Float64bits(r)) }
func (s *session) rate() float64     { return math.Float64frombits(s.rateBits.Load()) }

// Engine serves LIVE and REPLAY streams over the Truth Store.
type Engine struct {
	store *truth.Store

	mu       sync.Mutex
	sessions map[string]*session
}

// New constructs an Engine over store. store is an explicitly-constructed
// collaborator, not a package-level global.
func New(store *truth.Store) *Engine {
	return &Engine{store: store, sessions: make(map[string]*session)}
}

// StartStream begins a new playback session for req.ClientConnID, replacing
// (and cancelling) any prior session for that connection. The returned
// channel is closed once the session stops producing chunks; callers must
// not assume a specific PlaybackRequestID on chunks already buffered from a
// superseded session (fencing is the Server Edge's job, per spec §4.5).
func (e *Engine) StartStream(ctx context.Context, req StartStreamRequest) (<-chan Chunk, error) {
	if req.Mode == ModeReplay && req.StopTime != nil && req.StopTime.Before(req.StartTime) {
		return nil, errs.New("playback.StartStream", errs.SchemaError, fmt.Errorf("stopTime before startTime"))
	}
	if req.Backpressure == "" {
		req.Backpressure = BackpressureCatchUp
	}

	sessCtx, span := tracer.Start(ctx, "playback.session",
		trace.WithAttributes(telemetry.PlaybackAttributes(string(req.Mode), string(req.Timebase), req.ScopeID)...))

	e.mu.Lock()
	if prev, ok := e.sessions[req.ClientConnID]; ok {
		prev.cancel()
	}
	sessCtx, cancel := context.WithCancel(sessCtx)
	sess := &session{playbackRequestID: req.PlaybackRequestID, cancel: cancel, out: make(chan Chunk, 8), span: span}
	sess.setRate(req.Rate)
	e.sessions[req.ClientConnID] = sess
	e.mu.Unlock()

	metrics.PlaybackSessionsActive.WithLabelValues(string(req.Mode)).Inc()

	switch req.Mode {
	case ModeReplay:
		go e.runReplay(sessCtx, req, sess)
	default:
		go e.runLive(sessCtx, req, sess)
	}

	return sess.out, nil
}

// CancelStream stops the active session for connID, if any. Fire-and-forget
// per spec §4.3: the engine stops producing chunks within a bounded delay.
func (e *Engine) CancelStream(connID string) {
	e.mu.Lock()
	sess, ok := e.sessions[connID]
	if ok {
		delete(e.sessions, connID)
	}
	e.mu.Unlock()
	if ok {
		sess.cancel()
	}
}

// SetRate adjusts the pacing multiplier of connID's active REPLAY session.
func (e *Engine) SetRate(connID string, rate float64) {
	e.mu.Lock()
	sess := e.sessions[connID]
	e.mu.Unlock()
	if sess != nil {
		sess.setRate(rate)
	}
}

func (e *Engine) runLive(ctx context.Context, req StartStreamRequest, sess *session) {
	defer close(sess.out)
	defer sess.span.End()
	defer metrics.PlaybackSessionsActive.WithLabelValues(string(req.Mode)).Dec()

	start := truth.CursorOf(truth.Event{CanonicalTruthTime: req.StartTime})
	var fromCursor *truth.Cursor
	if !req.StartTime.IsZero() {
		fromCursor = &start
	}

	events, err := e.store.Tail(ctx, req.ScopeID, req.Lanes, req.Filters, fromCursor)
	if err != nil {
		log.WithComponent("playback").Error().Err(err).Msg("live tail failed to start")
		return
	}

	e.pump(ctx, req, sess, events, false)
}

func (e *Engine) runReplay(ctx context.Context, req StartStreamRequest, sess *session) {
	defer close(sess.out)
	defer sess.span.End()
	defer metrics.PlaybackSessionsActive.WithLabelValues(string(req.Mode)).Dec()

	stop := time.Now().UTC()
	if req.StopTime != nil {
		stop = *req.StopTime
	}

	it, err := e.store.Range(ctx, req.ScopeID, req.Lanes, req.StartTime, stop, req.Filters)
	if err != nil {
		log.WithComponent("playback").Error().Err(err).Msg("replay range failed")
		return
	}

	events := make(chan truth.Event)
	go func() {
		defer close(events)
		t0Wall := time.Now()
		var t0Truth time.Time
		first := true
		for it.Next() {
			ev := it.Event()
			if first {
				t0Truth = ev.CanonicalTruthTime
				first = false
			}

			rate := sess.rate()
			if rate > 0 {
				deadline := t0Wall.Add(time.Duration(float64(ev.CanonicalTruthTime.Sub(t0Truth)) / rate))
				wait := time.Until(deadline)
				if wait > 0 {
					timer := time.NewTimer(wait)
					select {
					case <-timer.C:
					case <-ctx.Done():
						timer.Stop()
						return
					}
				}
			}

			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	e.pump(ctx, req, sess, events, true)
}

// pump batches events into size/deadline-bounded chunks tagged with the
// session's PlaybackRequestID, emitting a terminal streamComplete chunk
// when terminal is true and the source channel closes.
func (e *Engine) pump(ctx context.Context, req StartStreamRequest, sess *session, events <-chan truth.Event, terminal bool) {
	buf := make([]truth.Event, 0, ChunkSize)
	timer := time.NewTimer(ChunkDeadline)
	defer timer.Stop()

	flush := func() {
		if len(buf) == 0 {
			return
		}
		assembledAt := time.Now()
		chunk := Chunk{PlaybackRequestID: sess.playbackRequestID, Events: buf}
		buf = make([]truth.Event, 0, ChunkSize)
		e.deliver(ctx, req, sess, chunk)
		metrics.PlaybackChunkLatency.WithLabelValues(string(req.Mode)).Observe(time.Since(assembledAt).Seconds())
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				flush()
				if terminal {
					e.deliver(ctx, req, sess, Chunk{PlaybackRequestID: sess.playbackRequestID, Complete: true})
				}
				return
			}
			buf = append(buf, ev)
			if len(buf) >= ChunkSize {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(ChunkDeadline)
			}
		case <-timer.C:
			flush()
			timer.Reset(ChunkDeadline)
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) deliver(ctx context.Context, req StartStreamRequest, sess *session, chunk Chunk) {
	switch req.Backpressure {
	case BackpressureDisconnect:
		select {
		case sess.out <- chunk:
		default:
			log.WithComponent("playback").Warn().Str("conn", req.ClientConnID).Msg("client queue full, disconnecting")
			e.CancelStream(req.ClientConnID)
		}
	default: // catchUp: block briefly, coalescing naturally via the buffered channel
		select {
		case sess.out <- chunk:
		case <-ctx.Done():
		}
	}
}
