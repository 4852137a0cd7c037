// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package outputstream

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/nova-telemetry/nova/internal/log"
	"github.com/nova-telemetry/nova/internal/metrics"
	"github.com/nova-telemetry/nova/internal/playback"
)

// clientFrameRate and clientFrameBurst bound how fast one client's drain
// goroutine is allowed to push frames onto its transport, smoothing a burst
// of buffered frames (e.g. after a CatchUp coalesce) instead of slamming the
// TCP/UDP socket all at once.
const (
	clientFrameRate  rate.Limit = 2000
	clientFrameBurst            = clientQueueDepth
)

// atomicCounter is a monotonically increasing event counter shared between
// the feed loop and the throughput logger.
type atomicCounter struct{ v atomic.Uint64 }

func (c *atomicCounter) add(n uint64) { c.v.Add(n) }
func (c *atomicCounter) load() uint64 { return c.v.Load() }

// clientQueueDepth bounds how many formatted frames a slow client may lag
// behind before the session's backpressure policy kicks in.
const clientQueueDepth = 64

// client is one connected consumer of a running stream's fan-out.
type client struct {
	id      string
	queue   chan []byte
	writer  io.Writer
	done    chan struct{}
	limiter *rate.Limiter
}

// runningSession is the ephemeral runtime state of a started stream
// definition: a feed loop pulling chunks from the Playback Engine, formatting
// each event once, and fanning the frame out to every connected client.
type runningSession struct {
	def    Definition
	cancel context.CancelFunc

	mu           sync.Mutex
	clients      map[string]*client
	boundConnID  string
	eventCount   atomicCounter
}

func newRunningSession(def Definition, cancel context.CancelFunc) *runningSession {
	return &runningSession{def: def, cancel: cancel, clients: map[string]*client{}}
}

// addClient registers w as a new fan-out consumer, starting its drain
// goroutine. Returns a function that removes the client.
func (s *runningSession) addClient(id string, w io.Writer) func() {
	c := &client{
		id:      id,
		queue:   make(chan []byte, clientQueueDepth),
		writer:  w,
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(clientFrameRate, clientFrameBurst),
	}

	s.mu.Lock()
	s.clients[id] = c
	s.mu.Unlock()
	metrics.OutputStreamClients.WithLabelValues(s.def.StreamID, string(s.def.Protocol)).Inc()

	go func() {
		for frame := range c.queue {
			if err := c.limiter.Wait(context.Background()); err != nil {
				return
			}
			if _, err := c.writer.Write(frame); err != nil {
				s.removeClient(id)
				return
			}
		}
	}()

	return func() { s.removeClient(id) }
}

func (s *runningSession) removeClient(id string) {
	s.mu.Lock()
	c, ok := s.clients[id]
	if ok {
		delete(s.clients, id)
	}
	s.mu.Unlock()
	if ok {
		close(c.queue)
		close(c.done)
		metrics.OutputStreamClients.WithLabelValues(s.def.StreamID, string(s.def.Protocol)).Dec()
	}
}

func (s *runningSession) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// broadcast formats once and fans the frame out to every connected client,
// applying the definition's backpressure policy per client independently.
func (s *runningSession) broadcast(frame []byte) {
	if len(frame) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.clients {
		select {
		case c.queue <- frame:
		default:
			switch s.def.Backpressure {
			case playback.BackpressureDisconnect:
				delete(s.clients, id)
				close(c.queue)
				metrics.OutputStreamClients.WithLabelValues(s.def.StreamID, string(s.def.Protocol)).Dec()
				metrics.OutputStreamDrops.WithLabelValues(s.def.StreamID, string(s.def.Protocol), "disconnect").Inc()
			default: // catchUp: coalesce by dropping the oldest buffered frame
				select {
				case <-c.queue:
					metrics.OutputStreamDrops.WithLabelValues(s.def.StreamID, string(s.def.Protocol), "coalesce").Inc()
				default:
				}
				select {
				case c.queue <- frame:
				default:
				}
			}
		}
	}
}

// feed drains chunks from src, formats every event per the definition's
// outputFormat, and broadcasts the resulting frames. Returns when src
// closes or ctx is cancelled.
func (s *runningSession) feed(ctx context.Context, src <-chan playback.Chunk) {
	for {
		select {
		case chunk, ok := <-src:
			if !ok {
				return
			}
			for _, ev := range chunk.Events {
				s.broadcast(encode(ev, s.def.Lane, s.def.OutputFormat))
				s.eventCount.add(1)
			}
		case <-ctx.Done():
			return
		}
	}
}

// logThroughput periodically logs events/sec for this stream until ctx is
// cancelled, per spec §4.6 "throughput is logged periodically".
func (s *runningSession) logThroughput(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var last uint64
	for {
		select {
		case <-ticker.C:
			total := s.eventCount.load()
			log.WithComponent("outputstream").Info().
				Str("streamId", s.def.StreamID).
				Uint64("eventsPerInterval", total-last).
				Int("clients", s.clientCount()).
				Msg("stream throughput")
			last = total
		case <-ctx.Done():
			return
		}
	}
}
