// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package outputstream

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nova-telemetry/nova/internal/errs"
	"github.com/nova-telemetry/nova/internal/log"
	"github.com/nova-telemetry/nova/internal/playback"
	"github.com/nova-telemetry/nova/internal/truth"
)

const throughputLogInterval = 30 * time.Second

// cursorSource resolves the starting point and live/bound feed for a
// session. The Playback Engine satisfies this; it is narrowed to an
// interface here so the manager can be tested without a live Engine.
type cursorSource interface {
	StartStream(ctx context.Context, req playback.StartStreamRequest) (<-chan playback.Chunk, error)
	CancelStream(connID string)
}

// Manager owns the lifecycle of stream definitions: validated CRUD via the
// DefinitionStore, and starting/stopping the transport-specific runtime
// session for each enabled definition.
type Manager struct {
	defs   *DefinitionStore
	engine cursorSource

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*runningSession
}

// NewManager constructs a Manager. engine provides LIVE/REPLAY chunk feeds;
// defs persists definitions.
func NewManager(defs *DefinitionStore, engine cursorSource) *Manager {
	return &Manager{
		defs:     defs,
		engine:   engine,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		sessions: map[string]*runningSession{},
	}
}

// Create validates and persists a new stream definition.
func (m *Manager) Create(def Definition) (Definition, error) { return m.defs.Create(def) }

// Get returns a persisted definition.
func (m *Manager) Get(streamID string) (Definition, error) { return m.defs.Get(streamID) }

// List returns every persisted definition.
func (m *Manager) List() ([]Definition, error) { return m.defs.List() }

// Update replaces the persisted definition's mutable fields with patch (PUT
// semantics), restarting the running session (if any) so the change takes
// effect.
func (m *Manager) Update(streamID string, patch Definition) (Definition, error) {
	updated, err := m.defs.Update(streamID, patch)
	if err != nil {
		return Definition{}, err
	}
	if m.isRunning(streamID) {
		m.Stop(streamID)
		if updated.Enabled {
			if err := m.Start(context.Background(), streamID); err != nil {
				return updated, err
			}
		}
	}
	return updated, nil
}

// Delete stops (if running) and removes a stream definition.
func (m *Manager) Delete(streamID string) error {
	m.Stop(streamID)
	return m.defs.Delete(streamID)
}

func (m *Manager) isRunning(streamID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[streamID]
	return ok
}

// Start opens the protocol-specific listener/sender for streamID. For TCP
// and WebSocket the feed loop begins as soon as the first client connects;
// for UDP it begins immediately, since UDP has no accept handshake.
func (m *Manager) Start(ctx context.Context, streamID string) error {
	def, err := m.defs.Get(streamID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if _, ok := m.sessions[streamID]; ok {
		m.mu.Unlock()
		return nil
	}
	sessCtx, cancel := context.WithCancel(ctx)
	sess := newRunningSession(def, cancel)
	m.sessions[streamID] = sess
	m.mu.Unlock()

	go sess.logThroughput(sessCtx, throughputLogInterval)

	switch def.Protocol {
	case ProtocolTCP:
		return m.startTCP(sessCtx, sess)
	case ProtocolUDP:
		return m.startUDP(sessCtx, sess)
	case ProtocolWebSocket:
		// Listener is the HTTP route; HandleWebSocket below accepts clients.
		return nil
	default:
		cancel()
		return errs.New("outputstream.Start", errs.SchemaError, fmt.Errorf("unsupported protocol %q", def.Protocol))
	}
}

// Stop cancels the session's feed loop, which closes TCP clients and the
// UDP socket and releases the TCP listener. WebSocket clients are not closed
// here; their connections stay open until the client disconnects.
func (m *Manager) Stop(streamID string) {
	m.mu.Lock()
	sess, ok := m.sessions[streamID]
	if ok {
		delete(m.sessions, streamID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	sess.cancel()
	m.engine.CancelStream(feedConnID(streamID))
}

func feedConnID(streamID string) string { return "outputstream:" + streamID }

func (m *Manager) startFeed(ctx context.Context, sess *runningSession) error {
	req := playback.StartStreamRequest{
		ClientConnID: feedConnID(sess.def.StreamID),
		Mode:         playback.ModeLive,
		Lanes:        truth.NewLaneSet(sess.def.Lane),
		Filters:      sess.def.Filters,
		Backpressure: sess.def.Backpressure,
	}
	chunks, err := m.engine.StartStream(ctx, req)
	if err != nil {
		return err
	}
	go sess.feed(ctx, chunks)
	return nil
}

func (m *Manager) startTCP(ctx context.Context, sess *runningSession) error {
	ln, err := net.Listen("tcp", ":"+sess.def.Endpoint)
	if err != nil {
		return errs.New("outputstream.startTCP", errs.StoreUnavailable, err)
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	go func() {
		feedStarted := false
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			if !feedStarted {
				if err := m.startFeed(ctx, sess); err != nil {
					log.WithComponent("outputstream").Error().Err(err).Msg("failed to start feed")
					_ = conn.Close()
					continue
				}
				feedStarted = true
			}
			remove := sess.addClient(conn.RemoteAddr().String(), conn)
			go func() {
				<-ctx.Done()
				remove()
				_ = conn.Close()
			}()
		}
	}()
	return nil
}

func (m *Manager) startUDP(ctx context.Context, sess *runningSession) error {
	addr, err := net.ResolveUDPAddr("udp", sess.def.Endpoint)
	if err != nil {
		return errs.New("outputstream.startUDP", errs.SchemaError, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return errs.New("outputstream.startUDP", errs.StoreUnavailable, err)
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	remove := sess.addClient(sess.def.Endpoint, conn)
	go func() {
		<-ctx.Done()
		remove()
	}()

	return m.startFeed(ctx, sess)
}

// wsWriter adapts a *websocket.Conn to io.Writer, sending each frame as one
// binary or text message.
type wsWriter struct {
	conn        *websocket.Conn
	messageType int
}

func (w *wsWriter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(w.messageType, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// HandleWebSocket upgrades r and registers the connection as a fan-out
// client for streamID, starting the feed loop on first connection. The
// caller (Server Edge) mounts this at the definition's endpoint path.
func (m *Manager) HandleWebSocket(w http.ResponseWriter, r *http.Request, streamID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[streamID]
	m.mu.Unlock()
	if !ok {
		return errs.New("outputstream.HandleWebSocket", errs.NotFound, fmt.Errorf("stream %s not started", streamID))
	}

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return errs.New("outputstream.HandleWebSocket", errs.StoreUnavailable, err)
	}

	messageType := websocket.TextMessage
	if sess.def.Lane == truth.LaneRaw && sess.def.OutputFormat == FormatPayloadOnly {
		messageType = websocket.BinaryMessage
	}

	ctx, cancel := context.WithCancel(r.Context())
	if sess.clientCount() == 0 {
		if err := m.startFeed(ctx, sess); err != nil {
			cancel()
			_ = conn.Close()
			return err
		}
	}

	remove := sess.addClient(conn.RemoteAddr().String(), &wsWriter{conn: conn, messageType: messageType})
	go func() {
		defer cancel()
		defer remove()
		defer conn.Close()
		// Drain and discard any client-sent frames until disconnect; this is
		// an output-only stream.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// Bind follows connID's playback instance rather than LIVE-follow;
// rebinding cancels and restarts the feed (last-binder-wins).
func (m *Manager) Bind(ctx context.Context, streamID, connID string, from truth.Cursor) error {
	m.mu.Lock()
	sess, ok := m.sessions[streamID]
	m.mu.Unlock()
	if !ok {
		return errs.New("outputstream.Bind", errs.NotFound, fmt.Errorf("stream %s not running", streamID))
	}

	sess.mu.Lock()
	sess.boundConnID = connID
	sess.mu.Unlock()

	req := playback.StartStreamRequest{
		ClientConnID: feedConnID(streamID),
		Mode:         playback.ModeLive,
		Lanes:        truth.NewLaneSet(sess.def.Lane),
		Filters:      sess.def.Filters,
		Backpressure: sess.def.Backpressure,
		StartTime:    from.Time,
	}
	chunks, err := m.engine.StartStream(ctx, req)
	if err != nil {
		return err
	}
	go sess.feed(ctx, chunks)
	return nil
}

// Unbind reverts streamID to LIVE-follow from now.
func (m *Manager) Unbind(ctx context.Context, streamID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[streamID]
	m.mu.Unlock()
	if !ok {
		return errs.New("outputstream.Unbind", errs.NotFound, fmt.Errorf("stream %s not running", streamID))
	}
	sess.mu.Lock()
	sess.boundConnID = ""
	sess.mu.Unlock()
	return m.startFeed(ctx, sess)
}

// StreamsBoundTo returns the streamIDs of every running output stream
// currently bound to connID.
func (m *Manager) StreamsBoundTo(connID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for streamID, sess := range m.sessions {
		sess.mu.Lock()
		bound := sess.boundConnID == connID
		sess.mu.Unlock()
		if bound {
			ids = append(ids, streamID)
		}
	}
	return ids
}

// UnbindConnection reverts every output stream bound to connID back to
// LIVE-follow. Called when connID disconnects (spec §5).
func (m *Manager) UnbindConnection(ctx context.Context, connID string) {
	for _, streamID := range m.StreamsBoundTo(connID) {
		if err := m.Unbind(ctx, streamID); err != nil {
			log.WithComponent("outputstream").Warn().Err(err).Str("streamId", streamID).
				Msg("failed to unbind stream on connection disconnect")
		}
	}
}

// Rebind restarts every output stream bound to connID from a new cursor.
// Called when the bound connection (re)starts its own playback, so a mirror
// stream tracks along rather than staying pinned to the timeline it was
// first bound to (spec §5, scenario 5).
func (m *Manager) Rebind(ctx context.Context, connID string, from truth.Cursor) {
	for _, streamID := range m.StreamsBoundTo(connID) {
		if err := m.Bind(ctx, streamID, connID, from); err != nil {
			log.WithComponent("outputstream").Warn().Err(err).Str("streamId", streamID).
				Msg("failed to rebind stream to new playback instance")
		}
	}
}
