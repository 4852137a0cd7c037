// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nova-telemetry/nova/internal/ipc"
	"github.com/nova-telemetry/nova/internal/truth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The session cookie is SameSite=Strict, which already blocks
	// cross-origin credentialed requests; no additional origin check needed.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades an authenticated connection and pumps messages
// in both directions until the client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer wsConn.Close()

	s.conns.add(conn)
	defer s.conns.remove(conn.id)
	defer conn.close()
	defer func() {
		_ = s.ch.SendRequest(context.Background(), ipc.Request{ClientConnID: conn.id, Kind: ipc.KindCancelStream})
	}()
	defer s.streams.UnbindConnection(context.Background(), conn.id)

	go s.writePump(wsConn, conn)
	s.readPump(r, wsConn, conn)
}

func (s *Server) writePump(wsConn *websocket.Conn, conn *connection) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-conn.send:
			if !ok {
				return
			}
			if err := wsConn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-conn.done:
			return
		}
	}
}

func (s *Server) readPump(r *http.Request, wsConn *websocket.Conn, conn *connection) {
	ctx := r.Context()
	for {
		var msg clientMessage
		if err := wsConn.ReadJSON(&msg); err != nil {
			return
		}
		s.handleClientMessage(ctx, conn, msg)
	}
}

func (s *Server) handleClientMessage(ctx context.Context, conn *connection, msg clientMessage) {
	switch msg.Type {
	case msgQuery:
		s.handleWSQuery(ctx, conn, msg)
	case msgStartStream:
		s.handleWSStartStream(ctx, conn, msg)
	case msgCancelStream:
		_ = s.ch.SendRequest(ctx, ipc.Request{ClientConnID: conn.id, Kind: ipc.KindCancelStream})
	case msgCommand:
		s.handleWSCommand(ctx, conn, msg)
	case msgChat:
		s.handleWSChat(ctx, conn, msg)
	case msgExport:
		s.handleWSExport(ctx, conn, msg)
	case msgListExports:
		listings, err := s.listExportArchives()
		if err != nil {
			conn.enqueue(serverMessage{Type: msgError, RequestID: msg.RequestID, Error: err.Error()})
			return
		}
		conn.enqueue(serverMessage{Type: msgExportsListResponse, RequestID: msg.RequestID, Exports: listings})
	default:
		conn.enqueue(serverMessage{Type: msgError, RequestID: msg.RequestID, Error: "unknown message type"})
	}
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func (s *Server) handleWSQuery(ctx context.Context, conn *connection, msg clientMessage) {
	lanes := truth.NewLaneSet(msg.Lanes...)
	var start, stop time.Time
	if msg.StartTime != nil {
		start = *msg.StartTime
	}
	if msg.StopTime != nil {
		stop = *msg.StopTime
	}
	_ = s.ch.SendRequest(ctx, ipc.Request{
		RequestID: msg.RequestID, ClientConnID: conn.id, Kind: ipc.KindQuery,
		Query: &ipc.QueryParams{ScopeID: msg.ScopeID, Lanes: lanes, Filters: msg.Filters, StartTime: start, StopTime: stop},
	})
}

func (s *Server) handleWSStartStream(ctx context.Context, conn *connection, msg clientMessage) {
	lanes := truth.NewLaneSet(msg.Lanes...)
	var start time.Time
	if msg.StartTime != nil {
		start = *msg.StartTime
	}
	_ = s.ch.SendRequest(ctx, ipc.Request{
		RequestID: msg.RequestID, ClientConnID: conn.id, Kind: ipc.KindStartStream,
		StartStream: &ipc.StartStreamParams{
			PlaybackRequestID: msg.PlaybackRequestID, ScopeID: msg.ScopeID, Lanes: lanes, Filters: msg.Filters,
			Mode: msg.Mode, Timebase: msg.Timebase, Rate: msg.Rate, StartTime: start, StopTime: msg.StopTime,
			Backpressure: msg.Backpressure,
		},
	})

	// Any output stream bound to this connection follows along rather than
	// staying pinned to the timeline it was bound at (spec §5, scenario 5).
	s.streams.Rebind(ctx, conn.id, truth.Cursor{Time: start})
}

func (s *Server) handleWSCommand(ctx context.Context, conn *connection, msg clientMessage) {
	if !conn.hasScope("command") {
		conn.enqueue(serverMessage{Type: msgError, RequestID: msg.RequestID, Error: errForbidden.Error()})
		return
	}
	requestID := msg.RequestID
	if requestID == "" {
		requestID = newRequestID()
	}
	_ = s.ch.SendRequest(ctx, ipc.Request{
		RequestID: requestID, ClientConnID: conn.id, Kind: ipc.KindSubmitCommand,
		SubmitCommand: &ipc.SubmitCommandParams{
			Identity: msg.Identity, ScopeID: msg.ScopeID, CommandType: msg.CommandType,
			Payload: msg.Payload, TimelineMode: msg.TimelineMode, RequestID: requestID,
		},
	})
}

func (s *Server) handleWSChat(ctx context.Context, conn *connection, msg clientMessage) {
	payload, _ := json.Marshal(map[string]string{"from": conn.principal.User, "text": msg.Text})
	_ = s.ch.SendRequest(ctx, ipc.Request{
		RequestID: newRequestID(), ClientConnID: conn.id, Kind: ipc.KindIngestMetadata,
		IngestMetadata: &ipc.IngestMetadataParams{
			ScopeID: msg.ScopeID, MessageType: "ChatMessage", Payload: payload,
		},
	})
	s.conns.broadcast(serverMessage{Type: msgChatBroadcast, From: conn.principal.User, Text: msg.Text})
}

func (s *Server) handleWSExport(ctx context.Context, conn *connection, msg clientMessage) {
	if !conn.hasScope("command") {
		conn.enqueue(serverMessage{Type: msgError, RequestID: msg.RequestID, Error: errForbidden.Error()})
		return
	}
	var start, stop time.Time
	if msg.StartTime != nil {
		start = *msg.StartTime
	}
	if msg.StopTime != nil {
		stop = *msg.StopTime
	}
	requestID := msg.RequestID
	if requestID == "" {
		requestID = newRequestID()
	}
	_ = s.ch.SendRequest(ctx, ipc.Request{
		RequestID: requestID, ClientConnID: conn.id, Kind: ipc.KindExport,
		Export: &ipc.ExportParams{ScopeID: msg.ScopeID, Filters: msg.Filters, StartTime: start, StopTime: stop},
	})
}
