// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nova-telemetry/nova/internal/outputstream"
	"github.com/nova-telemetry/nova/internal/truth"
)

func (s *Server) handleListStreams(w http.ResponseWriter, r *http.Request) {
	defs, err := s.streams.List()
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleCreateStream(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	if !conn.hasScope("command") {
		respondError(w, r, errForbidden)
		return
	}
	var def outputstream.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondError(w, r, errBadRequest)
		return
	}
	created, err := s.streams.Create(def)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if created.Enabled {
		_ = s.streams.Start(context.Background(), created.StreamID)
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateStream(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	if !conn.hasScope("command") {
		respondError(w, r, errForbidden)
		return
	}
	streamID := chi.URLParam(r, "streamId")
	var def outputstream.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondError(w, r, errBadRequest)
		return
	}
	updated, err := s.streams.Update(streamID, def)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	if !conn.hasScope("command") {
		respondError(w, r, errForbidden)
		return
	}
	streamID := chi.URLParam(r, "streamId")
	if err := s.streams.Delete(streamID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bindStreamRequest struct {
	ConnID string `json:"connId"`
}

// handleBindStream ties streamId's feed to the playback instance of an
// already-connected WebSocket client (spec §4.6): the stream stops
// LIVE-following and instead mirrors whatever that connection plays,
// restarting automatically when the connection starts a new stream or
// reverting to LIVE-follow when it disconnects.
func (s *Server) handleBindStream(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	if !conn.hasScope("command") {
		respondError(w, r, errForbidden)
		return
	}
	streamID := chi.URLParam(r, "streamId")
	var req bindStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConnID == "" {
		respondError(w, r, errBadRequest)
		return
	}
	if err := s.streams.Bind(r.Context(), streamID, req.ConnID, truth.Cursor{}); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUnbindStream reverts streamId to LIVE-follow.
func (s *Server) handleUnbindStream(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	if !conn.hasScope("command") {
		respondError(w, r, errForbidden)
		return
	}
	streamID := chi.URLParam(r, "streamId")
	if err := s.streams.Unbind(r.Context(), streamID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStreamWebSocket exposes websocket-protocol output stream
// definitions as a regular HTTP route, delegating the upgrade to the
// Output Stream Manager.
func (s *Server) handleStreamWebSocket(w http.ResponseWriter, r *http.Request) {
	streamID := chi.URLParam(r, "streamId")
	if err := s.streams.HandleWebSocket(w, r, streamID); err != nil {
		respondError(w, r, err)
	}
}
