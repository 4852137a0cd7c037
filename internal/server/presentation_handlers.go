// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nova-telemetry/nova/internal/presentation"
)

func (s *Server) handleResolvePresentation(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	scopeID := chi.URLParam(r, "scopeId")
	uniqueID := chi.URLParam(r, "uniqueId")
	attrs, err := s.presentation.Resolve(conn.principal.User, scopeID, uniqueID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attrs)
}

type presentationPatchRequest struct {
	ScopeID string             `json:"scopeId"`
	Attrs   presentation.Attrs `json:"attrs"`
}

func (s *Server) handleWriteUserPresentation(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	uniqueID := chi.URLParam(r, "uniqueId")
	var req presentationPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, errBadRequest)
		return
	}
	resolved, err := s.presentation.WriteUser(conn.principal.User, conn, req.ScopeID, uniqueID, req.Attrs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

func (s *Server) handleWriteAdminPresentation(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	uniqueID := chi.URLParam(r, "uniqueId")
	var req presentationPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, errBadRequest)
		return
	}
	resolved, err := s.presentation.WriteAdminDefault(conn, req.ScopeID, uniqueID, req.Attrs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}
