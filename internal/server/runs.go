// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nova-telemetry/nova/internal/runstore"
	"github.com/nova-telemetry/nova/internal/truth"
)

func runNumberParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "runNumber"))
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	runs, err := s.runs.List(conn.principal.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	n, err := runNumberParam(r)
	if err != nil {
		respondError(w, r, errBadRequest)
		return
	}
	run, err := s.runs.Get(conn.principal.ID, n)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	var run runstore.Run
	if err := json.NewDecoder(r.Body).Decode(&run); err != nil {
		respondError(w, r, errBadRequest)
		return
	}
	created, err := s.runs.Create(conn.principal.ID, run, s.cfg.NodeTimebase)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateRun(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	n, err := runNumberParam(r)
	if err != nil {
		respondError(w, r, errBadRequest)
		return
	}
	var patch runstore.Run
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, r, errBadRequest)
		return
	}
	updated, err := s.runs.Update(conn.principal.ID, n, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	n, err := runNumberParam(r)
	if err != nil {
		respondError(w, r, errBadRequest)
		return
	}
	if err := s.runs.Delete(conn.principal.ID, n); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createBundleRequest struct {
	ScopeID string       `json:"scopeId"`
	Lanes   []truth.Lane `json:"lanes"`
}

func (s *Server) handleCreateBundle(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	n, err := runNumberParam(r)
	if err != nil {
		respondError(w, r, errBadRequest)
		return
	}
	var req createBundleRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	lanes := truth.NewLaneSet(req.Lanes...)
	if len(lanes) == 0 {
		lanes = truth.NewLaneSet(truth.LaneRaw, truth.LaneParsed, truth.LaneMetadata, truth.LaneUI, truth.LaneCommand)
	}
	path, err := s.runs.CreateBundle(r.Context(), conn.principal.ID, n, s.exporter, req.ScopeID, lanes)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"bundlePath": path})
}
