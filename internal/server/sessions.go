// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"github.com/google/uuid"

	"github.com/nova-telemetry/nova/internal/errs"
)

var (
	errUnauthenticated = errs.New("server.auth", errs.PermissionDenied, nil)
	errForbidden       = errs.New("server.auth", errs.ScopeForbidden, nil)
	errBadRequest      = errs.New("server.auth", errs.SchemaError, nil)
)

// issueSession mints an opaque session token and remembers which username
// it belongs to. Tokens live only in memory: a restart invalidates every
// session, same as the teacher's single-token session exchange.
func (s *Server) issueSession(username string) string {
	token, err := uuid.NewV7()
	if err != nil {
		token = uuid.New()
	}
	v := token.String()
	s.sessionsMu.Lock()
	s.sessions[v] = username
	s.sessionsMu.Unlock()
	return v
}

func (s *Server) sessionUsername(token string) (string, bool) {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	u, ok := s.sessions[token]
	return u, ok
}

func (s *Server) revokeSession(token string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, token)
}
