// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/nova-telemetry/nova/internal/auth"
)

type ctxConnKey struct{}

func contextWithConn(ctx context.Context, c *connection) context.Context {
	return context.WithValue(ctx, ctxConnKey{}, c)
}

func connFromContext(ctx context.Context) *connection {
	c, _ := ctx.Value(ctxConnKey{}).(*connection)
	return c
}

// authMiddleware enforces session-cookie authentication, mirroring the
// teacher's bearer-token check but against a signed-in session cookie
// instead of a static API token: on every request, including the WebSocket
// upgrade, the cookie's value is looked up in the in-memory session table
// and the principal is re-derived from the stored user record.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.cfg.CookieName)
		if err != nil || cookie.Value == "" {
			respondError(w, r, errUnauthenticated)
			return
		}
		username, ok := s.sessionUsername(cookie.Value)
		if !ok {
			respondError(w, r, errUnauthenticated)
			return
		}
		rec, err := s.users.lookup(username)
		if err != nil {
			respondError(w, r, errUnauthenticated)
			return
		}
		principal := auth.NewPrincipal(cookie.Value, rec.Username, scopesForRole(rec.Role))
		conn := newConnection(principal.ID, principal, s.fenceCache)
		ctx := contextWithConn(r.Context(), conn)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireScope rejects requests whose principal lacks scope.
func (s *Server) requireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn := connFromContext(r.Context())
			if conn == nil || !conn.hasScope(scope) {
				respondError(w, r, errForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, errBadRequest)
		return
	}
	rec, err := s.users.Authenticate(req.Username, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}
	token := s.issueSession(rec.Username)
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   86400,
	})
	writeJSON(w, http.StatusOK, map[string]string{"username": rec.Username, "role": rec.Role})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(s.cfg.CookieName); err == nil {
		s.revokeSession(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name: s.cfg.CookieName, Value: "", Path: "/", HttpOnly: true, MaxAge: -1,
	})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	conn := connFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"username": conn.principal.User, "scopes": conn.principal.Scopes})
}

type registerUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	ScopeID  string `json:"scopeId"`
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, errBadRequest)
		return
	}
	if err := s.users.Register(req.Username, req.Password, req.Role, req.ScopeID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func marshalAttrs(a any) (json.RawMessage, error) { return json.Marshal(a) }
