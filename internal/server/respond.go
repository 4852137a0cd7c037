// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"encoding/json"
	"net/http"

	"github.com/nova-telemetry/nova/internal/errs"
	"github.com/nova-telemetry/nova/internal/log"
)

// apiError is the structured shape of every non-2xx HTTP response.
type apiError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusForKind(kind errs.Kind) int {
	switch kind {
	case errs.SchemaError, errs.UnknownManifest:
		return http.StatusBadRequest
	case errs.DuplicateEvent:
		return http.StatusOK
	case errs.ReplayNotAllowed:
		return http.StatusConflict
	case errs.PermissionDenied:
		return http.StatusUnauthorized
	case errs.ScopeRequired:
		return http.StatusBadRequest
	case errs.ScopeForbidden:
		return http.StatusForbidden
	case errs.EndpointConflict:
		return http.StatusConflict
	case errs.NotFound:
		return http.StatusNotFound
	case errs.Timeout:
		return http.StatusGatewayTimeout
	case errs.StoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a structured error response, deriving the HTTP status
// from the error's typed Kind where available.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	code := string(kind)
	if code == "" {
		code = "INTERNAL"
	}
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	log.FromContext(r.Context()).Error().Err(err).Str("kind", code).Msg("request failed")
	writeJSON(w, statusForKind(kind), apiError{Code: code, Message: msg, RequestID: log.RequestIDFromContext(r.Context())})
}
