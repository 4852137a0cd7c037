// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova-telemetry/nova/internal/errs"
)

func TestRespondError_MapsKindToStatus(t *testing.T) {
	cases := []struct {
		kind errs.Kind
		want int
	}{
		{errs.NotFound, http.StatusNotFound},
		{errs.ScopeForbidden, http.StatusForbidden},
		{errs.ScopeRequired, http.StatusBadRequest},
		{errs.ReplayNotAllowed, http.StatusConflict},
		{errs.StoreUnavailable, http.StatusServiceUnavailable},
		{errs.PermissionDenied, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		respondError(rec, req, errs.New("test", tc.kind, nil))
		require.Equal(t, tc.want, rec.Code, tc.kind)
	}
}
