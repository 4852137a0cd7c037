// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova-telemetry/nova/internal/errs"
)

func TestUserStore_RegisterAuthenticateRoundTrip(t *testing.T) {
	s := newUserStore(t.TempDir())

	require.NoError(t, s.Register("alice", "hunter2", RoleAnalyst, "scope-a"))

	rec, err := s.Authenticate("alice", "hunter2")
	require.NoError(t, err)
	require.Equal(t, "alice", rec.Username)
	require.Equal(t, RoleAnalyst, rec.Role)

	_, err = s.Authenticate("alice", "wrong")
	require.Error(t, err)
	require.Equal(t, errs.PermissionDenied, errs.KindOf(err))
}

func TestUserStore_RegisterDuplicateFails(t *testing.T) {
	s := newUserStore(t.TempDir())
	require.NoError(t, s.Register("alice", "pw", RoleViewer, ""))

	err := s.Register("alice", "pw2", RoleViewer, "")
	require.Error(t, err)
	require.Equal(t, errs.SchemaError, errs.KindOf(err))
}

func TestUserStore_EnsureDefaultAdminOnlyOnce(t *testing.T) {
	s := newUserStore(t.TempDir())
	require.NoError(t, s.EnsureDefaultAdmin("admin", "changeme"))
	require.NoError(t, s.EnsureDefaultAdmin("admin2", "ignored"))

	_, err := s.lookup("admin")
	require.NoError(t, err)
	_, err = s.lookup("admin2")
	require.Error(t, err)
}

func TestScopesForRole(t *testing.T) {
	require.Equal(t, []string{"ALL"}, scopesForRole(RoleAdmin))
	require.Equal(t, []string{"read", "command"}, scopesForRole(RoleAnalyst))
	require.Equal(t, []string{"read"}, scopesForRole(RoleViewer))
}
