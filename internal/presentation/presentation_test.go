// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package presentation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova-telemetry/nova/internal/errs"
)

type fakeScopes []string

func (f fakeScopes) Scopes() []string { return f }

func strPtr(s string) *string    { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestStore_ResolveLayersUserOverAdminOverFactory(t *testing.T) {
	s := NewStore(t.TempDir())
	s.SetFactoryDefaults(map[string]Attrs{
		"dev1": {DisplayName: strPtr("Factory Name"), Scale: floatPtr(1.0)},
	})

	_, err := s.WriteAdminDefault(fakeScopes{"s1"}, "s1", "dev1", Attrs{DisplayName: strPtr("Admin Name")})
	require.NoError(t, err)

	_, err = s.WriteUser("alice", fakeScopes{"s1"}, "s1", "dev1", Attrs{Scale: floatPtr(2.5)})
	require.NoError(t, err)

	resolved, err := s.Resolve("alice", "s1", "dev1")
	require.NoError(t, err)
	require.Equal(t, "Admin Name", *resolved.DisplayName)
	require.Equal(t, 2.5, *resolved.Scale)

	anonymous, err := s.Resolve("", "s1", "dev1")
	require.NoError(t, err)
	require.Equal(t, "Admin Name", *anonymous.DisplayName)
	require.Equal(t, 1.0, *anonymous.Scale)
}

func TestStore_WriteRoundTripsAllowedKeys(t *testing.T) {
	s := NewStore(t.TempDir())
	color := [3]int{255, 0, 128}
	_, err := s.WriteUser("bob", fakeScopes{"s1"}, "s1", "dev2", Attrs{
		DisplayName: strPtr("Bob's Drone"),
		ModelRef:    strPtr("drone.glb"),
		Color:       &color,
		Scale:       floatPtr(3.0),
	})
	require.NoError(t, err)

	got, err := s.Resolve("bob", "s1", "dev2")
	require.NoError(t, err)
	require.Equal(t, "Bob's Drone", *got.DisplayName)
	require.Equal(t, "drone.glb", *got.ModelRef)
	require.Equal(t, color, *got.Color)
	require.Equal(t, 3.0, *got.Scale)
}

func TestStore_InvalidColorAndScaleDroppedSilently(t *testing.T) {
	s := NewStore(t.TempDir())
	badColor := [3]int{300, -1, 0}
	badScale := 99.0
	resolved, err := s.WriteUser("carol", fakeScopes{"s1"}, "s1", "dev3", Attrs{
		DisplayName: strPtr("Carol's Rig"),
		Color:       &badColor,
		Scale:       &badScale,
	})
	require.NoError(t, err)
	require.Equal(t, "Carol's Rig", *resolved.DisplayName)
	require.Nil(t, resolved.Color)
	require.Nil(t, resolved.Scale)
}

func TestStore_WriteWithoutScopeRequiresUnambiguousScope(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.WriteUser("dave", fakeScopes{"s1", "s2"}, "", "dev4", Attrs{DisplayName: strPtr("x")})
	require.Error(t, err)
	require.Equal(t, errs.ScopeRequired, errs.KindOf(err))

	_, err = s.WriteUser("dave", fakeScopes{"s1"}, "", "dev4", Attrs{DisplayName: strPtr("x")})
	require.NoError(t, err)
}

func TestStore_WriteToForbiddenScopeRejected(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.WriteUser("erin", fakeScopes{"s1"}, "s2", "dev5", Attrs{DisplayName: strPtr("x")})
	require.Error(t, err)
	require.Equal(t, errs.ScopeForbidden, errs.KindOf(err))
}

func TestStore_ResolveBulkAmortizesReads(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.WriteUser("frank", fakeScopes{"s1"}, "s1", "a", Attrs{DisplayName: strPtr("A")})
	require.NoError(t, err)
	_, err = s.WriteUser("frank", fakeScopes{"s1"}, "s1", "b", Attrs{DisplayName: strPtr("B")})
	require.NoError(t, err)

	out, err := s.ResolveBulk("frank", "s1", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, "A", *out["a"].DisplayName)
	require.Equal(t, "B", *out["b"].DisplayName)
	require.Nil(t, out["c"].DisplayName)
}

func TestStore_NotifyCalledOnWrite(t *testing.T) {
	s := NewStore(t.TempDir())
	var got Update
	called := false
	s.Notify = func(u Update) { got = u; called = true }

	_, err := s.WriteUser("gina", fakeScopes{"s1"}, "s1", "dev6", Attrs{DisplayName: strPtr("Gina's Unit")})
	require.NoError(t, err)
	require.True(t, called)
	require.Equal(t, "s1", got.ScopeID)
	require.Equal(t, "dev6", got.UniqueID)
}
