// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package outputstream

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova-telemetry/nova/internal/errs"
	"github.com/nova-telemetry/nova/internal/playback"
	"github.com/nova-telemetry/nova/internal/truth"
)

func openTestDefs(t *testing.T) *DefinitionStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "streams.db")
	s, err := OpenDefinitionStore(path, DefaultDefsConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDef(name, endpoint string) Definition {
	return Definition{
		Name:         name,
		Protocol:     ProtocolTCP,
		Endpoint:     endpoint,
		Lane:         truth.LaneRaw,
		OutputFormat: FormatPayloadOnly,
		Backpressure: playback.BackpressureCatchUp,
		Enabled:      true,
		Visibility:   VisibilityPrivate,
		Filters:      truth.Filters{SystemID: "a", ContainerID: "b", UniqueID: "c"},
	}
}

func TestDefinitionStore_CreateGetListDelete(t *testing.T) {
	s := openTestDefs(t)

	created, err := s.Create(sampleDef("feed-a", "9001"))
	require.NoError(t, err)
	require.NotEmpty(t, created.StreamID)

	got, err := s.Get(created.StreamID)
	require.NoError(t, err)
	require.Equal(t, "feed-a", got.Name)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.Delete(created.StreamID))
	_, err = s.Get(created.StreamID)
	require.Error(t, err)
	require.Equal(t, errs.NotFound, errs.KindOf(err))

	err = s.Delete(created.StreamID)
	require.Error(t, err)
	require.Equal(t, errs.NotFound, errs.KindOf(err))
}

func TestDefinitionStore_EndpointUniquenessConflict(t *testing.T) {
	s := openTestDefs(t)
	_, err := s.Create(sampleDef("feed-a", "9001"))
	require.NoError(t, err)

	_, err = s.Create(sampleDef("feed-b", "9001"))
	require.Error(t, err)
	require.Equal(t, errs.EndpointConflict, errs.KindOf(err))
}

func TestDefinitionStore_PayloadOnlyRequiresFullIdentity(t *testing.T) {
	s := openTestDefs(t)
	def := sampleDef("feed-c", "9002")
	def.Filters = truth.Filters{SystemID: "a"}
	_, err := s.Create(def)
	require.Error(t, err)
	require.Equal(t, errs.SchemaError, errs.KindOf(err))
}

func TestDefinitionStore_UpdateReplacesDefinition(t *testing.T) {
	s := openTestDefs(t)
	created, err := s.Create(sampleDef("feed-d", "9003"))
	require.NoError(t, err)

	replacement := sampleDef("feed-d-renamed", "9003")
	updated, err := s.Update(created.StreamID, replacement)
	require.NoError(t, err)
	require.Equal(t, "feed-d-renamed", updated.Name)
	require.Equal(t, created.StreamID, updated.StreamID)
	require.Equal(t, "9003", updated.Endpoint)
}

func TestDefinitionStore_UpdateEndpointConflict(t *testing.T) {
	s := openTestDefs(t)
	_, err := s.Create(sampleDef("feed-e", "9004"))
	require.NoError(t, err)
	other, err := s.Create(sampleDef("feed-f", "9005"))
	require.NoError(t, err)

	_, err = s.Update(other.StreamID, sampleDef("feed-f", "9004"))
	require.Error(t, err)
	require.Equal(t, errs.EndpointConflict, errs.KindOf(err))
}
