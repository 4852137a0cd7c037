// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nova-telemetry/nova/internal/errs"
	"github.com/nova-telemetry/nova/internal/manifest"
	"github.com/nova-telemetry/nova/internal/truth"
)

func newNormalizer(t *testing.T) (*Normalizer, *truth.Store) {
	t.Helper()
	store, err := truth.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, manifest.New()), store
}

func TestInsert_MintsEventID(t *testing.T) {
	n, _ := newNormalizer(t)
	res, err := n.Insert(context.Background(), truth.Event{
		ScopeID:  "s1",
		Lane:     truth.LaneRaw,
		Identity: truth.Identity{SystemID: "a", ContainerID: "b", UniqueID: "c"},
		Bytes:    []byte{1, 2, 3},
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.EventID)
	require.False(t, res.Duplicate)
}

func TestInsert_UnknownManifestRejected(t *testing.T) {
	n, _ := newNormalizer(t)
	_, err := n.Insert(context.Background(), truth.Event{
		ScopeID:         "s1",
		Lane:            truth.LaneUI,
		Identity:        truth.Identity{SystemID: "a", ContainerID: "b", UniqueID: "c"},
		ManifestID:      "m1",
		ManifestVersion: 1,
	})
	require.Error(t, err)
	require.Equal(t, errs.UnknownManifest, errs.KindOf(err))
}

func TestInsert_UIAcceptedAfterManifestPublished(t *testing.T) {
	store, err := truth.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := manifest.New()
	reg.Publish(manifest.Descriptor{ManifestID: "m1", ManifestVersion: 1, ViewID: "v1"})
	n := New(store, reg)

	_, err = n.Insert(context.Background(), truth.Event{
		ScopeID:         "s1",
		Lane:            truth.LaneUI,
		Identity:        truth.Identity{SystemID: "a", ContainerID: "b", UniqueID: "c"},
		ManifestID:      "m1",
		ManifestVersion: 1,
		ViewID:          "v1",
	})
	require.NoError(t, err)
}

func TestInsert_DuplicateEventIDIsNoop(t *testing.T) {
	n, _ := newNormalizer(t)
	ev := truth.Event{
		ScopeID:  "s1",
		Lane:     truth.LaneCommand,
		Identity: truth.Identity{SystemID: "a", ContainerID: "b", UniqueID: "c"},
		EventID:  "fixed-id",
	}
	first, err := n.Insert(context.Background(), ev)
	require.NoError(t, err)
	second, err := n.Insert(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, second.Duplicate)
	require.Equal(t, first.EventID, second.EventID)
}

func TestInsert_ManifestPublishedMetadataRegistersManifest(t *testing.T) {
	store, err := truth.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := manifest.New()
	n := New(store, reg)

	_, err = n.Insert(context.Background(), truth.Event{
		ScopeID:     "s1",
		Lane:        truth.LaneMetadata,
		Identity:    truth.Identity{SystemID: "a", ContainerID: "b", UniqueID: "c"},
		MessageType: "ManifestPublished",
		Payload:     []byte(`{"manifestId":"m1","manifestVersion":1,"viewId":"v1"}`),
	})
	require.NoError(t, err)
	require.True(t, reg.Known("m1", 1))

	_, err = n.Insert(context.Background(), truth.Event{
		ScopeID:         "s1",
		Lane:            truth.LaneUI,
		Identity:        truth.Identity{SystemID: "a", ContainerID: "b", UniqueID: "c"},
		ManifestID:      "m1",
		ManifestVersion: 1,
		ViewID:          "v1",
	})
	require.NoError(t, err, "ui event should be accepted now that its manifest was published via ingest")
}

func TestInsert_SchemaErrorOnMissingIdentity(t *testing.T) {
	n, _ := newNormalizer(t)
	_, err := n.Insert(context.Background(), truth.Event{ScopeID: "s1", Lane: truth.LaneRaw})
	require.Error(t, err)
	require.Equal(t, errs.SchemaError, errs.KindOf(err))
}
