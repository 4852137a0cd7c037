// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manifest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishAndKnown(t *testing.T) {
	r := New()
	require.False(t, r.Known("m1", 1))

	r.Publish(Descriptor{ManifestID: "m1", ManifestVersion: 1, ViewID: "v1", AllowedKeys: []string{"a", "b"}})
	require.True(t, r.Known("m1", 1))
	require.False(t, r.Known("m1", 2))

	got, ok := r.Get("m1", 1)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, got.AllowedKeys)
}

func TestCatalog_ReturnsEveryPublishedDescriptor(t *testing.T) {
	r := New()
	r.Publish(Descriptor{ManifestID: "m1", ManifestVersion: 1, ViewID: "v1"})
	r.Publish(Descriptor{ManifestID: "m1", ManifestVersion: 2, ViewID: "v1"})
	r.Publish(Descriptor{ManifestID: "m2", ManifestVersion: 1, ViewID: "v2"})

	require.Len(t, r.Catalog(), 3)
}

func TestPublishFromEvent_DecodesAndRegisters(t *testing.T) {
	r := New()
	payload := []byte(`{"manifestId":"m1","manifestVersion":3,"viewId":"v1","allowedKeys":["x"]}`)

	require.NoError(t, PublishFromEvent(r, payload))
	require.True(t, r.Known("m1", 3))

	got, ok := r.Get("m1", 3)
	require.True(t, ok)
	require.Equal(t, "v1", got.ViewID)
}

func TestPublishFromEvent_RejectsMalformedPayload(t *testing.T) {
	r := New()
	err := PublishFromEvent(r, []byte(`not json`))
	require.Error(t, err)
}

func TestPublishFromEvent_RejectsMissingManifestID(t *testing.T) {
	r := New()
	err := PublishFromEvent(r, []byte(`{"manifestVersion":1}`))
	require.Error(t, err)
}
