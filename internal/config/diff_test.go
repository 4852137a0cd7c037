// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDiff_HotReloadableFieldDoesNotRequireRestart(t *testing.T) {
	old := defaults()
	next := old
	next.Playback.ChunkSize = old.Playback.ChunkSize + 1

	summary := Diff(old, next)
	require.Equal(t, []string{"Playback.ChunkSize"}, summary.ChangedFields)
	require.False(t, summary.RestartRequired)
}

func TestDiff_StorePathChangeRequiresRestart(t *testing.T) {
	old := defaults()
	next := old
	next.TruthStore.Path = "/other/path.db"

	summary := Diff(old, next)
	require.Contains(t, summary.ChangedFields, "TruthStore.Path")
	require.True(t, summary.RestartRequired)
}

func TestDiff_NoChanges(t *testing.T) {
	old := defaults()
	summary := Diff(old, old)
	require.Empty(t, summary.ChangedFields)
	require.False(t, summary.RestartRequired)
}
