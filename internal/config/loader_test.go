// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeEnv(vars map[string]string) envLookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoader_DefaultsOnly(t *testing.T) {
	l := NewLoaderWithEnv("", "test", fakeEnv(nil))
	cfg, err := l.Load()
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "live", cfg.NodeMode)
	require.Equal(t, 64, cfg.Playback.ChunkSize)
	require.Equal(t, "test", cfg.Version)
}

func TestLoader_EnvOverridesDefaults(t *testing.T) {
	l := NewLoaderWithEnv("", "test", fakeEnv(map[string]string{
		"NOVA_LOG_LEVEL":           "debug",
		"NOVA_PLAYBACK_CHUNK_SIZE": "10",
		"NOVA_SCOPES":              "alpha, beta",
	}))
	cfg, err := l.Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 10, cfg.Playback.ChunkSize)
	require.Equal(t, []string{"alpha", "beta"}, cfg.Scopes)
	require.Contains(t, l.ConsumedEnvKeys, "NOVA_LOG_LEVEL")
}

func TestLoader_FileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: warn\nserver:\n  listenAddr: \":9000\"\n"), 0o600))

	l := NewLoaderWithEnv(path, "test", fakeEnv(map[string]string{
		"NOVA_SERVER_LISTEN_ADDR": ":9999",
	}))
	cfg, err := l.Load()
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.LogLevel)           // from file, no env override
	require.Equal(t, ":9999", cfg.Server.ListenAddr) // env overrides file
}

func TestLoader_StrictFileRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bogusField: true\n"), 0o600))

	l := NewLoaderWithEnv(path, "test", fakeEnv(nil))
	_, err := l.Load()
	require.Error(t, err)
}

func TestLoader_RejectsInvalidNodeMode(t *testing.T) {
	l := NewLoaderWithEnv("", "test", fakeEnv(map[string]string{"NOVA_NODE_MODE": "bogus"}))
	_, err := l.Load()
	require.Error(t, err)
}
