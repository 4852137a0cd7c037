// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader resolves an AppConfig with precedence ENV > File > Defaults,
// the same cascade and ConsumedEnvKeys mechanical tracking as the teacher's
// internal/config.Loader.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
	lookupEnvFn     envLookupFunc
}

// NewLoader creates a Loader reading from the real process environment.
func NewLoader(configPath, version string) *Loader {
	return NewLoaderWithEnv(configPath, version, os.LookupEnv)
}

// NewLoaderWithEnv injects an environment lookup function, the same seam
// the teacher exposes for deterministic tests.
func NewLoaderWithEnv(configPath, version string, lookup envLookupFunc) *Loader {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
		lookupEnvFn:     lookup,
	}
}

func (l *Loader) envLookup(key string) (string, bool) {
	l.ConsumedEnvKeys[key] = struct{}{}
	return l.lookupEnvFn(key)
}

func (l *Loader) envString(key, def string) string {
	return parseStringWithLookup(l.envLookup, key, def)
}

func (l *Loader) envInt(key string, def int) int {
	return parseIntWithLookup(l.envLookup, key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	return parseBoolWithLookup(l.envLookup, key, def)
}

func (l *Loader) envStringSlice(key string, def []string) []string {
	return parseStringSliceWithLookup(l.envLookup, key, def)
}

// Load resolves the effective AppConfig: defaults, then an optional YAML
// file (strict: unknown keys fail fast), then environment overrides, then
// validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile parses path as strict YAML: unknown fields are a load error, the
// same operator-misconfiguration guard the teacher's loadFile enforces.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file path is provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if err == io.EOF {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

// mergeEnvConfig applies NOVA_* environment overrides, highest precedence.
func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = l.envString("NOVA_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = l.envString("NOVA_LOG_LEVEL", cfg.LogLevel)
	cfg.NodeMode = l.envString("NOVA_NODE_MODE", cfg.NodeMode)
	cfg.DefaultTimebase = l.envString("NOVA_DEFAULT_TIMEBASE", cfg.DefaultTimebase)
	cfg.Scopes = l.envStringSlice("NOVA_SCOPES", cfg.Scopes)

	cfg.TruthStore.Path = l.envString("NOVA_TRUTH_STORE_PATH", cfg.TruthStore.Path)
	cfg.StreamDefsDB.Path = l.envString("NOVA_STREAM_DEFS_DB_PATH", cfg.StreamDefsDB.Path)

	cfg.IPC.QueueDepth = l.envInt("NOVA_IPC_QUEUE_DEPTH", cfg.IPC.QueueDepth)

	cfg.Playback.ChunkSize = l.envInt("NOVA_PLAYBACK_CHUNK_SIZE", cfg.Playback.ChunkSize)
	cfg.Playback.ChunkDeadlineMS = l.envInt("NOVA_PLAYBACK_CHUNK_DEADLINE_MS", cfg.Playback.ChunkDeadlineMS)
	cfg.Playback.LiveQueueBound = l.envInt("NOVA_PLAYBACK_LIVE_QUEUE_BOUND", cfg.Playback.LiveQueueBound)

	cfg.Server.ListenAddr = l.envString("NOVA_SERVER_LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Server.CookieName = l.envString("NOVA_SERVER_COOKIE_NAME", cfg.Server.CookieName)
	cfg.Server.CookieSecure = l.envBool("NOVA_SERVER_COOKIE_SECURE", cfg.Server.CookieSecure)
	cfg.Server.FencingRedisAddr = l.envString("NOVA_SERVER_FENCING_REDIS_ADDR", cfg.Server.FencingRedisAddr)

	cfg.Export.Root = l.envString("NOVA_EXPORT_ROOT", cfg.Export.Root)
	if v, ok := l.envLookup("NOVA_EXPORT_TIMEOUT"); ok && v != "" {
		if d, err := parseDurationString(v); err == nil {
			cfg.Export.Timeout = d
		}
	}

	cfg.OutputStreams.PortRangeStart = l.envInt("NOVA_OUTPUT_STREAMS_PORT_RANGE_START", cfg.OutputStreams.PortRangeStart)
	cfg.OutputStreams.PortRangeEnd = l.envInt("NOVA_OUTPUT_STREAMS_PORT_RANGE_END", cfg.OutputStreams.PortRangeEnd)
}
