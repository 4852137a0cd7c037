// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads and hot-reloads the node's runtime configuration,
// following the teacher's file-then-env precedence loader shape (spec §A.1).
package config

import "time"

// AppConfig is the fully resolved, validated configuration for one node.
type AppConfig struct {
	Version  string
	DataDir  string
	LogLevel string

	// NodeMode is "live" or "replay" (spec §3). It is validated and logged at
	// startup; the default playback and run timebase comes from
	// DefaultTimebase, not from NodeMode.
	NodeMode        string
	DefaultTimebase string
	Scopes          []string

	TruthStore    TruthStoreConfig
	StreamDefsDB  StreamDefsDBConfig
	IPC           IPCConfig
	Playback      PlaybackConfig
	Server        ServerConfig
	Export        ExportConfig
	OutputStreams OutputStreamsConfig
}

type TruthStoreConfig struct {
	Path string
}

type StreamDefsDBConfig struct {
	Path string
}

type IPCConfig struct {
	QueueDepth int
}

type PlaybackConfig struct {
	ChunkSize       int
	ChunkDeadlineMS int
	LiveQueueBound  int
}

type ServerConfig struct {
	ListenAddr   string
	CookieName   string
	CookieSecure bool

	// FencingRedisAddr, when set, backs playback fencing with Redis instead
	// of an in-process map, so more than one Server Edge replica can run
	// behind a load balancer. Empty means single-replica, in-memory.
	FencingRedisAddr string
}

type ExportConfig struct {
	Root    string
	Timeout time.Duration
}

type OutputStreamsConfig struct {
	PortRangeStart int
	PortRangeEnd   int
}

// FileConfig mirrors AppConfig's on-disk YAML shape. Fields are pointers so
// the merge step can tell "absent" from "zero value".
type FileConfig struct {
	DataDir         *string   `yaml:"dataDir"`
	LogLevel        *string   `yaml:"logLevel"`
	NodeMode        *string   `yaml:"nodeMode"`
	DefaultTimebase *string   `yaml:"defaultTimebase"`
	Scopes          *[]string `yaml:"scopes"`

	TruthStore *struct {
		Path *string `yaml:"path"`
	} `yaml:"truthStore"`

	StreamDefsDB *struct {
		Path *string `yaml:"path"`
	} `yaml:"streamDefsDB"`

	IPC *struct {
		QueueDepth *int `yaml:"queueDepth"`
	} `yaml:"ipc"`

	Playback *struct {
		ChunkSize       *int `yaml:"chunkSize"`
		ChunkDeadlineMS *int `yaml:"chunkDeadlineMS"`
		LiveQueueBound  *int `yaml:"liveQueueBound"`
	} `yaml:"playback"`

	Server *struct {
		ListenAddr       *string `yaml:"listenAddr"`
		CookieName       *string `yaml:"cookieName"`
		CookieSecure     *bool   `yaml:"cookieSecure"`
		FencingRedisAddr *string `yaml:"fencingRedisAddr"`
	} `yaml:"server"`

	Export *struct {
		Root    *string `yaml:"root"`
		Timeout *string `yaml:"timeout"`
	} `yaml:"export"`

	OutputStreams *struct {
		PortRangeStart *int `yaml:"portRangeStart"`
		PortRangeEnd   *int `yaml:"portRangeEnd"`
	} `yaml:"outputStreams"`
}

// defaults returns the baseline AppConfig before file or env overrides.
func defaults() AppConfig {
	return AppConfig{
		DataDir:         "/var/lib/nova",
		LogLevel:        "info",
		NodeMode:        "live",
		DefaultTimebase: "canonical",
		Scopes:          []string{"default"},
		TruthStore:      TruthStoreConfig{Path: "/var/lib/nova/truth.db"},
		StreamDefsDB:    StreamDefsDBConfig{Path: "/var/lib/nova/streams.db"},
		IPC:             IPCConfig{QueueDepth: 256},
		Playback:        PlaybackConfig{ChunkSize: 64, ChunkDeadlineMS: 250, LiveQueueBound: 4096},
		Server:          ServerConfig{ListenAddr: ":8088", CookieName: "nova_session", CookieSecure: true},
		Export:          ExportConfig{Root: "/var/lib/nova/exports", Timeout: 5 * time.Minute},
		OutputStreams:   OutputStreamsConfig{PortRangeStart: 20000, PortRangeEnd: 20100},
	}
}
