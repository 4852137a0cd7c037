// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"

	"github.com/nova-telemetry/nova/internal/playback"
)

// Validate rejects an AppConfig whose settings can never produce a working
// node, the same fail-fast gate as the teacher's Validate.
func Validate(cfg AppConfig) error {
	if cfg.DataDir == "" {
		return fmt.Errorf("dataDir must not be empty")
	}
	switch cfg.NodeMode {
	case string(playback.ModeLive), string(playback.ModeReplay):
	default:
		return fmt.Errorf("nodeMode must be %q or %q, got %q", playback.ModeLive, playback.ModeReplay, cfg.NodeMode)
	}
	switch cfg.DefaultTimebase {
	case string(playback.TimebaseSource), string(playback.TimebaseCanonical):
	default:
		return fmt.Errorf("defaultTimebase must be %q or %q, got %q", playback.TimebaseSource, playback.TimebaseCanonical, cfg.DefaultTimebase)
	}
	if len(cfg.Scopes) == 0 {
		return fmt.Errorf("scopes must not be empty")
	}
	if cfg.IPC.QueueDepth <= 0 {
		return fmt.Errorf("ipc.queueDepth must be positive, got %d", cfg.IPC.QueueDepth)
	}
	if cfg.Playback.ChunkSize <= 0 {
		return fmt.Errorf("playback.chunkSize must be positive, got %d", cfg.Playback.ChunkSize)
	}
	if cfg.Playback.ChunkDeadlineMS <= 0 {
		return fmt.Errorf("playback.chunkDeadlineMS must be positive, got %d", cfg.Playback.ChunkDeadlineMS)
	}
	if cfg.Playback.LiveQueueBound <= 0 {
		return fmt.Errorf("playback.liveQueueBound must be positive, got %d", cfg.Playback.LiveQueueBound)
	}
	if cfg.Server.ListenAddr == "" {
		return fmt.Errorf("server.listenAddr must not be empty")
	}
	if cfg.Export.Timeout <= 0 {
		return fmt.Errorf("export.timeout must be positive")
	}
	if cfg.OutputStreams.PortRangeStart <= 0 || cfg.OutputStreams.PortRangeEnd <= cfg.OutputStreams.PortRangeStart {
		return fmt.Errorf("outputStreams port range invalid: [%d, %d)", cfg.OutputStreams.PortRangeStart, cfg.OutputStreams.PortRangeEnd)
	}
	return nil
}
