// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

// mergeFileConfig applies a parsed FileConfig onto cfg, field by field,
// following the teacher's merge_file.go cascade: only present (non-nil)
// fields override the running value.
func mergeFileConfig(cfg *AppConfig, f *FileConfig) {
	if f == nil {
		return
	}
	if f.DataDir != nil {
		cfg.DataDir = *f.DataDir
	}
	if f.LogLevel != nil {
		cfg.LogLevel = *f.LogLevel
	}
	if f.NodeMode != nil {
		cfg.NodeMode = *f.NodeMode
	}
	if f.DefaultTimebase != nil {
		cfg.DefaultTimebase = *f.DefaultTimebase
	}
	if f.Scopes != nil {
		cfg.Scopes = *f.Scopes
	}
	if f.TruthStore != nil && f.TruthStore.Path != nil {
		cfg.TruthStore.Path = *f.TruthStore.Path
	}
	if f.StreamDefsDB != nil && f.StreamDefsDB.Path != nil {
		cfg.StreamDefsDB.Path = *f.StreamDefsDB.Path
	}
	if f.IPC != nil && f.IPC.QueueDepth != nil {
		cfg.IPC.QueueDepth = *f.IPC.QueueDepth
	}
	if f.Playback != nil {
		if f.Playback.ChunkSize != nil {
			cfg.Playback.ChunkSize = *f.Playback.ChunkSize
		}
		if f.Playback.ChunkDeadlineMS != nil {
			cfg.Playback.ChunkDeadlineMS = *f.Playback.ChunkDeadlineMS
		}
		if f.Playback.LiveQueueBound != nil {
			cfg.Playback.LiveQueueBound = *f.Playback.LiveQueueBound
		}
	}
	if f.Server != nil {
		if f.Server.ListenAddr != nil {
			cfg.Server.ListenAddr = *f.Server.ListenAddr
		}
		if f.Server.CookieName != nil {
			cfg.Server.CookieName = *f.Server.CookieName
		}
		if f.Server.CookieSecure != nil {
			cfg.Server.CookieSecure = *f.Server.CookieSecure
		}
		if f.Server.FencingRedisAddr != nil {
			cfg.Server.FencingRedisAddr = *f.Server.FencingRedisAddr
		}
	}
	if f.Export != nil {
		if f.Export.Root != nil {
			cfg.Export.Root = *f.Export.Root
		}
		if f.Export.Timeout != nil {
			if d, err := parseDurationString(*f.Export.Timeout); err == nil {
				cfg.Export.Timeout = d
			}
		}
	}
	if f.OutputStreams != nil {
		if f.OutputStreams.PortRangeStart != nil {
			cfg.OutputStreams.PortRangeStart = *f.OutputStreams.PortRangeStart
		}
		if f.OutputStreams.PortRangeEnd != nil {
			cfg.OutputStreams.PortRangeEnd = *f.OutputStreams.PortRangeEnd
		}
	}
}
