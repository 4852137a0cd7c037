// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

// ChangeSummary describes the result of comparing two AppConfigs, the same
// shape as the teacher's config.Diff result.
type ChangeSummary struct {
	ChangedFields   []string
	RestartRequired bool
}

// hotReloadAllowlist names the only fields safe to apply without a process
// restart: log verbosity, playback chunking, and the output-stream port
// range. Everything else (store paths, listen address, cookie name) is
// wired into other processes at startup and can't move underneath them.
var hotReloadAllowlist = map[string]struct{}{
	"LogLevel":                     {},
	"Playback.ChunkSize":           {},
	"Playback.ChunkDeadlineMS":     {},
	"Playback.LiveQueueBound":      {},
	"OutputStreams.PortRangeStart": {},
	"OutputStreams.PortRangeEnd":   {},
}

// Diff compares old and next, reporting which fields changed and whether
// any changed field falls outside hotReloadAllowlist.
func Diff(old, next AppConfig) ChangeSummary {
	var summary ChangeSummary

	record := func(field string) {
		summary.ChangedFields = append(summary.ChangedFields, field)
		if _, ok := hotReloadAllowlist[field]; !ok {
			summary.RestartRequired = true
		}
	}

	if old.DataDir != next.DataDir {
		record("DataDir")
	}
	if old.LogLevel != next.LogLevel {
		record("LogLevel")
	}
	if old.NodeMode != next.NodeMode {
		record("NodeMode")
	}
	if old.DefaultTimebase != next.DefaultTimebase {
		record("DefaultTimebase")
	}
	if !equalStringSlices(old.Scopes, next.Scopes) {
		record("Scopes")
	}
	if old.TruthStore != next.TruthStore {
		record("TruthStore.Path")
	}
	if old.StreamDefsDB != next.StreamDefsDB {
		record("StreamDefsDB.Path")
	}
	if old.IPC != next.IPC {
		record("IPC.QueueDepth")
	}
	if old.Playback.ChunkSize != next.Playback.ChunkSize {
		record("Playback.ChunkSize")
	}
	if old.Playback.ChunkDeadlineMS != next.Playback.ChunkDeadlineMS {
		record("Playback.ChunkDeadlineMS")
	}
	if old.Playback.LiveQueueBound != next.Playback.LiveQueueBound {
		record("Playback.LiveQueueBound")
	}
	if old.Server != next.Server {
		record("Server")
	}
	if old.Export != next.Export {
		record("Export")
	}
	if old.OutputStreams.PortRangeStart != next.OutputStreams.PortRangeStart {
		record("OutputStreams.PortRangeStart")
	}
	if old.OutputStreams.PortRangeEnd != next.OutputStreams.PortRangeEnd {
		record("OutputStreams.PortRangeEnd")
	}

	return summary
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
