// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package runstore manages per-user Run artifacts: named export windows
// layered over the Truth Store without mutating it (spec §4.8). Storage
// layout and sanitization follow the teacher's per-user data/ directory
// convention (internal/dvr, internal/recordings), generalized from
// recording metadata to run definitions.
package runstore

import (
	"regexp"
	"strings"

	"github.com/nova-telemetry/nova/internal/playback"
)

// Run is a per-user named export window; not truth.
type Run struct {
	RunNumber    int                    `json:"runNumber"`
	RunName      string                 `json:"runName"`
	RunType      string                 `json:"runType"`
	Timebase     playback.Timebase      `json:"timebase"`
	StartTimeSec float64                `json:"startTimeSec"`
	StopTimeSec  float64                `json:"stopTimeSec"`
	AnalystNotes string                 `json:"analystNotes,omitempty"`
	Fields       map[string]any         `json:"fields,omitempty"`
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9 ._-]`)

// SanitizeRunName replaces filesystem-unsafe characters with '_'; an empty
// result becomes "Untitled".
func SanitizeRunName(name string) string {
	name = strings.TrimSpace(name)
	safe := unsafeFilenameChars.ReplaceAllString(name, "_")
	safe = strings.Trim(safe, " .")
	if safe == "" {
		return "Untitled"
	}
	return safe
}
