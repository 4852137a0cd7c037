// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package driver

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nova-telemetry/nova/internal/truth"
)

// PositionPayload is the parsed-lane schema for messageType="Position".
type PositionPayload struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	AltM    float64 `json:"altM"`
	SpeedMS float64 `json:"speedMS"`
	Heading float64 `json:"heading"`
}

var positionsCSVHeader = []string{"canonicalTruthTime", "eventId", "systemId", "containerId", "uniqueId", "lat", "lon", "altM", "speedMS", "heading"}

// PositionsDriver is the built-in positions CSV driver: lane=parsed,
// messageType=Position, fixed-column CSV with a header written once per
// file.
//
// Stdlib justification: encoding/csv is used directly; no CSV-writing
// library appears anywhere in the retrieved corpus, so there is no
// third-party convention to follow here.
type PositionsDriver struct {
	root     string
	filename string

	mu      sync.Mutex
	writers map[string]*csv.Writer
	files   map[string]*os.File
}

// NewPositionsDriver constructs the built-in positions CSV driver writing
// under root.
func NewPositionsDriver(root string) *PositionsDriver {
	return &PositionsDriver{
		root:     root,
		filename: "positions.csv",
		writers:  make(map[string]*csv.Writer),
		files:    make(map[string]*os.File),
	}
}

func (d *PositionsDriver) Capabilities() Capabilities {
	return Capabilities{
		DriverID:       "builtin.positions",
		Version:        "1",
		Lane:           truth.LaneParsed,
		MessageType:    "Position",
		OutputFilename: d.filename,
	}
}

func (d *PositionsDriver) Write(ev truth.Event) (string, error) {
	var pos PositionPayload
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &pos); err != nil {
			return "", fmt.Errorf("positions driver: decode payload: %w", err)
		}
	}

	path := OutputPath(d.root, ev, d.filename)

	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.writers[path]
	if !ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("positions driver: mkdir: %w", err)
		}
		isNew := true
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			isNew = false
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return "", fmt.Errorf("positions driver: open: %w", err)
		}
		w = csv.NewWriter(f)
		if isNew {
			if err := w.Write(positionsCSVHeader); err != nil {
				return "", fmt.Errorf("positions driver: write header: %w", err)
			}
		}
		d.files[path] = f
		d.writers[path] = w
	}

	record := []string{
		ev.CanonicalTruthTime.UTC().Format("2006-01-02T15:04:05.000000000Z"),
		ev.EventID,
		ev.Identity.SystemID,
		ev.Identity.ContainerID,
		ev.Identity.UniqueID,
		formatFloat(pos.Lat),
		formatFloat(pos.Lon),
		formatFloat(pos.AltM),
		formatFloat(pos.SpeedMS),
		formatFloat(pos.Heading),
	}
	if err := w.Write(record); err != nil {
		return "", fmt.Errorf("positions driver: write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("positions driver: flush: %w", err)
	}

	return path, nil
}

func (d *PositionsDriver) Finalize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	for path, w := range d.writers {
		w.Flush()
		if err := w.Error(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := d.files[path].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.writers, path)
		delete(d.files, path)
	}
	return firstErr
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}
