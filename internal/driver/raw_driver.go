// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nova-telemetry/nova/internal/truth"
)

// RawDriver writes lane=raw byte frames verbatim, preserving byte
// boundaries (one write call per event, no delimiter).
type RawDriver struct {
	root     string
	filename string

	mu      sync.Mutex
	handles map[string]*os.File
}

// NewRawDriver constructs the built-in raw-bytes driver writing under root.
func NewRawDriver(root string) *RawDriver {
	return &RawDriver{root: root, filename: "raw.bin", handles: make(map[string]*os.File)}
}

func (d *RawDriver) Capabilities() Capabilities {
	return Capabilities{
		DriverID:       "builtin.raw",
		Version:        "1",
		Lane:           truth.LaneRaw,
		MessageType:    "",
		OutputFilename: d.filename,
	}
}

func (d *RawDriver) Write(ev truth.Event) (string, error) {
	path := OutputPath(d.root, ev, d.filename)

	d.mu.Lock()
	defer d.mu.Unlock()

	f, ok := d.handles[path]
	if !ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("raw driver: mkdir: %w", err)
		}
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return "", fmt.Errorf("raw driver: open: %w", err)
		}
		d.handles[path] = f
	}

	if _, err := f.Write(ev.Bytes); err != nil {
		return "", fmt.Errorf("raw driver: write: %w", err)
	}
	return path, nil
}

func (d *RawDriver) Finalize() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	var firstErr error
	for path, f := range d.handles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.handles, path)
	}
	return firstErr
}
