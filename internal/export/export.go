// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package export implements the time-window export pipeline: it reads a
// Truth Store range, routes each event through the Driver Registry, then
// zips the resulting file tree into a bundle archive (spec §4.7, §4.8).
// This pipeline is the only caller of the drivers; there is no real-time
// writer sharing the path.
package export

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/nova-telemetry/nova/internal/driver"
	"github.com/nova-telemetry/nova/internal/errs"
	"github.com/nova-telemetry/nova/internal/metrics"
	"github.com/nova-telemetry/nova/internal/telemetry"
	"github.com/nova-telemetry/nova/internal/truth"
)

var tracer = telemetry.Tracer("nova/export")

// deterministicModTime is stamped on every zip entry so that exporting the
// same range twice produces byte-identical archives (spec P3), independent
// of wall-clock time at export time.
var deterministicModTime = time.Unix(0, 0).UTC()

// Request parameterizes one export invocation.
type Request struct {
	ExportID  string
	ScopeID   string
	Lanes     truth.LaneSet
	Filters   truth.Filters
	StartTime time.Time
	StopTime  time.Time
}

// Pipeline reads the Truth Store and produces export archives.
type Pipeline struct {
	store      *truth.Store
	workRoot   string // scratch directory for per-export file trees
	outputRoot string // directory holding finished {exportId}.zip files
	newRegistry func(root string) *driver.Registry
}

// New constructs a Pipeline. workRoot holds scratch driver output trees
// (one subdirectory per export, removed after zipping); outputRoot holds
// the finished archives served at GET /exports/{exportId}.zip.
func New(store *truth.Store, workRoot, outputRoot string) *Pipeline {
	return &Pipeline{
		store:      store,
		workRoot:   workRoot,
		outputRoot: outputRoot,
		newRegistry: func(root string) *driver.Registry {
			reg := driver.NewRegistry()
			reg.Register(driver.NewRawDriver(root))
			reg.Register(driver.NewPositionsDriver(root))
			return reg
		},
	}
}

// OutputRoot returns the directory holding finished {exportId}.zip archives,
// so callers can list or serve them without reaching into Pipeline internals.
func (p *Pipeline) OutputRoot() string { return p.outputRoot }

// Run executes req: iterate the range in total order, route every event
// through the driver registry, finalize, and zip the resulting tree.
// Returns the path to the produced zip. A second Run of the same Request
// always regenerates rather than reusing a prior archive (spec §4.8).
func (p *Pipeline) Run(ctx context.Context, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "export.run",
		trace.WithAttributes(telemetry.ExportAttributes(req.ExportID, req.ScopeID)...))
	defer span.End()

	start := time.Now()
	defer func() { metrics.ExportDuration.Observe(time.Since(start).Seconds()) }()

	if req.StopTime.Before(req.StartTime) {
		return "", errs.New("export.Run", errs.SchemaError, fmt.Errorf("stopTime before startTime"))
	}

	lanes := req.Lanes
	if len(lanes) == 0 {
		lanes = truth.NewLaneSet(truth.LaneRaw, truth.LaneParsed, truth.LaneMetadata, truth.LaneUI, truth.LaneCommand)
	}

	scratch := filepath.Join(p.workRoot, req.ExportID)
	if err := os.RemoveAll(scratch); err != nil {
		return "", errs.New("export.Run", errs.StoreUnavailable, err)
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return "", errs.New("export.Run", errs.StoreUnavailable, err)
	}
	defer os.RemoveAll(scratch)

	reg := p.newRegistry(scratch)

	it, err := p.store.Range(ctx, req.ScopeID, lanes, req.StartTime, req.StopTime, req.Filters)
	if err != nil {
		return "", err
	}
	for it.Next() {
		if _, err := reg.Write(it.Event()); err != nil {
			_ = reg.FinalizeAll()
			return "", errs.New("export.Run", errs.StoreUnavailable, err)
		}
	}
	if err := reg.FinalizeAll(); err != nil {
		return "", errs.New("export.Run", errs.StoreUnavailable, err)
	}

	if err := os.MkdirAll(p.outputRoot, 0o755); err != nil {
		return "", errs.New("export.Run", errs.StoreUnavailable, err)
	}
	zipPath := filepath.Join(p.outputRoot, req.ExportID+".zip")
	if err := zipTree(scratch, zipPath, nil); err != nil {
		return "", errs.New("export.Run", errs.StoreUnavailable, err)
	}
	return zipPath, nil
}

// InjectAndCopy zips src's tree plus an extra named entry (used by the Run
// Store to embed run.json alongside the export's driver output) to dest.
func InjectAndCopy(srcZip, dest string, extra map[string][]byte) error {
	r, err := zip.OpenReader(srcZip)
	if err != nil {
		return fmt.Errorf("export: open source zip: %w", err)
	}
	defer r.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("export: create dest zip: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, f := range r.File {
		if err := copyZipEntry(zw, f); err != nil {
			return err
		}
	}
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: deterministicModTime}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("export: add %s: %w", name, err)
		}
		if _, err := w.Write(extra[name]); err != nil {
			return fmt.Errorf("export: write %s: %w", name, err)
		}
	}
	return zw.Close()
}

func copyZipEntry(zw *zip.Writer, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("export: open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	hdr := f.FileHeader
	hdr.Modified = deterministicModTime
	w, err := zw.CreateHeader(&hdr)
	if err != nil {
		return fmt.Errorf("export: recreate entry %s: %w", f.Name, err)
	}
	_, err = io.Copy(w, rc)
	return err
}

// zipTree walks root and writes every regular file into a new zip at
// zipPath, in sorted relative-path order with a fixed mod time, so that
// repeated exports of identical content are byte-identical.
func zipTree(root, zipPath string, extra map[string][]byte) error {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(paths)

	out, err := os.Create(zipPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, rel := range paths {
		if err := addFileToZip(zw, root, rel); err != nil {
			zw.Close()
			return err
		}
	}
	names := make([]string, 0, len(extra))
	for name := range extra {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		hdr := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: deterministicModTime}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			zw.Close()
			return err
		}
		if _, err := w.Write(extra[name]); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func addFileToZip(zw *zip.Writer, root, rel string) error {
	f, err := os.Open(filepath.Join(root, rel))
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := &zip.FileHeader{
		Name:     filepath.ToSlash(rel),
		Method:   zip.Deflate,
		Modified: deterministicModTime,
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
