// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/nova-telemetry/nova/internal/errs"
	"github.com/nova-telemetry/nova/internal/export"
	"github.com/nova-telemetry/nova/internal/fsutil"
	"github.com/nova-telemetry/nova/internal/playback"
	"github.com/nova-telemetry/nova/internal/truth"
)

// Store manages runs under {dataRoot}/users/{username}/runs/{runNumber}.
// {sanitizedRunName}/run.json (+ optional bundle.zip).
type Store struct {
	dataRoot string
	mu       sync.Mutex // serializes folder create/rename/delete races
}

// NewStore constructs a Store rooted at dataRoot (NOVA's configured
// DataDir).
func NewStore(dataRoot string) *Store {
	return &Store{dataRoot: dataRoot}
}

func (s *Store) userRunsDir(username string) (string, error) {
	return fsutil.ConfineRelPath(s.dataRoot, filepath.Join("users", username, "runs"))
}

func folderName(r Run) string {
	return fmt.Sprintf("%d. %s", r.RunNumber, SanitizeRunName(r.RunName))
}

// List returns every run for username, ordered by runNumber.
func (s *Store) List(username string) ([]Run, error) {
	dir, err := s.userRunsDir(username)
	if err != nil {
		return nil, errs.New("runstore.List", errs.SchemaError, err)
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.New("runstore.List", errs.StoreUnavailable, err)
	}

	var runs []Run
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		run, err := readRunJSON(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].RunNumber < runs[j].RunNumber })
	return runs, nil
}

// Get returns the run identified by runNumber, or NotFound.
func (s *Store) Get(username string, runNumber int) (Run, error) {
	dir, err := s.userRunsDir(username)
	if err != nil {
		return Run{}, errs.New("runstore.Get", errs.SchemaError, err)
	}
	folder, err := findFolder(dir, runNumber)
	if err != nil {
		return Run{}, err
	}
	return readRunJSON(filepath.Join(dir, folder))
}

// Create assigns a runNumber (next free, ignoring any client-supplied
// value) and a node-mode-derived timebase (not client-controlled), then
// persists the run.
func (s *Store) Create(username string, r Run, nodeTimebase playback.Timebase) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.userRunsDir(username)
	if err != nil {
		return Run{}, errs.New("runstore.Create", errs.SchemaError, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Run{}, errs.New("runstore.Create", errs.StoreUnavailable, err)
	}

	r.RunNumber = nextRunNumber(dir)
	r.Timebase = nodeTimebase

	folder := filepath.Join(dir, folderName(r))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return Run{}, errs.New("runstore.Create", errs.StoreUnavailable, err)
	}
	if err := writeRunJSON(folder, r); err != nil {
		return Run{}, err
	}
	return r, nil
}

// Update merges patch fields into the existing run; a RunName change
// triggers a delete-then-rename of the folder.
func (s *Store) Update(username string, runNumber int, patch Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.userRunsDir(username)
	if err != nil {
		return Run{}, errs.New("runstore.Update", errs.SchemaError, err)
	}
	oldFolderName, err := findFolder(dir, runNumber)
	if err != nil {
		return Run{}, err
	}
	oldPath := filepath.Join(dir, oldFolderName)

	current, err := readRunJSON(oldPath)
	if err != nil {
		return Run{}, err
	}

	merged := mergeRun(current, patch)
	merged.RunNumber = runNumber

	newPath := oldPath
	if SanitizeRunName(patch.RunName) != "" && patch.RunName != "" && merged.RunName != current.RunName {
		newPath = filepath.Join(dir, folderName(merged))
		if err := os.Rename(oldPath, newPath); err != nil {
			return Run{}, errs.New("runstore.Update", errs.StoreUnavailable, err)
		}
	}

	if err := writeRunJSON(newPath, merged); err != nil {
		return Run{}, err
	}
	return merged, nil
}

func mergeRun(base, patch Run) Run {
	out := base
	if patch.RunName != "" {
		out.RunName = patch.RunName
	}
	if patch.RunType != "" {
		out.RunType = patch.RunType
	}
	if patch.StartTimeSec != 0 {
		out.StartTimeSec = patch.StartTimeSec
	}
	if patch.StopTimeSec != 0 {
		out.StopTimeSec = patch.StopTimeSec
	}
	if patch.AnalystNotes != "" {
		out.AnalystNotes = patch.AnalystNotes
	}
	if patch.Fields != nil {
		if out.Fields == nil {
			out.Fields = map[string]any{}
		}
		for k, v := range patch.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// Delete removes the run folder; a second delete returns NotFound (P1).
func (s *Store) Delete(username string, runNumber int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.userRunsDir(username)
	if err != nil {
		return errs.New("runstore.Delete", errs.SchemaError, err)
	}
	folder, err := findFolder(dir, runNumber)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(dir, folder)); err != nil {
		return errs.New("runstore.Delete", errs.StoreUnavailable, err)
	}
	return nil
}

// CreateBundle always regenerates the export: converts the run's
// start/stop (in its timebase) to microsecond-precision wall time, invokes
// the export pipeline, copies the produced zip into the run folder as
// bundle.zip with run.json injected, and returns the bundle path.
func (s *Store) CreateBundle(ctx context.Context, username string, runNumber int, pipeline *export.Pipeline, scopeID string, lanes truth.LaneSet) (string, error) {
	dir, err := s.userRunsDir(username)
	if err != nil {
		return "", errs.New("runstore.CreateBundle", errs.SchemaError, err)
	}
	folder, err := findFolder(dir, runNumber)
	if err != nil {
		return "", err
	}
	folderPath := filepath.Join(dir, folder)
	run, err := readRunJSON(folderPath)
	if err != nil {
		return "", err
	}

	start := secToTime(run.StartTimeSec)
	stop := secToTime(run.StopTimeSec)

	exportID := fmt.Sprintf("run-%d-%d", runNumber, time.Now().UnixNano())
	zipPath, err := pipeline.Run(ctx, export.Request{
		ExportID:  exportID,
		ScopeID:   scopeID,
		Lanes:     lanes,
		StartTime: start,
		StopTime:  stop,
	})
	if err != nil {
		return "", err
	}

	runJSON, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", errs.New("runstore.CreateBundle", errs.StoreUnavailable, err)
	}

	bundlePath := filepath.Join(folderPath, "bundle.zip")
	if err := export.InjectAndCopy(zipPath, bundlePath, map[string][]byte{"run.json": runJSON}); err != nil {
		return "", errs.New("runstore.CreateBundle", errs.StoreUnavailable, err)
	}
	return bundlePath, nil
}

func secToTime(sec float64) time.Time {
	whole := int64(sec)
	frac := sec - float64(whole)
	return time.Unix(whole, int64(frac*1e6)*int64(time.Microsecond)).UTC()
}

func nextRunNumber(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 1
	}
	max := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if n, ok := parseRunNumber(e.Name()); ok && n > max {
			max = n
		}
	}
	return max + 1
}

func parseRunNumber(folder string) (int, bool) {
	idx := strings.Index(folder, ".")
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(folder[:idx])
	if err != nil {
		return 0, false
	}
	return n, true
}

func findFolder(dir string, runNumber int) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errs.New("runstore.findFolder", errs.NotFound, fmt.Errorf("run %d not found", runNumber))
	}
	prefix := strconv.Itoa(runNumber) + "."
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			return e.Name(), nil
		}
	}
	return "", errs.New("runstore.findFolder", errs.NotFound, fmt.Errorf("run %d not found", runNumber))
}

func readRunJSON(folder string) (Run, error) {
	data, err := os.ReadFile(filepath.Join(folder, "run.json"))
	if err != nil {
		return Run{}, errs.New("runstore.readRunJSON", errs.NotFound, err)
	}
	var r Run
	if err := json.Unmarshal(data, &r); err != nil {
		return Run{}, errs.New("runstore.readRunJSON", errs.StoreUnavailable, err)
	}
	return r, nil
}

func writeRunJSON(folder string, r Run) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return errs.New("runstore.writeRunJSON", errs.StoreUnavailable, err)
	}
	path := filepath.Join(folder, "run.json")
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return errs.New("runstore.writeRunJSON", errs.StoreUnavailable, err)
	}
	defer pending.Cleanup()
	if _, err := pending.Write(data); err != nil {
		return errs.New("runstore.writeRunJSON", errs.StoreUnavailable, err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return errs.New("runstore.writeRunJSON", errs.StoreUnavailable, err)
	}
	return nil
}
