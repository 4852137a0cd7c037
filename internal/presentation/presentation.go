// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package presentation resolves and persists per-entity display attributes
// (spec §4.9): a three-layer override of user preference over admin default
// over factory default, keyed by (scopeId, uniqueId).
package presentation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/nova-telemetry/nova/internal/errs"
	"github.com/nova-telemetry/nova/internal/fsutil"
)

// Attrs is the subset of presentation keys a layer may set. Nil fields are
// "not set at this layer" and fall through to the next one.
type Attrs struct {
	DisplayName *string  `json:"displayName,omitempty"`
	ModelRef    *string  `json:"modelRef,omitempty"`
	Color       *[3]int  `json:"color,omitempty"`
	Scale       *float64 `json:"scale,omitempty"`
}

// merge overlays patch's set fields onto base, returning the result.
func merge(base, patch Attrs) Attrs {
	if patch.DisplayName != nil {
		base.DisplayName = patch.DisplayName
	}
	if patch.ModelRef != nil {
		base.ModelRef = patch.ModelRef
	}
	if patch.Color != nil {
		base.Color = patch.Color
	}
	if patch.Scale != nil {
		base.Scale = patch.Scale
	}
	return base
}

// Update is a cross-client notification emitted after a successful write.
type Update struct {
	ScopeID  string
	UniqueID string
	Attrs    Attrs
}

// ScopeSet reports a principal's allowed scopes for write resolution.
type ScopeSet interface {
	// Scopes returns the caller's allowed scope IDs, or a single-element
	// slice containing "ALL" if every scope is permitted.
	Scopes() []string
}

const allScopes = "ALL"

// Store resolves and persists presentation attributes under dataRoot,
// following the teacher's per-user data/ directory convention
// (generalized from recording metadata to display overrides).
type Store struct {
	dataRoot string
	mu       sync.Mutex

	// Notify, if set, is called after every successful write so the Server
	// Edge can broadcast presentationUpdate over its WebSocket fan-out.
	Notify func(Update)

	// factory supplies the bottom layer, keyed by uniqueId. Defaults to an
	// empty set (no factory overrides) unless set by the caller.
	factory map[string]Attrs
}

// NewStore constructs a Store rooted at dataRoot.
func NewStore(dataRoot string) *Store {
	return &Store{dataRoot: dataRoot, factory: map[string]Attrs{}}
}

// SetFactoryDefaults installs the bottom resolution layer.
func (s *Store) SetFactoryDefaults(defaults map[string]Attrs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factory = defaults
}

func (s *Store) userFile(username string) (string, error) {
	return fsutil.ConfineRelPath(s.dataRoot, filepath.Join("users", username, "presentation.json"))
}

func (s *Store) scopeDefaultFile(scopeID string) (string, error) {
	return fsutil.ConfineRelPath(s.dataRoot, filepath.Join("presentation", "defaults", scopeID+".json"))
}

// layerFile is {scopeId}|{uniqueId} -> Attrs, the on-disk shape of both the
// per-user override file and the per-scope admin default file.
type layerFile map[string]Attrs

func layerKey(scopeID, uniqueID string) string { return scopeID + "|" + uniqueID }

func readLayer(path string) (layerFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return layerFile{}, nil
	}
	if err != nil {
		return nil, errs.New("presentation.readLayer", errs.StoreUnavailable, err)
	}
	var f layerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errs.New("presentation.readLayer", errs.StoreUnavailable, err)
	}
	return f, nil
}

func writeLayer(path string, f layerFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.New("presentation.writeLayer", errs.StoreUnavailable, err)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return errs.New("presentation.writeLayer", errs.StoreUnavailable, err)
	}
	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return errs.New("presentation.writeLayer", errs.StoreUnavailable, err)
	}
	defer pending.Cleanup()
	if _, err := pending.Write(data); err != nil {
		return errs.New("presentation.writeLayer", errs.StoreUnavailable, err)
	}
	return pending.CloseAtomicallyReplace()
}

// Resolve merges the three layers for one (scopeId, uniqueId), per-key,
// user override taking priority over admin default over factory default.
func (s *Store) Resolve(username, scopeID, uniqueID string) (Attrs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(username, scopeID, uniqueID)
}

func (s *Store) resolveLocked(username, scopeID, uniqueID string) (Attrs, error) {
	out := s.factory[uniqueID]

	if scopeFile, err := s.scopeDefaultFile(scopeID); err == nil {
		if layer, err := readLayer(scopeFile); err == nil {
			out = merge(out, layer[layerKey(scopeID, uniqueID)])
		}
	}

	if username != "" {
		userFile, err := s.userFile(username)
		if err != nil {
			return Attrs{}, errs.New("presentation.Resolve", errs.SchemaError, err)
		}
		layer, err := readLayer(userFile)
		if err != nil {
			return Attrs{}, err
		}
		out = merge(out, layer[layerKey(scopeID, uniqueID)])
	}

	return out, nil
}

// ResolveBulk resolves many uniqueIds within one scope, reading each layer
// file once to amortize directory/file reads across the batch.
func (s *Store) ResolveBulk(username, scopeID string, uniqueIDs []string) (map[string]Attrs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scopeFile, err := s.scopeDefaultFile(scopeID)
	var scopeLayer layerFile
	if err == nil {
		scopeLayer, _ = readLayer(scopeFile)
	}

	var userLayer layerFile
	if username != "" {
		userFile, err := s.userFile(username)
		if err != nil {
			return nil, errs.New("presentation.ResolveBulk", errs.SchemaError, err)
		}
		userLayer, err = readLayer(userFile)
		if err != nil {
			return nil, err
		}
	}

	out := make(map[string]Attrs, len(uniqueIDs))
	for _, uid := range uniqueIDs {
		attrs := s.factory[uid]
		attrs = merge(attrs, scopeLayer[layerKey(scopeID, uid)])
		attrs = merge(attrs, userLayer[layerKey(scopeID, uid)])
		out[uid] = attrs
	}
	return out, nil
}

// WriteUser validates patch and persists it as username's override for
// (scopeId, uniqueId), resolving scopeId against the caller's allowed
// scopes when scopeID is empty. Invalid or unknown keys are dropped
// silently per spec §4.9; only a scope-resolution failure is an error.
func (s *Store) WriteUser(username string, caller ScopeSet, scopeID, uniqueID string, patch Attrs) (Attrs, error) {
	resolvedScope, err := resolveScope(caller, scopeID)
	if err != nil {
		return Attrs{}, err
	}

	sanitized := sanitize(patch)

	s.mu.Lock()
	defer s.mu.Unlock()

	userFile, err := s.userFile(username)
	if err != nil {
		return Attrs{}, errs.New("presentation.WriteUser", errs.SchemaError, err)
	}
	layer, err := readLayer(userFile)
	if err != nil {
		return Attrs{}, err
	}
	key := layerKey(resolvedScope, uniqueID)
	layer[key] = merge(layer[key], sanitized)
	if err := writeLayer(userFile, layer); err != nil {
		return Attrs{}, err
	}

	resolved, err := s.resolveLocked(username, resolvedScope, uniqueID)
	if err != nil {
		return Attrs{}, err
	}
	if s.Notify != nil {
		s.Notify(Update{ScopeID: resolvedScope, UniqueID: uniqueID, Attrs: resolved})
	}
	return resolved, nil
}

// WriteAdminDefault validates patch and persists it as the per-scope admin
// default for uniqueId.
func (s *Store) WriteAdminDefault(caller ScopeSet, scopeID, uniqueID string, patch Attrs) (Attrs, error) {
	resolvedScope, err := resolveScope(caller, scopeID)
	if err != nil {
		return Attrs{}, err
	}

	sanitized := sanitize(patch)

	s.mu.Lock()
	defer s.mu.Unlock()

	scopeFile, err := s.scopeDefaultFile(resolvedScope)
	if err != nil {
		return Attrs{}, errs.New("presentation.WriteAdminDefault", errs.SchemaError, err)
	}
	layer, err := readLayer(scopeFile)
	if err != nil {
		return Attrs{}, err
	}
	key := layerKey(resolvedScope, uniqueID)
	layer[key] = merge(layer[key], sanitized)
	if err := writeLayer(scopeFile, layer); err != nil {
		return Attrs{}, err
	}

	resolved, err := s.resolveLocked("", resolvedScope, uniqueID)
	if err != nil {
		return Attrs{}, err
	}
	if s.Notify != nil {
		s.Notify(Update{ScopeID: resolvedScope, UniqueID: uniqueID, Attrs: resolved})
	}
	return resolved, nil
}

// resolveScope picks the scope a write applies to: the explicit scopeID if
// the caller is permitted to use it, or the caller's sole allowed scope
// when scopeID is empty and the ambiguity doesn't exist.
func resolveScope(caller ScopeSet, scopeID string) (string, error) {
	scopes := caller.Scopes()
	allowsAll := len(scopes) == 1 && scopes[0] == allScopes

	if scopeID != "" {
		if allowsAll || contains(scopes, scopeID) {
			return scopeID, nil
		}
		return "", errs.New("presentation.resolveScope", errs.ScopeForbidden, nil)
	}

	if allowsAll || len(scopes) != 1 {
		return "", errs.New("presentation.resolveScope", errs.ScopeRequired, nil)
	}
	return scopes[0], nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// sanitize drops any field that fails validation: color components outside
// [0,255], scale outside [0.1,10]. DisplayName and ModelRef have no format
// constraint beyond being present.
func sanitize(a Attrs) Attrs {
	out := Attrs{DisplayName: a.DisplayName, ModelRef: a.ModelRef}
	if a.Color != nil {
		valid := true
		for _, c := range a.Color {
			if c < 0 || c > 255 {
				valid = false
				break
			}
		}
		if valid {
			out.Color = a.Color
		}
	}
	if a.Scale != nil && *a.Scale >= 0.1 && *a.Scale <= 10 {
		out.Scale = a.Scale
	}
	return out
}
