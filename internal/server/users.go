// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/nova-telemetry/nova/internal/errs"
)

// Roles map to a fixed scope set; spec's Non-goals exclude credential
// storage internals (bcrypt/JWT), so the contract here is the minimal
// login/logout/session shape the spec actually asks for, not a real
// password-hashing implementation.
const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
	RoleViewer  = "viewer"
)

func scopesForRole(role string) []string {
	switch role {
	case RoleAdmin:
		return []string{"ALL"}
	case RoleAnalyst:
		return []string{"read", "command"}
	default:
		return []string{"read"}
	}
}

type userRecord struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
	Role         string `json:"role"`
	ScopeID      string `json:"scopeId"`
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func checkPassword(password, hash string) bool {
	got := hashPassword(password)
	return subtle.ConstantTimeCompare([]byte(got), []byte(hash)) == 1
}

// userStore persists the small user list under {dataRoot}/users.json,
// following the teacher's atomic renameio write pattern.
type userStore struct {
	path string
	mu   sync.Mutex
}

func newUserStore(dataRoot string) *userStore {
	return &userStore{path: filepath.Join(dataRoot, "users.json")}
}

func (s *userStore) load() (map[string]userRecord, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]userRecord{}, nil
	}
	if err != nil {
		return nil, errs.New("server.userStore.load", errs.StoreUnavailable, err)
	}
	var users map[string]userRecord
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, errs.New("server.userStore.load", errs.StoreUnavailable, err)
	}
	return users, nil
}

func (s *userStore) save(users map[string]userRecord) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errs.New("server.userStore.save", errs.StoreUnavailable, err)
	}
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return errs.New("server.userStore.save", errs.StoreUnavailable, err)
	}
	pending, err := renameio.NewPendingFile(s.path)
	if err != nil {
		return errs.New("server.userStore.save", errs.StoreUnavailable, err)
	}
	defer pending.Cleanup()
	if _, err := pending.Write(data); err != nil {
		return errs.New("server.userStore.save", errs.StoreUnavailable, err)
	}
	return pending.CloseAtomicallyReplace()
}

// Register creates a new user with a hashed password. Re-registering an
// existing username returns SchemaError.
func (s *userStore) Register(username, password, role, scopeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return err
	}
	if _, exists := users[username]; exists {
		return errs.New("server.userStore.Register", errs.SchemaError, nil)
	}
	users[username] = userRecord{
		Username:     username,
		PasswordHash: hashPassword(password),
		Role:         role,
		ScopeID:      scopeID,
	}
	return s.save(users)
}

// Authenticate verifies username/password and returns the matching record.
func (s *userStore) Authenticate(username, password string) (userRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return userRecord{}, err
	}
	rec, ok := users[username]
	if !ok || !checkPassword(password, rec.PasswordHash) {
		return userRecord{}, errs.New("server.userStore.Authenticate", errs.PermissionDenied, nil)
	}
	return rec, nil
}

// lookup returns the stored record for username without checking a password.
func (s *userStore) lookup(username string) (userRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return userRecord{}, err
	}
	rec, ok := users[username]
	if !ok {
		return userRecord{}, errs.New("server.userStore.lookup", errs.NotFound, nil)
	}
	return rec, nil
}

// EnsureDefaultAdmin registers a bootstrap admin account if the user store
// is empty, so a freshly initialized NOVA node has a way in.
func (s *userStore) EnsureDefaultAdmin(username, password string) error {
	s.mu.Lock()
	users, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if len(users) > 0 {
		return nil
	}
	return s.Register(username, password, RoleAdmin, "ALL")
}
