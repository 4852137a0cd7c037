// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package outputstream

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nova-telemetry/nova/internal/errs"
)

// DefsConfig mirrors the teacher's sqlite.Config: PRAGMAs applied to every
// pooled connection via the DSN.
type DefsConfig struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultDefsConfig returns sane defaults for the (small, low-write) stream
// definitions database.
func DefaultDefsConfig() DefsConfig {
	return DefsConfig{BusyTimeout: 5 * time.Second, MaxOpenConns: 4}
}

// DefinitionStore persists stream definitions in a dedicated SQLite database,
// separate from the Truth Store, enforcing uniqueness on (protocol, endpoint).
type DefinitionStore struct {
	db *sql.DB
}

// OpenDefinitionStore opens (creating if necessary) the stream definitions
// database at dbPath.
func OpenDefinitionStore(dbPath string, cfg DefsConfig) (*DefinitionStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.New("outputstream.OpenDefinitionStore", errs.StoreUnavailable, err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errs.New("outputstream.OpenDefinitionStore", errs.StoreUnavailable, err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS stream_definitions (
	stream_id     TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	protocol      TEXT NOT NULL,
	endpoint      TEXT NOT NULL,
	lane          TEXT NOT NULL,
	system_id     TEXT NOT NULL DEFAULT '',
	container_id  TEXT NOT NULL DEFAULT '',
	unique_id     TEXT NOT NULL DEFAULT '',
	message_type  TEXT NOT NULL DEFAULT '',
	output_format TEXT NOT NULL,
	backpressure  TEXT NOT NULL,
	enabled       INTEGER NOT NULL,
	visibility    TEXT NOT NULL,
	UNIQUE(protocol, endpoint)
);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errs.New("outputstream.OpenDefinitionStore", errs.StoreUnavailable, err)
	}
	return &DefinitionStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *DefinitionStore) Close() error { return s.db.Close() }

// Create validates def, assigns a streamId, and persists it. A (protocol,
// endpoint) collision returns EndpointConflict.
func (s *DefinitionStore) Create(def Definition) (Definition, error) {
	if err := def.Validate(); err != nil {
		return Definition{}, err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Definition{}, errs.New("outputstream.Create", errs.StoreUnavailable, err)
	}
	def.StreamID = id.String()

	if err := s.insert(def); err != nil {
		return Definition{}, err
	}
	return def, nil
}

func (s *DefinitionStore) insert(def Definition) error {
	_, err := s.db.Exec(`
INSERT INTO stream_definitions
	(stream_id, name, protocol, endpoint, lane, system_id, container_id, unique_id,
	 message_type, output_format, backpressure, enabled, visibility)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		def.StreamID, def.Name, string(def.Protocol), def.Endpoint, string(def.Lane),
		def.Filters.SystemID, def.Filters.ContainerID, def.Filters.UniqueID, def.Filters.MessageType,
		string(def.OutputFormat), string(def.Backpressure), boolToInt(def.Enabled), string(def.Visibility))
	if err != nil {
		if isUniqueViolation(err) {
			return errs.New("outputstream.Create", errs.EndpointConflict, err)
		}
		return errs.New("outputstream.Create", errs.StoreUnavailable, err)
	}
	return nil
}

// Get returns the definition identified by streamID, or NotFound.
func (s *DefinitionStore) Get(streamID string) (Definition, error) {
	row := s.db.QueryRow(`
SELECT stream_id, name, protocol, endpoint, lane, system_id, container_id, unique_id,
       message_type, output_format, backpressure, enabled, visibility
FROM stream_definitions WHERE stream_id = ?`, streamID)
	return scanDefinition(row)
}

// List returns every stream definition, ordered by name.
func (s *DefinitionStore) List() ([]Definition, error) {
	rows, err := s.db.Query(`
SELECT stream_id, name, protocol, endpoint, lane, system_id, container_id, unique_id,
       message_type, output_format, backpressure, enabled, visibility
FROM stream_definitions ORDER BY name`)
	if err != nil {
		return nil, errs.New("outputstream.List", errs.StoreUnavailable, err)
	}
	defer rows.Close()

	var defs []Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// Update replaces the existing definition's mutable fields with patch (PUT
// semantics; see mergeDefinition). A collision with another definition's
// (protocol, endpoint) returns EndpointConflict.
func (s *DefinitionStore) Update(streamID string, patch Definition) (Definition, error) {
	current, err := s.Get(streamID)
	if err != nil {
		return Definition{}, err
	}
	merged := mergeDefinition(current, patch)
	if err := merged.Validate(); err != nil {
		return Definition{}, err
	}

	res, err := s.db.Exec(`
UPDATE stream_definitions SET
	name=?, protocol=?, endpoint=?, lane=?, system_id=?, container_id=?, unique_id=?,
	message_type=?, output_format=?, backpressure=?, enabled=?, visibility=?
WHERE stream_id=?`,
		merged.Name, string(merged.Protocol), merged.Endpoint, string(merged.Lane),
		merged.Filters.SystemID, merged.Filters.ContainerID, merged.Filters.UniqueID, merged.Filters.MessageType,
		string(merged.OutputFormat), string(merged.Backpressure), boolToInt(merged.Enabled), string(merged.Visibility),
		streamID)
	if err != nil {
		if isUniqueViolation(err) {
			return Definition{}, errs.New("outputstream.Update", errs.EndpointConflict, err)
		}
		return Definition{}, errs.New("outputstream.Update", errs.StoreUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Definition{}, errs.New("outputstream.Update", errs.NotFound, fmt.Errorf("stream %s not found", streamID))
	}
	return merged, nil
}

// mergeDefinition applies patch as a full replacement of base's mutable
// fields (PUT semantics): every field patch sets, including zero values
// like Enabled=false or an empty Filters, takes effect. Only StreamID is
// carried over from base. Callers resupply the complete definition.
func mergeDefinition(base, patch Definition) Definition {
	patch.StreamID = base.StreamID
	return patch
}

// Delete removes the definition identified by streamID, or NotFound.
func (s *DefinitionStore) Delete(streamID string) error {
	res, err := s.db.Exec(`DELETE FROM stream_definitions WHERE stream_id=?`, streamID)
	if err != nil {
		return errs.New("outputstream.Delete", errs.StoreUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.New("outputstream.Delete", errs.NotFound, fmt.Errorf("stream %s not found", streamID))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(row rowScanner) (Definition, error) {
	var d Definition
	var enabled int
	err := row.Scan(&d.StreamID, &d.Name, &d.Protocol, &d.Endpoint, &d.Lane,
		&d.Filters.SystemID, &d.Filters.ContainerID, &d.Filters.UniqueID, &d.Filters.MessageType,
		&d.OutputFormat, &d.Backpressure, &enabled, &d.Visibility)
	if errors.Is(err, sql.ErrNoRows) {
		return Definition{}, errs.New("outputstream.scanDefinition", errs.NotFound, err)
	}
	if err != nil {
		return Definition{}, errs.New("outputstream.scanDefinition", errs.StoreUnavailable, err)
	}
	d.Enabled = enabled != 0
	return d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
