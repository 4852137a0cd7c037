// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package errs defines the typed error kinds propagated across the Core and
// Server Edge, per the NOVA error taxonomy.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error without requiring callers to match on strings.
type Kind string

const (
	SchemaError      Kind = "SchemaError"
	UnknownManifest  Kind = "UnknownManifest"
	DuplicateEvent   Kind = "DuplicateEvent"
	ReplayNotAllowed Kind = "ReplayNotAllowed"
	PermissionDenied Kind = "PermissionDenied"
	ScopeRequired    Kind = "ScopeRequired"
	ScopeForbidden   Kind = "ScopeForbidden"
	EndpointConflict Kind = "EndpointConflict"
	NotFound         Kind = "NotFound"
	Timeout          Kind = "Timeout"
	StoreUnavailable Kind = "StoreUnavailable"
)

// Error is the typed-kind error used across the Core/Server boundary.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs a typed Error.
func New(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether the kind represents a transient condition worth
// retrying (StoreUnavailable, Timeout).
func (k Kind) Retryable() bool {
	return k == StoreUnavailable || k == Timeout
}
