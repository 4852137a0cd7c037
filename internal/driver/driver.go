// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package driver implements the deterministic event-to-file conversion
// used by the export pipeline (spec §4.7). Drivers run only inside an
// export; events are not written through drivers as they are ingested.
//
// Grounded on the teacher's internal/jobs atomic-file-write idiom, adapted
// from one-shot playlist/EPG snapshot writes to long-lived, lazily-opened,
// append-only driver handles (§4.7: "opening files lazily and reusing
// handles").
package driver

import (
	"fmt"

	"github.com/nova-telemetry/nova/internal/truth"
)

// Capabilities describes what a driver declares about itself, used by the
// Registry for selection and by diagnostics/admin surfaces.
type Capabilities struct {
	DriverID        string
	Version         string
	Lane            truth.Lane
	MessageType     string // empty means lane-wide
	OutputFilename  string
}

// Driver transforms events of one (lane, messageType) into files under a
// shared output root.
type Driver interface {
	Capabilities() Capabilities
	// Write appends ev to the file addressed by its identity, returning the
	// path written (or "" if the event produced no file output).
	Write(ev truth.Event) (string, error)
	// Finalize closes every open file handle owned by this driver instance.
	Finalize() error
}

// OutputPath builds the canonical driver output path:
// {root}/{YYYY-MM-DD}/{systemId}/{containerId}/{uniqueId}/{filename}.
func OutputPath(root string, ev truth.Event, filename string) string {
	day := ev.CanonicalTruthTime.UTC().Format("2006-01-02")
	return fmt.Sprintf("%s/%s/%s/%s/%s/%s", root, day, ev.Identity.SystemID, ev.Identity.ContainerID, ev.Identity.UniqueID, filename)
}
