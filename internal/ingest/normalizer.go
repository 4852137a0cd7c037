// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ingest implements the Ingest Normalizer: the single entry point
// producers use to append events to the Truth Store.
package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nova-telemetry/nova/internal/errs"
	"github.com/nova-telemetry/nova/internal/log"
	"github.com/nova-telemetry/nova/internal/manifest"
	"github.com/nova-telemetry/nova/internal/metrics"
	"github.com/nova-telemetry/nova/internal/truth"
)

// Result is the outcome of an insert.
type Result struct {
	EventID            string
	CanonicalTruthTime truth.Cursor
	Duplicate          bool
}

// Normalizer validates incoming events and appends them to the Truth Store.
type Normalizer struct {
	store     *truth.Store
	manifests *manifest.Registry
}

// New constructs a Normalizer over store, consulting manifests for ui-lane
// validation.
func New(store *truth.Store, manifests *manifest.Registry) *Normalizer {
	return &Normalizer{store: store, manifests: manifests}
}

// Insert validates and appends ev, minting an EventID if absent (I1). It
// rejects ui events whose manifest is unpublished and enforces required
// identity/lane shape; all other invariants (dedupe, monotonic time) are
// enforced atomically by the Truth Store itself.
func (n *Normalizer) Insert(ctx context.Context, ev truth.Event) (Result, error) {
	if !ev.Lane.Valid() {
		return Result{}, errs.New("ingest.Insert", errs.SchemaError, fmt.Errorf("unknown lane %q", ev.Lane))
	}
	if ev.Identity.Empty() {
		return Result{}, errs.New("ingest.Insert", errs.SchemaError, fmt.Errorf("missing identity triple"))
	}
	if ev.ScopeID == "" {
		return Result{}, errs.New("ingest.Insert", errs.SchemaError, fmt.Errorf("missing scopeId"))
	}

	if ev.Lane == truth.LaneUI {
		if ev.ManifestID == "" || !n.manifests.Known(ev.ManifestID, ev.ManifestVersion) {
			metrics.IngestEventsTotal.WithLabelValues(string(ev.Lane), "rejected").Inc()
			return Result{}, errs.New("ingest.Insert", errs.UnknownManifest,
				fmt.Errorf("manifest %s v%d not published", ev.ManifestID, ev.ManifestVersion))
		}
	}

	if ev.EventID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return Result{}, errs.New("ingest.Insert", errs.StoreUnavailable, err)
		}
		ev.EventID = id.String()
	}

	final, duplicate, err := n.store.Append(ctx, ev)
	if err != nil {
		metrics.IngestEventsTotal.WithLabelValues(string(ev.Lane), "rejected").Inc()
		return Result{}, err
	}

	if duplicate {
		log.WithComponent("ingest").Debug().Str("eventId", final.EventID).Msg("duplicate insert, no-op")
		metrics.IngestEventsTotal.WithLabelValues(string(ev.Lane), "duplicate").Inc()
	} else {
		metrics.IngestEventsTotal.WithLabelValues(string(ev.Lane), "accepted").Inc()
	}

	if final.Lane == truth.LaneMetadata && final.MessageType == "ManifestPublished" {
		if err := manifest.PublishFromEvent(n.manifests, final.Payload); err != nil {
			log.WithComponent("ingest").Warn().Err(err).Str("eventId", final.EventID).Msg("manifest publish from event failed")
		}
	}

	return Result{
		EventID:            final.EventID,
		CanonicalTruthTime: truth.CursorOf(final),
		Duplicate:          duplicate,
	}, nil
}
