// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestIngestEventsTotal_IncrementsByLaneAndOutcome(t *testing.T) {
	before := getCounterValue(t, "nova_ingest_events_total", map[string]string{"lane": "raw", "outcome": "accepted"})

	IngestEventsTotal.WithLabelValues("raw", "accepted").Inc()

	after := getCounterValue(t, "nova_ingest_events_total", map[string]string{"lane": "raw", "outcome": "accepted"})
	require.Equal(t, before+1, after)
}

func TestCommandIdempotentReplaysTotal_Increments(t *testing.T) {
	before := getCounterValueNoLabels(t, "nova_command_idempotent_replays_total")

	CommandIdempotentReplaysTotal.Inc()

	after := getCounterValueNoLabels(t, "nova_command_idempotent_replays_total")
	require.Equal(t, before+1, after)
}

func getCounterValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	mf := findMetricFamily(t, name)
	for _, m := range mf.Metric {
		if labelsMatch(m.GetLabel(), labels) {
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func getCounterValueNoLabels(t *testing.T, name string) float64 {
	t.Helper()
	mf := findMetricFamily(t, name)
	for _, m := range mf.Metric {
		return m.GetCounter().GetValue()
	}
	return 0
}

func findMetricFamily(t *testing.T, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	require.FailNow(t, "metric family not found", name)
	return nil
}

func labelsMatch(pairs []*dto.LabelPair, labels map[string]string) bool {
	if len(pairs) != len(labels) {
		return false
	}
	for _, pair := range pairs {
		if labels[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}
