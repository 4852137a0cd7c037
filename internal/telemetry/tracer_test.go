// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ServiceName: "novad"})
	require.NoError(t, err)
	require.Nil(t, provider.tp)

	tracer := otel.Tracer("test")
	_, span := tracer.Start(context.Background(), "noop-check")
	defer span.End()
	require.False(t, span.IsRecording())
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ServiceName: "novad", ExporterType: "invalid"})
	require.EqualError(t, err, `telemetry: unsupported exporter type "invalid" (supported: grpc, http)`)
}

func TestProvider_ShutdownOnNoop(t *testing.T) {
	p := &Provider{}
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestTracer_ReturnsUsableTracer(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: false, ServiceName: "novad"})
	require.NoError(t, err)

	tracer := Tracer("core")
	ctx, span := tracer.Start(context.Background(), "dispatch")
	defer span.End()
	require.NotNil(t, ctx)
}
