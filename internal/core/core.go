// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package core implements the Core process (spec §5): the single-writer
// Truth Store plus the Ingest Normalizer, Playback Engine, and Export
// Pipeline, all driven from one IPC request loop.
package core

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"github.com/nova-telemetry/nova/internal/errs"
	"github.com/nova-telemetry/nova/internal/export"
	"github.com/nova-telemetry/nova/internal/ingest"
	"github.com/nova-telemetry/nova/internal/ipc"
	"github.com/nova-telemetry/nova/internal/log"
	"github.com/nova-telemetry/nova/internal/manifest"
	"github.com/nova-telemetry/nova/internal/metrics"
	"github.com/nova-telemetry/nova/internal/playback"
	"github.com/nova-telemetry/nova/internal/telemetry"
	"github.com/nova-telemetry/nova/internal/truth"
)

var tracer = telemetry.Tracer("nova/core")

// Core owns the Truth Store and every collaborator that reads or writes it.
// It is the only writer; it is explicitly constructed, not a singleton.
type Core struct {
	store      *truth.Store
	normalizer *ingest.Normalizer
	engine     *playback.Engine
	exporter   *export.Pipeline
	manifests  *manifest.Registry

	ch *ipc.Channel
}

// New wires a Core from its already-opened collaborators.
func New(store *truth.Store, manifests *manifest.Registry, exporter *export.Pipeline, ch *ipc.Channel) *Core {
	return &Core{
		store:      store,
		normalizer: ingest.New(store, manifests),
		engine:     playback.New(store),
		exporter:   exporter,
		manifests:  manifests,
		ch:         ch,
	}
}

// Engine exposes the Playback Engine for collaborators (the Output Stream
// Manager) that run in-process rather than over IPC.
func (c *Core) Engine() *playback.Engine { return c.engine }

// Manifests exposes the manifest registry for the /config catalog endpoint.
func (c *Core) Manifests() *manifest.Registry { return c.manifests }

// Run drains ch.Requests() until ctx is cancelled, dispatching each request
// to its handler and pushing the response(s) back over ch.
func (c *Core) Run(ctx context.Context) {
	for {
		select {
		case req, ok := <-c.ch.Requests():
			if !ok {
				return
			}
			go c.handle(ctx, req)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Core) handle(ctx context.Context, req ipc.Request) {
	ctx, span := tracer.Start(ctx, "core.handle",
		trace.WithAttributes(telemetry.IPCAttributes(string(req.Kind), req.ClientConnID, req.RequestID)...))
	defer span.End()

	switch req.Kind {
	case ipc.KindQuery:
		c.handleQuery(ctx, req)
	case ipc.KindStartStream:
		c.handleStartStream(ctx, req)
	case ipc.KindCancelStream:
		c.engine.CancelStream(req.ClientConnID)
	case ipc.KindSetPlaybackRate:
		if req.SetRate != nil {
			c.engine.SetRate(req.ClientConnID, req.SetRate.Rate)
		}
	case ipc.KindSubmitCommand:
		c.handleSubmitCommand(ctx, req)
	case ipc.KindIngestMetadata:
		c.handleIngestMetadata(ctx, req)
	case ipc.KindExport:
		c.handleExport(ctx, req)
	default:
		c.sendError(ctx, req, errs.New("core.handle", errs.SchemaError, nil))
	}
}

func (c *Core) handleQuery(ctx context.Context, req ipc.Request) {
	p := req.Query
	it, err := c.store.Range(ctx, p.ScopeID, p.Lanes, p.StartTime, p.StopTime, p.Filters)
	if err != nil {
		c.sendError(ctx, req, err)
		return
	}
	var events []truth.Event
	for it.Next() {
		events = append(events, it.Event())
	}
	_ = c.ch.SendResponse(ctx, ipc.Response{
		RequestID: req.RequestID, ClientConnID: req.ClientConnID, Kind: ipc.KindQueryResponse,
		QueryResponse: &ipc.QueryResponse{Events: events},
	})
}

func (c *Core) handleStartStream(ctx context.Context, req ipc.Request) {
	p := req.StartStream
	startReq := playback.StartStreamRequest{
		ClientConnID:      req.ClientConnID,
		PlaybackRequestID: p.PlaybackRequestID,
		ScopeID:           p.ScopeID,
		Lanes:             p.Lanes,
		Filters:           p.Filters,
		Mode:              playback.Mode(p.Mode),
		Timebase:          playback.Timebase(p.Timebase),
		Rate:              p.Rate,
		StartTime:         p.StartTime,
		StopTime:          p.StopTime,
		Backpressure:      playback.Backpressure(p.Backpressure),
	}
	chunks, err := c.engine.StartStream(ctx, startReq)
	if err != nil {
		c.sendError(ctx, req, err)
		return
	}
	_ = c.ch.SendResponse(ctx, ipc.Response{
		RequestID: req.RequestID, ClientConnID: req.ClientConnID, Kind: ipc.KindStreamStarted,
		StreamStarted: &ipc.StreamStartedAck{PlaybackRequestID: p.PlaybackRequestID},
	})

	for chunk := range chunks {
		err := c.ch.SendResponse(ctx, ipc.Response{
			ClientConnID: req.ClientConnID, Kind: ipc.KindStreamChunk,
			StreamChunk: &ipc.StreamChunkPayload{
				PlaybackRequestID: chunk.PlaybackRequestID,
				Events:            chunk.Events,
				Complete:          chunk.Complete,
			},
		})
		if err != nil {
			return
		}
	}
}

func (c *Core) handleSubmitCommand(ctx context.Context, req ipc.Request) {
	p := req.SubmitCommand
	if p.TimelineMode == string(playback.ModeReplay) {
		c.sendError(ctx, req, errs.New("core.handleSubmitCommand", errs.ReplayNotAllowed, nil))
		return
	}
	result, err := c.normalizer.Insert(ctx, truth.Event{
		ScopeID:     p.ScopeID,
		Lane:        truth.LaneCommand,
		Identity:    p.Identity,
		MessageType: p.CommandType,
		Payload:     p.Payload,
		RequestID:   p.RequestID,
		// EventID is pinned to the caller's RequestID so resubmitting the
		// same requestId dedupes through the store's normal eventId check
		// (I5), rather than minting a fresh id per submission.
		EventID: p.RequestID,
	})
	if err != nil {
		c.sendError(ctx, req, err)
		return
	}
	if result.Duplicate {
		metrics.CommandIdempotentReplaysTotal.Inc()
	}
	_ = c.ch.SendResponse(ctx, ipc.Response{
		RequestID: req.RequestID, ClientConnID: req.ClientConnID, Kind: ipc.KindCommandResponse,
		CommandResponse: &ipc.CommandResponsePayload{
			EventID: result.EventID, RequestID: p.RequestID, Idempotent: result.Duplicate,
		},
	})
}

func (c *Core) handleIngestMetadata(ctx context.Context, req ipc.Request) {
	p := req.IngestMetadata
	result, err := c.normalizer.Insert(ctx, truth.Event{
		ScopeID:     p.ScopeID,
		Lane:        truth.LaneMetadata,
		Identity:    p.Identity,
		MessageType: p.MessageType,
		Payload:     p.Payload,
	})
	if err != nil {
		c.sendError(ctx, req, err)
		return
	}
	_ = c.ch.SendResponse(ctx, ipc.Response{
		RequestID: req.RequestID, ClientConnID: req.ClientConnID, Kind: ipc.KindIngestAck,
		IngestAck: &ipc.IngestAckPayload{EventID: result.EventID},
	})
}

func (c *Core) handleExport(ctx context.Context, req ipc.Request) {
	p := req.Export
	exportID := req.RequestID
	path, err := c.exporter.Run(ctx, export.Request{
		ExportID:  exportID,
		ScopeID:   p.ScopeID,
		Filters:   p.Filters,
		StartTime: p.StartTime,
		StopTime:  p.StopTime,
	})
	if err != nil {
		c.sendError(ctx, req, err)
		return
	}
	_ = c.ch.SendResponse(ctx, ipc.Response{
		RequestID: req.RequestID, ClientConnID: req.ClientConnID, Kind: ipc.KindExportResponse,
		ExportResponse: &ipc.ExportResponsePayload{ExportID: exportID, DownloadURL: "/exports/" + exportID + ".zip"},
	})
	log.WithComponent("core").Info().Str("exportId", exportID).Str("path", path).Msg("export complete")
}

func (c *Core) sendError(ctx context.Context, req ipc.Request, err error) {
	payload := &ipc.ErrorPayload{Message: "internal error"}
	if err != nil {
		payload.Kind = string(errs.KindOf(err))
		payload.Message = err.Error()
	}
	_ = c.ch.SendResponse(ctx, ipc.Response{
		RequestID: req.RequestID, ClientConnID: req.ClientConnID, Kind: ipc.KindErrorResponse, Error: payload,
	})
}
