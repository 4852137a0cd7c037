// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nova-telemetry/nova/internal/export"
	"github.com/nova-telemetry/nova/internal/fencing"
	"github.com/nova-telemetry/nova/internal/ipc"
	"github.com/nova-telemetry/nova/internal/log"
	"github.com/nova-telemetry/nova/internal/manifest"
	"github.com/nova-telemetry/nova/internal/outputstream"
	"github.com/nova-telemetry/nova/internal/playback"
	"github.com/nova-telemetry/nova/internal/presentation"
	"github.com/nova-telemetry/nova/internal/runstore"
)

// Config parameterizes the Server Edge's HTTP surface.
type Config struct {
	ListenAddr   string
	DataDir      string
	CookieName   string
	CookieSecure bool
	NodeTimebase playback.Timebase

	// FenceCache mirrors per-connection playback fencing state so more than
	// one Server Edge replica can be run behind a load balancer. Nil means
	// single-replica: fencing.NewMemoryCache() is used instead.
	FenceCache fencing.Cache
}

// Server is the WebSocket and HTTP boundary between clients and the Core
// process (spec §4, §6). It owns per-connection fencing state and
// translates WebSocket/HTTP requests into ipc.Request values.
type Server struct {
	cfg Config

	ch           *ipc.Channel
	runs         *runstore.Store
	presentation *presentation.Store
	streams      *outputstream.Manager
	manifests    *manifest.Registry
	exporter     *export.Pipeline
	users        *userStore

	conns      *registry
	fenceCache fencing.Cache

	sessionsMu sync.RWMutex
	sessions   map[string]string // token -> username

	httpServer *http.Server
}

// New wires a Server from its already-constructed collaborators.
func New(cfg Config, ch *ipc.Channel, runs *runstore.Store, pres *presentation.Store, streams *outputstream.Manager, manifests *manifest.Registry, exporter *export.Pipeline) *Server {
	fenceCache := cfg.FenceCache
	if fenceCache == nil {
		fenceCache = fencing.NewMemoryCache()
	}
	s := &Server{
		cfg:          cfg,
		ch:           ch,
		runs:         runs,
		presentation: pres,
		streams:      streams,
		manifests:    manifests,
		exporter:     exporter,
		users:        newUserStore(cfg.DataDir),
		conns:        newRegistry(),
		fenceCache:   fenceCache,
		sessions:     map[string]string{},
	}
	pres.Notify = s.broadcastPresentationUpdate
	return s
}

func (s *Server) broadcastPresentationUpdate(u presentation.Update) {
	attrs, _ := marshalAttrs(u.Attrs)
	s.conns.broadcast(serverMessage{
		Type: msgPresentationUpdate, ScopeID: u.ScopeID, UniqueID: u.UniqueID, Attrs: attrs,
	})
}

// Run starts the Core->Server response pump and the HTTP listener, blocking
// until ctx is cancelled or ListenAndServe returns.
func (s *Server) Run(ctx context.Context) error {
	go s.pumpResponses(ctx)

	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           otelhttp.NewHandler(s.routes(), "server.http"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// pumpResponses drains the IPC response queue and routes each one to the
// connection it targets, applying playback fencing on stream chunks.
func (s *Server) pumpResponses(ctx context.Context) {
	for {
		select {
		case resp, ok := <-s.ch.Responses():
			if !ok {
				return
			}
			s.dispatchResponse(resp)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) dispatchResponse(resp ipc.Response) {
	conn, ok := s.conns.get(resp.ClientConnID)
	if !ok {
		return
	}

	switch resp.Kind {
	case ipc.KindQueryResponse:
		conn.enqueue(serverMessage{Type: msgQueryResponse, RequestID: resp.RequestID, Events: resp.QueryResponse.Events})
	case ipc.KindStreamStarted:
		conn.setActivePlayback(resp.StreamStarted.PlaybackRequestID)
		conn.enqueue(serverMessage{Type: msgStreamStarted, RequestID: resp.RequestID, PlaybackRequestID: resp.StreamStarted.PlaybackRequestID})
	case ipc.KindStreamChunk:
		if !conn.admits(resp.StreamChunk.PlaybackRequestID) {
			return
		}
		conn.enqueue(serverMessage{
			Type: msgStreamChunk, PlaybackRequestID: resp.StreamChunk.PlaybackRequestID,
			Events: resp.StreamChunk.Events, Complete: resp.StreamChunk.Complete,
		})
	case ipc.KindCommandResponse:
		conn.enqueue(serverMessage{
			Type: msgCommandResponse, RequestID: resp.RequestID,
			EventID: resp.CommandResponse.EventID, Idempotent: resp.CommandResponse.Idempotent,
		})
	case ipc.KindExportResponse:
		conn.enqueue(serverMessage{
			Type: msgExportResponse, RequestID: resp.RequestID,
			ExportID: resp.ExportResponse.ExportID, DownloadURL: resp.ExportResponse.DownloadURL,
		})
	case ipc.KindIngestAck:
		conn.enqueue(serverMessage{Type: msgCommandResponse, RequestID: resp.RequestID, EventID: resp.IngestAck.EventID})
	case ipc.KindErrorResponse:
		conn.enqueue(serverMessage{Type: msgError, RequestID: resp.RequestID, Error: resp.Error.Message})
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestContextLogger)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/config", s.handleConfig)

	r.With(rateLimit(20, time.Minute)).Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)

	rAuth := r.With(s.authMiddleware)
	rAuth.Get("/auth/me", s.handleMe)
	rAuth.Get("/ws", s.handleWebSocket)

	rAuth.Get("/api/runs", s.handleListRuns)
	rAuth.Post("/api/runs", s.handleCreateRun)
	rAuth.Get("/api/runs/{runNumber}", s.handleGetRun)
	rAuth.Put("/api/runs/{runNumber}", s.handleUpdateRun)
	rAuth.Delete("/api/runs/{runNumber}", s.handleDeleteRun)
	rAuth.Post("/api/runs/{runNumber}/bundle", s.handleCreateBundle)

	rAuth.Get("/api/presentation/{scopeId}/{uniqueId}", s.handleResolvePresentation)
	rAuth.Put("/api/presentation/user/{uniqueId}", s.handleWriteUserPresentation)

	rAdmin := rAuth.With(s.requireScope("ALL"))
	rAdmin.Put("/api/presentation/admin/{uniqueId}", s.handleWriteAdminPresentation)
	rAdmin.Post("/api/admin/users", s.handleRegisterUser)

	rAuth.Get("/api/streams", s.handleListStreams)
	rAuth.Post("/api/streams", s.handleCreateStream)
	rAuth.Put("/api/streams/{streamId}", s.handleUpdateStream)
	rAuth.Delete("/api/streams/{streamId}", s.handleDeleteStream)
	rAuth.Get("/api/streams/{streamId}/ws", s.handleStreamWebSocket)
	rAuth.Post("/api/streams/{streamId}/bind", s.handleBindStream)
	rAuth.Post("/api/streams/{streamId}/unbind", s.handleUnbindStream)

	rAuth.Get("/exports", s.handleListExports)
	rAuth.Get("/exports/{exportId}.zip", s.handleDownloadExport)

	return r
}

func requestContextLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := chimw.GetReqID(r.Context())
		ctx := log.ContextWithRequestID(r.Context(), reqID)
		logger := log.WithComponent("server")
		ctx = logger.WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"manifests": s.manifests.Catalog(),
		"timebase":  s.cfg.NodeTimebase,
	})
}
