// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/nova-telemetry/nova/internal/config"
	"github.com/nova-telemetry/nova/internal/core"
	"github.com/nova-telemetry/nova/internal/export"
	"github.com/nova-telemetry/nova/internal/fencing"
	"github.com/nova-telemetry/nova/internal/ipc"
	xglog "github.com/nova-telemetry/nova/internal/log"
	"github.com/nova-telemetry/nova/internal/manifest"
	"github.com/nova-telemetry/nova/internal/outputstream"
	"github.com/nova-telemetry/nova/internal/playback"
	"github.com/nova-telemetry/nova/internal/presentation"
	"github.com/nova-telemetry/nova/internal/runstore"
	"github.com/nova-telemetry/nova/internal/server"
	"github.com/nova-telemetry/nova/internal/telemetry"
	"github.com/nova-telemetry/nova/internal/truth"
	"github.com/nova-telemetry/nova/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	metricsAddr := flag.String("metrics-addr", ":9090", "listen address for the /metrics endpoint")
	tracingEnabled := flag.Bool("tracing-enabled", false, "enable OpenTelemetry trace export")
	tracingExporter := flag.String("tracing-exporter", "grpc", "OTLP exporter type: grpc or http")
	tracingEndpoint := flag.String("tracing-endpoint", "localhost:4317", "OTLP collector endpoint")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	xglog.Configure(xglog.Config{Level: "info", Service: "novad", Version: version.Version})
	logger := xglog.WithComponent("novad")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        *tracingEnabled,
		ServiceName:    "novad",
		ServiceVersion: version.Version,
		ExporterType:   *tracingExporter,
		Endpoint:       *tracingEndpoint,
		SamplingRate:   1.0,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("event", "tracing.init_failed").Msg("failed to initialize tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	loader := config.NewLoader(*configPath, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().Err(err).Str("event", "config.load_failed").Msg("failed to load configuration")
	}

	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "novad", Version: version.Version})
	logger = xglog.WithComponent("novad")

	holder := config.NewHolder(cfg, loader, *configPath)
	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Msg("config hot-reload watcher not started")
	}
	defer holder.Stop()

	logger.Info().
		Str("event", "startup").
		Str("version", version.Version).
		Str("nodeMode", cfg.NodeMode).
		Str("dataDir", cfg.DataDir).
		Str("listenAddr", cfg.Server.ListenAddr).
		Msg("starting novad")

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Msg("failed to create data directory")
	}

	store, err := truth.Open(cfg.TruthStore.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("event", "truth.open_failed").Msg("failed to open truth store")
	}
	defer store.Close()

	defs, err := outputstream.OpenDefinitionStore(cfg.StreamDefsDB.Path, outputstream.DefaultDefsConfig())
	if err != nil {
		logger.Fatal().Err(err).Str("event", "outputstream.open_failed").Msg("failed to open stream definitions store")
	}
	defer defs.Close()

	manifests := manifest.New()
	if err := store.ReplayLane(ctx, truth.LaneMetadata, func(ev truth.Event) {
		if ev.MessageType != "ManifestPublished" {
			return
		}
		if err := manifest.PublishFromEvent(manifests, ev.Payload); err != nil {
			logger.Warn().Err(err).Str("eventId", ev.EventID).Msg("manifest publish from event failed during replay")
		}
	}); err != nil {
		logger.Fatal().Err(err).Str("event", "manifest.replay_failed").Msg("failed to rebuild manifest registry from truth store")
	}

	exportWorkRoot := filepath.Join(cfg.DataDir, "export-work")
	exporter := export.New(store, exportWorkRoot, cfg.Export.Root)

	ch := ipc.NewChannel(cfg.IPC.QueueDepth)
	c := core.New(store, manifests, exporter, ch)

	streams := outputstream.NewManager(defs, c.Engine())
	if defList, err := streams.List(); err != nil {
		logger.Warn().Err(err).Msg("failed to list persisted stream definitions")
	} else {
		// Fan out the resume of every enabled definition's listener/sender so
		// one slow bind (e.g. a TCP port still held by a dying old process)
		// doesn't delay the rest of the fleet coming up.
		var g errgroup.Group
		for _, def := range defList {
			if !def.Enabled {
				continue
			}
			streamID := def.StreamID
			g.Go(func() error {
				if err := streams.Start(ctx, streamID); err != nil {
					logger.Error().Err(err).Str("streamId", streamID).Msg("failed to resume stream definition on startup")
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	runs := runstore.NewStore(cfg.DataDir)
	pres := presentation.NewStore(filepath.Join(cfg.DataDir, "presentation"))

	var fenceCache fencing.Cache
	if cfg.Server.FencingRedisAddr != "" {
		redisCache, err := fencing.NewRedisCache(ctx, fencing.RedisConfig{Addr: cfg.Server.FencingRedisAddr})
		if err != nil {
			logger.Fatal().Err(err).Str("event", "fencing.redis_connect_failed").Msg("failed to connect to fencing redis")
		}
		defer redisCache.Close()
		fenceCache = redisCache
	}

	srv := server.New(server.Config{
		ListenAddr:   cfg.Server.ListenAddr,
		DataDir:      cfg.DataDir,
		CookieName:   cfg.Server.CookieName,
		CookieSecure: cfg.Server.CookieSecure,
		NodeTimebase: playback.Timebase(cfg.DefaultTimebase),
		FenceCache:   fenceCache,
	}, ch, runs, pres, streams, manifests, exporter)

	metricsSrv := &http.Server{Addr: *metricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics listener stopped")
		}
	}()

	go c.Run(ctx)

	if err := srv.Run(ctx); err != nil {
		logger.Fatal().Err(err).Str("event", "server.failed").Msg("server edge failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	logger.Info().Msg("novad exiting")
}
