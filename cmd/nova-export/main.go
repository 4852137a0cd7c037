// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT

// nova-export runs one export window directly against a Truth Store,
// bypassing the Core/IPC path entirely. It is meant for operators producing
// an archive offline (backup tooling, CI fixtures) without standing up the
// full node.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nova-telemetry/nova/internal/export"
	xglog "github.com/nova-telemetry/nova/internal/log"
	"github.com/nova-telemetry/nova/internal/truth"
	"github.com/nova-telemetry/nova/internal/version"
)

func main() {
	storePath := flag.String("store", "", "path to the truth store data directory")
	outputRoot := flag.String("out", "", "directory to write the export archive into")
	workRoot := flag.String("work", "", "scratch directory for driver output trees (defaults to <out>/.work)")
	scopeID := flag.String("scope", "", "scope to export")
	lanesFlag := flag.String("lanes", "raw,parsed,metadata,ui,command,stream", "comma-separated lanes to include")
	start := flag.String("start", "", "RFC3339 start time (inclusive)")
	stop := flag.String("stop", "", "RFC3339 stop time (inclusive)")
	exportID := flag.String("id", "", "export id; defaults to a timestamp-derived name")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	xglog.Configure(xglog.Config{Level: "info", Service: "nova-export", Version: version.Version})
	logger := xglog.WithComponent("nova-export")

	if *storePath == "" || *outputRoot == "" || *scopeID == "" || *start == "" || *stop == "" {
		logger.Fatal().Msg("-store, -out, -scope, -start and -stop are required")
	}

	startTime, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		logger.Fatal().Err(err).Str("value", *start).Msg("invalid -start")
	}
	stopTime, err := time.Parse(time.RFC3339, *stop)
	if err != nil {
		logger.Fatal().Err(err).Str("value", *stop).Msg("invalid -stop")
	}

	lanes := truth.LaneSet{}
	for _, l := range strings.Split(*lanesFlag, ",") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lane := truth.Lane(l)
		if !lane.Valid() {
			logger.Fatal().Str("lane", l).Msg("unknown lane")
		}
		lanes[lane] = struct{}{}
	}

	id := *exportID
	if id == "" {
		id = fmt.Sprintf("export-%d", time.Now().UTC().Unix())
	}

	work := *workRoot
	if work == "" {
		work = filepath.Join(*outputRoot, ".work")
	}

	ctx, stopSig := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSig()

	store, err := truth.Open(*storePath)
	if err != nil {
		logger.Fatal().Err(err).Str("store", *storePath).Msg("failed to open truth store")
	}
	defer store.Close()

	pipeline := export.New(store, work, *outputRoot)

	path, err := pipeline.Run(ctx, export.Request{
		ExportID:  id,
		ScopeID:   *scopeID,
		Lanes:     lanes,
		StartTime: startTime,
		StopTime:  stopTime,
	})
	if err != nil {
		logger.Fatal().Err(err).Str("exportId", id).Msg("export failed")
	}

	logger.Info().Str("exportId", id).Str("path", path).Msg("export complete")
	fmt.Println(path)
}
