// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package server

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nova-telemetry/nova/internal/errs"
)

// listExportArchives reads the export pipeline's output directory and
// returns every finished {exportId}.zip archive, newest first.
func (s *Server) listExportArchives() ([]exportListing, error) {
	entries, err := os.ReadDir(s.exporter.OutputRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.New("server.listExportArchives", errs.StoreUnavailable, err)
	}

	listings := make([]exportListing, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zip") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		exportID := strings.TrimSuffix(e.Name(), ".zip")
		listings = append(listings, exportListing{
			ExportID:    exportID,
			CreatedAt:   info.ModTime().UTC(),
			DownloadURL: "/exports/" + exportID + ".zip",
		})
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].CreatedAt.After(listings[j].CreatedAt) })
	return listings, nil
}

func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	listings, err := s.listExportArchives()
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// handleDownloadExport serves a previously produced export archive. The
// export ID is a UUID minted by the pipeline, so no path-traversal
// characters survive the extension check below.
func (s *Server) handleDownloadExport(w http.ResponseWriter, r *http.Request) {
	exportID := chi.URLParam(r, "exportId")
	if exportID == "" || strings.ContainsAny(exportID, "/\\.") {
		respondError(w, r, errBadRequest)
		return
	}
	path := filepath.Join(s.exporter.OutputRoot(), exportID+".zip")
	if _, err := os.Stat(path); err != nil {
		respondError(w, r, errs.New("server.handleDownloadExport", errs.NotFound, err))
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=\""+exportID+".zip\"")
	http.ServeFile(w, r, path)
}
