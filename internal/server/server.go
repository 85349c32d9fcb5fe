/*
 * MIT License
 *
 * Copyright (c) 2026 The netspeed Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package server exposes the HTTP API: file listings and previews, the
// search surface, statistics timelines and ingest triggers. Handlers only
// call into the core services; index names and ingest sequencing stay with
// the orchestrator.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/phoneinv/netspeed/internal/citymap"
	"github.com/phoneinv/netspeed/internal/config"
	"github.com/phoneinv/netspeed/internal/files"
	"github.com/phoneinv/netspeed/internal/ingest"
	"github.com/phoneinv/netspeed/internal/metrics"
	"github.com/phoneinv/netspeed/internal/queue"
	"github.com/phoneinv/netspeed/internal/search"
	"github.com/phoneinv/netspeed/internal/state"
	"github.com/phoneinv/netspeed/internal/stats"
	"github.com/phoneinv/netspeed/pkg/version"
)

// healthTimeout bounds the engine and broker pings of one health probe.
const healthTimeout = 5 * time.Second

// Searcher is the read-side slice of the search driver.
type Searcher interface {
	Search(ctx context.Context, layout *files.Layout, opts search.Options) (*search.Result, error)
	Ping(ctx context.Context) error
}

// Stats is the read-side slice of the statistics engine.
type Stats interface {
	CurrentSnapshot(ctx context.Context, file string) (map[string]any, bool, error)
	LocationDetails(ctx context.Context, file, date string) ([]map[string]any, error)
	GlobalTimeline(ctx context.Context, limit int) ([]stats.TimelineEntry, error)
	LocationTimeline(ctx context.Context, q string, limit int) ([]stats.TimelineEntry, error)
	TopLocations(ctx context.Context, opts stats.TopOptions) (*stats.TopResult, error)
	Cities(ctx context.Context) ([]string, error)
	ArchiveRows(ctx context.Context, date, file string, size int) (*stats.ArchiveResult, error)
}

// Ingest is the trigger surface of the orchestrator. Everything that writes
// to the engine goes through it.
type Ingest interface {
	TriggerRebuild(ctx context.Context, trigger string) string
	TriggerReindexCurrent(ctx context.Context) string
	TriggerCleanRebuild(ctx context.Context, includeHistorical bool, trigger string) (string, error)
	Status() (*state.Document, error)
}

// Broker is the queue-client slice used for health probes and stats rebuilds.
type Broker interface {
	Ping(ctx context.Context) error
	EnqueueStatsRebuild(ctx context.Context, directory string) (string, error)
}

var (
	_ Searcher = (*search.Driver)(nil)
	_ Stats    = (*stats.Engine)(nil)
	_ Ingest   = (*ingest.Controller)(nil)
	_ Broker   = (*queue.Client)(nil)
)

// Services are the core collaborators the handlers call into.
type Services struct {
	Files  *files.Service
	Search Searcher
	Stats  Stats
	Ingest Ingest
	Broker Broker
	Cities *citymap.Map
}

// Server routes the HTTP API onto the core services.
type Server struct {
	cfg     *config.Config
	svc     Services
	logger  *slog.Logger
	router  *mux.Router
	handler http.Handler

	startedAt time.Time
}

// NewServer wires the routes. The listener is owned by the caller; Server
// only implements http.Handler.
func NewServer(logger *slog.Logger, cfg *config.Config, svc Services) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:       cfg,
		svc:       svc,
		logger:    logger.With("component", "server"),
		router:    mux.NewRouter(),
		startedAt: time.Now(),
	}
	s.setupRoutes()
	// CORS wraps the router rather than joining its middleware chain: mux
	// runs Use middleware only on matched routes, and preflight OPTIONS
	// never matches the method-restricted routes.
	s.handler = corsMiddleware(s.router)
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", s.handleVersion).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	filesAPI := api.PathPrefix("/files").Subrouter()
	filesAPI.HandleFunc("", s.handleListFiles).Methods("GET")
	filesAPI.HandleFunc("/", s.handleListFiles).Methods("GET")
	filesAPI.HandleFunc("/netspeed_info", s.handleFileInfo).Methods("GET")
	filesAPI.HandleFunc("/preview", s.handlePreview).Methods("GET")
	filesAPI.HandleFunc("/columns", s.handleColumns).Methods("GET")
	filesAPI.HandleFunc("/download/{filename}", s.handleDownload).Methods("GET")
	filesAPI.HandleFunc("/reindex", s.handleReindex).Methods("GET")
	filesAPI.HandleFunc("/reindex/current", s.handleReindexCurrent).Methods("GET")
	filesAPI.HandleFunc("/index/status", s.handleIndexStatus).Methods("GET")

	searchAPI := api.PathPrefix("/search").Subrouter()
	searchAPI.HandleFunc("", s.handleSearch).Methods("GET")
	searchAPI.HandleFunc("/", s.handleSearch).Methods("GET")
	searchAPI.HandleFunc("/export", s.handleSearchExport).Methods("GET")
	searchAPI.HandleFunc("/index/all", s.handleReindex).Methods("GET")
	searchAPI.HandleFunc("/index/rebuild", s.handleIndexRebuild).Methods("POST")
	searchAPI.HandleFunc("/index/status/{task_id}", s.handleTaskStatus).Methods("GET")

	statsAPI := api.PathPrefix("/stats").Subrouter()
	statsAPI.HandleFunc("/current", s.handleStatsCurrent).Methods("GET")
	statsAPI.HandleFunc("/timeline", s.handleTimeline).Methods("GET")
	statsAPI.HandleFunc("/timeline/by_location", s.handleTimelineByLocation).Methods("GET")
	statsAPI.HandleFunc("/timeline/top_locations", s.handleTopLocations).Methods("GET")
	statsAPI.HandleFunc("/timeline/rebuild", s.handleStatsRebuild).Methods("POST")
	statsAPI.HandleFunc("/archive", s.handleStatsArchive).Methods("GET")
	statsAPI.HandleFunc("/cities", s.handleStatsCities).Methods("GET")
}

// corsMiddleware adds CORS headers and short-circuits preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs requests and feeds the latency histogram. The
// histogram is labeled with the route template, not the raw path.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", elapsed,
		)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// handleVersion reports the build metadata.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{
		"version": version.Version,
		"commit":  version.Commit,
		"date":    version.Date,
	})
}

// handleHealth probes the engine, the broker and the data volume. A dead
// engine answers 503 because every search and stats read depends on it; a
// dead broker only degrades the report since ingest falls back to inline
// execution.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	health := map[string]any{
		"status":  "ok",
		"version": version.Version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	}

	engineUp := true
	if err := s.svc.Search.Ping(ctx); err != nil {
		engineUp = false
		health["engine"] = map[string]any{"status": "down", "error": err.Error()}
	} else {
		health["engine"] = map[string]any{"status": "ok"}
	}

	if err := s.svc.Broker.Ping(ctx); err != nil {
		health["queue"] = map[string]any{"status": "down", "error": err.Error()}
		health["status"] = "degraded"
	} else {
		health["queue"] = map[string]any{"status": "ok"}
	}

	if usage, err := disk.Usage(s.cfg.DataDir); err != nil {
		s.logger.Warn("failed to stat data volume", "dir", s.cfg.DataDir, "error", err)
	} else {
		health["disk"] = map[string]any{
			"path":         s.cfg.DataDir,
			"total_bytes":  usage.Total,
			"free_bytes":   usage.Free,
			"used_percent": math.Round(usage.UsedPercent*10) / 10,
		}
	}

	if !engineUp {
		health["status"] = "degraded"
		s.writeJSONStatus(w, http.StatusServiceUnavailable, health)
		return
	}
	s.writeJSON(w, health)
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	s.writeJSONStatus(w, http.StatusOK, data)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to write json response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, message string, status int) {
	s.writeJSONStatus(w, status, map[string]string{"error": message})
}

// writeServiceError maps core errors onto the API status codes: 404 for
// unknown files, 400 for rejected input, 503 when the engine is down, 504
// when a query ran out of time, 500 for everything else.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, files.ErrNotFound):
		s.writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, stats.ErrInvalidLocation), errors.Is(err, search.ErrEmptyQuery):
		s.writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, search.ErrUnavailable):
		s.writeError(w, "search engine unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, search.ErrTimeout):
		s.writeError(w, "search timed out, narrow the query or raise SEARCH_TIMEOUT_SECONDS", http.StatusGatewayTimeout)
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, err.Error(), http.StatusInternalServerError)
	}
}

// queryInt reads an integer query parameter, applying def when absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

// queryBool reads a boolean query parameter; absent means false.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	return parseBoolParam(name, raw)
}
