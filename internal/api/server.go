// Package api serves read-only adaptation statistics over HTTP.
//
// The engine is single-threaded, so the server never touches it directly:
// it reads through a StatsProvider whose implementation (the driver)
// serialises access with a mutex. Snapshots are self-contained, so a
// response never races with engine activity.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cadence "github.com/cadence-rt/cadence"
)

// StatsProvider yields statistics snapshots safely from any goroutine.
type StatsProvider interface {
	FrameStatistics(id cadence.FrameID) cadence.FrameStatistics
	ExecFrameStatistics(id cadence.FrameID) cadence.ExecFrameStatistics
}

// Server is the statistics HTTP server.
type Server struct {
	stats    StatsProvider
	registry *prometheus.Registry // nil disables /metrics
}

// NewServer creates a server reading from the given provider.
func NewServer(stats StatsProvider) *Server {
	return &Server{stats: stats}
}

// EnableMetrics mounts /metrics for the given registry.
func (s *Server) EnableMetrics(registry *prometheus.Registry) {
	s.registry = registry
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/v1/frames/{id}/statistics", s.handleFrameStatistics)
	r.Get("/v1/frames/{id}/statistics.txt", s.handleFrameStatisticsText)
	r.Get("/v1/execframes/{id}/statistics", s.handleExecFrameStatistics)

	if s.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	return r
}

func (s *Server) handleFrameStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := frameIDParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.stats.FrameStatistics(id))
}

// handleFrameStatisticsText serves the report in the plain exit format the
// plotting tooling consumes.
func (s *Server) handleFrameStatisticsText(w http.ResponseWriter, r *http.Request) {
	id, ok := frameIDParam(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(s.stats.FrameStatistics(id).PrintString()))
}

func (s *Server) handleExecFrameStatistics(w http.ResponseWriter, r *http.Request) {
	id, ok := frameIDParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.stats.ExecFrameStatistics(id))
}

func frameIDParam(w http.ResponseWriter, r *http.Request) (cadence.FrameID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid frame id"})
		return 0, false
	}
	return cadence.FrameID(id), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
