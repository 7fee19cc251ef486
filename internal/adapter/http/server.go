// Package http exposes health, metrics, and the tracking control surface.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/visit-tracker/internal/domain"
	"github.com/couchcryptid/visit-tracker/internal/tracker"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// VisitService is the visit-facing API consumed by the handlers.
type VisitService interface {
	CurrentVisit() (domain.Visit, bool)
	RetryGeocoding(ctx context.Context, visitID string) error
	DeleteAllData(ctx context.Context) error
}

// ModeService is the tracking-mode API consumed by the handlers.
type ModeService interface {
	EnableTracking(ctx context.Context)
	DisableTracking(ctx context.Context)
	EnableContinuous(ctx context.Context)
	DisableContinuous(ctx context.Context)
	Mode() tracker.Mode
	Permission() domain.PermissionStatus
	Remaining() (time.Duration, tracker.RemainingStatus)
}

// Server exposes health, readiness, metrics, and tracking control endpoints.
type Server struct {
	httpServer *http.Server
	visits     VisitService
	modes      ModeService
	logger     *slog.Logger
}

// NewServer creates the HTTP server and wires all routes.
func NewServer(addr string, ready ReadinessChecker, visits VisitService, modes ModeService, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		visits: visits,
		modes:  modes,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("POST /v1/tracking/enable", s.handleEnableTracking)
	mux.HandleFunc("POST /v1/tracking/disable", s.handleDisableTracking)
	mux.HandleFunc("POST /v1/continuous/enable", s.handleEnableContinuous)
	mux.HandleFunc("POST /v1/continuous/disable", s.handleDisableContinuous)
	mux.HandleFunc("GET /v1/visits/current", s.handleCurrentVisit)
	mux.HandleFunc("POST /v1/visits/{id}/geocode", s.handleRetryGeocode)
	mux.HandleFunc("DELETE /v1/data", s.handleDeleteData)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// statusResponse is the /v1/status body. RemainingSeconds is present only
// while continuous tracking runs under a time limit.
type statusResponse struct {
	Mode             tracker.Mode            `json:"mode"`
	Permission       domain.PermissionStatus `json:"permission"`
	Remaining        tracker.RemainingStatus `json:"remaining"`
	RemainingSeconds *float64                `json:"remaining_seconds,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	remaining, status := s.modes.Remaining()

	resp := statusResponse{
		Mode:       s.modes.Mode(),
		Permission: s.modes.Permission(),
		Remaining:  status,
	}
	if status == tracker.RemainingRunning {
		secs := remaining.Seconds()
		resp.RemainingSeconds = &secs
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnableTracking(w http.ResponseWriter, r *http.Request) {
	s.modes.EnableTracking(r.Context())
	s.handleStatus(w, r)
}

func (s *Server) handleDisableTracking(w http.ResponseWriter, r *http.Request) {
	s.modes.DisableTracking(r.Context())
	s.handleStatus(w, r)
}

func (s *Server) handleEnableContinuous(w http.ResponseWriter, r *http.Request) {
	s.modes.EnableContinuous(r.Context())
	s.handleStatus(w, r)
}

func (s *Server) handleDisableContinuous(w http.ResponseWriter, r *http.Request) {
	s.modes.DisableContinuous(r.Context())
	s.handleStatus(w, r)
}

func (s *Server) handleCurrentVisit(w http.ResponseWriter, _ *http.Request) {
	v, ok := s.visits.CurrentVisit()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no current visit"})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRetryGeocode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.visits.RetryGeocoding(r.Context(), id); err != nil {
		if errors.Is(err, tracker.ErrVisitNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "visit not found"})
			return
		}
		if errors.Is(err, tracker.ErrGeocodingDisabled) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "geocoding is disabled"})
			return
		}
		s.logger.Error("retry geocoding failed", "visit_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "geocoding scheduled"})
}

func (s *Server) handleDeleteData(w http.ResponseWriter, r *http.Request) {
	if err := s.visits.DeleteAllData(r.Context()); err != nil {
		s.logger.Error("delete data failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
