// Package api exposes the fieldclock HTTP surface: clock endpoints, area
// administration, plausibility checks, health and metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fieldclock/fieldclock/pkg/attendance"
	"github.com/fieldclock/fieldclock/pkg/geofence"
	"github.com/fieldclock/fieldclock/pkg/gps"
	"github.com/fieldclock/fieldclock/pkg/logx"
)

// Server is the fieldclockd HTTP server.
type Server struct {
	service   *attendance.Service
	validator *gps.Validator
	engine    *gps.Engine
	hub       *Hub
	logger    *logx.Logger
	httpSrv   *http.Server
	startTime time.Time
}

// Config holds the server settings and collaborators.
type Config struct {
	Host      string
	Port      int
	Service   *attendance.Service
	Validator *gps.Validator
	Engine    *gps.Engine
	Registry  *prometheus.Registry
	Logger    *logx.Logger
}

// NewServer builds the router and server.
func NewServer(cfg Config) *Server {
	s := &Server{
		service:   cfg.Service,
		validator: cfg.Validator,
		engine:    cfg.Engine,
		hub:       NewHub(cfg.Logger),
		logger:    cfg.Logger,
		startTime: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	r.Get("/ws", s.hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Post("/clock", s.handleClock)
		r.Post("/validate", s.handleValidate)
		r.Get("/location", s.handleLocation)

		r.Route("/areas", func(r chi.Router) {
			r.Get("/", s.handleListAreas)
			r.Post("/", s.handleCreateArea)
			r.Put("/{id}", s.handleUpdateArea)
			r.Delete("/{id}", s.handleDeleteArea)
		})

		r.Get("/staff/{id}/day", s.handleStaffDay)
	})

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	}
	return s
}

// Start begins serving. Blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server and disconnects websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"uptime_s": int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleClock(w http.ResponseWriter, r *http.Request) {
	var req attendance.ClockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	rec, err := s.service.Clock(r.Context(), &req)
	if err != nil {
		writeError(w, clockStatusCode(err), err)
		return
	}

	s.hub.Broadcast(rec)
	writeJSON(w, http.StatusCreated, rec)
}

// clockStatusCode maps acquisition error kinds onto HTTP statuses so clients
// can distinguish actionable permission failures from retryable timeouts.
func clockStatusCode(err error) int {
	switch {
	case errors.Is(err, gps.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, gps.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, gps.ErrUnsupported):
		return http.StatusNotImplemented
	case errors.Is(err, gps.ErrPositionUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var reading gps.Reading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid reading: %w", err))
		return
	}

	quick := r.URL.Query().Get("quick") == "true"
	if quick {
		writeJSON(w, http.StatusOK, map[string]bool{
			"is_valid": gps.QuickValidate(reading, time.Now()),
		})
		return
	}

	writeJSON(w, http.StatusOK, s.validator.Validate(reading))
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusNotImplemented, gps.ErrUnsupported)
		return
	}

	loc, err := s.engine.EnhancedLocation(r.Context(), nil)
	if err != nil {
		writeError(w, clockStatusCode(err), err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleListAreas(w http.ResponseWriter, r *http.Request) {
	areas, err := s.service.ListAreas()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, areas)
}

func (s *Server) handleCreateArea(w http.ResponseWriter, r *http.Request) {
	var area geofence.Area
	if err := json.NewDecoder(r.Body).Decode(&area); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid area: %w", err))
		return
	}

	if err := s.service.CreateArea(&area); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, area)
}

func (s *Server) handleUpdateArea(w http.ResponseWriter, r *http.Request) {
	var area geofence.Area
	if err := json.NewDecoder(r.Body).Decode(&area); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid area: %w", err))
		return
	}
	area.ID = chi.URLParam(r, "id")

	if err := s.service.UpdateArea(&area); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, area)
}

func (s *Server) handleDeleteArea(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteArea(chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStaffDay(w http.ResponseWriter, r *http.Request) {
	staffID := chi.URLParam(r, "id")

	day := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid date %q: %w", raw, err))
			return
		}
		day = parsed
	}

	records, score, err := s.service.Day(staffID, day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"score":   score,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
