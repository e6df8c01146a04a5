// Package httpapi exposes the engine over HTTP: operational endpoints for
// probes and metrics, and a small JSON API for reports, zones, forecasts,
// and trust queries.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atlas-alert/hazard-engine/internal/domain"
	"github.com/atlas-alert/hazard-engine/internal/zone"
)

// Engine is the slice of orchestrator operations the API serves.
type Engine interface {
	IngestSignal(ctx context.Context, raw domain.RawSignal) (domain.Signal, error)
	ActiveZones(ctx context.Context) ([]domain.Zone, error)
	GetZone(ctx context.Context, id string) (domain.Zone, error)
	TriggerClustering(ctx context.Context, p domain.GeoPoint) ([]domain.ZoneEvent, error)
	PredictEscalation(ctx context.Context, loc domain.GeoPoint) (domain.EscalationForecast, error)
	ComputeTrustScore(ctx context.Context, userID string) (domain.TrustProfile, error)
	RecordVerification(ctx context.Context, signalID string, event domain.TrustEvent) error
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the hazard engine HTTP surface.
type Server struct {
	httpServer *http.Server
	engine     Engine
	logger     *slog.Logger
}

// NewServer creates an HTTP server with probe, metrics, and API routes.
func NewServer(addr string, engine Engine, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine: engine,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/v1/signals/report", s.handleSignal(domain.SourceReport))
	mux.HandleFunc("POST /api/v1/signals/social", s.handleSignal(domain.SourceSocial))
	mux.HandleFunc("GET /api/v1/zones", s.handleActiveZones)
	mux.HandleFunc("GET /api/v1/zones/{id}", s.handleGetZone)
	mux.HandleFunc("POST /api/v1/cluster", s.handleTriggerClustering)
	mux.HandleFunc("POST /api/v1/predict", s.handlePredict)
	mux.HandleFunc("GET /api/v1/trust/{userID}", s.handleTrustScore)
	mux.HandleFunc("POST /api/v1/verifications", s.handleVerification)

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

// handleSignal accepts a raw signal over HTTP, bypassing the broker. The
// source kind comes from the route, not the payload.
func (s *Server) handleSignal(source domain.SourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var raw domain.RawSignal
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		raw.Source = source

		sig, err := s.engine.IngestSignal(r.Context(), raw)
		if err != nil {
			if isValidationError(err) {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			s.logger.Error("ingest via http failed", "error", err)
			writeError(w, http.StatusInternalServerError, "ingest failed")
			return
		}
		writeJSON(w, http.StatusAccepted, sig)
	}
}

func (s *Server) handleActiveZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.engine.ActiveZones(r.Context())
	if err != nil {
		s.logger.Error("list zones failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list zones failed")
		return
	}
	if zones == nil {
		zones = []domain.Zone{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"zones": zones, "count": len(zones)})
}

func (s *Server) handleGetZone(w http.ResponseWriter, r *http.Request) {
	z, err := s.engine.GetZone(r.Context(), r.PathValue("id"))
	if err != nil {
		if zone.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "zone not found")
			return
		}
		s.logger.Error("get zone failed", "error", err)
		writeError(w, http.StatusInternalServerError, "get zone failed")
		return
	}
	writeJSON(w, http.StatusOK, z)
}

type pointRequest struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (s *Server) handleTriggerClustering(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	events, err := s.engine.TriggerClustering(r.Context(), domain.GeoPoint{Lat: req.Lat, Lon: req.Lon})
	if err != nil {
		if errors.Is(err, domain.ErrPartitionBusy) {
			writeError(w, http.StatusConflict, "clustering already running for this area")
			return
		}
		s.logger.Error("trigger clustering failed", "error", err)
		writeError(w, http.StatusInternalServerError, "clustering failed")
		return
	}
	if events == nil {
		events = []domain.ZoneEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"zone_events": events, "count": len(events)})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fc, err := s.engine.PredictEscalation(r.Context(), domain.GeoPoint{Lat: req.Lat, Lon: req.Lon})
	if err != nil {
		s.logger.Error("escalation forecast failed", "error", err)
		writeError(w, http.StatusInternalServerError, "forecast failed")
		return
	}
	writeJSON(w, http.StatusOK, fc)
}

func (s *Server) handleTrustScore(w http.ResponseWriter, r *http.Request) {
	profile, err := s.engine.ComputeTrustScore(r.Context(), r.PathValue("userID"))
	if err != nil {
		s.logger.Error("trust score failed", "error", err)
		writeError(w, http.StatusInternalServerError, "trust score failed")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type verificationRequest struct {
	SignalID     string  `json:"signal_id"`
	UserID       string  `json:"user_id"`
	Outcome      string  `json:"outcome"`
	Confidence   float64 `json:"confidence"`
	Source       string  `json:"source"`
	TimeToVerify string  `json:"time_to_verify,omitempty"`
}

func (s *Server) handleVerification(w http.ResponseWriter, r *http.Request) {
	var req verificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusUnprocessableEntity, "user_id is required")
		return
	}
	outcome, ok := parseOutcome(req.Outcome)
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, "unknown verification outcome")
		return
	}

	event := domain.TrustEvent{
		UserID:     req.UserID,
		Outcome:    outcome,
		OccurredAt: domain.Now(),
		Confidence: domain.Clamp01(req.Confidence),
		Source:     req.Source,
	}
	if req.TimeToVerify != "" {
		d, err := time.ParseDuration(req.TimeToVerify)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "invalid time_to_verify duration")
			return
		}
		event.TimeToVerify = d
	}

	if err := s.engine.RecordVerification(r.Context(), req.SignalID, event); err != nil {
		s.logger.Error("record verification failed", "error", err)
		writeError(w, http.StatusInternalServerError, "record verification failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

func parseOutcome(s string) (domain.VerificationOutcome, bool) {
	switch domain.VerificationOutcome(s) {
	case domain.VerifiedCorrect, domain.VerifiedIncorrect, domain.PartiallyCorrect,
		domain.Unverified, domain.FalseAlarm:
		return domain.VerificationOutcome(s), true
	}
	return "", false
}

func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrInvalidCoordinates) ||
		errors.Is(err, domain.ErrEmptyText) ||
		errors.Is(err, domain.ErrUnknownSource)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response write
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
