// Package api exposes the monitor over HTTP and a live websocket feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"impact-backend/internal/database"
	"impact-backend/internal/gcs"
	"impact-backend/internal/models"
	"impact-backend/internal/report"
	"impact-backend/internal/services"
)

// Monitor is the device lifecycle the API drives
type Monitor interface {
	Start(ctx context.Context, deviceID string) error
	Stop(ctx context.Context, deviceID string) error
	Calibrate(ctx context.Context, deviceID string) error
	Active() []services.DeviceStatus
}

// EventLister returns the in-memory display list of a device
type EventLister interface {
	Events(deviceID string) []models.InjuryRecord
}

// manualInjuryRequest is the body of POST /api/injuries
type manualInjuryRequest struct {
	Region     string  `json:"region"`
	MeshName   string  `json:"mesh_name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Eye        int     `json:"eye"`
	Verbal     int     `json:"verbal"`
	Motor      int     `json:"motor"`
	InjuryDate string  `json:"injury_date"`
}

// Server routes the HTTP API
type Server struct {
	router   *mux.Router
	monitor  Monitor
	events   EventLister
	store    database.Store
	hub      *Hub
	gatherer prometheus.Gatherer
	now      func() time.Time
}

// NewServer creates the API server and registers its routes
func NewServer(
	monitor Monitor,
	events EventLister,
	store database.Store,
	hub *Hub,
	gatherer prometheus.Gatherer,
) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		monitor:  monitor,
		events:   events,
		store:    store,
		hub:      hub,
		gatherer: gatherer,
		now:      time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(logRequests)

	api := s.router.PathPrefix("/api").Subrouter()

	// Device lifecycle
	api.HandleFunc("/devices", s.handleListDevices).Methods("GET")
	api.HandleFunc("/devices/{id}/start", s.handleStart).Methods("POST")
	api.HandleFunc("/devices/{id}/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/devices/{id}/calibrate", s.handleCalibrate).Methods("POST")
	api.HandleFunc("/devices/{id}/events", s.handleDeviceEvents).Methods("GET")

	// History
	api.HandleFunc("/records", s.handleRecords).Methods("GET")
	api.HandleFunc("/report", s.handleReport).Methods("GET")
	api.HandleFunc("/injuries", s.handleCreateInjury).Methods("POST")
	api.HandleFunc("/injuries", s.handleListInjuries).Methods("GET")

	if s.hub != nil {
		s.router.Handle("/ws", s.hub).Methods("GET")
	}
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Active())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	if err := s.monitor.Start(r.Context(), deviceID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "streaming", "device_id": deviceID})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	if err := s.monitor.Stop(r.Context(), deviceID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped", "device_id": deviceID})
}

func (s *Server) handleCalibrate(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]
	if err := s.monitor.Calibrate(r.Context(), deviceID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "calibrating", "device_id": deviceID})
}

func (s *Server) handleDeviceEvents(w http.ResponseWriter, r *http.Request) {
	events := s.events.Events(mux.Vars(r)["id"])
	if events == nil {
		events = []models.InjuryRecord{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	filter := database.InjuryFilter{DeviceID: r.URL.Query().Get("device_id")}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeErrorMessage(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = limit
	}

	records, err := s.store.QueryInjuries(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []models.InjuryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	tf := report.Month
	if v := r.URL.Query().Get("timeframe"); v != "" {
		parsed, err := report.ParseTimeframe(v)
		if err != nil {
			writeError(w, err)
			return
		}
		tf = parsed
	}

	records, err := s.store.QueryInjuries(r.Context(), database.InjuryFilter{DeviceID: r.URL.Query().Get("device_id")})
	if err != nil {
		writeError(w, err)
		return
	}

	summary, err := report.Summarize(records, tf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCreateInjury(w http.ResponseWriter, r *http.Request) {
	var req manualInjuryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.MeshName) == "" {
		writeErrorMessage(w, http.StatusBadRequest, "mesh_name is required")
		return
	}

	total, severity, err := gcs.Assess(gcs.Score{Eye: req.Eye, Verbal: req.Verbal, Motor: req.Motor})
	if err != nil {
		writeError(w, err)
		return
	}

	now := s.now()
	injury := models.ManualInjury{
		ID:          uuid.NewString(),
		Region:      req.Region,
		MeshName:    req.MeshName,
		X:           req.X,
		Y:           req.Y,
		Z:           req.Z,
		Eye:         req.Eye,
		Verbal:      req.Verbal,
		Motor:       req.Motor,
		Total:       total,
		Severity:    string(severity),
		InjuryDate:  req.InjuryDate,
		SubmittedAt: now,
	}
	if injury.InjuryDate == "" {
		injury.InjuryDate = now.Format(models.DateLayout)
	}

	if err := s.store.InsertManualInjury(r.Context(), &injury); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, injury)
}

func (s *Server) handleListInjuries(w http.ResponseWriter, r *http.Request) {
	injuries, err := s.store.QueryManualInjuries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if injuries == nil {
		injuries = []models.ManualInjury{}
	}
	writeJSON(w, http.StatusOK, injuries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().Unix(),
	})
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNotStreaming):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyStreaming):
		return http.StatusConflict
	case errors.Is(err, services.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, gcs.ErrScoreOutOfRange), errors.Is(err, report.ErrUnknownTimeframe):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("API: Internal error: %v", err)
	}
	writeErrorMessage(w, status, err.Error())
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: Error encoding response: %v", err)
	}
}

// statusRecorder captures the status code for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("API: %s %s %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond))
	})
}
