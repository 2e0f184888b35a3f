// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	service "github.com/okian/cupping/internal/app"
	"github.com/okian/cupping/internal/domain/model"
)

// Sessions is the session engine the HTTP layer drives.
type Sessions interface {
	CreateSession(ctx context.Context, in service.CreateSessionInput) (model.Session, error)
	TransitionStatus(ctx context.Context, requesterID, sessionID string, target model.Status) (model.Session, error)
	GetStatus(ctx context.Context, requesterID, sessionID string) (model.ViewerStatus, error)
	RecordTests(ctx context.Context, userID, sessionID, groupID string, tests []model.TestInput) (int, error)
	ViewSession(ctx context.Context, requesterID, sessionID string) (service.SessionView, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(sessions Sessions, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		sessionsHandler: NewSessionsHandler(sessions),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Use(RequireIdentity)
		r.Post("/", MetricsMiddleware(s.sessionsHandler.HandleCreate, "create_session"))
		r.Get("/{id}", MetricsMiddleware(s.sessionsHandler.HandleView, "view_session"))
		r.Get("/{id}/status", MetricsMiddleware(s.sessionsHandler.HandleGetStatus, "get_status"))
		r.Put("/{id}/status", MetricsMiddleware(s.sessionsHandler.HandleTransition, "transition_status"))
		r.Post("/{id}/tests", MetricsMiddleware(s.sessionsHandler.HandleRecordTests, "record_tests"))
	})
}

// Routes returns a router serving every API route.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	s.Register(r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates a service failure into a JSON error body.
func writeServiceError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, err)
}
