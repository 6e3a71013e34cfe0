// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/okian/drowsywatch/internal/domain/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Snapshot(ctx context.Context) model.Snapshot
	History(ctx context.Context, limit int) ([]model.HistoryRecord, error)
	Series(ctx context.Context, limit int) (model.Series, error)
	Reset(ctx context.Context) model.Snapshot

	// LatestFrame returns the most recently captured frame, if any.
	LatestFrame() (model.Frame, bool)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	sessionHandler   *SessionHandler
	frameHandler     *FrameHandler
	dashboardHandler *dashboardHandler
	stream           http.Handler
}

// NewServer creates a new API server with all handlers. stream serves the
// websocket snapshot feed; nil leaves /ws unregistered.
func NewServer(deps Dependencies, statsProvider StatsProvider, stream http.Handler, maxLimit int) *Server {
	return &Server{
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(statsProvider),
		sessionHandler:   NewSessionHandler(deps, maxLimit),
		frameHandler:     NewFrameHandler(deps),
		dashboardHandler: newDashboardHandler("/"),
		stream:           stream,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/session", MetricsMiddleware(s.sessionHandler.HandleGetSession, "session"))
	mux.HandleFunc("/session/reset", MetricsMiddleware(s.sessionHandler.HandleReset, "session_reset"))
	mux.HandleFunc("/history", MetricsMiddleware(s.sessionHandler.HandleGetHistory, "history"))
	mux.HandleFunc("/series", MetricsMiddleware(s.sessionHandler.HandleGetSeries, "series"))
	mux.HandleFunc("/frame.jpg", MetricsMiddleware(s.frameHandler.HandleGetFrame, "frame"))
	if s.stream != nil {
		mux.Handle("/ws", s.stream)
	}
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
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
