// Package api registers the HTTP routes of the detector service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/efast/internal/adapters/repository"
	"github.com/okian/efast/internal/domain/model"
)

var (
	// ErrBadRequest marks a rejected query parameter.
	ErrBadRequest = errors.New("bad request")
	// ErrUnavailable marks a route whose backing component was not configured.
	ErrUnavailable = errors.New("not enabled")
)

// ActiveSet exposes the currently active feature pixels.
type ActiveSet interface {
	Snapshot(ctx context.Context) []model.Point
	Size() int64
}

// RunReader reads the persisted feature log.
type RunReader interface {
	Runs(ctx context.Context) ([]repository.RunInfo, error)
	Features(ctx context.Context, runID string, limit int) ([]repository.StoredFeature, error)
}

// Server wires HTTP routes for the service.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	featuresHandler *FeaturesHandler
	live            http.Handler
}

// NewServer creates a new API server with all handlers.
func NewServer(statsProvider StatsProvider, opts ...Option) *Server {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		featuresHandler: NewFeaturesHandler(o.active, o.runs),
		live:            o.live,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/features", MetricsMiddleware(s.featuresHandler.HandleActive, "features"))
	mux.HandleFunc("/runs", MetricsMiddleware(s.featuresHandler.HandleRuns, "runs"))
	mux.HandleFunc("/runs/{id}/features", MetricsMiddleware(s.featuresHandler.HandleRunFeatures, "run_features"))
	if s.live != nil {
		mux.Handle("/ws", s.live)
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
