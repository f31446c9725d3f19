// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/okian/oralscan/internal/domain/model"
	"github.com/okian/oralscan/internal/domain/types"
	"github.com/okian/oralscan/pkg/logger"
)

// DefaultMaxUploadBytes bounds a /predict request body.
const DefaultMaxUploadBytes = 10 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Predict(ctx context.Context, identity string, image []byte) (*types.PredictResult, error)
	History(ctx context.Context, identity string) ([]model.PredictionRecord, error)
	StatsProvider
}

// Option configures a Server.
type Option func(*Server)

// WithMaxUploadBytes bounds the size of a /predict body.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithAuthenticator requires a verified bearer token on /predict and /history.
func WithAuthenticator(a *Authenticator) Option {
	return func(s *Server) {
		s.auth = a
	}
}

// WithLocation sets the timezone timestamps are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps           Dependencies
	auth           *Authenticator
	maxUploadBytes int64
	loc            *time.Location
	logger         logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	rootHandler   *RootHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:           deps,
		maxUploadBytes: DefaultMaxUploadBytes,
		loc:            time.UTC,
		logger:         logger.Get().Named("http"),
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps),
		rootHandler:    NewRootHandler(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/predict", MetricsMiddleware(s.HandlePredict, "predict"))
	mux.HandleFunc("/history", MetricsMiddleware(s.HandleHistory, "history"))
	mux.HandleFunc("/{$}", MetricsMiddleware(s.rootHandler.HandleRoot, "root"))
}

// identity resolves the caller. With an authenticator only the token subject
// counts; otherwise the X-User-ID header, then the user_id form or query value.
func (s *Server) identity(r *http.Request) (string, error) {
	if s.auth != nil {
		return s.auth.Subject(r)
	}
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id, nil
	}
	return strings.TrimSpace(r.FormValue("user_id")), nil
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

// fail writes err with the status its kind maps to. Server errors are logged.
func (s *Server) fail(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(ctx, "request failed", logger.String("code", code), logger.Error(err))
	}
	writeError(w, status, code, err)
}
