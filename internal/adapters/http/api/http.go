// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/mlscore/internal/domain/types"
	"github.com/okian/mlscore/pkg/logger"
)

// Default request limits.
const (
	defaultMaxBodyBytes = 1 << 20
	defaultMaxFeatures  = 100_000
)

// Scorer maps a feature vector to a score vector.
type Scorer interface {
	Score(ctx context.Context, features []float64) ([]float64, error)
}

// HostInfo reports the address this instance answers on.
type HostInfo interface {
	HostAddress() string
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	Scorer
	HostInfo
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	scoreHandler    *ScoreHandler
	greetingHandler *GreetingHandler
	statsHandler    *StatsHandler

	logger         logger.Logger
	maxBodyBytes   int64
	maxFeatures    int
	metricsEnabled bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMaxBodyBytes caps the POST /score body size.
func WithMaxBodyBytes(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithMaxFeatures caps len(X). Zero disables the check.
func WithMaxFeatures(n int) ServerOption {
	return func(s *Server) {
		if n >= 0 {
			s.maxFeatures = n
		}
	}
}

// WithMetricsEndpoint toggles GET /metrics.
func WithMetricsEndpoint(enabled bool) ServerOption {
	return func(s *Server) {
		s.metricsEnabled = enabled
	}
}

// WithLogger sets the logger used by handlers and middleware.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...ServerOption) *Server {
	s := &Server{
		maxBodyBytes:   defaultMaxBodyBytes,
		maxFeatures:    defaultMaxFeatures,
		metricsEnabled: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.healthHandler = NewHealthHandler()
	s.scoreHandler = NewScoreHandler(deps, s.logger, s.maxBodyBytes, s.maxFeatures)
	s.greetingHandler = NewGreetingHandler(deps)
	s.statsHandler = NewStatsHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.Handle("/score", s.wrap(s.scoreHandler.HandleScore, "score"))
	mux.Handle("/health", s.wrap(s.healthHandler.HandleHealth, "health"))
	mux.Handle("/healthz", s.wrap(s.healthHandler.HandleHealth, "health"))
	mux.Handle("/test_api", s.wrap(s.greetingHandler.HandleGreeting, "test_api"))
	mux.Handle("/stats", s.wrap(s.statsHandler.HandleStats, "stats"))
	if s.metricsEnabled {
		mux.Handle("/metrics", s.healthHandler.MetricsHandler())
	}
	mux.Handle("/", s.wrap(handleNotFound, "not_found"))
}

// wrap applies the middleware chain shared by every API route.
func (s *Server) wrap(h http.HandlerFunc, endpoint string) http.Handler {
	return RequestIDMiddleware(MetricsMiddleware(RecoverMiddleware(h, s.logger), endpoint))
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, NewKind("api.route", ErrNotFound))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, types.ErrorResponse{Error: publicMessage(status, err)})
}

// methodNotAllowed answers with 405 and the permitted methods.
func methodNotAllowed(w http.ResponseWriter, op string, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, NewKind(op, ErrMethodNotAllowed))
}

func lowerStatusText(status int) string {
	return strings.ToLower(http.StatusText(status))
}
