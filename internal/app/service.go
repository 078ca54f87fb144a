// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/mlscore/internal/domain/scoring"
	"github.com/okian/mlscore/pkg/logger"
	"github.com/okian/mlscore/pkg/metrics"
)

const fallbackHostAddress = "127.0.0.1"

// Service owns the scoring model and exposes it to the HTTP layer.
type Service struct {
	mu sync.RWMutex

	scorer scoring.Scorer

	// Configuration
	modelName      string
	scoringLatency time.Duration
	resolveHost    func() string

	// State
	started     bool
	startedAt   time.Time
	hostAddress string

	// Counters feed /stats only; they never influence scoring.
	scored   atomic.Int64
	failed   atomic.Int64
	features atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithModel selects the scoring model by name.
func WithModel(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.modelName = name
		}
	}
}

// WithScorer installs a scorer directly, bypassing the model registry.
func WithScorer(scorer scoring.Scorer) Option {
	return func(s *Service) {
		if scorer != nil {
			s.scorer = scorer
		}
	}
}

// WithScoringLatency sets the simulated model latency.
func WithScoringLatency(latency time.Duration) Option {
	return func(s *Service) {
		if latency > 0 {
			s.scoringLatency = latency
		}
	}
}

// WithHostResolver overrides how the local address is discovered.
func WithHostResolver(resolve func() string) Option {
	return func(s *Service) {
		if resolve != nil {
			s.resolveHost = resolve
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		modelName:   scoring.IdentityModel,
		resolveHost: resolveHostAddress,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start resolves the model and the local address.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.scorer == nil {
		scorer, err := scoring.New(s.modelName, scoring.WithLatency(s.scoringLatency))
		if err != nil {
			return fmt.Errorf("start scoring service: %w", err)
		}
		s.scorer = scorer
	}

	s.hostAddress = s.resolveHost()
	s.startedAt = time.Now()
	s.started = true
	metrics.SetServiceUp(true)

	s.logger.Info(ctx, "scoring service started",
		logger.String("model", s.scorer.Name()),
		logger.String("hostAddress", s.hostAddress),
		logger.Duration("scoringLatency", s.scoringLatency),
	)
	return nil
}

// Stop marks the service as stopped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.started = false
	metrics.SetServiceUp(false)
	s.logger.Info(context.Background(), "scoring service stopped",
		logger.Int64("requestsScored", s.scored.Load()),
		logger.Int64("requestsFailed", s.failed.Load()),
	)
}

// Score runs the model over features.
func (s *Service) Score(ctx context.Context, features []float64) ([]float64, error) {
	s.mu.RLock()
	scorer, started := s.scorer, s.started
	s.mu.RUnlock()

	if !started {
		return nil, ErrNotStarted
	}

	start := time.Now()
	score, err := scorer.Score(ctx, features)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		s.failed.Add(1)
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			metrics.RecordScoringError()
		}
		return nil, fmt.Errorf("score with %s: %w", scorer.Name(), err)
	}

	s.scored.Add(1)
	s.features.Add(int64(len(features)))
	metrics.RecordScored(len(features))
	return score, nil
}

// HostAddress returns the address resolved at start.
func (s *Service) HostAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.hostAddress == "" {
		return fallbackHostAddress
	}
	return s.hostAddress
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"model":          s.modelName,
		"requestsScored": s.scored.Load(),
		"requestsFailed": s.failed.Load(),
		"featuresScored": s.features.Load(),
	}

	if s.started {
		stats["model"] = s.scorer.Name()
		stats["uptimeSeconds"] = time.Since(s.startedAt).Seconds()
	}

	return stats
}

// resolveHostAddress looks up the first IPv4 address of this host's name,
// falling back to the name itself and then to loopback.
func resolveHostAddress() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return fallbackHostAddress
	}
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return hostname
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	if len(ips) > 0 {
		return ips[0].String()
	}
	return hostname
}
