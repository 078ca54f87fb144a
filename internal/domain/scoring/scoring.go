// Package scoring defines the contract for turning a feature vector into a score.
//
// A Scorer is the single substitution point for real model inference: the
// HTTP layer only ever sees the interface.
package scoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Scorer computes a score vector from a feature vector.
type Scorer interface {
	// Name identifies the model in logs and stats.
	Name() string
	// Score computes a score, honoring ctx for cancellation. Implementations
	// must not retain or mutate features.
	Score(ctx context.Context, features []float64) ([]float64, error)
}

// Func adapts a plain function into a Scorer.
type Func func(ctx context.Context, features []float64) ([]float64, error)

// Name implements Scorer.
func (f Func) Name() string { return "func" }

// Score implements Scorer.
func (f Func) Score(ctx context.Context, features []float64) ([]float64, error) {
	return f(ctx, features)
}

// Option applies a configuration option to a scorer built by New.
type Option func(*options)

type options struct {
	latency time.Duration
}

// WithLatency sets a simulated per-request model latency.
func WithLatency(latency time.Duration) Option {
	return func(o *options) {
		if latency > 0 {
			o.latency = latency
		}
	}
}

// IdentityScorer returns its input unchanged.
type IdentityScorer struct {
	latency time.Duration
}

// NewIdentityScorer creates the reference model.
func NewIdentityScorer(opts ...Option) *IdentityScorer {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &IdentityScorer{latency: o.latency}
}

// Name implements Scorer.
func (s *IdentityScorer) Name() string { return IdentityModel }

// Score returns a copy of features.
func (s *IdentityScorer) Score(ctx context.Context, features []float64) ([]float64, error) {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("identity score: %w", ctx.Err())
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("identity score: %w", err)
	}

	out := make([]float64, len(features))
	copy(out, features)
	return out, nil
}

// IdentityModel is the name of the reference model.
const IdentityModel = "identity"

type factory func(opts ...Option) Scorer

var registry = map[string]factory{ //nolint:gochecknoglobals // static model table
	IdentityModel: func(opts ...Option) Scorer { return NewIdentityScorer(opts...) },
}

// New resolves a model by name.
func New(name string, opts ...Option) (Scorer, error) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownModel, name, strings.Join(Models(), ", "))
	}
	return f(opts...), nil
}

// Models lists the registered model names.
func Models() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
