package scorecheck

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/okian/mlscore/pkg/logger"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	featureRange       = 200.0
	featureOffset      = 100.0
)

// entropy feeds the generator; tests swap it for a failing reader.
var entropy io.Reader = rand.Reader //nolint:gochecknoglobals // test seam

// getRandomFloat returns a random float64 in [0.0, 1.0) drawn from entropy.
func getRandomFloat() (float64, error) {
	n, err := rand.Int(entropy, big.NewInt(randomFloatDivisor))
	if err != nil {
		return 0, fmt.Errorf("read random feature: %w", err)
	}
	return float64(n.Int64()) / float64(randomFloatDivisor), nil
}

// generateVectors creates NumVectors feature vectors in [-100, 100).
// Vector i starts with i so responses cannot be confused across requests.
func generateVectors(ctx context.Context, config *Config, stats *Stats) ([][]float64, error) {
	logger.Get().Info(ctx, "generating feature vectors",
		logger.Int("vectors", config.NumVectors),
		logger.Int("length", config.VectorLen))

	vectors := make([][]float64, config.NumVectors)
	for i := range vectors {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		v := make([]float64, 0, config.VectorLen+1)
		v = append(v, float64(i))
		for j := 0; j < config.VectorLen; j++ {
			f, err := getRandomFloat()
			if err != nil {
				return nil, err
			}
			v = append(v, f*featureRange-featureOffset)
		}
		vectors[i] = v
	}

	stats.VectorsGenerated = len(vectors)
	return vectors, nil
}
