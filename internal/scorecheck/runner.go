// Package scorecheck drives a running scoring service end to end: health,
// concurrent identity checks and negative probes.
package scorecheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/mlscore/pkg/logger"
)

// Runner configuration constants.
const (
	workerChannelMultiplier = 2
	percentageMultiplier    = 100
	directoryPermission     = 0o750
	filePermission          = 0o600
)

// Run executes the complete smoke check. It returns the collected stats
// even when the run fails.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}

	if err := config.Validate(); err != nil {
		return stats, err
	}

	logger.Get().Info(ctx, "starting score check",
		logger.String("baseURL", config.BaseURL),
		logger.Int("vectors", config.NumVectors),
		logger.Int("length", config.VectorLen),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	if err := checkServiceHealth(ctx, config); err != nil {
		return stats, err
	}

	vectors, err := generateVectors(ctx, config, stats)
	if err != nil {
		return stats, fmt.Errorf("vector generation failed: %w", err)
	}

	if config.OutputFile != "" {
		if err := saveVectorsToFile(ctx, config.OutputFile, vectors); err != nil {
			logger.Get().Warn(ctx, "failed to save vectors to file", logger.Error(err))
		}
	}

	submitVectors(ctx, config, vectors, stats)
	probeErr := runNegativeProbes(ctx, config, stats)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	switch {
	case ctx.Err() != nil:
		return stats, fmt.Errorf("score check interrupted: %w", ctx.Err())
	case stats.VectorsMismatch > 0 || stats.VectorsFailed > 0:
		return stats, fmt.Errorf("%w: %d mismatched, %d failed of %d",
			ErrMismatch, stats.VectorsMismatch, stats.VectorsFailed, stats.VectorsSubmitted)
	case probeErr != nil:
		return stats, probeErr
	}

	logger.Get().Info(ctx, "score check completed successfully")
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	resp, err := client.Get(ctx, config.BaseURL+"/health")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveVectorsToFile writes the generated vectors as a JSON array of requests.
func saveVectorsToFile(ctx context.Context, filename string, vectors [][]float64) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	requests := make([]ScoreRequest, len(vectors))
	for i, v := range vectors {
		requests[i] = ScoreRequest{X: v}
	}
	data, err := json.MarshalIndent(requests, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vectors: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "vectors saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(stats *Stats) {
	var matchRate, vectorsPerSecond float64

	if stats.VectorsSubmitted > 0 {
		matchRate = float64(stats.VectorsMatched) / float64(stats.VectorsSubmitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		vectorsPerSecond = float64(stats.VectorsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("vectorsGenerated", stats.VectorsGenerated),
		logger.Int("vectorsSubmitted", stats.VectorsSubmitted),
		logger.Int("vectorsMatched", stats.VectorsMatched),
		logger.Int("vectorsMismatch", stats.VectorsMismatch),
		logger.Int("vectorsFailed", stats.VectorsFailed),
		logger.Int("probesPassed", stats.ProbesPassed),
		logger.Int("probesFailed", stats.ProbesFailed),
		logger.Duration("duration", stats.Duration),
		logger.Float64("matchRate", matchRate),
		logger.Float64("vectorsPerSecond", vectorsPerSecond))
}
