package scorecheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/mlscore/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// outcome of scoring one vector.
type outcome int

const (
	outcomeMatched outcome = iota
	outcomeMismatch
	outcomeFailed
)

// HTTPClient wraps http.Client with timeout.
type HTTPClient struct {
	client *http.Client
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}}
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// PostRaw posts body verbatim as JSON, tagging it with a fresh request id.
// It returns the status code and the fully read body.
func (c *HTTPClient) PostRaw(ctx context.Context, url string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// submitVectors scores vectors concurrently using a worker pool.
func submitVectors(ctx context.Context, config *Config, vectors [][]float64, stats *Stats) {
	logger.Get().Info(ctx, "submitting vectors",
		logger.Int("vectors", len(vectors)),
		logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/score"

	var submitted, matched, mismatched, failed atomic.Int64

	jobs := make(chan []float64, config.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := range jobs {
				if ctx.Err() != nil {
					return
				}
				submitted.Add(1)
				switch scoreSingleVector(ctx, client, url, v, config.Verbose) {
				case outcomeMatched:
					matched.Add(1)
				case outcomeMismatch:
					mismatched.Add(1)
				case outcomeFailed:
					failed.Add(1)
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, v := range vectors {
			select {
			case <-ctx.Done():
				return
			case jobs <- v:
			}
		}
	}()

	wg.Wait()

	stats.VectorsSubmitted = int(submitted.Load())
	stats.VectorsMatched = int(matched.Load())
	stats.VectorsMismatch = int(mismatched.Load())
	stats.VectorsFailed = int(failed.Load())

	logger.Get().Info(ctx, "vector submission completed",
		logger.Int("matched", stats.VectorsMatched),
		logger.Int("mismatched", stats.VectorsMismatch),
		logger.Int("failed", stats.VectorsFailed))
}

// scoreSingleVector posts one vector and checks the identity contract.
func scoreSingleVector(ctx context.Context, client *HTTPClient, url string, v []float64, verbose bool) outcome {
	body, err := json.Marshal(ScoreRequest{X: v})
	if err != nil {
		return outcomeFailed
	}

	status, data, err := client.PostRaw(ctx, url, body)
	if err != nil || status != http.StatusOK {
		if verbose {
			logger.Get().Warn(ctx, "scoring request failed",
				logger.Int("status", status),
				logger.String("body", string(data)),
				logger.Any("error", err))
		}
		return outcomeFailed
	}

	var resp ScoreResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return outcomeFailed
	}
	if err := verifyIdentity(v, resp.Score); err != nil {
		if verbose {
			logger.Get().Warn(ctx, "score mismatch", logger.Error(err))
		}
		return outcomeMismatch
	}
	return outcomeMatched
}
