package scorecheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/mlscore/pkg/logger"
)

// probe is a request the service must reject with 400.
type probe struct {
	name string
	body string
	want string // expected error message; empty accepts any
}

// negativeProbes are sent once per run.
var negativeProbes = []probe{ //nolint:gochecknoglobals // static probe table
	{name: "missing field", body: `{}`, want: "missing field X"},
	{name: "not json", body: `not json`},
	{name: "string X", body: `{"X":"a"}`, want: "field X must be an array of numbers"},
	{name: "non-numeric element", body: `{"X":[1,"b"]}`, want: "field X[1] must be a number"},
}

// verifyIdentity checks that score equals the submitted features element-wise.
func verifyIdentity(features, score []float64) error {
	if len(features) != len(score) {
		return fmt.Errorf("%w: sent %d features, got %d scores", ErrMismatch, len(features), len(score))
	}
	for i := range features {
		if features[i] != score[i] {
			return fmt.Errorf("%w: index %d sent %v got %v", ErrMismatch, i, features[i], score[i])
		}
	}
	return nil
}

// runNegativeProbes sends malformed requests and expects 400 with a JSON error.
func runNegativeProbes(ctx context.Context, config *Config, stats *Stats) error {
	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/score"

	var firstErr error
	for _, p := range negativeProbes {
		err := runProbe(ctx, client, url, p)
		if err == nil {
			stats.ProbesPassed++
			if config.Verbose {
				logger.Get().Info(ctx, "probe passed", logger.String("probe", p.name))
			}
			continue
		}
		stats.ProbesFailed++
		logger.Get().Warn(ctx, "probe failed", logger.String("probe", p.name), logger.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func runProbe(ctx context.Context, client *HTTPClient, url string, p probe) error {
	status, data, err := client.PostRaw(ctx, url, []byte(p.body))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrProbeFailed, p.name, err)
	}
	if status != http.StatusBadRequest {
		return fmt.Errorf("%w: %s: status %d, want 400", ErrProbeFailed, p.name, status)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.Error == "" {
		return fmt.Errorf("%w: %s: body %q is not a JSON error", ErrProbeFailed, p.name, data)
	}
	if p.want != "" && resp.Error != p.want {
		return fmt.Errorf("%w: %s: error %q, want %q", ErrProbeFailed, p.name, resp.Error, p.want)
	}
	return nil
}
