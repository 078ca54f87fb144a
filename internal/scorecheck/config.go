package scorecheck

import (
	"fmt"
	"time"
)

// Config holds configuration for a smoke run against a scoring service.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumVectors int           // Number of feature vectors to score
	VectorLen  int           // Elements per feature vector
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Optional JSON file receiving the generated vectors
	Verbose    bool          // Log every mismatch and probe
}

// Validate rejects configurations that cannot produce a meaningful run.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is empty", ErrInvalidConfig)
	case c.NumVectors < 0:
		return fmt.Errorf("%w: vectors must be >= 0", ErrInvalidConfig)
	case c.VectorLen < 0:
		return fmt.Errorf("%w: length must be >= 0", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be > 0", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be > 0", ErrInvalidConfig)
	}
	return nil
}

// ScoreRequest is the body posted to /score.
type ScoreRequest struct {
	X []float64 `json:"X"`
}

// ScoreResponse is the success body of /score.
type ScoreResponse struct {
	Score []float64 `json:"score"`
}

// ErrorResponse is the failure body of /score.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Stats holds run statistics.
type Stats struct {
	VectorsGenerated int
	VectorsSubmitted int
	VectorsMatched   int
	VectorsMismatch  int
	VectorsFailed    int
	ProbesPassed     int
	ProbesFailed     int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
