// Package types contains the request and response shapes of the scoring API.
package types

// ScoreRequest carries the feature vector to score.
type ScoreRequest struct {
	X []float64 `json:"X"`
}

// ScoreResponse mirrors the accepted feature vector.
type ScoreResponse struct {
	Score []float64 `json:"score"`
}

// HealthStatus is the liveness state reported by GET /health.
type HealthStatus string

// HealthUp is the only state a running process reports.
const HealthUp HealthStatus = "UP"

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status HealthStatus `json:"status"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GreetingResponse is the body of GET /test_api.
type GreetingResponse struct {
	Message string `json:"message"`
}
