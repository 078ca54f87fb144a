package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/okian/mlscore/internal/domain/types"
)

// Validation failure reasons, also used as metric labels.
const (
	reasonEmptyBody    = "empty_body"
	reasonMalformed    = "malformed_json"
	reasonNotObject    = "not_object"
	reasonMissingField = "missing_field"
	reasonNotArray     = "not_array"
	reasonNotNumber    = "not_number"
	reasonNotFinite    = "not_finite"
	reasonTooMany      = "too_many_features"
	reasonTooLarge     = "body_too_large"
)

// featureField is the request key holding the feature vector.
const featureField = "X"

// ValidationError describes why a scoring request was rejected. Its message
// is safe to return to the caller.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(reason, format string, args ...any) error {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// decodeScoreRequest reads one JSON object from r and extracts a finite
// numeric feature vector from its X key. maxFeatures <= 0 disables the
// length check. Read errors (including *http.MaxBytesError) are wrapped.
func decodeScoreRequest(r io.Reader, maxFeatures int) (types.ScoreRequest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return types.ScoreRequest{}, fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return types.ScoreRequest{}, invalid(reasonEmptyBody, "missing request body")
	}

	// A map keeps key matching case-sensitive, unlike struct decoding.
	var fields map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return types.ScoreRequest{}, invalid(reasonNotObject, "request body must be a JSON object")
		}
		return types.ScoreRequest{}, invalid(reasonMalformed, "invalid JSON body: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return types.ScoreRequest{}, invalid(reasonMalformed, "invalid JSON body: unexpected data after JSON object")
	}
	if fields == nil {
		return types.ScoreRequest{}, invalid(reasonNotObject, "request body must be a JSON object")
	}

	raw, ok := fields[featureField]
	if !ok {
		return types.ScoreRequest{}, invalid(reasonMissingField, "missing field %s", featureField)
	}

	features, err := parseFeatures(raw, maxFeatures)
	if err != nil {
		return types.ScoreRequest{}, err
	}
	return types.ScoreRequest{X: features}, nil
}

// parseFeatures accepts only a JSON array whose elements are all numbers
// representable as finite float64 values. Elements are rounded to the
// nearest float64: integers above 2^53 lose precision and underflowing
// literals such as 1e-400 become 0.
func parseFeatures(raw json.RawMessage, maxFeatures int) ([]float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, invalid(reasonNotArray, "field %s must be an array of numbers", featureField)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, invalid(reasonNotArray, "field %s must be an array of numbers", featureField)
	}
	if maxFeatures > 0 && len(elems) > maxFeatures {
		return nil, invalid(reasonTooMany, "field %s exceeds %d elements", featureField, maxFeatures)
	}

	features := make([]float64, len(elems))
	for i, elem := range elems {
		elem = bytes.TrimSpace(elem)
		if !isJSONNumber(elem) {
			return nil, invalid(reasonNotNumber, "field %s[%d] must be a number", featureField, i)
		}
		f, err := strconv.ParseFloat(string(elem), 64)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, invalid(reasonNotFinite, "field %s[%d] must be a finite number", featureField, i)
		}
		if err != nil {
			return nil, invalid(reasonNotNumber, "field %s[%d] must be a number", featureField, i)
		}
		features[i] = f
	}
	return features, nil
}

// isJSONNumber reports whether a syntactically valid JSON value is a number.
func isJSONNumber(v []byte) bool {
	if len(v) == 0 {
		return false
	}
	c := v[0]
	return c == '-' || (c >= '0' && c <= '9')
}
