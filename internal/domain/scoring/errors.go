package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrUnknownModel = errors.New("unknown model")
)
