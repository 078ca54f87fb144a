package scorecheck

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid score-check config")
	ErrUnhealthy     = errors.New("service is not healthy")
	ErrMismatch      = errors.New("score does not match input")
	ErrProbeFailed   = errors.New("negative probe failed")
)
