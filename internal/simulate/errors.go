package simulate

import "errors"

// Errors returned by the simulation tool.
var (
	ErrBadScript     = errors.New("invalid script")
	ErrCountMismatch = errors.New("repetition count mismatch")
	ErrUnhealthy     = errors.New("service is not healthy")
	ErrUnexpected    = errors.New("unexpected response")
)
