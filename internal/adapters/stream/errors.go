package stream

import "errors"

// Sentinel kinds for stream errors.
var (
	ErrBadMessage     = errors.New("malformed frame message")
	ErrMissingSession = errors.New("frame message without session_id")
)
