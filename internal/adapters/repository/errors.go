package repository

import "errors"

// Sentinel kinds for session store errors.
var (
	ErrNotFound     = errors.New("session not found")
	ErrExists       = errors.New("session already exists")
	ErrSessionLimit = errors.New("session limit reached")
	ErrClosed       = errors.New("session store closed")
)
