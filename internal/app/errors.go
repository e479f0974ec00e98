package service

import (
	"errors"

	"github.com/okian/jackcount/internal/adapters/repository"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted   = errors.New("service not started")
	ErrInvalidFrame = errors.New("invalid frame")
	ErrBackpressure = errors.New("frame queue full")

	ErrNotFound     = repository.ErrNotFound
	ErrSessionLimit = repository.ErrSessionLimit
)
