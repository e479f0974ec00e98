// Package repository holds the in-memory session state of every counting run.
package repository

import (
	"context"
	"time"

	"github.com/okian/jackcount/internal/domain/repetition"
)

// Record is one session plus bookkeeping.
type Record struct {
	ID        string
	Session   repetition.Session
	CreatedAt time.Time
	UpdatedAt time.Time
	Frames    int64 // frames applied, including rejected ones
	Rejected  int64 // frames that failed the confidence gate
}

// Store provides read/write access to live sessions.
type Store interface {
	// Create adds a fresh zeroed session. Returns ErrExists or ErrSessionLimit.
	Create(ctx context.Context, id string, now time.Time) (Record, error)

	// Get returns a copy of the session. Returns ErrNotFound if unknown.
	Get(ctx context.Context, id string) (Record, error)

	// Update runs fn on the stored record while holding its shard lock and
	// returns a copy of the result. If fn fails the record is left unchanged.
	Update(ctx context.Context, id string, fn func(*Record) error) (Record, error)

	// Reset zeroes the session's counter state, keeping its id.
	Reset(ctx context.Context, id string, now time.Time) (Record, error)

	// Delete discards the session. Returns ErrNotFound if unknown.
	Delete(ctx context.Context, id string) error

	// List returns every session ordered by creation time.
	List(ctx context.Context) []Record

	// Count returns the number of live sessions.
	Count(ctx context.Context) int
}
