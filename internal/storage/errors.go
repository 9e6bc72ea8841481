package storage

import "errors"

// Storage errors shared by every backend. Market data and run stores are
// append-only: closes, trading days and computed runs are never updated.
var (
	// ErrNotFound is returned when a requested record does not exist.
	// For closes this is the NO_DATA state (suspension or missing record).
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key already exists.
	ErrDuplicateKey = errors.New("duplicate key: append-only store does not allow updates")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
