package store

import "errors"

var (
	ErrConflict = errors.New("conflict")
	ErrNotFound = errors.New("not found")

	// ErrIdempotencyConflict reports a reused idempotency key whose stored
	// row does not match the new request.
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
