package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrStateChanged means a conditional status update matched nothing: the
	// booking moved to another state between the caller's read and the write.
	ErrStateChanged = errors.New("booking state already changed")
)
