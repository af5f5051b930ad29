package errors

import "errors"

var (
	ErrNotFound = errors.New("slot not found")

	ErrInvalidID = errors.New("invalid slot ID format")

	ErrDuplicateSlot = errors.New("slot already exists for this date and time")

	// ErrSlotUnavailable means the conditional claim matched nothing: the slot
	// was taken between the caller's read and the claim.
	ErrSlotUnavailable = errors.New("slot is not available")

	ErrSlotTaken = errors.New("slot is taken by an active booking")
)
