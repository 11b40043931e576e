package queue

import "errors"

var (
	// ErrNotFound is returned when an appointment does not exist.
	ErrNotFound = errors.New("appointment not found")

	// ErrInvalid wraps request validation failures so handlers can map
	// them to 400 instead of 500.
	ErrInvalid = errors.New("invalid queue request")

	// ErrQueueInconsistent indicates the stored queue numbers are not a
	// contiguous 1..N sequence.
	ErrQueueInconsistent = errors.New("queue numbering inconsistent")
)
