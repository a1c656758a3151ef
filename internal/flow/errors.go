package flow

import "errors"

var (
	// ErrInvalidTransition is returned when an event is not accepted in the current state.
	ErrInvalidTransition = errors.New("event not allowed in current state")

	// ErrBusy is returned when the same kind of operation is already in flight,
	// or when resend is not yet available.
	ErrBusy = errors.New("operation not available right now")

	// ErrValidation is returned when input fails a local precondition. No upstream call is made.
	ErrValidation = errors.New("validation failed")

	// ErrStale is returned when a completion or tick belongs to a challenge or
	// session that is no longer current. The snapshot is left unchanged.
	ErrStale = errors.New("stale event discarded")

	// ErrStopped is returned by Dispatch once the controller loop has exited.
	ErrStopped = errors.New("controller stopped")

	// ErrPoolSaturated is reported as the failure of an upstream call that could not be queued.
	ErrPoolSaturated = errors.New("worker pool saturated")
)
