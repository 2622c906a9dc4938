package flow

import "errors"

var (
	// ErrInvalidTransition is returned when an event is not configured for the current step
	ErrInvalidTransition = errors.New("invalid step transition")

	// ErrGuardFailed is returned when a transition's precondition fails
	ErrGuardFailed = errors.New("step precondition failed")
)

// GuardError wraps the reason a guard rejected a transition. It matches
// ErrGuardFailed under errors.Is and unwraps to the guard's own error so
// callers can surface the user-facing reason.
type GuardError struct {
	Reason error
}

func (e *GuardError) Error() string {
	return ErrGuardFailed.Error() + ": " + e.Reason.Error()
}

func (e *GuardError) Unwrap() error {
	return e.Reason
}

func (e *GuardError) Is(target error) bool {
	return target == ErrGuardFailed
}
