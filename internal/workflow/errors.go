package workflow

import "errors"

var (
	// ErrBusy is returned when a submit or device operation is already in
	// flight; duplicate triggers must have no side effects.
	ErrBusy = errors.New("operation already in progress")

	// ErrCancelNotConfirmed is returned when cancel at a non-terminal step
	// has not been confirmed through the yes/no gate.
	ErrCancelNotConfirmed = errors.New("cancel requires confirmation")

	// ErrSessionBlocked is returned once a hard-stop condition (negative
	// balance, sold out, lockout) has permanently disabled the session.
	ErrSessionBlocked = errors.New("session blocked, contact support")

	// ErrSessionComplete is returned for operations after the terminal step
	ErrSessionComplete = errors.New("session already complete")
)
