// Package device simulates the kiosk's hardware: card scanners, the cash
// acceptor, the parking sensor and the dock's unlock actuator. Every
// operation completes after a fixed delay and returns a structured result;
// devices never panic and never fail silently.
package device

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

var (
	// ErrUnknownOutcome is returned when a demo selector names no scenario
	ErrUnknownOutcome = errors.New("unknown demo outcome")

	// ErrCashNotRecognized models the acceptor failing to read a bill
	ErrCashNotRecognized = errors.New("cash acceptor could not recognize the bill")

	// ErrMechanicalFault models a jammed dock lock
	ErrMechanicalFault = errors.New("dock lock jammed")

	// ErrReaderFault models a card reader hardware error
	ErrReaderFault = errors.New("card reader fault")
)

// Sleeper waits for the given duration, aborting early when the context is
// canceled. Tests inject a no-op sleeper.
type Sleeper func(ctx context.Context, d time.Duration) error

// Wait is the default Sleeper
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Rand yields a value in [0, 1). Tests inject fixed values to force both
// sides of the modeled failure rates.
type Rand func() float64

// DefaultRand uses math/rand
func DefaultRand() float64 {
	return rand.Float64()
}
