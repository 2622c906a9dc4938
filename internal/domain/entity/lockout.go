package entity

import "time"

// LockoutRecord tracks consecutive failed top-up attempts for a card.
// It is the only kiosk state that survives a restart.
type LockoutRecord struct {
	CardNumber     string
	IsLocked       bool
	LockUntil      time.Time
	FailedAttempts int
}

// Expired reports whether a lock has run out
func (r *LockoutRecord) Expired(now time.Time) bool {
	return r.IsLocked && !now.Before(r.LockUntil)
}

// Remaining returns how long the lock still holds; zero when not locked
func (r *LockoutRecord) Remaining(now time.Time) time.Duration {
	if !r.IsLocked {
		return 0
	}
	remaining := r.LockUntil.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
