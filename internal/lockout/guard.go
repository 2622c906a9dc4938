package lockout

import (
	"time"

	"github.com/bikeshare/station-kiosk/internal/domain/entity"
	"go.uber.org/zap"
)

// Guard enforces the lockout policy for one card. While a card is locked
// every transaction must be rejected without contacting the bank.
type Guard struct {
	store       *Store
	cardNumber  string
	maxFailures int
	duration    time.Duration
	logger      *zap.Logger
}

// NewGuard creates a lockout guard for a card
func NewGuard(store *Store, cardNumber string, maxFailures int, duration time.Duration, logger *zap.Logger) *Guard {
	return &Guard{
		store:       store,
		cardNumber:  cardNumber,
		maxFailures: maxFailures,
		duration:    duration,
		logger:      logger,
	}
}

// Check returns the current lockout state, clearing locks that have
// expired. Expiry also resets the failure counter.
func (g *Guard) Check(now time.Time) (*entity.LockoutRecord, error) {
	record, err := g.store.Get(g.cardNumber)
	if err != nil {
		return nil, err
	}

	if record.Expired(now) {
		if err := g.store.Clear(g.cardNumber); err != nil {
			return nil, err
		}
		g.logger.Info("Lockout expired, card unlocked", zap.String("card", g.cardNumber))
		return &entity.LockoutRecord{CardNumber: g.cardNumber}, nil
	}

	return record, nil
}

// RecordFailure counts one failed transaction; the configured attempt cap
// locks the card for the configured duration. The read-increment-write runs
// in a single transaction.
func (g *Guard) RecordFailure(now time.Time) (*entity.LockoutRecord, error) {
	return g.store.Update(g.cardNumber, func(record *entity.LockoutRecord) error {
		if record.Expired(now) {
			*record = entity.LockoutRecord{CardNumber: record.CardNumber}
		}

		record.FailedAttempts++
		if record.FailedAttempts >= g.maxFailures {
			record.IsLocked = true
			record.LockUntil = now.Add(g.duration)
			g.logger.Warn("Card locked after repeated failures",
				zap.String("card", g.cardNumber),
				zap.Int("attempts", record.FailedAttempts),
				zap.Time("lock_until", record.LockUntil))
		}
		return nil
	})
}

// RecordSuccess resets the consecutive-failure counter
func (g *Guard) RecordSuccess() error {
	return g.store.Clear(g.cardNumber)
}
