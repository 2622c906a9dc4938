package device

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CashAcceptor simulates the kiosk bill acceptor. Recognition fails
// independently of the chosen denomination at the configured rate.
type CashAcceptor struct {
	delay       time.Duration
	failureRate float64
	sleep       Sleeper
	rng         Rand
	logger      *zap.Logger
}

// NewCashAcceptor creates a cash acceptor
func NewCashAcceptor(delay time.Duration, failureRate float64, sleep Sleeper, rng Rand, logger *zap.Logger) *CashAcceptor {
	return &CashAcceptor{
		delay:       delay,
		failureRate: failureRate,
		sleep:       sleep,
		rng:         rng,
		logger:      logger,
	}
}

// Insert feeds one bill into the acceptor and returns the recognized
// amount. ErrCashNotRecognized models the hardware rejecting the bill.
func (a *CashAcceptor) Insert(ctx context.Context, amount int64) (int64, error) {
	if err := a.sleep(ctx, a.delay); err != nil {
		return 0, err
	}

	if a.rng() < a.failureRate {
		a.logger.Warn("Cash acceptor failed to recognize bill", zap.Int64("amount", amount))
		return 0, ErrCashNotRecognized
	}

	a.logger.Debug("Cash accepted", zap.Int64("amount", amount))
	return amount, nil
}
