package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/bikeshare/station-kiosk/internal/device"
	"go.uber.org/zap"
)

// ErrBankDeclined is returned when the bank rejects a transfer
var ErrBankDeclined = errors.New("bank declined the transaction")

// BankGateway processes top-up transfers. The kiosk only carries the
// simulated implementation; tests substitute their own.
type BankGateway interface {
	// TestConnection verifies the link to the bank before a transfer
	TestConnection(ctx context.Context) error

	// Credit transfers the amount onto the card at the bank side
	Credit(ctx context.Context, cardNumber string, amount int64) error
}

// SimulatedBank answers like a real acquiring bank with fixed latencies
// and a configured decline rate.
type SimulatedBank struct {
	connectDelay time.Duration
	creditDelay  time.Duration
	declineRate  float64
	sleep        device.Sleeper
	rng          device.Rand
	logger       *zap.Logger
}

// NewSimulatedBank creates the demo bank gateway
func NewSimulatedBank(
	connectDelay, creditDelay time.Duration,
	declineRate float64,
	sleep device.Sleeper,
	rng device.Rand,
	logger *zap.Logger,
) *SimulatedBank {
	return &SimulatedBank{
		connectDelay: connectDelay,
		creditDelay:  creditDelay,
		declineRate:  declineRate,
		sleep:        sleep,
		rng:          rng,
		logger:       logger,
	}
}

// TestConnection always succeeds after the connect latency
func (b *SimulatedBank) TestConnection(ctx context.Context) error {
	if err := b.sleep(ctx, b.connectDelay); err != nil {
		return err
	}
	b.logger.Debug("Bank connection verified")
	return nil
}

// Credit transfers the amount, declining at the configured rate
func (b *SimulatedBank) Credit(ctx context.Context, cardNumber string, amount int64) error {
	if err := b.sleep(ctx, b.creditDelay); err != nil {
		return err
	}

	if b.rng() < b.declineRate {
		b.logger.Warn("Bank declined top-up",
			zap.String("card", cardNumber),
			zap.Int64("amount", amount))
		return ErrBankDeclined
	}

	b.logger.Debug("Bank credited top-up",
		zap.String("card", cardNumber),
		zap.Int64("amount", amount))
	return nil
}
