package device

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// UnlockActuator simulates the dock's mechanical lock. Unlocking fails
// independently of the presented card at the configured rate; a failure
// means the lock pin is jammed and the bike needs maintenance.
type UnlockActuator struct {
	delay       time.Duration
	failureRate float64
	sleep       Sleeper
	rng         Rand
	logger      *zap.Logger
}

// NewUnlockActuator creates an unlock actuator
func NewUnlockActuator(delay time.Duration, failureRate float64, sleep Sleeper, rng Rand, logger *zap.Logger) *UnlockActuator {
	return &UnlockActuator{
		delay:       delay,
		failureRate: failureRate,
		sleep:       sleep,
		rng:         rng,
		logger:      logger,
	}
}

// Unlock releases the bike from its dock
func (a *UnlockActuator) Unlock(ctx context.Context, bikeNumber string) error {
	if err := a.sleep(ctx, a.delay); err != nil {
		return err
	}

	if a.rng() < a.failureRate {
		a.logger.Warn("Dock lock jammed", zap.String("bike", bikeNumber))
		return ErrMechanicalFault
	}

	a.logger.Debug("Bike unlocked", zap.String("bike", bikeNumber))
	return nil
}
