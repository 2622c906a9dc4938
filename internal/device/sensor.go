package device

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ParkingOutcome selects a parking-sensor scenario on the demo panel
type ParkingOutcome string

const (
	ParkingCorrect ParkingOutcome = "correct"
	ParkingWrong   ParkingOutcome = "wrong"
)

// ParkingResult is what the dock sensor reports after checking a bike
type ParkingResult struct {
	ParkedCorrectly bool
	Slot            int
}

// ParkingSensor simulates the dock's coupling sensor
type ParkingSensor struct {
	delay  time.Duration
	sleep  Sleeper
	logger *zap.Logger
}

// NewParkingSensor creates a parking sensor
func NewParkingSensor(delay time.Duration, sleep Sleeper, logger *zap.Logger) *ParkingSensor {
	return &ParkingSensor{
		delay:  delay,
		sleep:  sleep,
		logger: logger,
	}
}

// Check verifies the bike's position in the dock. The demo station always
// reports slot 2 when parking is correct.
func (s *ParkingSensor) Check(ctx context.Context, outcome ParkingOutcome) (*ParkingResult, error) {
	if err := s.sleep(ctx, s.delay); err != nil {
		return nil, err
	}

	switch outcome {
	case ParkingCorrect:
		s.logger.Debug("Bike parked correctly", zap.Int("slot", 2))
		return &ParkingResult{ParkedCorrectly: true, Slot: 2}, nil
	case ParkingWrong:
		s.logger.Debug("Bike not coupled to dock")
		return &ParkingResult{ParkedCorrectly: false}, nil
	default:
		return nil, ErrUnknownOutcome
	}
}
