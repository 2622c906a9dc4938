package device

import (
	"context"
	"time"

	"github.com/bikeshare/station-kiosk/internal/domain/entity"
	"go.uber.org/zap"
)

// ReturnCardOutcome selects a card-return scan scenario on the demo panel
type ReturnCardOutcome string

const (
	ReturnCardPrepaidOK  ReturnCardOutcome = "prepaid-ok"
	ReturnCardPostpaidOK ReturnCardOutcome = "postpaid-ok"
	ReturnCardHasRental  ReturnCardOutcome = "has-rental"
	ReturnCardNegative   ReturnCardOutcome = "negative"
)

// RentalCardOutcome selects a bike-rental scan scenario
type RentalCardOutcome string

const (
	RentalCardValid        RentalCardOutcome = "valid"
	RentalCardInsufficient RentalCardOutcome = "insufficient"
	RentalCardInvalid      RentalCardOutcome = "invalid"
)

// BikeReturnCardOutcome selects a bike-return scan scenario
type BikeReturnCardOutcome string

const (
	BikeReturnCardValid        BikeReturnCardOutcome = "valid"
	BikeReturnCardInsufficient BikeReturnCardOutcome = "insufficient"
	BikeReturnCardError        BikeReturnCardOutcome = "error"
)

// ReturnScan is the result of scanning a card for return
type ReturnScan struct {
	Card            *entity.Card
	HasActiveRental bool
}

// RentalScan is the result of scanning a card for a bike rental
type RentalScan struct {
	Card  *entity.Card
	Valid bool
}

// CardScanner simulates the kiosk card reader. Each demo outcome produces
// a fixed synthetic card; the fixtures must stay byte-for-byte stable.
type CardScanner struct {
	delay  time.Duration
	sleep  Sleeper
	logger *zap.Logger
}

// NewCardScanner creates a card scanner with the given read delay
func NewCardScanner(delay time.Duration, sleep Sleeper, logger *zap.Logger) *CardScanner {
	return &CardScanner{
		delay:  delay,
		sleep:  sleep,
		logger: logger,
	}
}

// ScanForReturn reads a card presented for return
func (s *CardScanner) ScanForReturn(ctx context.Context, outcome ReturnCardOutcome) (*ReturnScan, error) {
	if err := s.sleep(ctx, s.delay); err != nil {
		return nil, err
	}

	var scan *ReturnScan
	switch outcome {
	case ReturnCardPrepaidOK:
		scan = &ReturnScan{
			Card: &entity.Card{
				Number:  "1234567890123456",
				Type:    entity.CardTypePrepaid,
				Balance: 80000,
				Status:  entity.CardStatusActive,
			},
		}
	case ReturnCardPostpaidOK:
		scan = &ReturnScan{
			Card: &entity.Card{
				Number:  "9876543210987654",
				Type:    entity.CardTypePostpaid,
				Balance: 0,
				Status:  entity.CardStatusActive,
			},
		}
	case ReturnCardHasRental:
		scan = &ReturnScan{
			Card: &entity.Card{
				Number:  "5555666677778888",
				Type:    entity.CardTypePrepaid,
				Balance: 50000,
				Status:  entity.CardStatusRenting,
			},
			HasActiveRental: true,
		}
	case ReturnCardNegative:
		scan = &ReturnScan{
			Card: &entity.Card{
				Number:  "1111222233334444",
				Type:    entity.CardTypePrepaid,
				Balance: -15000,
				Status:  entity.CardStatusIndebted,
			},
		}
	default:
		return nil, ErrUnknownOutcome
	}

	s.logger.Debug("Card scanned for return",
		zap.String("card", scan.Card.Number),
		zap.String("status", string(scan.Card.Status)))
	return scan, nil
}

// ScanForRental reads a card presented to confirm a bike rental
func (s *CardScanner) ScanForRental(ctx context.Context, outcome RentalCardOutcome) (*RentalScan, error) {
	if err := s.sleep(ctx, s.delay); err != nil {
		return nil, err
	}

	var scan *RentalScan
	switch outcome {
	case RentalCardValid:
		scan = &RentalScan{
			Card: &entity.Card{
				Number:  "9704 1234 5678 9012",
				Type:    entity.CardTypePrepaid,
				Balance: 150000,
				Status:  entity.CardStatusActive,
			},
			Valid: true,
		}
	case RentalCardInsufficient:
		scan = &RentalScan{
			Card: &entity.Card{
				Number:  "9704 5678 1234 9012",
				Type:    entity.CardTypePrepaid,
				Balance: 5000,
				Status:  entity.CardStatusActive,
			},
			Valid: true,
		}
	case RentalCardInvalid:
		scan = &RentalScan{
			Card: &entity.Card{
				Number:  "0000 0000 0000 0000",
				Type:    entity.CardTypePrepaid,
				Balance: 0,
			},
			Valid: false,
		}
	default:
		return nil, ErrUnknownOutcome
	}

	s.logger.Debug("Card scanned for rental",
		zap.String("card", scan.Card.Number),
		zap.Bool("valid", scan.Valid))
	return scan, nil
}

// ReadForTopUp reads the card inserted into the top-up kiosk
func (s *CardScanner) ReadForTopUp(ctx context.Context) (*entity.Card, error) {
	if err := s.sleep(ctx, s.delay); err != nil {
		return nil, err
	}

	card := &entity.Card{
		Number:  "9704 1234 5678 9012",
		Type:    entity.CardTypePrepaid,
		Balance: 250000,
		Status:  entity.CardStatusActive,
	}

	s.logger.Debug("Card read for top-up",
		zap.String("card", card.Number),
		zap.Int64("balance", card.Balance))
	return card, nil
}

// ScanForBikeReturn reads the renter's card at bike return. The "error"
// outcome models a reader hardware fault and yields no card.
func (s *CardScanner) ScanForBikeReturn(ctx context.Context, outcome BikeReturnCardOutcome) (*entity.Card, error) {
	if err := s.sleep(ctx, s.delay); err != nil {
		return nil, err
	}

	var card *entity.Card
	switch outcome {
	case BikeReturnCardValid:
		card = &entity.Card{
			Number:  "1234567890",
			Type:    entity.CardTypePrepaid,
			Balance: 50000,
			Status:  entity.CardStatusActive,
		}
	case BikeReturnCardInsufficient:
		card = &entity.Card{
			Number:  "1234567890",
			Type:    entity.CardTypePrepaid,
			Balance: 1000,
			Status:  entity.CardStatusActive,
		}
	case BikeReturnCardError:
		return nil, ErrReaderFault
	default:
		return nil, ErrUnknownOutcome
	}

	s.logger.Debug("Card scanned for bike return", zap.String("card", card.Number))
	return card, nil
}
