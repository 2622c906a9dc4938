package http

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bikeshare/station-kiosk/internal/config"
	"github.com/bikeshare/station-kiosk/internal/device"
	"github.com/bikeshare/station-kiosk/internal/domain/entity"
	"github.com/bikeshare/station-kiosk/internal/lockout"
	"github.com/bikeshare/station-kiosk/internal/workflow"
)

// WorkflowKind names one of the five kiosk workflows
type WorkflowKind string

const (
	WorkflowCardReturn WorkflowKind = "card-return"
	WorkflowPurchase   WorkflowKind = "card-purchase"
	WorkflowRental     WorkflowKind = "bike-rental"
	WorkflowTopUp      WorkflowKind = "top-up"
	WorkflowBikeReturn WorkflowKind = "bike-return"
)

// ErrUnknownWorkflow is returned for session requests naming no workflow
var ErrUnknownWorkflow = errors.New("unknown workflow")

// ErrSessionNotFound is returned when a session id resolves to nothing
var ErrSessionNotFound = errors.New("session not found")

// demo fixture: the bike-return panel's sample rental started 45 minutes
// before the session opens
const demoRentalAge = 45 * time.Minute

// Session binds one workflow instance to an HTTP handle. Exactly one of
// the workflow pointers is set, matching Kind.
type Session struct {
	ID        string
	Kind      WorkflowKind
	CreatedAt time.Time
	Events    *EventRecorder

	CardReturn *workflow.CardReturn
	Purchase   *workflow.Purchase
	Rental     *workflow.Rental
	TopUp      *workflow.TopUp
	BikeReturn *workflow.BikeReturn
}

// Kiosk owns the station-wide state shared across sessions: the bike
// fleet, the card inventory's purchase workflow factory inputs and the
// lockout store. It creates and tracks sessions for the HTTP adapter.
type Kiosk struct {
	cfg    *config.Config
	fleet  *entity.Fleet
	store  *lockout.Store
	sleep  device.Sleeper
	rng    device.Rand
	clock  workflow.Clock
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewKiosk creates a kiosk over the given lockout store. The fleet starts
// in the standard demo layout and is shared by all rental sessions.
func NewKiosk(cfg *config.Config, store *lockout.Store, logger *zap.Logger) *Kiosk {
	return &Kiosk{
		cfg:      cfg,
		fleet:    entity.NewDemoFleet(),
		store:    store,
		sleep:    device.Wait,
		rng:      device.DefaultRand,
		clock:    time.Now,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// CreateSession starts a workflow of the given kind and returns its handle
func (k *Kiosk) CreateSession(ctx context.Context, kind WorkflowKind) (*Session, error) {
	events := NewEventRecorder(func() time.Time { return k.clock() })
	session := &Session{
		ID:        uuid.New().String(),
		Kind:      kind,
		CreatedAt: k.clock(),
		Events:    events,
	}

	devices := k.cfg.Devices
	switch kind {
	case WorkflowCardReturn:
		scanner := device.NewCardScanner(devices.ScanDelay, k.sleep, k.logger)
		session.CardReturn = workflow.NewCardReturn(
			workflow.CardReturnConfig{
				DepositAmount: k.cfg.Pricing.DepositAmount,
				RefundDelay:   devices.RefundDelay,
				FailureRate:   devices.FailureRate,
			},
			scanner, events, k.clock, k.sleep, k.rng, k.logger,
		)
		session.CardReturn.Start()

	case WorkflowPurchase:
		acceptor := device.NewCashAcceptor(devices.CashDelay, devices.FailureRate, k.sleep, k.rng, k.logger)
		session.Purchase = workflow.NewPurchase(
			workflow.PurchaseConfig{
				MinAmount:     k.cfg.Purchase.MinAmount,
				CardInventory: k.cfg.Purchase.CardInventory,
				ProcessDelay:  devices.ProcessDelay,
			},
			acceptor, events, k.clock, k.sleep, k.rng, k.logger,
		)
		session.Purchase.Start()

	case WorkflowRental:
		scanner := device.NewCardScanner(devices.RentalScanDelay, k.sleep, k.logger)
		actuator := device.NewUnlockActuator(devices.UnlockDelay, devices.FailureRate, k.sleep, k.rng, k.logger)
		session.Rental = workflow.NewRental(
			workflow.RentalConfig{
				MinBalance:       k.cfg.Rental.MinBalance,
				CountdownSeconds: k.cfg.Rental.CountdownSeconds,
				WarningSeconds:   k.cfg.Rental.WarningSeconds,
			},
			k.fleet, scanner, actuator, events, k.clock, k.logger,
		)
		session.Rental.Start()

	case WorkflowTopUp:
		scanner := device.NewCardScanner(devices.ConnectTestDelay, k.sleep, k.logger)
		bank := workflow.NewSimulatedBank(
			devices.ConnectTestDelay, devices.BankDelay, k.cfg.TopUp.DeclineRate,
			k.sleep, k.rng, k.logger,
		)
		session.TopUp = workflow.NewTopUp(
			workflow.TopUpConfig{
				MinAmount:       k.cfg.TopUp.MinAmount,
				MaxFailures:     k.cfg.TopUp.MaxFailures,
				LockoutDuration: k.cfg.TopUp.LockoutDuration,
			},
			scanner, bank, k.store, events, k.clock, k.logger,
		)
		if err := session.TopUp.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize top-up session: %w", err)
		}

	case WorkflowBikeReturn:
		sensor := device.NewParkingSensor(devices.SensorDelay, k.sleep, k.logger)
		scanner := device.NewCardScanner(devices.ScanDelay, k.sleep, k.logger)
		session.BikeReturn = workflow.NewBikeReturn(
			workflow.BikeReturnConfig{
				UnitRate:     k.cfg.Pricing.UnitRate,
				MinimumFee:   k.cfg.Pricing.MinimumFee,
				ProcessDelay: devices.ProcessDelay,
				FailureRate:  devices.FailureRate,
				RentalAge:    demoRentalAge,
			},
			sensor, scanner, events, k.clock, k.sleep, k.rng, k.logger,
		)
		session.BikeReturn.Start()

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownWorkflow, kind)
	}

	k.mu.Lock()
	k.sessions[session.ID] = session
	k.mu.Unlock()

	k.logger.Info("Session created",
		zap.String("session_id", session.ID),
		zap.String("workflow", string(kind)))
	return session, nil
}

// Session resolves a session handle
func (k *Kiosk) Session(id string) (*Session, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	session, ok := k.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// CloseSession cancels and forgets a session
func (k *Kiosk) CloseSession(ctx context.Context, id string) error {
	session, err := k.Session(id)
	if err != nil {
		return err
	}

	// Best-effort teardown; the session is forgotten either way.
	switch session.Kind {
	case WorkflowCardReturn:
		_ = session.CardReturn.Cancel(ctx, true)
	case WorkflowPurchase:
		_ = session.Purchase.Cancel(ctx, true)
	case WorkflowRental:
		_ = session.Rental.Cancel(ctx, true)
	case WorkflowTopUp:
		_ = session.TopUp.Cancel(ctx, true)
	case WorkflowBikeReturn:
		_ = session.BikeReturn.Cancel(ctx, true)
	}

	k.mu.Lock()
	delete(k.sessions, id)
	k.mu.Unlock()

	k.logger.Info("Session closed", zap.String("session_id", id))
	return nil
}

// Fleet exposes the shared station fleet
func (k *Kiosk) Fleet() *entity.Fleet {
	return k.fleet
}
