package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bikeshare/station-kiosk/internal/device"
	"github.com/bikeshare/station-kiosk/internal/domain/entity"
	"github.com/bikeshare/station-kiosk/internal/domain/flow"
	"github.com/bikeshare/station-kiosk/pkg/utils"
	"go.uber.org/zap"
)

// Bike-rental wizard: choose a bike, authenticate with a prepaid card,
// unlock, then take the bike within the countdown window.
const (
	rentalStepSelect flow.Step = 1
	rentalStepScan   flow.Step = 2
	rentalStepDone   flow.Step = 3
)

var (
	errNoBikeSelected    = errors.New("please select a bike first")
	errBikeNotAvailable  = errors.New("this bike cannot be rented right now")
	errRentalCardMissing = errors.New("please scan your card first")
	errRentalCardInvalid = errors.New("card not recognized, please try another card")
	errBalanceTooLow     = errors.New("card balance is below the required minimum")
)

// RentalConfig holds the bike-rental tunables
type RentalConfig struct {
	MinBalance       int64
	CountdownSeconds int
	WarningSeconds   int
	TickInterval     time.Duration
}

// RentalSession is the mutable record for one rental session
type RentalSession struct {
	SelectedBikeID int
	ScannedCard    *entity.Card
	CardValid      bool
	StartedAt      time.Time
	Receipt        *entity.RentalReceipt
	Taken          bool
}

// Rental drives the bike-rental wizard. The station fleet is owned here:
// rentals, returns-to-dock on expiry and maintenance flags from jammed
// locks all mutate it, and later sessions see the result.
type Rental struct {
	cfg       RentalConfig
	fleet     *entity.Fleet
	scanner   *device.CardScanner
	actuator  *device.UnlockActuator
	presenter Presenter
	machine   flow.Machine
	clock     Clock
	logger    *zap.Logger

	mu        sync.Mutex
	busy      bool
	session   RentalSession
	countdown *Countdown
}

// NewRental creates a bike-rental workflow over the given fleet
func NewRental(
	cfg RentalConfig,
	fleet *entity.Fleet,
	scanner *device.CardScanner,
	actuator *device.UnlockActuator,
	presenter Presenter,
	clock Clock,
	logger *zap.Logger,
) *Rental {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	w := &Rental{
		cfg:       cfg,
		fleet:     fleet,
		scanner:   scanner,
		actuator:  actuator,
		presenter: presenter,
		clock:     clock,
		logger:    logger,
	}
	w.machine = w.buildMachine()
	return w
}

func (w *Rental) buildMachine() flow.Machine {
	b := flow.NewBuilder(rentalStepDone)

	b.Configure(rentalStepSelect).
		PermitIf(flow.EventAdvance, rentalStepScan, w.guardBikeSelected).
		Permit(flow.EventReset, rentalStepSelect)
	b.Configure(rentalStepScan).
		Permit(flow.EventRetreat, rentalStepSelect).
		PermitIf(flow.EventComplete, rentalStepDone, w.guardCard).
		Permit(flow.EventReset, rentalStepSelect)
	b.Configure(rentalStepDone).
		Permit(flow.EventReset, rentalStepSelect)

	return b.Build(rentalStepSelect)
}

func (w *Rental) guardBikeSelected(ctx context.Context) error {
	if w.session.SelectedBikeID == 0 {
		return errNoBikeSelected
	}
	return nil
}

func (w *Rental) guardCard(ctx context.Context) error {
	if w.session.ScannedCard == nil {
		return errRentalCardMissing
	}
	if !w.session.CardValid {
		return errRentalCardInvalid
	}
	if w.session.ScannedCard.Balance < w.cfg.MinBalance {
		return fmt.Errorf("%w: at least %s required",
			errBalanceTooLow, utils.FormatVND(w.cfg.MinBalance))
	}
	return nil
}

// Session returns a snapshot of the session record
func (w *Rental) Session() RentalSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// Step returns the current wizard step
func (w *Rental) Step() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.machine.Step())
}

// Fleet exposes the station fleet for the presentation layer
func (w *Rental) Fleet() *entity.Fleet {
	return w.fleet
}

// Start renders the first step and the dock overview
func (w *Rental) Start() {
	w.presenter.RenderStep(int(rentalStepSelect))
	w.presenter.RenderAlert(SeverityInfo,
		fmt.Sprintf("%d of %d bikes available. Please select a bike.",
			w.fleet.AvailableCount(), w.fleet.Total()))
}

// SelectBike records the chosen bike. Rented and maintenance bikes are
// rejected with a sound and the previous selection stays.
func (w *Rental) SelectBike(id int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.machine.Step() != rentalStepSelect {
		return fmt.Errorf("%w: selection belongs to step %d", flow.ErrInvalidTransition, rentalStepSelect)
	}

	bike := w.fleet.Find(id)
	if bike == nil {
		return fmt.Errorf("unknown bike %d", id)
	}
	if bike.Status != entity.BikeAvailable {
		w.presenter.PlayAlertSound()
		w.presenter.RenderAlert(SeverityError,
			fmt.Sprintf("Bike %s cannot be rented (%s).", bike.Number, bike.Status))
		return errBikeNotAvailable
	}

	w.session.SelectedBikeID = id
	w.presenter.RenderAlert(SeverityInfo, fmt.Sprintf("Bike %s selected.", bike.Number))
	return nil
}

// Advance moves to the card-scan step
func (w *Rental) Advance(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}

	if err := w.machine.Fire(ctx, flow.EventAdvance); err != nil {
		w.presenter.RenderAlert(SeverityError, guardReason(err))
		return err
	}

	w.presenter.RenderStep(int(w.machine.Step()))
	w.presenter.RenderAlert(SeverityInfo, "Please scan your prepaid card.")
	return nil
}

func (w *Rental) begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	w.busy = true
	return nil
}

func (w *Rental) end() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

// Scan reads the renter's card. Invalid cards and balances below the
// minimum keep the confirm action blocked by the guard.
func (w *Rental) Scan(ctx context.Context, outcome device.RentalCardOutcome) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()

	if w.machine.Step() != rentalStepScan {
		return fmt.Errorf("%w: scan belongs to step %d", flow.ErrInvalidTransition, rentalStepScan)
	}

	w.presenter.RenderLoading(true, "Reading card...")
	scan, err := w.scanner.ScanForRental(ctx, outcome)
	w.presenter.RenderLoading(false, "")
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.session.ScannedCard = scan.Card
	w.session.CardValid = scan.Valid
	w.mu.Unlock()

	switch {
	case !scan.Valid:
		w.presenter.PlayAlertSound()
		w.presenter.RenderAlert(SeverityError, errRentalCardInvalid.Error())
	case scan.Card.Balance < w.cfg.MinBalance:
		w.presenter.PlayAlertSound()
		w.presenter.RenderAlert(SeverityWarning, fmt.Sprintf(
			"Balance %s is below the required %s. Please top up first.",
			utils.FormatVND(scan.Card.Balance), utils.FormatVND(w.cfg.MinBalance)))
	default:
		w.presenter.RenderAlert(SeveritySuccess, fmt.Sprintf(
			"Card %s accepted. Balance: %s.",
			utils.FormatCardNumber(scan.Card.Number), utils.FormatVND(scan.Card.Balance)))
	}
	return nil
}

// ConfirmRent unlocks the selected bike. A jammed lock sends the bike to
// maintenance for the rest of the day and restarts the session; success
// marks the bike rented and opens the take-the-bike countdown.
func (w *Rental) ConfirmRent(ctx context.Context) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()

	w.mu.Lock()
	if w.machine.Step() != rentalStepScan {
		w.mu.Unlock()
		return fmt.Errorf("%w: confirm belongs to step %d", flow.ErrInvalidTransition, rentalStepScan)
	}
	if err := w.guardCard(ctx); err != nil {
		w.mu.Unlock()
		w.presenter.RenderAlert(SeverityError, err.Error())
		return err
	}
	bike := w.fleet.Find(w.session.SelectedBikeID)
	w.mu.Unlock()

	w.presenter.RenderLoading(true, fmt.Sprintf("Unlocking bike %s...", bike.Number))
	err := w.actuator.Unlock(ctx, bike.Number)
	w.presenter.RenderLoading(false, "")

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		if errors.Is(err, device.ErrMechanicalFault) {
			bike.Status = entity.BikeMaintenance
			w.session = RentalSession{}
			if err := w.machine.Fire(ctx, flow.EventReset); err != nil {
				return err
			}
			w.presenter.PlayAlertSound()
			w.presenter.RenderStep(int(rentalStepSelect))
			w.presenter.RenderAlert(SeverityError, fmt.Sprintf(
				"The lock on bike %s is jammed. The bike was taken out of service; please pick another one.",
				bike.Number))
			w.logger.Warn("Bike moved to maintenance after jammed lock", zap.String("bike", bike.Number))
			return nil
		}
		return err
	}

	if err := w.machine.Fire(ctx, flow.EventComplete); err != nil {
		return err
	}

	now := w.clock()
	bike.Status = entity.BikeRented
	w.session.StartedAt = now
	w.session.Receipt = &entity.RentalReceipt{
		BikeNumber: bike.Number,
		CardNumber: w.session.ScannedCard.Number,
		StartedAt:  now,
	}

	w.startCountdown(bike)

	w.presenter.RenderStep(int(w.machine.Step()))
	w.presenter.RenderAlert(SeveritySuccess, fmt.Sprintf(
		"Bike %s unlocked. Please take your bike within %d seconds.",
		bike.Number, w.cfg.CountdownSeconds))
	w.logger.Info("Bike rented",
		zap.String("bike", bike.Number),
		zap.String("card", w.session.ScannedCard.Number))
	return nil
}

// startCountdown must be called with mu held
func (w *Rental) startCountdown(bike *entity.Bike) {
	w.countdown = NewCountdown(w.cfg.CountdownSeconds, w.cfg.WarningSeconds, w.cfg.TickInterval,
		CountdownCallbacks{
			OnTick: w.presenter.RenderCountdown,
			OnWarn: func() {
				w.presenter.PlayAlertSound()
				w.presenter.RenderAlert(SeverityWarning, fmt.Sprintf(
					"Only %d seconds left to take bike %s!", w.cfg.WarningSeconds, bike.Number))
			},
			OnExpire: func() { w.expire(bike) },
		}, w.logger)
	w.countdown.Start()
}

// expire returns an untaken bike to the dock and restarts the session
func (w *Rental) expire(bike *entity.Bike) {
	w.mu.Lock()
	defer w.mu.Unlock()

	bike.Status = entity.BikeAvailable
	w.session = RentalSession{}
	w.countdown = nil
	if err := w.machine.Fire(context.Background(), flow.EventReset); err != nil {
		w.logger.Error("Failed to reset after countdown expiry", zap.Error(err))
	}

	w.presenter.PlayAlertSound()
	w.presenter.RenderStep(int(rentalStepSelect))
	w.presenter.RenderAlert(SeverityError, fmt.Sprintf(
		"Time is up. Bike %s was locked again and the rental was canceled.", bike.Number))
	w.logger.Info("Rental expired, bike returned to dock", zap.String("bike", bike.Number))
}

// ConfirmTaken acknowledges that the renter took the bike. It races with
// the countdown: if expiry already won the session has restarted and
// ErrSessionComplete is returned.
func (w *Rental) ConfirmTaken() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.machine.Step() != rentalStepDone || w.countdown == nil {
		return fmt.Errorf("%w: no rental awaiting pickup", flow.ErrInvalidTransition)
	}

	if !w.countdown.Stop() {
		return ErrSessionComplete
	}
	w.countdown = nil
	w.session.Taken = true

	w.presenter.RenderCountdown(0)
	w.presenter.RenderAlert(SeveritySuccess, "Have a good ride!")
	w.logger.Info("Bike pickup confirmed", zap.String("bike", w.session.Receipt.BikeNumber))
	return nil
}

// Retreat returns from the scan step to bike selection, clearing the scan
func (w *Rental) Retreat(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}

	if err := w.machine.Fire(ctx, flow.EventRetreat); err != nil {
		return err
	}

	w.session.ScannedCard = nil
	w.session.CardValid = false

	w.presenter.RenderStep(int(w.machine.Step()))
	return nil
}

// Cancel discards the session. Canceling after the unlock returns the bike
// to the dock, same as letting the countdown expire.
func (w *Rental) Cancel(ctx context.Context, confirmed bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}

	if w.session.Taken {
		w.session = RentalSession{}
		if err := w.machine.Fire(ctx, flow.EventReset); err != nil {
			return err
		}
		w.presenter.RenderStep(int(rentalStepSelect))
		return nil
	}

	if !confirmed {
		return ErrCancelNotConfirmed
	}

	if w.countdown != nil {
		if w.countdown.Stop() {
			if bike := w.fleet.Find(w.session.SelectedBikeID); bike != nil {
				bike.Status = entity.BikeAvailable
			}
		}
		w.countdown = nil
	}

	w.session = RentalSession{}
	if err := w.machine.Fire(ctx, flow.EventReset); err != nil {
		return err
	}

	w.presenter.RenderStep(int(rentalStepSelect))
	w.presenter.RenderAlert(SeverityInfo, "Session ended. Returning to the home screen.")
	return nil
}
