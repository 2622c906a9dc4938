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
	"github.com/bikeshare/station-kiosk/internal/pricing"
	"github.com/bikeshare/station-kiosk/internal/promo"
	"github.com/bikeshare/station-kiosk/pkg/utils"
	"go.uber.org/zap"
)

// Bike-return wizard: dock the bike, scan the card, pay the rental fee.
const (
	bikeReturnStepPark flow.Step = 1
	bikeReturnStepScan flow.Step = 2
	bikeReturnStepPay  flow.Step = 3
	bikeReturnStepDone flow.Step = 4
)

var (
	errBikeNotParked     = errors.New("the bike is not docked correctly yet")
	errReturnCardMissing = errors.New("please scan your card first")
	errFeeNotCalculated  = errors.New("the fee has not been calculated yet")
)

// BikeReturnConfig holds the bike-return tunables
type BikeReturnConfig struct {
	UnitRate     int64
	MinimumFee   int64
	ProcessDelay time.Duration
	FailureRate  float64
	RentalAge    time.Duration // how long ago the demo rental started
}

// BikeReturnSession is the mutable record for one bike-return session
type BikeReturnSession struct {
	BikeNumber      string
	RentalStartedAt time.Time
	ParkedCorrectly bool
	Slot            int
	ScannedCard     *entity.Card
	ScanFailed      bool
	Charge          *pricing.RentalCharge
	Promo           *promo.Applied
	Discount        int64
	TotalFee        int64
	TransactionID   string
	Receipt         *entity.BikeReturnReceipt
}

// BikeReturn drives the bike-return wizard against the demo rental: bike
// B001, out for the configured rental age when the session opens.
type BikeReturn struct {
	cfg       BikeReturnConfig
	sensor    *device.ParkingSensor
	scanner   *device.CardScanner
	codes     *promo.Table
	presenter Presenter
	machine   flow.Machine
	clock     Clock
	sleep     device.Sleeper
	rng       device.Rand
	logger    *zap.Logger

	mu      sync.Mutex
	busy    bool
	session BikeReturnSession
}

// NewBikeReturn creates a bike-return workflow
func NewBikeReturn(
	cfg BikeReturnConfig,
	sensor *device.ParkingSensor,
	scanner *device.CardScanner,
	presenter Presenter,
	clock Clock,
	sleep device.Sleeper,
	rng device.Rand,
	logger *zap.Logger,
) *BikeReturn {
	w := &BikeReturn{
		cfg:       cfg,
		sensor:    sensor,
		scanner:   scanner,
		codes:     promo.BikeReturnCodes(),
		presenter: presenter,
		clock:     clock,
		sleep:     sleep,
		rng:       rng,
		logger:    logger,
	}
	w.machine = w.buildMachine()
	w.session = w.newSession()
	return w
}

func (w *BikeReturn) newSession() BikeReturnSession {
	return BikeReturnSession{
		BikeNumber:      "B001",
		RentalStartedAt: w.clock().Add(-w.cfg.RentalAge),
	}
}

func (w *BikeReturn) buildMachine() flow.Machine {
	b := flow.NewBuilder(bikeReturnStepDone)

	b.Configure(bikeReturnStepPark).
		PermitIf(flow.EventAdvance, bikeReturnStepScan, w.guardParked).
		Permit(flow.EventReset, bikeReturnStepPark)
	b.Configure(bikeReturnStepScan).
		Permit(flow.EventRetreat, bikeReturnStepPark).
		PermitIf(flow.EventAdvance, bikeReturnStepPay, w.guardCardScanned).
		Permit(flow.EventReset, bikeReturnStepPark)
	b.Configure(bikeReturnStepPay).
		Permit(flow.EventRetreat, bikeReturnStepScan).
		Permit(flow.EventComplete, bikeReturnStepDone).
		Permit(flow.EventReset, bikeReturnStepPark)
	b.Configure(bikeReturnStepDone).
		Permit(flow.EventReset, bikeReturnStepPark)

	return b.Build(bikeReturnStepPark)
}

func (w *BikeReturn) guardParked(ctx context.Context) error {
	if !w.session.ParkedCorrectly {
		return errBikeNotParked
	}
	return nil
}

func (w *BikeReturn) guardCardScanned(ctx context.Context) error {
	if w.session.ScannedCard == nil {
		return errReturnCardMissing
	}
	return nil
}

// Session returns a snapshot of the session record
func (w *BikeReturn) Session() BikeReturnSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// Step returns the current wizard step
func (w *BikeReturn) Step() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.machine.Step())
}

// Start renders the first step
func (w *BikeReturn) Start() {
	w.presenter.RenderStep(int(bikeReturnStepPark))
	w.presenter.RenderAlert(SeverityInfo,
		"Please dock the bike in a free slot and make sure the coupling engages.")
}

func (w *BikeReturn) begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	w.busy = true
	return nil
}

func (w *BikeReturn) end() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

// CheckParking runs the dock sensor against the bike's position
func (w *BikeReturn) CheckParking(ctx context.Context, outcome device.ParkingOutcome) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()

	if w.machine.Step() != bikeReturnStepPark {
		return fmt.Errorf("%w: parking belongs to step %d", flow.ErrInvalidTransition, bikeReturnStepPark)
	}

	w.presenter.RenderLoading(true, "Checking bike position...")
	result, err := w.sensor.Check(ctx, outcome)
	w.presenter.RenderLoading(false, "")
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.session.ParkedCorrectly = result.ParkedCorrectly
	w.session.Slot = result.Slot
	w.mu.Unlock()

	if result.ParkedCorrectly {
		w.presenter.RenderAlert(SeveritySuccess, fmt.Sprintf(
			"Bike docked correctly in slot %02d. Please scan your card to finish.", result.Slot))
	} else {
		w.presenter.PlayAlertSound()
		w.presenter.RenderAlert(SeverityWarning,
			"The bike is not docked correctly. Please adjust its position.")
	}
	return nil
}

// ResetSensor puts the dock sensor back into its waiting state
func (w *BikeReturn) ResetSensor() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	if w.machine.Step() != bikeReturnStepPark {
		return fmt.Errorf("%w: parking belongs to step %d", flow.ErrInvalidTransition, bikeReturnStepPark)
	}

	w.session.ParkedCorrectly = false
	w.session.Slot = 0
	return nil
}

// Advance moves from the parking step to the card scan
func (w *BikeReturn) Advance(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	if w.machine.Step() != bikeReturnStepPark {
		return fmt.Errorf("%w: use Calculate to leave the scan step", flow.ErrInvalidTransition)
	}

	if err := w.machine.Fire(ctx, flow.EventAdvance); err != nil {
		w.presenter.RenderAlert(SeverityError, guardReason(err))
		return err
	}

	w.presenter.RenderStep(int(w.machine.Step()))
	w.presenter.RenderAlert(SeverityInfo, "Please scan the card used for the rental.")
	return nil
}

// Scan reads the renter's card. A reader fault leaves no card, which keeps
// the fee calculation blocked; the insufficient-balance fixture scans fine
// with a warning and fails later, at payment.
func (w *BikeReturn) Scan(ctx context.Context, outcome device.BikeReturnCardOutcome) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()

	if w.machine.Step() != bikeReturnStepScan {
		return fmt.Errorf("%w: scan belongs to step %d", flow.ErrInvalidTransition, bikeReturnStepScan)
	}

	w.presenter.RenderLoading(true, "Reading card...")
	card, err := w.scanner.ScanForBikeReturn(ctx, outcome)
	w.presenter.RenderLoading(false, "")
	if err != nil {
		if errors.Is(err, device.ErrReaderFault) {
			w.mu.Lock()
			w.session.ScannedCard = nil
			w.session.ScanFailed = true
			w.mu.Unlock()
			w.presenter.PlayAlertSound()
			w.presenter.RenderAlert(SeverityError,
				"Card reader error. Please try again or contact support. Hotline: 1900 1234")
			return nil
		}
		return err
	}

	w.mu.Lock()
	w.session.ScannedCard = card
	w.session.ScanFailed = false
	w.mu.Unlock()

	if card.Balance < w.cfg.MinimumFee {
		w.presenter.RenderAlert(SeverityWarning,
			"Card scanned. Note: the balance may not cover the payment.")
	} else {
		w.presenter.RenderAlert(SeveritySuccess,
			"Card scanned. Press \"Calculate\" to see the fee.")
	}
	return nil
}

// Calculate prices the rental and moves to the payment step
func (w *BikeReturn) Calculate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	if w.machine.Step() != bikeReturnStepScan {
		return fmt.Errorf("%w: calculation belongs to step %d", flow.ErrInvalidTransition, bikeReturnStepScan)
	}

	if err := w.machine.Fire(ctx, flow.EventAdvance); err != nil {
		w.presenter.RenderAlert(SeverityError, guardReason(err))
		return err
	}

	charge := pricing.ChargeForRental(w.session.RentalStartedAt, w.clock(), w.cfg.UnitRate, w.cfg.MinimumFee)
	w.session.Charge = &charge
	w.session.Promo = nil
	w.session.Discount = 0
	w.session.TotalFee = charge.BaseFee

	w.presenter.RenderStep(int(w.machine.Step()))
	w.presenter.RenderAlert(SeverityInfo, fmt.Sprintf(
		"Rental time: %s. Amount due: %s.",
		utils.FormatDuration(charge.DurationMinutes), utils.FormatVND(w.session.TotalFee)))
	return nil
}

// ApplyPromo applies a discount code to the calculated fee. An invalid
// code leaves any earlier discount in place.
func (w *BikeReturn) ApplyPromo(code string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.machine.Step() != bikeReturnStepPay {
		return fmt.Errorf("%w: promo belongs to step %d", flow.ErrInvalidTransition, bikeReturnStepPay)
	}
	if w.session.Charge == nil {
		return errFeeNotCalculated
	}

	applied, err := w.codes.Apply(code, w.session.Charge.BaseFee)
	if err != nil {
		switch {
		case errors.Is(err, promo.ErrNoCode):
			w.presenter.RenderAlert(SeverityWarning, "Please enter a promo code.")
		default:
			w.presenter.RenderAlert(SeverityError, "Invalid promo code.")
		}
		return err
	}

	w.session.Promo = applied
	w.session.Discount = applied.Amount
	w.session.TotalFee = pricing.Total(w.session.Charge.BaseFee, applied.Amount)

	w.presenter.RenderAlert(SeveritySuccess, fmt.Sprintf(
		"%s. New total: %s.", applied.Description, utils.FormatVND(w.session.TotalFee)))
	return nil
}

// Pay charges the card. An insufficient balance is a hard failure the
// renter can only fix by topping up; the payment system also fails
// independently at the configured rate, with unlimited retries.
func (w *BikeReturn) Pay(ctx context.Context) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()

	w.mu.Lock()
	if w.machine.Step() != bikeReturnStepPay {
		w.mu.Unlock()
		return fmt.Errorf("%w: payment belongs to step %d", flow.ErrInvalidTransition, bikeReturnStepPay)
	}
	if w.session.Charge == nil {
		w.mu.Unlock()
		return errFeeNotCalculated
	}
	w.mu.Unlock()

	w.presenter.RenderLoading(true, "Processing payment...")
	if err := w.sleep(ctx, w.cfg.ProcessDelay); err != nil {
		w.presenter.RenderLoading(false, "")
		return err
	}
	w.presenter.RenderLoading(false, "")

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.session.ScannedCard.Balance < w.session.TotalFee {
		w.presenter.PlayAlertSound()
		w.presenter.RenderAlert(SeverityError,
			"Payment failed: insufficient card balance. Please top up or contact support. Hotline: 1900 1234")
		return nil
	}

	if w.rng() < w.cfg.FailureRate {
		w.presenter.PlayAlertSound()
		w.presenter.RenderAlert(SeverityError,
			"Payment failed: could not reach the payment system. Please try again or contact support. Hotline: 1900 1234")
		return nil
	}

	if err := w.machine.Fire(ctx, flow.EventComplete); err != nil {
		return err
	}

	now := w.clock()
	w.session.ScannedCard.Balance -= w.session.TotalFee
	w.session.TransactionID = utils.TransactionID("TX", now, w.rng)
	w.session.Receipt = &entity.BikeReturnReceipt{
		TransactionID:   w.session.TransactionID,
		BikeNumber:      w.session.BikeNumber,
		CardNumber:      w.session.ScannedCard.Number,
		DurationMinutes: w.session.Charge.DurationMinutes,
		BaseFee:         w.session.Charge.BaseFee,
		Discount:        w.session.Discount,
		TotalFee:        w.session.TotalFee,
		IssuedAt:        now,
	}

	w.presenter.RenderStep(int(w.machine.Step()))
	w.presenter.RenderAlert(SeveritySuccess, "Payment complete. Thank you for riding with us!")
	w.logger.Info("Bike returned",
		zap.String("bike", w.session.BikeNumber),
		zap.String("transaction", w.session.TransactionID),
		zap.Int64("fee", w.session.TotalFee))
	return nil
}

// Retreat steps back one screen, discarding that screen's data
func (w *BikeReturn) Retreat(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}

	if err := w.machine.Fire(ctx, flow.EventRetreat); err != nil {
		return err
	}

	switch w.machine.Step() {
	case bikeReturnStepPark:
		w.session.ScannedCard = nil
		w.session.ScanFailed = false
	case bikeReturnStepScan:
		w.session.Charge = nil
		w.session.Promo = nil
		w.session.Discount = 0
		w.session.TotalFee = 0
	}

	w.presenter.RenderStep(int(w.machine.Step()))
	return nil
}

// Cancel discards the session. After payment no confirmation is needed.
func (w *BikeReturn) Cancel(ctx context.Context, confirmed bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}

	if w.machine.Step() != bikeReturnStepDone && !confirmed {
		return ErrCancelNotConfirmed
	}

	w.session = w.newSession()
	if err := w.machine.Fire(ctx, flow.EventReset); err != nil {
		return err
	}

	w.presenter.RenderStep(int(bikeReturnStepPark))
	w.presenter.RenderAlert(SeverityInfo, "Session ended. Returning to the home screen.")
	return nil
}
