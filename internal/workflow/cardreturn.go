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
	"github.com/bikeshare/station-kiosk/pkg/utils"
	"go.uber.org/zap"
)

// Card-return wizard: scan the card, confirm the refund, collect the
// receipt.
const (
	cardReturnStepScan    flow.Step = 1
	cardReturnStepConfirm flow.Step = 2
	cardReturnStepDone    flow.Step = 3
)

var (
	errCardNotScanned     = errors.New("scan your card before continuing")
	errCardHasRental      = errors.New("return your bike before returning the card")
	errCardNegative       = errors.New("card has a negative balance and cannot be returned")
	errReturnNotConfirmed = errors.New("tick the confirmation box before returning the card")
)

// CardReturnConfig holds the card-return tunables
type CardReturnConfig struct {
	DepositAmount int64
	RefundDelay   time.Duration
	FailureRate   float64
}

// CardReturnSession is the mutable record for one card-return session
type CardReturnSession struct {
	ScannedCard     *entity.Card
	HasActiveRental bool
	Confirmed       bool
	RefundAmount    int64
	TransactionID   string
	Receipt         *entity.CardReturnReceipt
	Blocked         bool
}

// CardReturn drives the card-return wizard
type CardReturn struct {
	cfg       CardReturnConfig
	scanner   *device.CardScanner
	presenter Presenter
	machine   flow.Machine
	clock     Clock
	sleep     device.Sleeper
	rng       device.Rand
	logger    *zap.Logger

	mu      sync.Mutex
	busy    bool
	session CardReturnSession
}

// NewCardReturn creates a card-return workflow with a fresh session
func NewCardReturn(
	cfg CardReturnConfig,
	scanner *device.CardScanner,
	presenter Presenter,
	clock Clock,
	sleep device.Sleeper,
	rng device.Rand,
	logger *zap.Logger,
) *CardReturn {
	w := &CardReturn{
		cfg:       cfg,
		scanner:   scanner,
		presenter: presenter,
		clock:     clock,
		sleep:     sleep,
		rng:       rng,
		logger:    logger,
	}
	w.machine = w.buildMachine()
	return w
}

func (w *CardReturn) buildMachine() flow.Machine {
	b := flow.NewBuilder(cardReturnStepDone)

	b.Configure(cardReturnStepScan).
		PermitIf(flow.EventAdvance, cardReturnStepConfirm, w.guardScanned).
		Permit(flow.EventReset, cardReturnStepScan)
	b.Configure(cardReturnStepConfirm).
		Permit(flow.EventRetreat, cardReturnStepScan).
		PermitIf(flow.EventComplete, cardReturnStepDone, w.guardConfirmed).
		Permit(flow.EventReset, cardReturnStepScan)
	b.Configure(cardReturnStepDone).
		Permit(flow.EventReset, cardReturnStepScan)

	return b.Build(cardReturnStepScan)
}

func (w *CardReturn) guardScanned(ctx context.Context) error {
	s := &w.session
	switch {
	case s.ScannedCard == nil:
		return errCardNotScanned
	case s.HasActiveRental:
		return errCardHasRental
	case s.ScannedCard.Balance < 0:
		return errCardNegative
	}
	return nil
}

func (w *CardReturn) guardConfirmed(ctx context.Context) error {
	if !w.session.Confirmed {
		return errReturnNotConfirmed
	}
	return nil
}

// Session returns a snapshot of the session record
func (w *CardReturn) Session() CardReturnSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// Step returns the current wizard step
func (w *CardReturn) Step() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.machine.Step())
}

// Start renders the first step
func (w *CardReturn) Start() {
	w.presenter.RenderStep(int(cardReturnStepScan))
}

func (w *CardReturn) begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	w.busy = true
	return nil
}

func (w *CardReturn) end() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

// Scan reads a card on the demo panel. The outcome selector names which
// synthetic card the scanner produces.
func (w *CardReturn) Scan(ctx context.Context, outcome device.ReturnCardOutcome) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()

	if step := w.machine.Step(); step != cardReturnStepScan {
		return fmt.Errorf("%w: scanning is only available on step %d", flow.ErrInvalidTransition, cardReturnStepScan)
	}

	w.presenter.RenderLoading(true, "Scanning card...")
	scan, err := w.scanner.ScanForReturn(ctx, outcome)
	w.presenter.RenderLoading(false, "")
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.session.ScannedCard = scan.Card
	w.session.HasActiveRental = scan.HasActiveRental
	w.session.Confirmed = false
	w.session.Blocked = scan.Card.Balance < 0
	w.mu.Unlock()

	switch {
	case scan.HasActiveRental:
		w.presenter.PlayAlertSound()
		w.presenter.RenderAlert(SeverityWarning,
			"Please return your bike before returning the card. The return action is disabled.")
	case scan.Card.Balance < 0:
		w.presenter.PlayAlertSound()
		w.presenter.RenderAlert(SeverityError,
			"Card has a negative balance and cannot be returned. Please contact support. Hotline: 1900 1234")
	default:
		w.presenter.RenderAlert(SeveritySuccess,
			"Card scanned. Check the details and press Continue.")
	}

	w.logger.Info("Card scanned for return",
		zap.String("card", scan.Card.Number),
		zap.Int64("balance", scan.Card.Balance),
		zap.Bool("active_rental", scan.HasActiveRental))
	return nil
}

// Advance moves from the scan step to the confirmation step. Entering the
// confirmation step computes the refund for prepaid cards.
func (w *CardReturn) Advance(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}

	if err := w.machine.Fire(ctx, flow.EventAdvance); err != nil {
		w.presenter.RenderAlert(SeverityError, guardReason(err))
		return err
	}

	if w.session.ScannedCard.Refundable() {
		w.session.RefundAmount = pricing.CardRefund(w.session.ScannedCard.Balance, w.cfg.DepositAmount)
	} else {
		w.session.RefundAmount = 0
	}
	w.session.Confirmed = false

	w.presenter.RenderStep(int(w.machine.Step()))
	return nil
}

// Retreat returns to the scan step, abandoning the scanned card
func (w *CardReturn) Retreat(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}

	if err := w.machine.Fire(ctx, flow.EventRetreat); err != nil {
		return err
	}

	// Data collected on the abandoned step is cleared
	w.session.ScannedCard = nil
	w.session.HasActiveRental = false
	w.session.Confirmed = false
	w.session.RefundAmount = 0

	w.presenter.RenderStep(int(w.machine.Step()))
	return nil
}

// SetConfirmed records the confirmation checkbox state
func (w *CardReturn) SetConfirmed(confirmed bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.machine.Step() != cardReturnStepConfirm {
		return fmt.Errorf("%w: confirmation belongs to step %d", flow.ErrInvalidTransition, cardReturnStepConfirm)
	}
	w.session.Confirmed = confirmed
	return nil
}

// Submit performs the refund through the simulated refund system. Prepaid
// refunds fail with the modeled probability; the user may retry without
// limit.
func (w *CardReturn) Submit(ctx context.Context) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()

	w.mu.Lock()
	if w.machine.Step() != cardReturnStepConfirm {
		w.mu.Unlock()
		return fmt.Errorf("%w: submit belongs to step %d", flow.ErrInvalidTransition, cardReturnStepConfirm)
	}
	if err := w.guardConfirmed(ctx); err != nil {
		w.mu.Unlock()
		w.presenter.RenderAlert(SeverityError, err.Error())
		return err
	}
	card := w.session.ScannedCard
	w.mu.Unlock()

	w.presenter.RenderLoading(true, "Processing card return...")
	if err := w.sleep(ctx, w.cfg.RefundDelay); err != nil {
		w.presenter.RenderLoading(false, "")
		return err
	}
	w.presenter.RenderLoading(false, "")

	// The refund system only moves money for prepaid cards, so only that
	// path can hit the modeled outage.
	if card.Refundable() && w.rng() < w.cfg.FailureRate {
		w.presenter.PlayAlertSound()
		w.presenter.RenderAlert(SeverityError,
			"Refund system connection error. The refund cannot be completed right now. Please try again or contact staff. Hotline: 1900 1234")
		w.logger.Warn("Refund system error", zap.String("card", card.Number))
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.machine.Fire(ctx, flow.EventComplete); err != nil {
		return err
	}

	now := w.clock()
	w.session.TransactionID = utils.TransactionID("RT", now, w.rng)
	w.session.Receipt = &entity.CardReturnReceipt{
		TransactionID: w.session.TransactionID,
		CardNumber:    card.Number,
		CardType:      card.Type,
		RefundAmount:  w.session.RefundAmount,
		Refunded:      card.Refundable(),
		IssuedAt:      now,
	}

	w.presenter.RenderStep(int(w.machine.Step()))
	w.presenter.RenderAlert(SeveritySuccess, "Card returned successfully.")
	w.logger.Info("Card returned",
		zap.String("transaction_id", w.session.TransactionID),
		zap.String("card", card.Number),
		zap.Int64("refund", w.session.RefundAmount))
	return nil
}

// Cancel discards the session. At non-terminal steps the yes/no gate must
// have been confirmed; at the receipt step it is unconditional.
func (w *CardReturn) Cancel(ctx context.Context, confirmed bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}

	if w.machine.Step() != cardReturnStepDone && !confirmed {
		return ErrCancelNotConfirmed
	}

	w.session = CardReturnSession{}
	if err := w.machine.Fire(ctx, flow.EventReset); err != nil {
		return err
	}

	w.presenter.RenderStep(int(cardReturnStepScan))
	w.presenter.RenderAlert(SeverityInfo, "Session ended. Returning to the home screen.")
	return nil
}

// guardReason strips the machine's wrapping so alerts show only the
// user-facing precondition text.
func guardReason(err error) string {
	var ge *flow.GuardError
	if errors.As(err, &ge) {
		return ge.Reason.Error()
	}
	return err.Error()
}
