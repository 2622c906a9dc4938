package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bikeshare/station-kiosk/internal/device"
	"github.com/bikeshare/station-kiosk/internal/domain/entity"
	"github.com/bikeshare/station-kiosk/internal/lockout"
	"github.com/bikeshare/station-kiosk/internal/promo"
	"github.com/bikeshare/station-kiosk/pkg/utils"
	"go.uber.org/zap"
)

var (
	// ErrCardLocked is returned while the lockout window holds; the bank
	// is never contacted for a locked card.
	ErrCardLocked = errors.New("card is temporarily locked")

	errCardNotRead   = errors.New("no card inserted")
	errTopUpTooSmall = errors.New("top-up amount is below the minimum")
)

// TopUpConfig holds the top-up tunables
type TopUpConfig struct {
	MinAmount       int64
	MaxFailures     int
	LockoutDuration time.Duration
	TickInterval    time.Duration
}

// TopUpSession is the mutable record for one top-up session. Unlike the
// wizards this workflow is a single form; there is no step machine.
type TopUpSession struct {
	Card           *entity.Card
	Amount         int64
	Promo          *promo.Applied
	FailedAttempts int
	Locked         bool
	LockRemaining  time.Duration
	Receipt        *entity.TopUpReceipt
}

// TopUp drives the card top-up form: read the inserted card, pick an
// amount and optional promo code, then transfer through the bank. Failed
// transfers count toward the persisted lockout.
type TopUp struct {
	cfg       TopUpConfig
	scanner   *device.CardScanner
	bank      BankGateway
	store     *lockout.Store
	codes     *promo.Table
	presenter Presenter
	clock     Clock
	logger    *zap.Logger

	mu         sync.Mutex
	busy       bool
	guard      *lockout.Guard
	session    TopUpSession
	lockTicker *Countdown
}

// NewTopUp creates a top-up workflow backed by the given bank gateway and
// lockout store
func NewTopUp(
	cfg TopUpConfig,
	scanner *device.CardScanner,
	bank BankGateway,
	store *lockout.Store,
	presenter Presenter,
	clock Clock,
	logger *zap.Logger,
) *TopUp {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &TopUp{
		cfg:       cfg,
		scanner:   scanner,
		bank:      bank,
		store:     store,
		codes:     promo.TopUpCodes(),
		presenter: presenter,
		clock:     clock,
		logger:    logger,
	}
}

// Session returns a snapshot of the session record
func (w *TopUp) Session() TopUpSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

func (w *TopUp) begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	w.busy = true
	return nil
}

func (w *TopUp) end() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

// Init reads the inserted card and restores any persisted lockout. A card
// locked before a kiosk restart comes back locked.
func (w *TopUp) Init(ctx context.Context) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()

	w.presenter.RenderLoading(true, "Reading card...")
	card, err := w.scanner.ReadForTopUp(ctx)
	w.presenter.RenderLoading(false, "")
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.session = TopUpSession{Card: card}
	w.guard = lockout.NewGuard(w.store, card.Number, w.cfg.MaxFailures, w.cfg.LockoutDuration, w.logger)

	record, err := w.guard.Check(w.clock())
	if err != nil {
		return err
	}
	w.session.FailedAttempts = record.FailedAttempts
	if record.IsLocked {
		w.applyLock(record)
	} else {
		w.presenter.RenderAlert(SeverityInfo, fmt.Sprintf(
			"Card %s. Current balance: %s.",
			utils.FormatCardNumber(card.Number), utils.FormatVND(card.Balance)))
	}
	return nil
}

// SelectAmount sets the top-up amount from a denomination button or the
// custom field. An applied promo is re-checked against the new amount.
func (w *TopUp) SelectAmount(amount int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.session.Card == nil {
		return errCardNotRead
	}
	if amount <= 0 {
		return promo.ErrNoAmount
	}

	w.session.Amount = amount

	if w.session.Promo != nil {
		applied, err := w.codes.Apply(w.session.Promo.Code, amount)
		if err != nil {
			w.session.Promo = nil
			w.presenter.RenderAlert(SeverityWarning,
				"The promo code no longer applies to this amount.")
			return nil
		}
		w.session.Promo = applied
	}
	return nil
}

// ApplyPromo resolves a promo code against the chosen amount. Unknown
// codes and failed eligibility both clear any previously applied promo.
func (w *TopUp) ApplyPromo(code string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.session.Card == nil {
		return errCardNotRead
	}

	applied, err := w.codes.Apply(code, w.session.Amount)
	if err != nil {
		w.session.Promo = nil
		switch {
		case errors.Is(err, promo.ErrNoCode):
			w.presenter.RenderAlert(SeverityWarning, "Please enter a promo code.")
		case errors.Is(err, promo.ErrNoAmount):
			w.presenter.RenderAlert(SeverityWarning, "Please choose an amount before applying a code.")
		case errors.Is(err, promo.ErrNotEligible):
			w.presenter.RenderAlert(SeverityWarning, "The chosen amount is not eligible for this code.")
		default:
			w.presenter.RenderAlert(SeverityError, "Invalid promo code.")
		}
		return err
	}

	w.session.Promo = applied
	w.presenter.RenderAlert(SeveritySuccess, fmt.Sprintf(
		"%s: +%s bonus.", applied.Description, utils.FormatVND(applied.Amount)))
	return nil
}

// Submit runs the transfer: lockout check, local validation, bank
// connectivity test, then the credit call. Declines count toward the
// lockout; reaching the cap locks the card without further bank contact.
func (w *TopUp) Submit(ctx context.Context) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()

	w.mu.Lock()
	if w.session.Card == nil {
		w.mu.Unlock()
		return errCardNotRead
	}
	if w.guard == nil {
		w.mu.Unlock()
		return errCardNotRead
	}

	record, err := w.guard.Check(w.clock())
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if record.IsLocked {
		w.applyLock(record)
		w.mu.Unlock()
		return ErrCardLocked
	}
	w.session.Locked = false

	if w.session.Amount < w.cfg.MinAmount {
		w.mu.Unlock()
		w.presenter.RenderAlert(SeverityWarning, fmt.Sprintf(
			"Minimum top-up is %s.", utils.FormatVND(w.cfg.MinAmount)))
		return errTopUpTooSmall
	}

	card := w.session.Card
	amount := w.session.Amount
	var bonus int64
	if w.session.Promo != nil {
		bonus = w.session.Promo.Amount
	}
	w.mu.Unlock()

	w.presenter.RenderLoading(true, "Connecting to bank...")
	if err := w.bank.TestConnection(ctx); err != nil {
		w.presenter.RenderLoading(false, "")
		return err
	}

	w.presenter.RenderLoading(true, "Processing transaction...")
	err = w.bank.Credit(ctx, card.Number, amount)
	w.presenter.RenderLoading(false, "")

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrBankDeclined) {
			return w.handleDecline()
		}
		return err
	}

	if err := w.guard.RecordSuccess(); err != nil {
		return err
	}

	credited := amount + bonus
	card.Balance += credited
	w.session.FailedAttempts = 0
	w.session.Receipt = &entity.TopUpReceipt{
		CardNumber: card.Number,
		Amount:     amount,
		Bonus:      bonus,
		Credited:   credited,
		NewBalance: card.Balance,
		IssuedAt:   w.clock(),
	}
	w.session.Amount = 0
	w.session.Promo = nil

	w.presenter.RenderAlert(SeveritySuccess, fmt.Sprintf(
		"Top-up successful. %s credited. New balance: %s.",
		utils.FormatVND(credited), utils.FormatVND(card.Balance)))
	w.logger.Info("Top-up completed",
		zap.String("card", card.Number),
		zap.Int64("credited", credited),
		zap.Int64("balance", card.Balance))
	return nil
}

// handleDecline must be called with mu held
func (w *TopUp) handleDecline() error {
	record, err := w.guard.RecordFailure(w.clock())
	if err != nil {
		return err
	}
	w.session.FailedAttempts = record.FailedAttempts

	if record.IsLocked {
		w.presenter.PlayAlertSound()
		w.applyLock(record)
		return nil
	}

	remaining := w.cfg.MaxFailures - record.FailedAttempts
	w.presenter.PlayAlertSound()
	w.presenter.RenderAlert(SeverityError, fmt.Sprintf(
		"Transaction failed. %d attempt(s) left before the card is locked.", remaining))
	return nil
}

// applyLock surfaces a lock and starts the remaining-time ticker. Must be
// called with mu held.
func (w *TopUp) applyLock(record *entity.LockoutRecord) {
	now := w.clock()
	remaining := record.Remaining(now)

	w.session.Locked = true
	w.session.LockRemaining = remaining

	w.presenter.RenderAlert(SeverityError, fmt.Sprintf(
		"Card locked after %d failed attempts. Try again in %s.",
		record.FailedAttempts, lockRemainingText(remaining)))

	if w.lockTicker != nil {
		return
	}

	seconds := int(remaining.Round(time.Second) / time.Second)
	w.lockTicker = NewCountdown(seconds, 0, w.cfg.TickInterval, CountdownCallbacks{
		OnTick: func(left int) {
			w.mu.Lock()
			w.session.LockRemaining = time.Duration(left) * time.Second
			w.mu.Unlock()
			w.presenter.RenderCountdown(left)
		},
		OnExpire: w.unlock,
	}, w.logger)
	w.lockTicker.Start()
}

// unlock clears the lock once its window has run out
func (w *TopUp) unlock() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.guard.Check(w.clock()); err != nil {
		w.logger.Error("Failed to clear expired lockout", zap.Error(err))
	}
	w.session.Locked = false
	w.session.LockRemaining = 0
	w.session.FailedAttempts = 0
	w.lockTicker = nil

	w.presenter.RenderAlert(SeverityInfo, "The card is unlocked. You can try again.")
}

// Cancel discards the form state. The lockout record stays in the store;
// re-inserting the card restores it.
func (w *TopUp) Cancel(ctx context.Context, confirmed bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}

	if w.session.Amount > 0 && !confirmed {
		return ErrCancelNotConfirmed
	}

	if w.lockTicker != nil {
		w.lockTicker.Stop()
		w.lockTicker = nil
	}
	card := w.session.Card
	w.session = TopUpSession{Card: card}

	w.presenter.RenderAlert(SeverityInfo, "Session ended. Returning to the home screen.")
	return nil
}

func lockRemainingText(d time.Duration) string {
	seconds := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
