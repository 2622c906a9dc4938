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

// Card-purchase wizard: pick a card type, feed in cash, collect the new
// card.
const (
	purchaseStepSelect flow.Step = 1
	purchaseStepCash   flow.Step = 2
	purchaseStepDone   flow.Step = 3
)

// CardTypeKey identifies a purchasable card product on the selection screen
type CardTypeKey string

const (
	CardKeyPrepaid CardTypeKey = "prepaid"
	CardKeyHourly  CardTypeKey = "hourly"
	CardKeyMonthly CardTypeKey = "monthly"
)

var cardTypeNames = map[CardTypeKey]string{
	CardKeyPrepaid: "Prepaid card",
	CardKeyHourly:  "Hourly card",
	CardKeyMonthly: "Monthly card",
}

var (
	errNoCardTypeSelected = errors.New("please select a card type")
	errWrongCardType      = errors.New("wrong card type selected, choose the prepaid card to continue")
	errAmountBelowMinimum = errors.New("inserted amount is below the minimum")
	errSoldOut            = errors.New("cards are temporarily sold out")
)

// PurchaseConfig holds the card-purchase tunables
type PurchaseConfig struct {
	MinAmount     int64
	CardInventory int
	ProcessDelay  time.Duration
}

// PurchaseSession is the mutable record for one purchase session
type PurchaseSession struct {
	SelectedType   CardTypeKey
	InsertedAmount int64
	NewCardNumber  string
	Receipt        *entity.PurchaseReceipt
	Blocked        bool
}

// Purchase drives the card-purchase wizard. The kiosk's card inventory is
// owned here and decremented on every completed sale.
type Purchase struct {
	cfg       PurchaseConfig
	acceptor  *device.CashAcceptor
	presenter Presenter
	machine   flow.Machine
	clock     Clock
	sleep     device.Sleeper
	rng       device.Rand
	logger    *zap.Logger

	mu        sync.Mutex
	busy      bool
	inventory int
	session   PurchaseSession
}

// NewPurchase creates a card-purchase workflow with a fresh session
func NewPurchase(
	cfg PurchaseConfig,
	acceptor *device.CashAcceptor,
	presenter Presenter,
	clock Clock,
	sleep device.Sleeper,
	rng device.Rand,
	logger *zap.Logger,
) *Purchase {
	w := &Purchase{
		cfg:       cfg,
		acceptor:  acceptor,
		presenter: presenter,
		clock:     clock,
		sleep:     sleep,
		rng:       rng,
		logger:    logger,
		inventory: cfg.CardInventory,
	}
	w.machine = w.buildMachine()
	return w
}

func (w *Purchase) buildMachine() flow.Machine {
	b := flow.NewBuilder(purchaseStepDone)

	b.Configure(purchaseStepSelect).
		PermitIf(flow.EventAdvance, purchaseStepCash, w.guardTypeSelected).
		Permit(flow.EventReset, purchaseStepSelect)
	b.Configure(purchaseStepCash).
		Permit(flow.EventRetreat, purchaseStepSelect).
		PermitIf(flow.EventComplete, purchaseStepDone, w.guardAmount).
		Permit(flow.EventReset, purchaseStepSelect)
	b.Configure(purchaseStepDone).
		Permit(flow.EventReset, purchaseStepSelect)

	return b.Build(purchaseStepSelect)
}

func (w *Purchase) guardTypeSelected(ctx context.Context) error {
	switch w.session.SelectedType {
	case "":
		return errNoCardTypeSelected
	case CardKeyPrepaid:
		return nil
	default:
		return errWrongCardType
	}
}

func (w *Purchase) guardAmount(ctx context.Context) error {
	if w.session.InsertedAmount < w.cfg.MinAmount {
		return fmt.Errorf("%w: insert at least %s", errAmountBelowMinimum, utils.FormatVND(w.cfg.MinAmount))
	}
	return nil
}

// Session returns a snapshot of the session record
func (w *Purchase) Session() PurchaseSession {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// Step returns the current wizard step
func (w *Purchase) Step() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.machine.Step())
}

// Inventory returns how many cards the kiosk still holds
func (w *Purchase) Inventory() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inventory
}

// Start renders the first step and enforces the sold-out hard stop
func (w *Purchase) Start() {
	w.presenter.RenderStep(int(purchaseStepSelect))

	w.mu.Lock()
	soldOut := w.inventory <= 0
	w.session.Blocked = soldOut
	w.mu.Unlock()

	if soldOut {
		w.presenter.RenderAlert(SeverityError, "Cards are temporarily sold out. Please come back later.")
	}
}

// SelectType records the chosen card product
func (w *Purchase) SelectType(key CardTypeKey) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.session.Blocked {
		return ErrSessionBlocked
	}
	if w.machine.Step() != purchaseStepSelect {
		return fmt.Errorf("%w: selection belongs to step %d", flow.ErrInvalidTransition, purchaseStepSelect)
	}
	if _, ok := cardTypeNames[key]; !ok {
		return fmt.Errorf("unknown card type %q", key)
	}

	w.session.SelectedType = key
	return nil
}

// Advance moves to the cash step. Only the prepaid product can be bought
// at the kiosk; other selections are rejected with a distinct warning.
func (w *Purchase) Advance(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	if w.session.Blocked {
		return ErrSessionBlocked
	}

	if err := w.machine.Fire(ctx, flow.EventAdvance); err != nil {
		if errors.Is(err, errWrongCardType) {
			w.presenter.RenderAlert(SeverityWarning, guardReason(err))
		} else {
			w.presenter.RenderAlert(SeverityError, guardReason(err))
		}
		return err
	}

	w.presenter.RenderStep(int(w.machine.Step()))
	w.presenter.RenderAlert(SeverityInfo,
		fmt.Sprintf("Please insert cash. Minimum amount: %s", utils.FormatVND(w.cfg.MinAmount)))
	return nil
}

func (w *Purchase) begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	w.busy = true
	return nil
}

func (w *Purchase) end() {
	w.mu.Lock()
	w.busy = false
	w.mu.Unlock()
}

// InsertCash feeds one bill into the acceptor. Hardware recognition can
// fail independently of the denomination; a failure leaves the running
// total unchanged.
func (w *Purchase) InsertCash(ctx context.Context, amount int64) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()

	if w.machine.Step() != purchaseStepCash {
		return fmt.Errorf("%w: cash belongs to step %d", flow.ErrInvalidTransition, purchaseStepCash)
	}

	w.presenter.RenderLoading(true, "Reading cash...")
	accepted, err := w.acceptor.Insert(ctx, amount)
	w.presenter.RenderLoading(false, "")
	if err != nil {
		if errors.Is(err, device.ErrCashNotRecognized) {
			w.presenter.RenderAlert(SeverityError,
				"The machine could not recognize the cash (hardware error). Please contact support or try again later.")
			return nil
		}
		return err
	}

	w.mu.Lock()
	w.session.InsertedAmount += accepted
	total := w.session.InsertedAmount
	w.mu.Unlock()

	if total >= w.cfg.MinAmount {
		w.presenter.RenderAlert(SeverityInfo, "Minimum amount reached. You can confirm the purchase.")
	} else {
		remaining := w.cfg.MinAmount - total
		w.presenter.RenderAlert(SeverityWarning,
			fmt.Sprintf("%s more needed to reach the minimum.", utils.FormatVND(remaining)))
	}

	w.logger.Info("Cash inserted", zap.Int64("amount", accepted), zap.Int64("total", total))
	return nil
}

// ResetCash returns all inserted money
func (w *Purchase) ResetCash() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}
	if w.machine.Step() != purchaseStepCash {
		return fmt.Errorf("%w: cash belongs to step %d", flow.ErrInvalidTransition, purchaseStepCash)
	}

	w.session.InsertedAmount = 0
	w.presenter.RenderAlert(SeverityInfo, "Amount reset. Please insert cash again.")
	return nil
}

// Retreat returns to the type-selection step. Money already inserted is
// refunded, which the yes/no gate must confirm first.
func (w *Purchase) Retreat(ctx context.Context, confirmed bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}

	if w.session.InsertedAmount > 0 && !confirmed {
		return ErrCancelNotConfirmed
	}

	if err := w.machine.Fire(ctx, flow.EventRetreat); err != nil {
		return err
	}

	if w.session.InsertedAmount > 0 {
		w.presenter.RenderAlert(SeverityInfo,
			fmt.Sprintf("%s returned.", utils.FormatVND(w.session.InsertedAmount)))
	}
	w.session.InsertedAmount = 0

	w.presenter.RenderStep(int(w.machine.Step()))
	return nil
}

// Submit completes the purchase: the kiosk dispenses a fresh prepaid card
// loaded with the inserted amount.
func (w *Purchase) Submit(ctx context.Context) error {
	if err := w.begin(); err != nil {
		return err
	}
	defer w.end()

	w.mu.Lock()
	if w.machine.Step() != purchaseStepCash {
		w.mu.Unlock()
		return fmt.Errorf("%w: submit belongs to step %d", flow.ErrInvalidTransition, purchaseStepCash)
	}
	if err := w.guardAmount(ctx); err != nil {
		w.mu.Unlock()
		w.presenter.RenderAlert(SeverityError, err.Error())
		return err
	}
	if w.inventory <= 0 {
		w.session.Blocked = true
		w.mu.Unlock()
		w.presenter.RenderAlert(SeverityError, "Cards sold out; the transaction cannot continue.")
		return errSoldOut
	}
	w.mu.Unlock()

	w.presenter.RenderLoading(true, "Processing purchase...")
	if err := w.sleep(ctx, w.cfg.ProcessDelay); err != nil {
		w.presenter.RenderLoading(false, "")
		return err
	}
	w.presenter.RenderLoading(false, "")

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.machine.Fire(ctx, flow.EventComplete); err != nil {
		return err
	}

	now := w.clock()
	w.session.NewCardNumber = utils.NewCardNumber(w.rng)
	w.inventory--
	w.session.Receipt = &entity.PurchaseReceipt{
		CardNumber:    w.session.NewCardNumber,
		CardType:      entity.CardTypePrepaid,
		InsertedTotal: w.session.InsertedAmount,
		Balance:       w.session.InsertedAmount,
		IssuedAt:      now,
	}

	w.presenter.RenderStep(int(w.machine.Step()))
	w.presenter.RenderAlert(SeveritySuccess, "Purchase complete. Please take your card and receipt.")
	w.logger.Info("Card purchased",
		zap.String("card", w.session.NewCardNumber),
		zap.Int64("balance", w.session.InsertedAmount),
		zap.Int("inventory", w.inventory))
	return nil
}

// Cancel discards the session, refunding any inserted money
func (w *Purchase) Cancel(ctx context.Context, confirmed bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.busy {
		return ErrBusy
	}

	if w.machine.Step() != purchaseStepDone && !confirmed {
		return ErrCancelNotConfirmed
	}

	if w.machine.Step() != purchaseStepDone && w.session.InsertedAmount > 0 {
		w.presenter.RenderAlert(SeverityInfo,
			fmt.Sprintf("%s returned.", utils.FormatVND(w.session.InsertedAmount)))
	}

	blocked := w.inventory <= 0
	w.session = PurchaseSession{Blocked: blocked}
	if err := w.machine.Fire(ctx, flow.EventReset); err != nil {
		return err
	}

	w.presenter.RenderStep(int(purchaseStepSelect))
	w.presenter.RenderAlert(SeverityInfo, "Session ended. Returning to the home screen.")
	return nil
}

// CardTypeName returns the display name for a card product
func CardTypeName(key CardTypeKey) string {
	if name, ok := cardTypeNames[key]; ok {
		return name
	}
	return "--"
}
