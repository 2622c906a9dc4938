package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bikeshare/station-kiosk/internal/device"
	"github.com/bikeshare/station-kiosk/internal/domain/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPurchase(t *testing.T, inventory int, rng func() float64) (*Purchase, *recordingPresenter) {
	t.Helper()
	presenter := &recordingPresenter{}
	acceptor := device.NewCashAcceptor(0, 0.1, noSleep, rng, testLogger())
	w := NewPurchase(
		PurchaseConfig{MinAmount: 1000000, CardInventory: inventory},
		acceptor,
		presenter,
		fixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)),
		noSleep,
		rng,
		testLogger(),
	)
	return w, presenter
}

func TestPurchaseHappyPath(t *testing.T) {
	ctx := context.Background()
	w, presenter := newPurchase(t, 10, fixedRand(0.9))
	w.Start()

	require.NoError(t, w.SelectType(CardKeyPrepaid))
	require.NoError(t, w.Advance(ctx))
	assert.Equal(t, 2, w.Step())

	require.NoError(t, w.InsertCash(ctx, 500000))
	require.NoError(t, w.InsertCash(ctx, 500000))
	require.NoError(t, w.Submit(ctx))

	session := w.Session()
	assert.Equal(t, 3, w.Step())
	require.NotNil(t, session.Receipt)
	assert.Equal(t, int64(1000000), session.Receipt.Balance)
	assert.True(t, strings.HasPrefix(session.NewCardNumber, "9704 "))
	assert.Len(t, strings.ReplaceAll(session.NewCardNumber, " ", ""), 16)
	assert.Equal(t, 9, w.Inventory())
	assert.Equal(t, SeveritySuccess, presenter.lastAlert().severity)
}

func TestPurchaseWrongCardTypeWarns(t *testing.T) {
	ctx := context.Background()
	w, presenter := newPurchase(t, 10, fixedRand(0.9))

	require.NoError(t, w.SelectType(CardKeyMonthly))

	err := w.Advance(ctx)
	require.ErrorIs(t, err, flow.ErrGuardFailed)
	assert.Equal(t, 1, w.Step())
	assert.Equal(t, SeverityWarning, presenter.lastAlert().severity)
}

func TestPurchaseAdvanceWithoutSelection(t *testing.T) {
	ctx := context.Background()
	w, presenter := newPurchase(t, 10, fixedRand(0.9))

	err := w.Advance(ctx)
	require.ErrorIs(t, err, flow.ErrGuardFailed)
	assert.Equal(t, SeverityError, presenter.lastAlert().severity)
}

func TestPurchaseSubmitBelowMinimum(t *testing.T) {
	ctx := context.Background()
	w, _ := newPurchase(t, 10, fixedRand(0.9))

	require.NoError(t, w.SelectType(CardKeyPrepaid))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.InsertCash(ctx, 500000))

	err := w.Submit(ctx)
	require.ErrorIs(t, err, errAmountBelowMinimum)
	assert.Equal(t, 2, w.Step())
	assert.Equal(t, int64(500000), w.Session().InsertedAmount)
}

func TestPurchaseAcceptorFailureKeepsTotal(t *testing.T) {
	ctx := context.Background()
	w, presenter := newPurchase(t, 10, fixedRand(0.05))

	require.NoError(t, w.SelectType(CardKeyPrepaid))
	require.NoError(t, w.Advance(ctx))

	require.NoError(t, w.InsertCash(ctx, 500000))
	assert.Zero(t, w.Session().InsertedAmount, "an unrecognized bill adds nothing")
	assert.Equal(t, SeverityError, presenter.lastAlert().severity)
}

func TestPurchaseResetCash(t *testing.T) {
	ctx := context.Background()
	w, _ := newPurchase(t, 10, fixedRand(0.9))

	require.NoError(t, w.SelectType(CardKeyPrepaid))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.InsertCash(ctx, 200000))
	require.NoError(t, w.ResetCash())

	assert.Zero(t, w.Session().InsertedAmount)
}

func TestPurchaseRetreatWithMoneyNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	w, _ := newPurchase(t, 10, fixedRand(0.9))

	require.NoError(t, w.SelectType(CardKeyPrepaid))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.InsertCash(ctx, 200000))

	err := w.Retreat(ctx, false)
	require.ErrorIs(t, err, ErrCancelNotConfirmed)
	assert.Equal(t, 2, w.Step())

	require.NoError(t, w.Retreat(ctx, true))
	assert.Equal(t, 1, w.Step())
	assert.Zero(t, w.Session().InsertedAmount, "going back refunds the inserted money")
}

func TestPurchaseSoldOutBlocksSession(t *testing.T) {
	ctx := context.Background()
	w, presenter := newPurchase(t, 0, fixedRand(0.9))
	w.Start()

	assert.True(t, w.Session().Blocked)
	assert.Equal(t, SeverityError, presenter.lastAlert().severity)

	require.ErrorIs(t, w.SelectType(CardKeyPrepaid), ErrSessionBlocked)
	require.ErrorIs(t, w.Advance(ctx), ErrSessionBlocked)
}

func TestPurchaseInventoryRunsOut(t *testing.T) {
	ctx := context.Background()
	w, _ := newPurchase(t, 1, fixedRand(0.9))

	require.NoError(t, w.SelectType(CardKeyPrepaid))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.InsertCash(ctx, 1000000))
	require.NoError(t, w.Submit(ctx))
	assert.Zero(t, w.Inventory())

	// The next session finds the kiosk sold out.
	require.NoError(t, w.Cancel(ctx, false))
	assert.True(t, w.Session().Blocked)
}

func TestPurchaseCancelRefundsMoney(t *testing.T) {
	ctx := context.Background()
	w, _ := newPurchase(t, 10, fixedRand(0.9))

	require.NoError(t, w.SelectType(CardKeyPrepaid))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.InsertCash(ctx, 200000))

	require.ErrorIs(t, w.Cancel(ctx, false), ErrCancelNotConfirmed)
	require.NoError(t, w.Cancel(ctx, true))

	session := w.Session()
	assert.Equal(t, 1, w.Step())
	assert.Zero(t, session.InsertedAmount)
	assert.Empty(t, session.SelectedType)
}
