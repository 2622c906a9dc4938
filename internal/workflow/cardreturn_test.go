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

func newCardReturn(t *testing.T, rng func() float64) (*CardReturn, *recordingPresenter) {
	t.Helper()
	presenter := &recordingPresenter{}
	scanner := device.NewCardScanner(0, noSleep, testLogger())
	w := NewCardReturn(
		CardReturnConfig{DepositAmount: 50000, FailureRate: 0.1},
		scanner,
		presenter,
		fixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)),
		noSleep,
		rng,
		testLogger(),
	)
	return w, presenter
}

func TestCardReturnHappyPathPrepaid(t *testing.T) {
	ctx := context.Background()
	w, presenter := newCardReturn(t, fixedRand(0.9))

	require.NoError(t, w.Scan(ctx, device.ReturnCardPrepaidOK))
	require.NoError(t, w.Advance(ctx))

	session := w.Session()
	assert.Equal(t, int64(130000), session.RefundAmount, "refund is balance plus deposit")
	assert.Equal(t, 2, w.Step())

	require.NoError(t, w.SetConfirmed(true))
	require.NoError(t, w.Submit(ctx))

	session = w.Session()
	assert.Equal(t, 3, w.Step())
	require.NotNil(t, session.Receipt)
	assert.True(t, session.Receipt.Refunded)
	assert.Equal(t, int64(130000), session.Receipt.RefundAmount)
	assert.True(t, strings.HasPrefix(session.TransactionID, "RT"))
	assert.Equal(t, SeveritySuccess, presenter.lastAlert().severity)
}

func TestCardReturnPostpaidNoRefund(t *testing.T) {
	ctx := context.Background()
	// rng below the failure rate: the postpaid path must not consult it
	// for the refund outage.
	w, _ := newCardReturn(t, fixedRand(0.05))

	require.NoError(t, w.Scan(ctx, device.ReturnCardPostpaidOK))
	require.NoError(t, w.Advance(ctx))

	assert.Zero(t, w.Session().RefundAmount)

	require.NoError(t, w.SetConfirmed(true))
	require.NoError(t, w.Submit(ctx))

	session := w.Session()
	assert.Equal(t, 3, w.Step())
	require.NotNil(t, session.Receipt)
	assert.False(t, session.Receipt.Refunded)
	assert.Zero(t, session.Receipt.RefundAmount)
}

func TestCardReturnActiveRentalBlocksAdvance(t *testing.T) {
	ctx := context.Background()
	w, presenter := newCardReturn(t, fixedRand(0.9))

	require.NoError(t, w.Scan(ctx, device.ReturnCardHasRental))
	assert.Equal(t, 1, presenter.soundCount())

	err := w.Advance(ctx)
	require.ErrorIs(t, err, flow.ErrGuardFailed)
	assert.Equal(t, 1, w.Step())
	assert.Equal(t, errCardHasRental.Error(), presenter.lastAlert().message)
}

func TestCardReturnNegativeBalanceHardStop(t *testing.T) {
	ctx := context.Background()
	w, presenter := newCardReturn(t, fixedRand(0.9))

	require.NoError(t, w.Scan(ctx, device.ReturnCardNegative))
	assert.True(t, w.Session().Blocked)
	assert.Equal(t, SeverityError, presenter.lastAlert().severity)

	err := w.Advance(ctx)
	require.ErrorIs(t, err, flow.ErrGuardFailed)
	assert.Equal(t, 1, w.Step())
}

func TestCardReturnAdvanceWithoutScan(t *testing.T) {
	ctx := context.Background()
	w, presenter := newCardReturn(t, fixedRand(0.9))

	err := w.Advance(ctx)
	require.ErrorIs(t, err, flow.ErrGuardFailed)
	assert.Equal(t, errCardNotScanned.Error(), presenter.lastAlert().message)
}

func TestCardReturnSubmitRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	w, _ := newCardReturn(t, fixedRand(0.9))

	require.NoError(t, w.Scan(ctx, device.ReturnCardPrepaidOK))
	require.NoError(t, w.Advance(ctx))

	err := w.Submit(ctx)
	require.ErrorIs(t, err, errReturnNotConfirmed)
	assert.Equal(t, 2, w.Step())
}

func TestCardReturnRefundFailureAllowsRetry(t *testing.T) {
	ctx := context.Background()
	failing := true
	rng := func() float64 {
		if failing {
			return 0.05
		}
		return 0.9
	}
	w, presenter := newCardReturn(t, rng)

	require.NoError(t, w.Scan(ctx, device.ReturnCardPrepaidOK))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.SetConfirmed(true))

	require.NoError(t, w.Submit(ctx))
	assert.Equal(t, 2, w.Step(), "a refund outage keeps the session on the confirmation step")
	assert.Equal(t, SeverityError, presenter.lastAlert().severity)
	assert.Nil(t, w.Session().Receipt)

	failing = false
	require.NoError(t, w.Submit(ctx))
	assert.Equal(t, 3, w.Step())
	assert.NotNil(t, w.Session().Receipt)
}

func TestCardReturnRetreatClearsScan(t *testing.T) {
	ctx := context.Background()
	w, _ := newCardReturn(t, fixedRand(0.9))

	require.NoError(t, w.Scan(ctx, device.ReturnCardPrepaidOK))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.SetConfirmed(true))
	require.NoError(t, w.Retreat(ctx))

	session := w.Session()
	assert.Equal(t, 1, w.Step())
	assert.Nil(t, session.ScannedCard)
	assert.False(t, session.Confirmed)
	assert.Zero(t, session.RefundAmount)
}

func TestCardReturnCancelNeedsConfirmationMidFlow(t *testing.T) {
	ctx := context.Background()
	w, _ := newCardReturn(t, fixedRand(0.9))

	require.NoError(t, w.Scan(ctx, device.ReturnCardPrepaidOK))

	err := w.Cancel(ctx, false)
	require.ErrorIs(t, err, ErrCancelNotConfirmed)

	require.NoError(t, w.Cancel(ctx, true))
	assert.Equal(t, 1, w.Step())
	assert.Nil(t, w.Session().ScannedCard)
}

func TestCardReturnCancelUnconditionalAfterReceipt(t *testing.T) {
	ctx := context.Background()
	w, _ := newCardReturn(t, fixedRand(0.9))

	require.NoError(t, w.Scan(ctx, device.ReturnCardPrepaidOK))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.SetConfirmed(true))
	require.NoError(t, w.Submit(ctx))

	require.NoError(t, w.Cancel(ctx, false))
	assert.Equal(t, 1, w.Step())
}

func TestCardReturnScanOnLaterStepRejected(t *testing.T) {
	ctx := context.Background()
	w, _ := newCardReturn(t, fixedRand(0.9))

	require.NoError(t, w.Scan(ctx, device.ReturnCardPrepaidOK))
	require.NoError(t, w.Advance(ctx))

	err := w.Scan(ctx, device.ReturnCardPrepaidOK)
	require.ErrorIs(t, err, flow.ErrInvalidTransition)
}

func TestCardReturnRejectsConcurrentOperations(t *testing.T) {
	ctx := context.Background()
	presenter := &recordingPresenter{}
	entered := make(chan struct{})
	release := make(chan struct{})
	blockingSleep := func(ctx context.Context, d time.Duration) error {
		close(entered)
		<-release
		return nil
	}
	scanner := device.NewCardScanner(time.Second, blockingSleep, testLogger())
	w := NewCardReturn(
		CardReturnConfig{DepositAmount: 50000, FailureRate: 0.1},
		scanner,
		presenter,
		fixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)),
		noSleep,
		fixedRand(0.9),
		testLogger(),
	)

	done := make(chan error, 1)
	go func() {
		done <- w.Scan(ctx, device.ReturnCardPrepaidOK)
	}()
	<-entered

	require.ErrorIs(t, w.Scan(ctx, device.ReturnCardPrepaidOK), ErrBusy)
	require.ErrorIs(t, w.Advance(ctx), ErrBusy)
	require.ErrorIs(t, w.Cancel(ctx, true), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, w.Step())
	assert.NotNil(t, w.Session().ScannedCard)
}
