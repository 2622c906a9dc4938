package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/bikeshare/station-kiosk/internal/device"
	"github.com/bikeshare/station-kiosk/internal/domain/entity"
	"github.com/bikeshare/station-kiosk/internal/domain/flow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRental(t *testing.T, rng func() float64) (*Rental, *recordingPresenter, *entity.Fleet) {
	t.Helper()
	presenter := &recordingPresenter{}
	fleet := entity.NewDemoFleet()
	scanner := device.NewCardScanner(0, noSleep, testLogger())
	actuator := device.NewUnlockActuator(0, 0.1, noSleep, rng, testLogger())
	w := NewRental(
		RentalConfig{
			MinBalance:       20000,
			CountdownSeconds: 60,
			WarningSeconds:   10,
			TickInterval:     time.Millisecond,
		},
		fleet,
		scanner,
		actuator,
		presenter,
		fixedClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)),
		testLogger(),
	)
	return w, presenter, fleet
}

func TestRentalHappyPath(t *testing.T) {
	ctx := context.Background()
	w, _, fleet := newRental(t, fixedRand(0.9))

	require.NoError(t, w.SelectBike(1))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.Scan(ctx, device.RentalCardValid))
	require.NoError(t, w.ConfirmRent(ctx))

	assert.Equal(t, 3, w.Step())
	assert.Equal(t, entity.BikeRented, fleet.Find(1).Status)

	session := w.Session()
	require.NotNil(t, session.Receipt)
	assert.Equal(t, "B001", session.Receipt.BikeNumber)

	require.NoError(t, w.ConfirmTaken())
	assert.True(t, w.Session().Taken)
	assert.Equal(t, entity.BikeRented, fleet.Find(1).Status)
}

func TestRentalSelectUnavailableBike(t *testing.T) {
	w, presenter, _ := newRental(t, fixedRand(0.9))

	require.ErrorIs(t, w.SelectBike(5), errBikeNotAvailable) // maintenance
	require.ErrorIs(t, w.SelectBike(3), errBikeNotAvailable) // rented
	assert.Equal(t, 2, presenter.soundCount())
	assert.Zero(t, w.Session().SelectedBikeID, "a rejected pick leaves the selection unchanged")
}

func TestRentalAdvanceWithoutBike(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newRental(t, fixedRand(0.9))

	err := w.Advance(ctx)
	require.ErrorIs(t, err, flow.ErrGuardFailed)
	assert.Equal(t, 1, w.Step())
}

func TestRentalInvalidCardBlocksConfirm(t *testing.T) {
	ctx := context.Background()
	w, presenter, _ := newRental(t, fixedRand(0.9))

	require.NoError(t, w.SelectBike(1))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.Scan(ctx, device.RentalCardInvalid))
	assert.Equal(t, 1, presenter.soundCount())

	err := w.ConfirmRent(ctx)
	require.ErrorIs(t, err, errRentalCardInvalid)
	assert.Equal(t, 2, w.Step())
}

func TestRentalInsufficientBalanceBlocksConfirm(t *testing.T) {
	ctx := context.Background()
	w, presenter, _ := newRental(t, fixedRand(0.9))

	require.NoError(t, w.SelectBike(1))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.Scan(ctx, device.RentalCardInsufficient))
	assert.Equal(t, SeverityWarning, presenter.lastAlert().severity)

	err := w.ConfirmRent(ctx)
	require.ErrorIs(t, err, errBalanceTooLow)
	assert.Equal(t, 2, w.Step())
}

func TestRentalMechanicalFailureSendsBikeToMaintenance(t *testing.T) {
	ctx := context.Background()
	w, presenter, fleet := newRental(t, fixedRand(0.05))

	available := fleet.AvailableCount()

	require.NoError(t, w.SelectBike(1))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.Scan(ctx, device.RentalCardValid))
	require.NoError(t, w.ConfirmRent(ctx))

	assert.Equal(t, entity.BikeMaintenance, fleet.Find(1).Status)
	assert.Equal(t, available-1, fleet.AvailableCount(), "the jammed bike stays out of service")

	session := w.Session()
	assert.Equal(t, 1, w.Step(), "the session starts over")
	assert.Zero(t, session.SelectedBikeID)
	assert.Nil(t, session.ScannedCard)
	assert.Equal(t, SeverityError, presenter.lastAlert().severity)
}

func TestRentalCountdownExpiryReturnsBike(t *testing.T) {
	ctx := context.Background()
	w, _, fleet := newRental(t, fixedRand(0.9))
	w.cfg.CountdownSeconds = 2
	w.cfg.WarningSeconds = 1

	require.NoError(t, w.SelectBike(1))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.Scan(ctx, device.RentalCardValid))
	require.NoError(t, w.ConfirmRent(ctx))
	assert.Equal(t, entity.BikeRented, fleet.Find(1).Status)

	require.Eventually(t, func() bool {
		return w.Step() == 1 && fleet.Find(1).Status == entity.BikeAvailable
	}, 2*time.Second, 5*time.Millisecond, "expiry returns the bike and restarts the session")

	assert.Zero(t, w.Session().SelectedBikeID)
}

func TestRentalConfirmTakenAfterExpiry(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newRental(t, fixedRand(0.9))
	w.cfg.CountdownSeconds = 1
	w.cfg.WarningSeconds = 0

	require.NoError(t, w.SelectBike(1))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.Scan(ctx, device.RentalCardValid))
	require.NoError(t, w.ConfirmRent(ctx))

	require.Eventually(t, func() bool { return w.Step() == 1 }, 2*time.Second, 5*time.Millisecond)

	err := w.ConfirmTaken()
	require.ErrorIs(t, err, flow.ErrInvalidTransition)
}

func TestRentalRetreatClearsScan(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newRental(t, fixedRand(0.9))

	require.NoError(t, w.SelectBike(1))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.Scan(ctx, device.RentalCardValid))
	require.NoError(t, w.Retreat(ctx))

	session := w.Session()
	assert.Equal(t, 1, w.Step())
	assert.Nil(t, session.ScannedCard)
	assert.Equal(t, 1, session.SelectedBikeID, "the bike selection survives going back")
}

func TestRentalCancelAfterUnlockReturnsBike(t *testing.T) {
	ctx := context.Background()
	w, _, fleet := newRental(t, fixedRand(0.9))

	require.NoError(t, w.SelectBike(1))
	require.NoError(t, w.Advance(ctx))
	require.NoError(t, w.Scan(ctx, device.RentalCardValid))
	require.NoError(t, w.ConfirmRent(ctx))

	require.NoError(t, w.Cancel(ctx, true))
	assert.Equal(t, entity.BikeAvailable, fleet.Find(1).Status)
	assert.Equal(t, 1, w.Step())
}

func TestRentalCancelNeedsConfirmation(t *testing.T) {
	ctx := context.Background()
	w, _, _ := newRental(t, fixedRand(0.9))

	require.NoError(t, w.SelectBike(1))
	require.ErrorIs(t, w.Cancel(ctx, false), ErrCancelNotConfirmed)
}
