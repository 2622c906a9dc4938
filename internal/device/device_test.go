package device

import (
	"context"
	"testing"
	"time"

	"github.com/bikeshare/station-kiosk/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func fixedRand(v float64) Rand { return func() float64 { return v } }

func TestCardScanner_ReturnFixtures(t *testing.T) {
	scanner := NewCardScanner(0, noSleep, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		outcome     ReturnCardOutcome
		number      string
		cardType    entity.CardType
		balance     int64
		hasRental   bool
	}{
		{ReturnCardPrepaidOK, "1234567890123456", entity.CardTypePrepaid, 80000, false},
		{ReturnCardPostpaidOK, "9876543210987654", entity.CardTypePostpaid, 0, false},
		{ReturnCardHasRental, "5555666677778888", entity.CardTypePrepaid, 50000, true},
		{ReturnCardNegative, "1111222233334444", entity.CardTypePrepaid, -15000, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			scan, err := scanner.ScanForReturn(ctx, tt.outcome)
			require.NoError(t, err)
			assert.Equal(t, tt.number, scan.Card.Number)
			assert.Equal(t, tt.cardType, scan.Card.Type)
			assert.Equal(t, tt.balance, scan.Card.Balance)
			assert.Equal(t, tt.hasRental, scan.HasActiveRental)
		})
	}
}

func TestCardScanner_UnknownOutcome(t *testing.T) {
	scanner := NewCardScanner(0, noSleep, zap.NewNop())

	_, err := scanner.ScanForReturn(context.Background(), "nonsense")
	assert.ErrorIs(t, err, ErrUnknownOutcome)
}

func TestCardScanner_RentalFixtures(t *testing.T) {
	scanner := NewCardScanner(0, noSleep, zap.NewNop())
	ctx := context.Background()

	scan, err := scanner.ScanForRental(ctx, RentalCardValid)
	require.NoError(t, err)
	assert.True(t, scan.Valid)
	assert.Equal(t, "9704 1234 5678 9012", scan.Card.Number)
	assert.Equal(t, int64(150000), scan.Card.Balance)

	scan, err = scanner.ScanForRental(ctx, RentalCardInsufficient)
	require.NoError(t, err)
	assert.True(t, scan.Valid)
	assert.Equal(t, int64(5000), scan.Card.Balance)

	scan, err = scanner.ScanForRental(ctx, RentalCardInvalid)
	require.NoError(t, err)
	assert.False(t, scan.Valid)
}

func TestCardScanner_BikeReturnFixtures(t *testing.T) {
	scanner := NewCardScanner(0, noSleep, zap.NewNop())
	ctx := context.Background()

	card, err := scanner.ScanForBikeReturn(ctx, BikeReturnCardValid)
	require.NoError(t, err)
	assert.Equal(t, "1234567890", card.Number)
	assert.Equal(t, int64(50000), card.Balance)

	card, err = scanner.ScanForBikeReturn(ctx, BikeReturnCardInsufficient)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), card.Balance)

	_, err = scanner.ScanForBikeReturn(ctx, BikeReturnCardError)
	assert.ErrorIs(t, err, ErrReaderFault)
}

func TestCardScanner_ContextCanceled(t *testing.T) {
	scanner := NewCardScanner(time.Second, Wait, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scanner.ScanForReturn(ctx, ReturnCardPrepaidOK)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCashAcceptor_RecognitionFailure(t *testing.T) {
	acceptor := NewCashAcceptor(0, 0.1, noSleep, fixedRand(0.05), zap.NewNop())

	_, err := acceptor.Insert(context.Background(), 500000)
	assert.ErrorIs(t, err, ErrCashNotRecognized)
}

func TestCashAcceptor_Accepts(t *testing.T) {
	acceptor := NewCashAcceptor(0, 0.1, noSleep, fixedRand(0.95), zap.NewNop())

	amount, err := acceptor.Insert(context.Background(), 500000)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), amount)
}

func TestParkingSensor(t *testing.T) {
	sensor := NewParkingSensor(0, noSleep, zap.NewNop())
	ctx := context.Background()

	result, err := sensor.Check(ctx, ParkingCorrect)
	require.NoError(t, err)
	assert.True(t, result.ParkedCorrectly)
	assert.Equal(t, 2, result.Slot)

	result, err = sensor.Check(ctx, ParkingWrong)
	require.NoError(t, err)
	assert.False(t, result.ParkedCorrectly)

	_, err = sensor.Check(ctx, "sideways")
	assert.ErrorIs(t, err, ErrUnknownOutcome)
}

func TestUnlockActuator(t *testing.T) {
	jammed := NewUnlockActuator(0, 0.1, noSleep, fixedRand(0.0), zap.NewNop())
	assert.ErrorIs(t, jammed.Unlock(context.Background(), "B001"), ErrMechanicalFault)

	fine := NewUnlockActuator(0, 0.1, noSleep, fixedRand(0.5), zap.NewNop())
	assert.NoError(t, fine.Unlock(context.Background(), "B001"))
}
