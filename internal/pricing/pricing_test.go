package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCardRefund(t *testing.T) {
	assert.Equal(t, int64(130000), CardRefund(80000, 50000))
	assert.Equal(t, int64(50000), CardRefund(0, 50000))
}

func TestChargeForRental(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		minutes        int
		wantHours      int
		wantBaseFee    int64
		wantMinApplied bool
	}{
		{"45 minutes rounds to one hour", 45, 1, 2000, false},
		{"exactly one hour", 60, 1, 2000, false},
		{"130 minutes rounds to three hours", 130, 3, 6000, false},
		{"two hours exact", 120, 2, 4000, false},
		{"zero minutes still pays minimum", 0, 0, 2000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end := base.Add(time.Duration(tt.minutes) * time.Minute)
			charge := ChargeForRental(base, end, 2000, 2000)

			assert.Equal(t, tt.minutes, charge.DurationMinutes)
			assert.Equal(t, tt.wantHours, charge.Hours)
			assert.Equal(t, tt.wantBaseFee, charge.BaseFee)
			assert.Equal(t, tt.wantMinApplied, charge.MinimumApplied)
		})
	}
}

func TestChargeForRental_PartialMinuteTruncates(t *testing.T) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	end := base.Add(45*time.Minute + 59*time.Second)

	charge := ChargeForRental(base, end, 2000, 2000)
	assert.Equal(t, 45, charge.DurationMinutes)
}

func TestTotal(t *testing.T) {
	assert.Equal(t, int64(5400), Total(6000, 600))
	assert.Equal(t, int64(0), Total(2000, 2000))
	assert.Equal(t, int64(0), Total(2000, 5000), "discount larger than fee clamps to zero")
}
