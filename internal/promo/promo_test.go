package promo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_TopUpCodes(t *testing.T) {
	table := TopUpCodes()

	tests := []struct {
		name       string
		code       string
		amount     int64
		wantAmount int64
		wantErr    error
	}{
		{"welcome bonus eligible", "WELCOME100", 200000, 100000, nil},
		{"welcome bonus below threshold", "WELCOME100", 150000, 0, ErrNotEligible},
		{"percent bonus", "DISCOUNT10", 150000, 15000, nil},
		{"percent bonus floors", "DISCOUNT10", 15005, 1500, nil},
		{"50k bonus eligible", "BONUS50K", 100000, 50000, nil},
		{"50k bonus below threshold", "BONUS50K", 99999, 0, ErrNotEligible},
		{"lowercase accepted", "welcome100", 200000, 100000, nil},
		{"unknown code", "NOPE", 200000, 0, ErrUnknownCode},
		{"empty code", "", 200000, 0, ErrNoCode},
		{"no amount", "DISCOUNT10", 0, 0, ErrNoAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, err := table.Apply(tt.code, tt.amount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAmount, applied.Amount)
		})
	}
}

func TestApply_BikeReturnCodes(t *testing.T) {
	table := BikeReturnCodes()

	applied, err := table.Apply("SAVE10", 6000)
	require.NoError(t, err)
	assert.Equal(t, int64(600), applied.Amount)

	applied, err = table.Apply("FIRST20", 6000)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), applied.Amount)

	applied, err = table.Apply("FREE2K", 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), applied.Amount)

	_, err = table.Apply("SAVE99", 6000)
	assert.ErrorIs(t, err, ErrUnknownCode)
}

func TestErrorsAreDistinct(t *testing.T) {
	table := TopUpCodes()

	_, unknownErr := table.Apply("NOPE", 200000)
	_, eligibilityErr := table.Apply("WELCOME100", 50000)

	assert.NotErrorIs(t, unknownErr, ErrNotEligible)
	assert.NotErrorIs(t, eligibilityErr, ErrUnknownCode)
}
