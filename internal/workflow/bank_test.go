package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedBankApprovesAtZeroDeclineRate(t *testing.T) {
	ctx := context.Background()
	// rng pinned to 0: any positive decline rate would reject this transfer
	bank := NewSimulatedBank(0, 0, 0, noSleep, fixedRand(0), testLogger())

	require.NoError(t, bank.TestConnection(ctx))
	require.NoError(t, bank.Credit(ctx, "9704 1234 5678 9012", 50000))
}

func TestSimulatedBankDeclinesAtConfiguredRate(t *testing.T) {
	ctx := context.Background()
	bank := NewSimulatedBank(0, 0, 0.5, noSleep, fixedRand(0.4), testLogger())

	require.NoError(t, bank.TestConnection(ctx))
	err := bank.Credit(ctx, "9704 1234 5678 9012", 50000)
	assert.ErrorIs(t, err, ErrBankDeclined)
}
