package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_ProducesConsistentLedger(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.ledger.DevTools.Seed(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Wallets)
	assert.Equal(t, 5, resp.Clients)
	assert.Equal(t, 60, resp.Transactions)
	assert.NotEmpty(t, resp.Message)

	txs, err := f.store.Transactions().List(ctx)
	require.NoError(t, err)
	assert.Len(t, txs, 60)

	f.assertInvariants(t)
}
