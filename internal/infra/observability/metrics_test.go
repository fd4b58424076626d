package observability_test

import (
	"testing"

	"github.com/boddenberg/agent-ledger-go/internal/infra/observability"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_ReflectsCounters(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrWrite("transactions")
	m.IncrWrite("transactions")
	m.IncrWrite("payments")
	m.RecordAllocation(120, 30)
	m.IncrRecalculation("wallet")
	m.IncrRecalculation("client")
	m.IncrStoreError("read")
	m.IncrLockTimeout()
	m.IncrCacheHit("dashboard")
	m.IncrCacheMiss("dashboard")
	m.IncrCacheMiss("dashboard")
	m.IncrCacheMiss("dashboard")

	snap := m.Snapshot()

	assert.Equal(t, 2.0, snap.TransactionsCreated)
	assert.Equal(t, 1.0, snap.PaymentsCreated)
	assert.Equal(t, 120.0, snap.AmountAllocated)
	assert.Equal(t, 30.0, snap.AmountUnallocated)
	assert.Equal(t, 2.0, snap.Recalculations)
	assert.Equal(t, 1.0, snap.StoreErrors)
	assert.Equal(t, 1.0, snap.LockTimeouts)
	assert.InDelta(t, 0.25, snap.CacheHitRate, 1e-9)
	assert.Equal(t, "all_time", snap.Period)
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a := observability.NewMetrics()
	b := observability.NewMetrics()

	a.IncrWrite("transactions")

	assert.Equal(t, 1.0, a.Snapshot().TransactionsCreated)
	assert.Equal(t, 0.0, b.Snapshot().TransactionsCreated)
}

func TestNewLogger_UnknownLevelFallsBack(t *testing.T) {
	logger := observability.NewLogger("verbose")
	assert.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(-1)) // debug disabled
}
