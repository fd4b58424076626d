package service_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/infra/cache"
	"github.com/boddenberg/agent-ledger-go/internal/infra/lock"
	"github.com/boddenberg/agent-ledger-go/internal/infra/memstore"
	"github.com/boddenberg/agent-ledger-go/internal/port"
	"github.com/boddenberg/agent-ledger-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardKPIs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 10000)
	active := f.client(t, "Active")
	f.client(t, "Dormant")
	lapsed := f.client(t, "Lapsed")

	book := func(clientID string, date domain.Date, vc, fee int64, paid bool) {
		req := &domain.CreateTransactionRequest{
			WalletID: w.ID, ClientID: clientID, Type: domain.TransferOut,
			VCAmount: dec(vc), FeeAmount: decPtr(fee), Date: date,
		}
		if paid {
			req.AmountPaid = decPtr(vc + fee)
		}
		_, err := f.ledger.Transactions.Create(ctx, req)
		require.NoError(t, err)
	}

	book(active.ID, today, 1000, 10, true)
	book(active.ID, today.AddDays(-4), 500, 5, false)           // Saturday: this week
	book(active.ID, today.AddDays(-5), 200, 2, true)            // Friday: last week, this month
	book(lapsed.ID, domain.NewDate(2026, 1, 10), 100, 1, false) // 67 days old
	book(active.ID, today.AddDays(3), 300, 3, true)             // booked ahead: not in week or month

	kpis, err := f.ledger.Reports.GetDashboardKPIs(ctx)
	require.NoError(t, err)

	assertDecimal(t, 10, kpis.TodayProfit)
	assertDecimal(t, 1000, kpis.TodayVolume)
	assert.Equal(t, 1, kpis.TodayCount)
	assertDecimal(t, 15, kpis.WeekProfit)
	assert.Equal(t, 2, kpis.WeekCount)
	assertDecimal(t, 17, kpis.MonthProfit)
	assert.Equal(t, 3, kpis.MonthCount)

	assertDecimal(t, 10000-1000-500-200-100-300, kpis.TotalWalletBalance)
	assert.Equal(t, 1, kpis.TotalWallets)
	assertDecimal(t, 505+101, kpis.TotalDebt)
	assert.Equal(t, 3, kpis.TotalClients)
	assert.Equal(t, 1, kpis.ActiveClients)

	require.Len(t, kpis.DebtAging, 4)
	assert.Equal(t, domain.Aging0To7, kpis.DebtAging[0].Label)
	assertDecimal(t, 505, kpis.DebtAging[0].Total)
	assert.Equal(t, domain.AgingOver60, kpis.DebtAging[3].Label)
	assertDecimal(t, 101, kpis.DebtAging[3].Total)
}

func TestDashboardKPIs_CachedUntilNextWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 100)

	first, err := f.ledger.Reports.GetDashboardKPIs(ctx)
	require.NoError(t, err)
	second, err := f.ledger.Reports.GetDashboardKPIs(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 0.5, f.metrics.Snapshot().CacheHitRate)

	// Callers get their own copy of the cached value.
	assert.NotSame(t, first, second)
	second.TotalWallets = 99
	second.DebtAging[0].Count = 99
	third, err := f.ledger.Reports.GetDashboardKPIs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, third.TotalWallets)
	assert.Equal(t, 0, third.DebtAging[0].Count)

	_, err = f.ledger.Transactions.Create(ctx, &domain.CreateTransactionRequest{WalletID: w.ID, Type: domain.Deposit, VCAmount: dec(50)})
	require.NoError(t, err)

	fourth, err := f.ledger.Reports.GetDashboardKPIs(ctx)
	require.NoError(t, err)
	assertDecimal(t, 150, fourth.TotalWalletBalance)
}

// listHookStore runs afterList once, right after the transactions have
// been listed, to land a write in the middle of a report load.
type listHookStore struct {
	port.LedgerStore
	afterList atomic.Pointer[func()]
}

func (s *listHookStore) Transactions() port.Collection[domain.Transaction] {
	return listHookCollection{Collection: s.LedgerStore.Transactions(), store: s}
}

type listHookCollection struct {
	port.Collection[domain.Transaction]
	store *listHookStore
}

func (c listHookCollection) List(ctx context.Context) ([]domain.Transaction, error) {
	txs, err := c.Collection.List(ctx)
	if hook := c.store.afterList.Swap(nil); hook != nil {
		(*hook)()
	}
	return txs, err
}

func TestDashboardKPIs_WriteDuringLoadIsNotCached(t *testing.T) {
	ctx := context.Background()
	reports := cache.New[*domain.DashboardKPIs](time.Minute)
	t.Cleanup(reports.Close)

	store := &listHookStore{LedgerStore: memstore.New()}
	l := service.NewLedger(service.Deps{
		Store:  store,
		Locker: lock.NewLocal(time.Second),
		Cache:  reports,
		Clock:  func() time.Time { return fixedNow },
	})

	w, err := l.Wallets.Create(ctx, &domain.CreateWalletRequest{PhoneNumber: "01012345678", Name: "W", InitialBalance: dec(100)})
	require.NoError(t, err)

	var writeErr error
	hook := func() {
		_, writeErr = l.Transactions.Create(ctx, &domain.CreateTransactionRequest{
			WalletID: w.ID, Type: domain.Deposit, VCAmount: dec(50),
		})
	}
	store.afterList.Store(&hook)

	stale, err := l.Reports.GetDashboardKPIs(ctx)
	require.NoError(t, err)
	require.NoError(t, writeErr)
	assert.Equal(t, 0, stale.TodayCount)

	fresh, err := l.Reports.GetDashboardKPIs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.TodayCount)
	assertDecimal(t, 150, fresh.TotalWalletBalance)
}

func TestProfitChartData_DenseSeries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 10000)

	_, err := f.ledger.Transactions.Create(ctx, &domain.CreateTransactionRequest{
		WalletID: w.ID, Type: domain.TransferOut, VCAmount: dec(100), FeeAmount: decPtr(3), Date: today.AddDays(-2),
	})
	require.NoError(t, err)
	_, err = f.ledger.Transactions.Create(ctx, &domain.CreateTransactionRequest{
		WalletID: w.ID, Type: domain.TransferOut, VCAmount: dec(100), FeeAmount: decPtr(3), Date: today.AddDays(-40),
	})
	require.NoError(t, err)

	points, err := f.ledger.Reports.GetProfitChartData(ctx, 7)
	require.NoError(t, err)
	require.Len(t, points, 8)
	assert.Equal(t, today.AddDays(-7), points[0].Date)
	assert.Equal(t, today, points[7].Date)
	for i := 1; i < len(points); i++ {
		assert.Equal(t, points[i-1].Date.AddDays(1), points[i].Date)
	}
	assertDecimal(t, 3, points[5].Profit)
	assert.Equal(t, 1, points[5].Count)
	assertDecimal(t, 0, points[6].Profit)

	def, err := f.ledger.Reports.GetProfitChartData(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, def, 31)
}

func TestTopClients_IncludesInactiveWithZeroVolume(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 100000)
	small := f.client(t, "Small")
	big := f.client(t, "Big")
	idle := f.client(t, "Idle")

	f.debt(t, w.ID, small.ID, 100, today)
	f.debt(t, w.ID, big.ID, 900, today)
	f.debt(t, w.ID, big.ID, 100, today)

	top, err := f.ledger.Reports.GetTopClients(ctx, 0)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, big.ID, top[0].ClientID)
	assertDecimal(t, 1000, top[0].Volume)
	assert.Equal(t, 2, top[0].TransactionCount)
	assert.Equal(t, small.ID, top[1].ClientID)
	assert.Equal(t, idle.ID, top[2].ClientID)
	assertDecimal(t, 0, top[2].Volume)

	limited, err := f.ledger.Reports.GetTopClients(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestVolumeByTypeAndMonthlySummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 100000)
	c := f.client(t, "C")

	f.debt(t, w.ID, c.ID, 400, domain.NewDate(2026, 1, 15))
	_, err := f.ledger.Transactions.Create(ctx, &domain.CreateTransactionRequest{
		WalletID: w.ID, Type: domain.Deposit, VCAmount: dec(1000), Date: domain.NewDate(2026, 3, 1),
	})
	require.NoError(t, err)
	_, err = f.ledger.Payments.Create(ctx, &domain.CreatePaymentRequest{ClientID: c.ID, Amount: dec(100)})
	require.NoError(t, err)

	volume, err := f.ledger.Reports.GetVolumeByType(ctx, domain.Date{}, domain.Date{})
	require.NoError(t, err)
	require.Len(t, volume, 4)
	assert.Equal(t, domain.TransferOut, volume[0].Type)
	assertDecimal(t, 400, volume[0].Volume)
	assert.Equal(t, 0, volume[1].Count)
	assert.Equal(t, domain.Deposit, volume[2].Type)
	assertDecimal(t, 1000, volume[2].Volume)

	months, err := f.ledger.Reports.GetMonthlySummary(ctx, 0)
	require.NoError(t, err)
	require.Len(t, months, 12)
	assert.Equal(t, "2026-01", months[0].Month)
	assertDecimal(t, 400, months[0].Volume)
	assert.Equal(t, 0, months[1].Count)
	assertDecimal(t, 1000, months[2].Volume)
	assertDecimal(t, 100, months[2].PaymentsReceived)
	assert.Equal(t, "2026-12", months[11].Month)
}
