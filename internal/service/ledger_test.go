package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/infra/cache"
	"github.com/boddenberg/agent-ledger-go/internal/infra/lock"
	"github.com/boddenberg/agent-ledger-go/internal/infra/memstore"
	"github.com/boddenberg/agent-ledger-go/internal/infra/observability"
	"github.com/boddenberg/agent-ledger-go/internal/port"
	"github.com/boddenberg/agent-ledger-go/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fixedNow is a Wednesday; the business week started on Saturday 2026-03-14.
var fixedNow = time.Date(2026, time.March, 18, 10, 0, 0, 0, time.UTC)

var today = domain.NewDate(2026, time.March, 18)

type fixture struct {
	ledger  *service.Ledger
	store   *memstore.Store
	metrics *observability.Metrics
	cache   *cache.InMemory[*domain.DashboardKPIs]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	metrics := observability.NewMetrics()
	reports := cache.New[*domain.DashboardKPIs](time.Minute)
	t.Cleanup(reports.Close)

	l := service.NewLedger(service.Deps{
		Store:    store,
		Locker:   lock.NewLocal(time.Second),
		Cache:    reports,
		Metrics:  metrics,
		Logger:   zap.NewNop(),
		Clock:    func() time.Time { return fixedNow },
		Location: time.UTC,
	})
	return &fixture{ledger: l, store: store, metrics: metrics, cache: reports}
}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func decPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func (f *fixture) wallet(t *testing.T, initial int64) *domain.Wallet {
	t.Helper()
	w, err := f.ledger.Wallets.Create(context.Background(), &domain.CreateWalletRequest{
		PhoneNumber:    "01012345678",
		Name:           "Main",
		InitialBalance: dec(initial),
	})
	require.NoError(t, err)
	return w
}

func (f *fixture) client(t *testing.T, name string) *domain.Client {
	t.Helper()
	c, err := f.ledger.Clients.Create(context.Background(), &domain.CreateClientRequest{Name: name})
	require.NoError(t, err)
	return c
}

// debt books a TRANSFER_OUT with no fee, so amount_due equals vc.
func (f *fixture) debt(t *testing.T, walletID, clientID string, vc int64, date domain.Date) *domain.Transaction {
	t.Helper()
	tx, err := f.ledger.Transactions.Create(context.Background(), &domain.CreateTransactionRequest{
		WalletID: walletID,
		ClientID: clientID,
		Type:     domain.TransferOut,
		VCAmount: dec(vc),
		Date:     date,
	})
	require.NoError(t, err)
	return tx
}

// assertInvariants checks every derived total against the logs.
func (f *fixture) assertInvariants(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	txs, err := f.store.Transactions().List(ctx)
	require.NoError(t, err)
	payments, err := f.store.Payments().List(ctx)
	require.NoError(t, err)

	paidTo := map[string]decimal.Decimal{}
	for _, p := range payments {
		paidTo[p.TransactionID] = paidTo[p.TransactionID].Add(p.Amount)
	}

	balances := map[string]decimal.Decimal{}
	debts := map[string]decimal.Decimal{}
	for _, tx := range txs {
		assert.Equal(t, domain.PaymentStatusFor(tx.CashAmount, tx.AmountPaid), tx.PaymentStatus, "status of %s", tx.ID)
		assert.True(t, paidTo[tx.ID].LessThanOrEqual(tx.CashAmount), "payments to %s exceed cash", tx.ID)
		balances[tx.WalletID] = balances[tx.WalletID].Add(tx.SignedVCAmount())
		if tx.ClientID != "" && tx.PaymentStatus != domain.StatusPaid {
			debts[tx.ClientID] = debts[tx.ClientID].Add(tx.AmountDue)
		}
	}

	wallets, err := f.store.Wallets().List(ctx)
	require.NoError(t, err)
	for _, w := range wallets {
		want := w.InitialBalance.Add(balances[w.ID])
		assert.True(t, want.Equal(w.CurrentBalance), "wallet %s: want %s got %s", w.ID, want, w.CurrentBalance)
	}

	clients, err := f.store.Clients().List(ctx)
	require.NoError(t, err)
	for _, c := range clients {
		assert.True(t, debts[c.ID].Equal(c.TotalDebt), "client %s: want %s got %s", c.ID, debts[c.ID], c.TotalDebt)
	}
}

func assertDecimal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %d got %s", want, got)
}

// --- failing store ---

var errStoreDown = errors.New("store down")

// failingStore wraps a real store and fails every transaction write.
type failingStore struct {
	port.LedgerStore
}

func (s failingStore) Transactions() port.Collection[domain.Transaction] {
	return failingCollection[domain.Transaction]{s.LedgerStore.Transactions()}
}

type failingCollection[T any] struct {
	port.Collection[T]
}

func (failingCollection[T]) Insert(context.Context, T) (*T, error) { return nil, errStoreDown }

func TestLedger_StoreErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	metrics := observability.NewMetrics()
	l := service.NewLedger(service.Deps{
		Store:   failingStore{store},
		Metrics: metrics,
		Clock:   func() time.Time { return fixedNow },
	})

	w, err := l.Wallets.Create(ctx, &domain.CreateWalletRequest{PhoneNumber: "01012345678", Name: "W", InitialBalance: dec(100)})
	require.NoError(t, err)

	_, err = l.Transactions.Create(ctx, &domain.CreateTransactionRequest{
		WalletID: w.ID, Type: domain.Deposit, VCAmount: dec(10),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, float64(1), metrics.Snapshot().StoreErrors)

	got, err := l.Wallets.Get(ctx, w.ID)
	require.NoError(t, err)
	assertDecimal(t, 100, got.CurrentBalance)
}

func TestLedger_Ping(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.ledger.Ping(context.Background()))
}
