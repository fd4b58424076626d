package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/infra/sqlite"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_TransactionRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	tx := domain.Transaction{
		ID:            "t1",
		WalletID:      "w1",
		ClientID:      "c1",
		Type:          domain.TransferOut,
		VCAmount:      decimal.RequireFromString("1000.50"),
		CashAmount:    decimal.RequireFromString("1020.50"),
		FeeAmount:     decimal.NewFromInt(20),
		AmountDue:     decimal.RequireFromString("1020.50"),
		PaymentStatus: domain.StatusDebt,
		Date:          domain.NewDate(2025, time.March, 14),
		CreatedAt:     time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	_, err := store.Transactions().Insert(ctx, tx)
	require.NoError(t, err)

	got, err := store.Transactions().Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.TransferOut, got.Type)
	assert.True(t, got.CashAmount.Equal(tx.CashAmount))
	assert.True(t, got.Date.Equal(tx.Date))
	assert.Equal(t, domain.StatusDebt, got.PaymentStatus)
}

func TestStore_ListKeepsInsertionOrderPerCollection(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	for _, id := range []string{"p3", "p1", "p2"} {
		_, err := store.Payments().Insert(ctx, domain.Payment{ID: id, ClientID: "c1"})
		require.NoError(t, err)
	}
	_, err := store.Clients().Insert(ctx, domain.Client{ID: "c1", Name: "Ahmed"})
	require.NoError(t, err)

	payments, err := store.Payments().List(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 3)
	assert.Equal(t, []string{"p3", "p1", "p2"}, []string{payments[0].ID, payments[1].ID, payments[2].ID})

	clients, err := store.Clients().List(ctx)
	require.NoError(t, err)
	assert.Len(t, clients, 1)
}

func TestStore_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.Wallets().Insert(ctx, domain.Wallet{ID: "w1", Name: "Main", InitialBalance: decimal.NewFromInt(500)})
	require.NoError(t, err)

	updated, err := store.Wallets().Update(ctx, "w1", func(w *domain.Wallet) {
		w.CurrentBalance = decimal.NewFromInt(700)
	})
	require.NoError(t, err)
	require.NotNil(t, updated)

	got, err := store.Wallets().Get(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(decimal.NewFromInt(700)))

	missing, err := store.Wallets().Update(ctx, "w2", func(*domain.Wallet) {})
	require.NoError(t, err)
	assert.Nil(t, missing)

	ok, err := store.Wallets().Delete(ctx, "w1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = store.Wallets().Get(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_DuplicateInsert(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := store.Clients().Insert(ctx, domain.Client{ID: "c1"})
	require.NoError(t, err)
	_, err = store.Clients().Insert(ctx, domain.Client{ID: "c1"})
	assert.Error(t, err)

	// same id in another collection is fine
	_, err = store.Wallets().Insert(ctx, domain.Wallet{ID: "c1"})
	assert.NoError(t, err)
}

func TestStore_FilterPredicate(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, _ = store.Transactions().Insert(ctx, domain.Transaction{ID: "t1", PaymentStatus: domain.StatusPaid})
	_, _ = store.Transactions().Insert(ctx, domain.Transaction{ID: "t2", PaymentStatus: domain.StatusDebt})
	_, _ = store.Transactions().Insert(ctx, domain.Transaction{ID: "t3", PaymentStatus: domain.StatusPartial})

	unpaid, err := store.Transactions().Filter(ctx, func(t domain.Transaction) bool {
		return t.PaymentStatus.Unpaid()
	})
	require.NoError(t, err)
	require.Len(t, unpaid, 2)
	assert.Equal(t, "t2", unpaid[0].ID)
	assert.Equal(t, "t3", unpaid[1].ID)
}

func TestStore_QueryErrorPropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("disk I/O error")
	mock.ExpectQuery("SELECT data FROM records WHERE collection = \\? ORDER BY seq").
		WithArgs("wallets").
		WillReturnError(boom)

	store := sqlite.NewWithDB(db)
	_, err = store.Wallets().List(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateRollsBackOnWriteError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT data FROM records WHERE collection = \\? AND id = \\?").
		WithArgs("clients", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(`{"client_id":"c1","client_name":"Mona"}`))
	mock.ExpectExec("UPDATE records SET data").
		WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	store := sqlite.NewWithDB(db)
	_, err = store.Clients().Update(context.Background(), "c1", func(c *domain.Client) {
		c.TotalDebt = decimal.NewFromInt(50)
	})

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetDecodesDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT data FROM records WHERE collection = \\? AND id = \\?").
		WithArgs("payments", "p1").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).
			AddRow(`{"payment_id":"p1","client_id":"c1","amount":"120","payment_method":"cash","payment_date":"2025-02-01"}`))

	store := sqlite.NewWithDB(db)
	p, err := store.Payments().Get(context.Background(), "p1")

	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, domain.MethodCash, p.Method)
	assert.Equal(t, "2025-02-01", p.Date.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}
