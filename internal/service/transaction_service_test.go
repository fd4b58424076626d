package service_test

import (
	"context"
	"testing"

	"github.com/boddenberg/agent-ledger-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTransaction_TransferOutWithFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 5000)
	c := f.client(t, "Ahmed")

	tx, err := f.ledger.Transactions.Create(ctx, &domain.CreateTransactionRequest{
		WalletID:   w.ID,
		ClientID:   c.ID,
		Type:       domain.TransferOut,
		VCAmount:   dec(1000),
		FeeAmount:  decPtr(20),
		AmountPaid: decPtr(500),
	})
	require.NoError(t, err)

	assertDecimal(t, 1020, tx.CashAmount)
	assertDecimal(t, 20, tx.FeeAmount)
	assertDecimal(t, 520, tx.AmountDue)
	assert.Equal(t, domain.StatusPartial, tx.PaymentStatus)
	assert.Equal(t, today, tx.Date)

	wallet, err := f.ledger.Wallets.Get(ctx, w.ID)
	require.NoError(t, err)
	assertDecimal(t, 4000, wallet.CurrentBalance)

	client, err := f.ledger.Clients.Get(ctx, c.ID)
	require.NoError(t, err)
	assertDecimal(t, 520, client.TotalDebt)

	f.assertInvariants(t)
}

func TestDeriveAmounts(t *testing.T) {
	tests := []struct {
		name     string
		typ      domain.TransactionType
		cash     *int64
		fee      *int64
		wantCash int64
		wantFee  int64
	}{
		{name: "out, neither supplied", typ: domain.TransferOut, wantCash: 1000, wantFee: 0},
		{name: "out, fee only", typ: domain.TransferOut, fee: ptr(20), wantCash: 1020, wantFee: 20},
		{name: "out, cash only", typ: domain.TransferOut, cash: ptr(1015), wantCash: 1015, wantFee: 15},
		{name: "out, both supplied kept", typ: domain.TransferOut, cash: ptr(1030), fee: ptr(20), wantCash: 1030, wantFee: 20},
		{name: "out, zero fee means unset", typ: domain.TransferOut, cash: ptr(1010), fee: ptr(0), wantCash: 1010, wantFee: 10},
		{name: "out, zero cash means unset", typ: domain.TransferOut, cash: ptr(0), fee: ptr(20), wantCash: 1020, wantFee: 20},
		{name: "in, fee only", typ: domain.TransferIn, fee: ptr(10), wantCash: 990, wantFee: 10},
		{name: "in, cash only", typ: domain.TransferIn, cash: ptr(985), wantCash: 985, wantFee: 15},
		{name: "in, neither supplied", typ: domain.TransferIn, wantCash: 1000, wantFee: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.wallet(t, 10000)

			req := &domain.CreateTransactionRequest{WalletID: w.ID, Type: tt.typ, VCAmount: dec(1000)}
			if tt.cash != nil {
				req.CashAmount = decPtr(*tt.cash)
			}
			if tt.fee != nil {
				req.FeeAmount = decPtr(*tt.fee)
			}

			tx, err := f.ledger.Transactions.Create(context.Background(), req)
			require.NoError(t, err)
			assertDecimal(t, tt.wantCash, tx.CashAmount)
			assertDecimal(t, tt.wantFee, tx.FeeAmount)
		})
	}
}

func ptr(v int64) *int64 { return &v }

func TestCreateTransaction_NegativeDerivedFeeRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 1000)

	_, err := f.ledger.Transactions.Create(ctx, &domain.CreateTransactionRequest{
		WalletID:   w.ID,
		Type:       domain.TransferOut,
		VCAmount:   dec(1000),
		CashAmount: decPtr(900),
	})

	var verr *domain.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "fee_amount", verr.Field)

	all, err := f.store.Transactions().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateTransaction_DepositAlwaysPaid(t *testing.T) {
	for _, typ := range []domain.TransactionType{domain.Deposit, domain.Withdraw} {
		t.Run(string(typ), func(t *testing.T) {
			f := newFixture(t)
			w := f.wallet(t, 1000)
			c := f.client(t, "Sara")

			tx, err := f.ledger.Transactions.Create(context.Background(), &domain.CreateTransactionRequest{
				WalletID:   w.ID,
				ClientID:   c.ID,
				Type:       typ,
				VCAmount:   dec(300),
				FeeAmount:  decPtr(15),
				AmountPaid: decPtr(0),
			})
			require.NoError(t, err)

			assert.Equal(t, domain.StatusPaid, tx.PaymentStatus)
			assertDecimal(t, 0, tx.AmountDue)
			assertDecimal(t, 300, tx.AmountPaid)
			assertDecimal(t, 300, tx.CashAmount)
			assertDecimal(t, 0, tx.FeeAmount)
			f.assertInvariants(t)
		})
	}
}

func TestCreateTransaction_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 1000)

	tests := []struct {
		name  string
		req   domain.CreateTransactionRequest
		field string
	}{
		{"missing wallet", domain.CreateTransactionRequest{Type: domain.Deposit, VCAmount: dec(1)}, "wallet_id"},
		{"bad type", domain.CreateTransactionRequest{WalletID: w.ID, Type: "REFUND", VCAmount: dec(1)}, "transaction_type"},
		{"zero vc", domain.CreateTransactionRequest{WalletID: w.ID, Type: domain.Deposit}, "vc_amount"},
		{"negative vc", domain.CreateTransactionRequest{WalletID: w.ID, Type: domain.Deposit, VCAmount: dec(-5)}, "vc_amount"},
		{"negative paid", domain.CreateTransactionRequest{WalletID: w.ID, Type: domain.TransferOut, VCAmount: dec(10), AmountPaid: decPtr(-1)}, "amount_paid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ledger.Transactions.Create(ctx, &tt.req)
			var verr *domain.ErrValidation
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCreateTransaction_UnknownReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 1000)

	_, err := f.ledger.Transactions.Create(ctx, &domain.CreateTransactionRequest{
		WalletID: "missing", Type: domain.Deposit, VCAmount: dec(10),
	})
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "wallet", nf.Resource)

	_, err = f.ledger.Transactions.Create(ctx, &domain.CreateTransactionRequest{
		WalletID: w.ID, ClientID: "ghost", Type: domain.TransferOut, VCAmount: dec(10),
	})
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "client", nf.Resource)
}

func TestCreateTransaction_NormalisesRecipientPhone(t *testing.T) {
	f := newFixture(t)
	w := f.wallet(t, 1000)

	tx, err := f.ledger.Transactions.Create(context.Background(), &domain.CreateTransactionRequest{
		WalletID:       w.ID,
		Type:           domain.TransferIn,
		VCAmount:       dec(100),
		RecipientPhone: "010 1234-5678",
		Description:    "  rent  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "01012345678", tx.RecipientPhone)
	assert.Equal(t, "rent", tx.Description)
}

func TestUpdatePaymentInfo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 1000)
	c := f.client(t, "Mahmoud")
	tx := f.debt(t, w.ID, c.ID, 200, today)

	updated, err := f.ledger.Transactions.UpdatePaymentInfo(ctx, tx.ID, dec(50))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPartial, updated.PaymentStatus)
	assertDecimal(t, 150, updated.AmountDue)
	f.assertInvariants(t)

	updated, err = f.ledger.Transactions.UpdatePaymentInfo(ctx, tx.ID, dec(200))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, updated.PaymentStatus)
	assertDecimal(t, 0, updated.AmountDue)
	f.assertInvariants(t)

	_, err = f.ledger.Transactions.UpdatePaymentInfo(ctx, tx.ID, dec(201))
	var verr *domain.ErrValidation
	assert.ErrorAs(t, err, &verr)

	_, err = f.ledger.Transactions.UpdatePaymentInfo(ctx, "nope", dec(1))
	var nf *domain.ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestGetUnpaidByClient_OldestFirstStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 10000)
	c := f.client(t, "Fatma")
	other := f.client(t, "Other")

	newer := f.debt(t, w.ID, c.ID, 10, today)
	sameDayA := f.debt(t, w.ID, c.ID, 20, today.AddDays(-5))
	sameDayB := f.debt(t, w.ID, c.ID, 30, today.AddDays(-5))
	oldest := f.debt(t, w.ID, c.ID, 40, today.AddDays(-9))
	f.debt(t, w.ID, other.ID, 50, today.AddDays(-20))

	_, err := f.ledger.Transactions.Create(ctx, &domain.CreateTransactionRequest{
		WalletID: w.ID, ClientID: c.ID, Type: domain.TransferOut, VCAmount: dec(60), AmountPaid: decPtr(60),
	})
	require.NoError(t, err)

	unpaid, err := f.ledger.Transactions.GetUnpaidByClient(ctx, c.ID)
	require.NoError(t, err)

	ids := make([]string, len(unpaid))
	for i, tx := range unpaid {
		ids[i] = tx.ID
	}
	assert.Equal(t, []string{oldest.ID, sameDayA.ID, sameDayB.ID, newer.ID}, ids)
}

func TestListTransactions_FilterAndEnrich(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 10000)
	c := f.client(t, "Ahmed")

	f.debt(t, w.ID, c.ID, 100, today.AddDays(-10))
	recent := f.debt(t, w.ID, c.ID, 200, today.AddDays(-1))
	_, err := f.ledger.Transactions.Create(ctx, &domain.CreateTransactionRequest{
		WalletID: w.ID, Type: domain.Deposit, VCAmount: dec(500), Date: today,
	})
	require.NoError(t, err)

	got, err := f.ledger.Transactions.List(ctx, domain.TransactionFilter{
		From:   today.AddDays(-3),
		Status: domain.StatusDebt,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, recent.ID, got[0].ID)
	assert.Equal(t, "Main", got[0].WalletName)
	assert.Equal(t, "Ahmed", got[0].ClientName)

	all, err := f.ledger.Transactions.List(ctx, domain.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, domain.Deposit, all[0].Type, "newest first")
}

func TestDeleteTransaction_RecomputesProjections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 1000)
	c := f.client(t, "Ahmed")
	tx := f.debt(t, w.ID, c.ID, 300, today)

	require.NoError(t, f.ledger.Transactions.Delete(ctx, tx.ID))

	wallet, err := f.ledger.Wallets.Get(ctx, w.ID)
	require.NoError(t, err)
	assertDecimal(t, 1000, wallet.CurrentBalance)

	client, err := f.ledger.Clients.Get(ctx, c.ID)
	require.NoError(t, err)
	assertDecimal(t, 0, client.TotalDebt)

	var nf *domain.ErrNotFound
	assert.ErrorAs(t, f.ledger.Transactions.Delete(ctx, tx.ID), &nf)
}

func TestDebtAgingReport_Boundaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 100000)
	c := f.client(t, "Ahmed")

	f.debt(t, w.ID, c.ID, 10, today)
	f.debt(t, w.ID, c.ID, 20, today.AddDays(-7))
	f.debt(t, w.ID, c.ID, 30, today.AddDays(-8))
	f.debt(t, w.ID, c.ID, 40, today.AddDays(-30))
	f.debt(t, w.ID, c.ID, 50, today.AddDays(-31))
	f.debt(t, w.ID, c.ID, 60, today.AddDays(-60))
	f.debt(t, w.ID, c.ID, 70, today.AddDays(-61))
	_, err := f.ledger.Transactions.Create(ctx, &domain.CreateTransactionRequest{
		WalletID: w.ID, ClientID: c.ID, Type: domain.TransferOut, VCAmount: dec(999), AmountPaid: decPtr(999),
	})
	require.NoError(t, err)

	report, err := f.ledger.Transactions.GetDebtAgingReport(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Days0To7.Count)
	assertDecimal(t, 30, report.Days0To7.Total)
	assert.Equal(t, 2, report.Days8To30.Count)
	assertDecimal(t, 70, report.Days8To30.Total)
	assert.Equal(t, 2, report.Days31To60.Count)
	assertDecimal(t, 110, report.Days31To60.Total)
	assert.Equal(t, 1, report.Over60.Count)
	assertDecimal(t, 70, report.Over60.Total)
	assert.Equal(t, 7, report.TotalCount)
	assertDecimal(t, 280, report.TotalDebt)
}

func TestProfitReport_Groupings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	w := f.wallet(t, 100000)

	book := func(date domain.Date, vc, fee int64) {
		_, err := f.ledger.Transactions.Create(ctx, &domain.CreateTransactionRequest{
			WalletID: w.ID, Type: domain.TransferOut, VCAmount: dec(vc), FeeAmount: decPtr(fee), AmountPaid: decPtr(vc + fee), Date: date,
		})
		require.NoError(t, err)
	}

	// Friday 2026-03-13 closes the previous week; Saturday 2026-03-14 opens this one.
	friday := domain.NewDate(2026, 3, 13)
	saturday := domain.NewDate(2026, 3, 14)
	book(friday, 1000, 10)
	book(saturday, 2000, 20)
	book(today, 500, 5)
	book(today, 500, 5)
	book(domain.NewDate(2026, 2, 27), 100, 1)
	book(domain.NewDate(2026, 3, 19), 100, 99) // after the range

	report, err := f.ledger.Transactions.GetProfitReport(ctx, domain.NewDate(2026, 2, 1), today)
	require.NoError(t, err)

	assertDecimal(t, 41, report.TotalProfit)
	assertDecimal(t, 4100, report.TotalVolume)
	assert.Equal(t, 5, report.TransactionCount)

	require.Len(t, report.Daily, 4)
	assert.Equal(t, "2026-02-27", report.Daily[0].Period)
	assert.Equal(t, "2026-03-18", report.Daily[3].Period)
	assertDecimal(t, 10, report.Daily[3].Profit)
	assert.Equal(t, 2, report.Daily[3].Count)

	require.Len(t, report.Weekly, 3)
	assert.Equal(t, "2026-03-07", report.Weekly[1].Period)
	assertDecimal(t, 10, report.Weekly[1].Profit)
	assert.Equal(t, "2026-03-14", report.Weekly[2].Period)
	assertDecimal(t, 30, report.Weekly[2].Profit)

	require.Len(t, report.Monthly, 2)
	assert.Equal(t, "2026-02", report.Monthly[0].Period)
	assertDecimal(t, 40, report.Monthly[1].Profit)
}

func TestProfitReport_RejectsInvertedRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Transactions.GetProfitReport(context.Background(), today, today.AddDays(-1))
	var verr *domain.ErrValidation
	assert.ErrorAs(t, err, &verr)
}
