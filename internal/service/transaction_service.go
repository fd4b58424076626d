package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/infra/lock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var txTracer = otel.Tracer("service/transaction")

// TransactionService books e-money movements, derives their cash and fee
// amounts, and owns the payment state of each transaction.
type TransactionService struct {
	*base
	wallets *WalletService
	clients *ClientService
}

// ============================================================
// Create
// ============================================================

// Create validates and books a transaction, then recomputes the wallet
// balance and, when the transaction leaves something owed, the client's
// total debt.
func (s *TransactionService) Create(ctx context.Context, req *domain.CreateTransactionRequest) (*domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Create")
	defer span.End()
	start := time.Now()
	defer s.observe("create_transaction", start)

	req.RecipientPhone = NormalizePhone(req.RecipientPhone)
	req.Description = strings.TrimSpace(req.Description)
	req.ClientID = strings.TrimSpace(req.ClientID)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := requirePositive("vc_amount", req.VCAmount); err != nil {
		return nil, err
	}

	amounts, err := deriveAmounts(req)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("wallet.id", req.WalletID),
		attribute.String("client.id", req.ClientID),
		attribute.String("transaction.type", string(req.Type)),
	)

	keys := []string{lock.WalletKey(req.WalletID)}
	if req.ClientID != "" {
		keys = append(keys, lock.ClientKey(req.ClientID))
	}
	unlock, err := s.lock(ctx, keys...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	wallet, err := s.wallets.Get(ctx, req.WalletID)
	if err != nil {
		return nil, err
	}
	if req.ClientID != "" {
		if _, err := s.clients.get(ctx, req.ClientID); err != nil {
			return nil, err
		}
	}

	date := req.Date
	if date.IsZero() {
		date = s.today()
	}

	now := s.now()
	t := domain.Transaction{
		ID:             uuid.New().String(),
		WalletID:       wallet.ID,
		ClientID:       req.ClientID,
		Type:           req.Type,
		VCAmount:       req.VCAmount,
		CashAmount:     amounts.cash,
		FeeAmount:      amounts.fee,
		AmountPaid:     amounts.paid,
		AmountDue:      domain.AmountDueFor(amounts.cash, amounts.paid),
		PaymentStatus:  domain.PaymentStatusFor(amounts.cash, amounts.paid),
		RecipientPhone: req.RecipientPhone,
		Description:    req.Description,
		Date:           date,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := s.store.Transactions().Insert(ctx, t)
	if err != nil {
		return nil, s.writeErr("insert transaction", err)
	}
	s.metrics.IncrWrite("transactions")

	if _, err := s.wallets.recalculateBalance(ctx, created.WalletID); err != nil {
		return nil, err
	}
	if created.ClientID != "" && created.PaymentStatus != domain.StatusPaid {
		if _, err := s.clients.updateTotalDebt(ctx, created.ClientID); err != nil {
			return nil, err
		}
	}
	s.invalidateReports()

	s.logger.Info("transaction created",
		zap.String("transaction_id", created.ID),
		zap.String("wallet_id", created.WalletID),
		zap.String("client_id", created.ClientID),
		zap.String("type", string(created.Type)),
		zap.String("vc_amount", created.VCAmount.String()),
		zap.String("cash_amount", created.CashAmount.String()),
		zap.String("payment_status", string(created.PaymentStatus)),
	)
	return created, nil
}

type derivedAmounts struct {
	cash decimal.Decimal
	fee  decimal.Decimal
	paid decimal.Decimal
}

// supplied treats nil and zero the same: an explicit 0 means "not given".
func supplied(v *decimal.Decimal) bool {
	return v != nil && !v.IsZero()
}

// deriveAmounts applies the commission model. For TRANSFER_OUT the client
// pays vc + fee in cash; for TRANSFER_IN the agent pays out vc - fee. When
// both cash and fee are supplied they are taken as given. Float movements
// (DEPOSIT / WITHDRAW) are always cash = vc, no fee, fully paid.
func deriveAmounts(req *domain.CreateTransactionRequest) (derivedAmounts, error) {
	vc := req.VCAmount
	var out derivedAmounts

	switch {
	case req.Type.IsFloat():
		out.cash = vc
		out.fee = decimal.Zero
		out.paid = vc
		return out, nil

	case supplied(req.CashAmount) && supplied(req.FeeAmount):
		out.cash, out.fee = *req.CashAmount, *req.FeeAmount

	case supplied(req.FeeAmount):
		out.fee = *req.FeeAmount
		if req.Type == domain.TransferOut {
			out.cash = vc.Add(out.fee)
		} else {
			out.cash = vc.Sub(out.fee)
		}

	case supplied(req.CashAmount):
		out.cash = *req.CashAmount
		if req.Type == domain.TransferOut {
			out.fee = out.cash.Sub(vc)
		} else {
			out.fee = vc.Sub(out.cash)
		}

	default:
		out.cash = vc
		out.fee = decimal.Zero
	}

	if req.AmountPaid != nil {
		out.paid = *req.AmountPaid
	} else {
		out.paid = decimal.Zero
	}
	// A settled transaction records exactly its cash amount as paid.
	if domain.PaymentStatusFor(out.cash, out.paid) == domain.StatusPaid {
		out.paid = out.cash
	}

	if err := requireNonNegative("cash_amount", out.cash); err != nil {
		return out, err
	}
	if err := requireNonNegative("fee_amount", out.fee); err != nil {
		return out, err
	}
	if err := requireNonNegative("amount_paid", out.paid); err != nil {
		return out, err
	}
	return out, nil
}

// ============================================================
// Payment state
// ============================================================

// UpdatePaymentInfo sets amount_paid and recomputes amount_due and
// payment_status, then the client's total debt. It is the only mutation
// path for payment state after creation. The caller must hold the
// transaction's client lock.
func (s *TransactionService) UpdatePaymentInfo(ctx context.Context, transactionID string, amountPaid decimal.Decimal) (*domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.UpdatePaymentInfo")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", transactionID))

	updated, err := s.setPaymentInfo(ctx, transactionID, amountPaid)
	if err != nil {
		return nil, err
	}
	if updated.ClientID != "" {
		if _, err := s.clients.updateTotalDebt(ctx, updated.ClientID); err != nil {
			return nil, err
		}
	}
	s.invalidateReports()
	return updated, nil
}

// setPaymentInfo persists the new payment state without touching the
// client projection.
func (s *TransactionService) setPaymentInfo(ctx context.Context, transactionID string, amountPaid decimal.Decimal) (*domain.Transaction, error) {
	current, err := s.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if amountPaid.IsNegative() || amountPaid.GreaterThan(current.CashAmount) {
		return nil, &domain.ErrValidation{Field: "amount_paid", Message: "must be between 0 and cash_amount"}
	}

	now := s.now()
	updated, err := s.store.Transactions().Update(ctx, transactionID, func(t *domain.Transaction) {
		t.AmountPaid = amountPaid
		t.AmountDue = domain.AmountDueFor(t.CashAmount, amountPaid)
		t.PaymentStatus = domain.PaymentStatusFor(t.CashAmount, amountPaid)
		t.UpdatedAt = now
	})
	if err != nil {
		return nil, s.writeErr("update payment info", err)
	}
	if updated == nil {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: transactionID}
	}
	return updated, nil
}

// GetUnpaidByClient returns the client's debt and partial transactions,
// oldest transaction_date first. Equal dates keep insertion order; this is
// the FIFO order the payment allocator consumes.
func (s *TransactionService) GetUnpaidByClient(ctx context.Context, clientID string) ([]domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.GetUnpaidByClient")
	defer span.End()

	unpaid, err := s.store.Transactions().Filter(ctx, func(t domain.Transaction) bool {
		return t.ClientID == clientID && t.PaymentStatus.Unpaid()
	})
	if err != nil {
		return nil, s.readErr("scan unpaid transactions", err)
	}
	sort.SliceStable(unpaid, func(i, j int) bool {
		return unpaid[i].Date.Before(unpaid[j].Date)
	})
	return unpaid, nil
}

// ============================================================
// Reads
// ============================================================

func (s *TransactionService) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.Get")
	defer span.End()

	t, err := s.store.Transactions().Get(ctx, id)
	if err != nil {
		return nil, s.readErr("get transaction", err)
	}
	if t == nil {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	return t, nil
}

// List returns transactions matching filter, newest first, with wallet and
// client names filled in.
func (s *TransactionService) List(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.List")
	defer span.End()

	txs, err := s.store.Transactions().Filter(ctx, filter.Match)
	if err != nil {
		return nil, s.readErr("list transactions", err)
	}
	if err := s.enrich(ctx, txs); err != nil {
		return nil, err
	}
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.After(txs[j].Date)
		}
		return txs[i].CreatedAt.After(txs[j].CreatedAt)
	})
	return txs, nil
}

func (s *TransactionService) enrich(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	wallets, err := s.store.Wallets().List(ctx)
	if err != nil {
		return s.readErr("list wallets", err)
	}
	clients, err := s.store.Clients().List(ctx)
	if err != nil {
		return s.readErr("list clients", err)
	}

	walletNames := make(map[string]string, len(wallets))
	for _, w := range wallets {
		walletNames[w.ID] = w.Name
	}
	clientNames := make(map[string]string, len(clients))
	for _, c := range clients {
		clientNames[c.ID] = c.Name
	}
	for i := range txs {
		txs[i].WalletName = walletNames[txs[i].WalletID]
		txs[i].ClientName = clientNames[txs[i].ClientID]
	}
	return nil
}

// ============================================================
// Administrative delete
// ============================================================

// Delete removes a transaction and re-derives the wallet balance and client
// debt. Payments allocated to it are kept as history.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	ctx, span := txTracer.Start(ctx, "TransactionService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	keys := []string{lock.WalletKey(t.WalletID)}
	if t.ClientID != "" {
		keys = append(keys, lock.ClientKey(t.ClientID))
	}
	unlock, err := s.lock(ctx, keys...)
	if err != nil {
		return err
	}
	defer unlock()

	deleted, err := s.store.Transactions().Delete(ctx, id)
	if err != nil {
		return s.writeErr("delete transaction", err)
	}
	if !deleted {
		return &domain.ErrNotFound{Resource: "transaction", ID: id}
	}

	if _, err := s.wallets.recalculateBalance(ctx, t.WalletID); err != nil {
		return err
	}
	if t.ClientID != "" {
		if _, err := s.clients.updateTotalDebt(ctx, t.ClientID); err != nil {
			return err
		}
	}
	s.invalidateReports()

	s.logger.Warn("transaction deleted",
		zap.String("transaction_id", id),
		zap.String("wallet_id", t.WalletID),
		zap.String("client_id", t.ClientID),
	)
	return nil
}

// ============================================================
// Read-side aggregations
// ============================================================

// GetDebtAgingReport buckets every unpaid transaction by its distance in
// days from today.
func (s *TransactionService) GetDebtAgingReport(ctx context.Context) (*domain.DebtAgingReport, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.GetDebtAgingReport")
	defer span.End()

	unpaid, err := s.store.Transactions().Filter(ctx, func(t domain.Transaction) bool {
		return t.PaymentStatus.Unpaid()
	})
	if err != nil {
		return nil, s.readErr("scan unpaid transactions", err)
	}
	return agingReport(unpaid, s.today()), nil
}

func agingReport(unpaid []domain.Transaction, today domain.Date) *domain.DebtAgingReport {
	report := domain.NewDebtAgingReport()
	for _, t := range unpaid {
		days := today.DaysSince(t.Date)
		if days < 0 {
			days = -days
		}
		b := report.Bucket(domain.AgingLabel(days))
		b.Transactions = append(b.Transactions, t)
		b.Total = b.Total.Add(t.AmountDue)
		b.Count++

		report.TotalDebt = report.TotalDebt.Add(t.AmountDue)
		report.TotalCount++
	}
	return report
}

// GetProfitReport sums fees between from and to (both inclusive) by day,
// by Saturday-start week and by month.
func (s *TransactionService) GetProfitReport(ctx context.Context, from, to domain.Date) (*domain.ProfitReport, error) {
	ctx, span := txTracer.Start(ctx, "TransactionService.GetProfitReport")
	defer span.End()

	if from.IsZero() || to.IsZero() {
		return nil, &domain.ErrValidation{Field: "from", Message: "from and to are required"}
	}
	if from.After(to) {
		return nil, &domain.ErrValidation{Field: "from", Message: "must not be after to"}
	}

	txs, err := s.store.Transactions().Filter(ctx, domain.TransactionFilter{From: from, To: to}.Match)
	if err != nil {
		return nil, s.readErr("scan transactions", err)
	}

	report := &domain.ProfitReport{
		From:        from,
		To:          to,
		TotalProfit: decimal.Zero,
		TotalVolume: decimal.Zero,
	}
	daily := newProfitSeries()
	weekly := newProfitSeries()
	monthly := newProfitSeries()

	for _, t := range txs {
		report.TotalProfit = report.TotalProfit.Add(t.FeeAmount)
		report.TotalVolume = report.TotalVolume.Add(t.VCAmount)
		report.TransactionCount++

		daily.add(t.Date.String(), t.FeeAmount)
		weekly.add(t.Date.WeekStart().String(), t.FeeAmount)
		monthly.add(t.Date.MonthKey(), t.FeeAmount)
	}

	report.Daily = daily.points()
	report.Weekly = weekly.points()
	report.Monthly = monthly.points()
	return report, nil
}

// profitSeries groups fees by a sortable period key.
type profitSeries map[string]*domain.ProfitPoint

func newProfitSeries() profitSeries { return profitSeries{} }

func (p profitSeries) add(key string, fee decimal.Decimal) {
	pt, ok := p[key]
	if !ok {
		pt = &domain.ProfitPoint{Period: key, Profit: decimal.Zero}
		p[key] = pt
	}
	pt.Profit = pt.Profit.Add(fee)
	pt.Count++
}

func (p profitSeries) points() []domain.ProfitPoint {
	out := make([]domain.ProfitPoint, 0, len(p))
	for _, pt := range p {
		out = append(out, *pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}
