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

var paymentTracer = otel.Tracer("service/payment")

// PaymentService records client payments and allocates them to unpaid
// transactions, oldest first.
type PaymentService struct {
	*base
	transactions *TransactionService
	clients      *ClientService
}

// allocation is one slice of a payment matched to a transaction.
type allocation struct {
	transactionID string
	amount        decimal.Decimal
	priorPaid     decimal.Decimal
}

// allocateFIFO walks unpaid (already ordered oldest first) and takes
// min(amount_due, remaining) from each until the payment is exhausted.
// It returns the allocations and whatever could not be matched.
func allocateFIFO(unpaid []domain.Transaction, amount decimal.Decimal) ([]allocation, decimal.Decimal) {
	remaining := amount
	var out []allocation
	for _, t := range unpaid {
		if !remaining.IsPositive() {
			break
		}
		take := decimal.Min(t.AmountDue, remaining)
		if !take.IsPositive() {
			continue
		}
		out = append(out, allocation{
			transactionID: t.ID,
			amount:        take,
			priorPaid:     t.AmountPaid,
		})
		remaining = remaining.Sub(take)
	}
	return out, remaining
}

// Create applies a client payment across the client's outstanding
// transactions. One Payment record is written per transaction touched.
// Any amount left over once every debt is cleared is reported as
// unallocated rather than rejected.
func (s *PaymentService) Create(ctx context.Context, req *domain.CreatePaymentRequest) (*domain.PaymentAllocation, error) {
	ctx, span := paymentTracer.Start(ctx, "PaymentService.Create")
	defer span.End()
	start := time.Now()
	defer s.observe("create_payment", start)

	req.ClientID = strings.TrimSpace(req.ClientID)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := requirePositive("amount", req.Amount); err != nil {
		return nil, err
	}
	if req.Method == "" {
		req.Method = domain.MethodCash
	}
	span.SetAttributes(attribute.String("client.id", req.ClientID))

	unlock, err := s.lock(ctx, lock.ClientKey(req.ClientID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.clients.get(ctx, req.ClientID); err != nil {
		return nil, err
	}

	unpaid, err := s.transactions.GetUnpaidByClient(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}
	if len(unpaid) == 0 {
		return nil, &domain.ErrNoOutstandingDebt{ClientID: req.ClientID}
	}

	allocations, remaining := allocateFIFO(unpaid, req.Amount)

	date := req.Date
	if date.IsZero() {
		date = s.today()
	}
	notes := strings.TrimSpace(req.Notes)

	result := &domain.PaymentAllocation{
		Payments:       make([]domain.Payment, 0, len(allocations)),
		TotalAllocated: req.Amount.Sub(remaining),
		Unallocated:    remaining,
	}

	for _, a := range allocations {
		p, err := s.store.Payments().Insert(ctx, domain.Payment{
			ID:            uuid.New().String(),
			ClientID:      req.ClientID,
			TransactionID: a.transactionID,
			Amount:        a.amount,
			Method:        req.Method,
			Notes:         notes,
			Date:          date,
			CreatedAt:     s.now(),
		})
		if err != nil {
			return nil, s.writeErr("insert payment", err)
		}
		s.metrics.IncrWrite("payments")

		if _, err := s.transactions.setPaymentInfo(ctx, a.transactionID, a.priorPaid.Add(a.amount)); err != nil {
			return nil, err
		}
		result.Payments = append(result.Payments, *p)
	}

	if _, err := s.clients.updateTotalDebt(ctx, req.ClientID); err != nil {
		return nil, err
	}
	s.invalidateReports()

	allocated, _ := result.TotalAllocated.Float64()
	unallocated, _ := result.Unallocated.Float64()
	s.metrics.RecordAllocation(allocated, unallocated)

	s.logger.Info("payment allocated",
		zap.String("client_id", req.ClientID),
		zap.String("amount", req.Amount.String()),
		zap.Int("transactions", len(result.Payments)),
		zap.String("allocated", result.TotalAllocated.String()),
		zap.String("unallocated", result.Unallocated.String()),
	)
	return result, nil
}

// List returns payments matching filter, newest first, with client names.
func (s *PaymentService) List(ctx context.Context, filter domain.PaymentFilter) ([]domain.Payment, error) {
	ctx, span := paymentTracer.Start(ctx, "PaymentService.List")
	defer span.End()

	payments, err := s.store.Payments().Filter(ctx, filter.Match)
	if err != nil {
		return nil, s.readErr("list payments", err)
	}
	if len(payments) > 0 {
		clients, err := s.store.Clients().List(ctx)
		if err != nil {
			return nil, s.readErr("list clients", err)
		}
		names := make(map[string]string, len(clients))
		for _, c := range clients {
			names[c.ID] = c.Name
		}
		for i := range payments {
			payments[i].ClientName = names[payments[i].ClientID]
		}
	}

	sort.SliceStable(payments, func(i, j int) bool {
		if !payments[i].Date.Equal(payments[j].Date) {
			return payments[i].Date.After(payments[j].Date)
		}
		return payments[i].CreatedAt.After(payments[j].CreatedAt)
	})
	return payments, nil
}

// TotalReceived sums payment amounts dated between from and to; zero
// bounds are open.
func (s *PaymentService) TotalReceived(ctx context.Context, from, to domain.Date) (decimal.Decimal, error) {
	ctx, span := paymentTracer.Start(ctx, "PaymentService.TotalReceived")
	defer span.End()

	payments, err := s.store.Payments().Filter(ctx, domain.PaymentFilter{From: from, To: to}.Match)
	if err != nil {
		return decimal.Zero, s.readErr("scan payments", err)
	}
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total, nil
}
