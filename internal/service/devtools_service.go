package service

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/boddenberg/agent-ledger-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var devTracer = otel.Tracer("service/devtools")

// ============================================================
// Dev Tools
// ============================================================

// DevToolsService fills an empty ledger with sample data. Every record goes
// through the normal services so the derived totals are consistent.
type DevToolsService struct {
	*base
	ledger *Ledger
}

const (
	seedTransfers = 50
	seedFloats    = 10
	seedDaysBack  = 60
)

var (
	seedAmounts     = []int64{500, 1000, 1500, 2000, 2500, 3000, 5000, 7500, 10000}
	seedFeePermille = []int64{5, 10, 15, 20}
	seedFloatSizes  = []int64{5000, 10000, 15000, 20000}
	seedRecipients  = []string{"01000000001", "01000000002", "01000000003", "01000000004", "01000000005"}
)

// Seed creates two wallets, five clients, a spread of transfers over the
// last sixty days with mixed payment states, some float movements and one
// client payment.
func (s *DevToolsService) Seed(ctx context.Context) (*domain.SeedResponse, error) {
	ctx, span := devTracer.Start(ctx, "DevToolsService.Seed")
	defer span.End()

	rng := rand.New(rand.NewSource(s.now().UnixNano()))
	resp := &domain.SeedResponse{}

	walletReqs := []domain.CreateWalletRequest{
		{PhoneNumber: "01012345678", Name: "Main wallet", InitialBalance: decimal.NewFromInt(50000), Notes: "primary business wallet"},
		{PhoneNumber: "01098765432", Name: "Backup wallet", InitialBalance: decimal.NewFromInt(25000), Notes: "reserve"},
	}
	var wallets []*domain.Wallet
	for i := range walletReqs {
		w, err := s.ledger.Wallets.Create(ctx, &walletReqs[i])
		if err != nil {
			return nil, fmt.Errorf("seed wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	resp.Wallets = len(wallets)

	clientReqs := []domain.CreateClientRequest{
		{Name: "Ahmed Mohamed Ali", PhoneNumber: "01111111111", NationalID: "29001011234567", Address: "Nile St, Mansoura", Notes: "regular"},
		{Name: "Mahmoud Hassan Ibrahim", PhoneNumber: "01222222222", Address: "Gomhoreya St, Tanta", Notes: "new"},
		{Name: "Sara Ahmed Mohamed", PhoneNumber: "01555555555", Notes: "VIP"},
		{Name: "Mohamed Abdallah", PhoneNumber: "01066666666", Address: "Maadi, Cairo"},
		{Name: "Fatma El Sayed", PhoneNumber: "01277777777", Notes: "long-standing"},
	}
	var clients []*domain.Client
	for i := range clientReqs {
		c, err := s.ledger.Clients.Create(ctx, &clientReqs[i])
		if err != nil {
			return nil, fmt.Errorf("seed client: %w", err)
		}
		clients = append(clients, c)
	}
	resp.Clients = len(clients)

	today := s.today()
	for i := 0; i < seedTransfers; i++ {
		vc := decimal.NewFromInt(pick(rng, seedAmounts))
		fee := vc.Mul(decimal.NewFromInt(pick(rng, seedFeePermille))).Div(decimal.NewFromInt(1000)).Round(0)
		cash := vc.Add(fee)

		// Half paid, a quarter partial (30-70%), a quarter debt.
		paid := decimal.Zero
		switch roll := rng.Float64(); {
		case roll < 0.5:
			paid = cash
		case roll < 0.75:
			share := decimal.NewFromFloat(0.3 + rng.Float64()*0.4)
			paid = cash.Mul(share).Round(0)
		}

		req := &domain.CreateTransactionRequest{
			WalletID:       wallets[rng.Intn(len(wallets))].ID,
			ClientID:       clients[rng.Intn(len(clients))].ID,
			Type:           domain.TransferOut,
			VCAmount:       vc,
			CashAmount:     &cash,
			FeeAmount:      &fee,
			AmountPaid:     &paid,
			RecipientPhone: seedRecipients[rng.Intn(len(seedRecipients))],
			Description:    fmt.Sprintf("transfer #%d", i+1),
			Date:           today.AddDays(-rng.Intn(seedDaysBack)),
		}
		if _, err := s.ledger.Transactions.Create(ctx, req); err != nil {
			s.logger.Warn("seed: transfer skipped", zap.Int("index", i), zap.Error(err))
			continue
		}
		resp.Transactions++
	}

	for i := 0; i < seedFloats; i++ {
		typ := domain.Deposit
		if rng.Intn(2) == 1 {
			typ = domain.Withdraw
		}
		req := &domain.CreateTransactionRequest{
			WalletID:    wallets[rng.Intn(len(wallets))].ID,
			Type:        typ,
			VCAmount:    decimal.NewFromInt(pick(rng, seedFloatSizes)),
			Description: fmt.Sprintf("float %s #%d", typ, i+1),
			Date:        today.AddDays(-rng.Intn(30)),
		}
		if _, err := s.ledger.Transactions.Create(ctx, req); err != nil {
			s.logger.Warn("seed: float movement skipped", zap.Int("index", i), zap.Error(err))
			continue
		}
		resp.Transactions++
	}

	// One payment from the first client that still owes something.
	for _, c := range clients {
		unpaid, err := s.ledger.Transactions.GetUnpaidByClient(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if len(unpaid) == 0 {
			continue
		}
		alloc, err := s.ledger.Payments.Create(ctx, &domain.CreatePaymentRequest{
			ClientID: c.ID,
			Amount:   unpaid[0].AmountDue,
			Method:   domain.MethodCash,
			Notes:    "seed payment",
		})
		if err != nil {
			return nil, fmt.Errorf("seed payment: %w", err)
		}
		resp.Payments = len(alloc.Payments)
		break
	}

	resp.Message = fmt.Sprintf("seeded %d wallets, %d clients, %d transactions, %d payments",
		resp.Wallets, resp.Clients, resp.Transactions, resp.Payments)
	s.logger.Info("DEV: ledger seeded",
		zap.Int("wallets", resp.Wallets),
		zap.Int("clients", resp.Clients),
		zap.Int("transactions", resp.Transactions),
		zap.Int("payments", resp.Payments),
	)
	return resp, nil
}

func pick(rng *rand.Rand, values []int64) int64 {
	return values[rng.Intn(len(values))]
}
