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

var walletTracer = otel.Tracer("service/wallet")

// WalletService manages agent wallets and keeps current_balance in step
// with the transaction log.
type WalletService struct {
	*base
}

// ============================================================
// CRUD
// ============================================================

func (s *WalletService) Create(ctx context.Context, req *domain.CreateWalletRequest) (*domain.Wallet, error) {
	ctx, span := walletTracer.Start(ctx, "WalletService.Create")
	defer span.End()

	req.PhoneNumber = NormalizePhone(req.PhoneNumber)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := requireNonNegative("initial_balance", req.InitialBalance); err != nil {
		return nil, err
	}

	now := s.now()
	w := domain.Wallet{
		ID:             uuid.New().String(),
		PhoneNumber:    req.PhoneNumber,
		Name:           req.Name,
		InitialBalance: req.InitialBalance,
		CurrentBalance: req.InitialBalance,
		IsActive:       true,
		Notes:          strings.TrimSpace(req.Notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := s.store.Wallets().Insert(ctx, w)
	if err != nil {
		return nil, s.writeErr("insert wallet", err)
	}
	s.metrics.IncrWrite("wallets")
	s.invalidateReports()

	s.logger.Info("wallet created",
		zap.String("wallet_id", created.ID),
		zap.String("phone", created.PhoneNumber),
		zap.String("initial_balance", created.InitialBalance.String()),
	)
	return created, nil
}

// Update edits the descriptive fields; balances cannot be set directly.
func (s *WalletService) Update(ctx context.Context, id string, req *domain.UpdateWalletRequest) (*domain.Wallet, error) {
	ctx, span := walletTracer.Start(ctx, "WalletService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("wallet.id", id))

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.store.Wallets().Update(ctx, id, func(w *domain.Wallet) {
		if req.Name != nil {
			w.Name = *req.Name
		}
		if req.IsActive != nil {
			w.IsActive = *req.IsActive
		}
		if req.Notes != nil {
			w.Notes = strings.TrimSpace(*req.Notes)
		}
		w.UpdatedAt = now
	})
	if err != nil {
		return nil, s.writeErr("update wallet", err)
	}
	if updated == nil {
		return nil, &domain.ErrNotFound{Resource: "wallet", ID: id}
	}
	return updated, nil
}

func (s *WalletService) Get(ctx context.Context, id string) (*domain.Wallet, error) {
	ctx, span := walletTracer.Start(ctx, "WalletService.Get")
	defer span.End()

	w, err := s.store.Wallets().Get(ctx, id)
	if err != nil {
		return nil, s.readErr("get wallet", err)
	}
	if w == nil {
		return nil, &domain.ErrNotFound{Resource: "wallet", ID: id}
	}
	return w, nil
}

// List returns every wallet, newest first.
func (s *WalletService) List(ctx context.Context) ([]domain.Wallet, error) {
	ctx, span := walletTracer.Start(ctx, "WalletService.List")
	defer span.End()

	wallets, err := s.store.Wallets().List(ctx)
	if err != nil {
		return nil, s.readErr("list wallets", err)
	}
	sort.SliceStable(wallets, func(i, j int) bool {
		return wallets[i].CreatedAt.After(wallets[j].CreatedAt)
	})
	return wallets, nil
}

// ============================================================
// Balance projection
// ============================================================

// CalculateBalance derives the wallet balance from its initial balance and
// the signed vc_amount of every transaction booked against it. Nothing is
// written.
func (s *WalletService) CalculateBalance(ctx context.Context, id string) (decimal.Decimal, error) {
	ctx, span := walletTracer.Start(ctx, "WalletService.CalculateBalance")
	defer span.End()

	w, err := s.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return s.balanceOf(ctx, w)
}

func (s *WalletService) balanceOf(ctx context.Context, w *domain.Wallet) (decimal.Decimal, error) {
	txs, err := s.store.Transactions().Filter(ctx, func(t domain.Transaction) bool {
		return t.WalletID == w.ID
	})
	if err != nil {
		return decimal.Zero, s.readErr("scan wallet transactions", err)
	}

	balance := w.InitialBalance
	for _, t := range txs {
		balance = balance.Add(t.SignedVCAmount())
	}
	return balance, nil
}

// RecalculateBalance recomputes and persists current_balance under the
// wallet lock. Running it twice in a row stores the same value.
func (s *WalletService) RecalculateBalance(ctx context.Context, id string) (*domain.Wallet, error) {
	ctx, span := walletTracer.Start(ctx, "WalletService.RecalculateBalance")
	defer span.End()
	span.SetAttributes(attribute.String("wallet.id", id))

	unlock, err := s.lock(ctx, lock.WalletKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	w, err := s.recalculateBalance(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidateReports()
	return w, nil
}

// recalculateBalance expects the caller to hold the wallet lock.
func (s *WalletService) recalculateBalance(ctx context.Context, id string) (*domain.Wallet, error) {
	start := time.Now()
	defer s.observe("recalculate_balance", start)

	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	balance, err := s.balanceOf(ctx, w)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.store.Wallets().Update(ctx, id, func(w *domain.Wallet) {
		w.CurrentBalance = balance
		w.UpdatedAt = now
	})
	if err != nil {
		return nil, s.writeErr("persist wallet balance", err)
	}
	if updated == nil {
		return nil, &domain.ErrNotFound{Resource: "wallet", ID: id}
	}
	s.metrics.IncrRecalculation("wallet")

	s.logger.Debug("wallet balance recalculated",
		zap.String("wallet_id", id),
		zap.String("current_balance", balance.String()),
	)
	return updated, nil
}

// RecalculateAll heals every wallet. Wallets are processed one at a time so
// each holds only its own lock.
func (s *WalletService) RecalculateAll(ctx context.Context) ([]domain.Wallet, error) {
	ctx, span := walletTracer.Start(ctx, "WalletService.RecalculateAll")
	defer span.End()

	wallets, err := s.store.Wallets().List(ctx)
	if err != nil {
		return nil, s.readErr("list wallets", err)
	}

	out := make([]domain.Wallet, 0, len(wallets))
	for _, w := range wallets {
		updated, err := s.RecalculateBalance(ctx, w.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, *updated)
	}
	s.logger.Info("all wallet balances recalculated", zap.Int("count", len(out)))
	return out, nil
}

// TotalBalance sums current_balance over all wallets.
func (s *WalletService) TotalBalance(ctx context.Context) (decimal.Decimal, error) {
	ctx, span := walletTracer.Start(ctx, "WalletService.TotalBalance")
	defer span.End()

	wallets, err := s.store.Wallets().List(ctx)
	if err != nil {
		return decimal.Zero, s.readErr("list wallets", err)
	}
	total := decimal.Zero
	for _, w := range wallets {
		total = total.Add(w.CurrentBalance)
	}
	return total, nil
}
