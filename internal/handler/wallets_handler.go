package handler

import (
	"net/http"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Wallets
// ============================================================

func listWalletsHandler(svc *service.WalletService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/wallets")
		defer span.End()

		wallets, err := svc.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", wallets)
	}
}

func createWalletHandler(svc *service.WalletService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/wallets")
		defer span.End()

		var req domain.CreateWalletRequest
		if !decodeBody(w, r, &req) {
			return
		}

		wallet, err := svc.Create(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusCreated, "wallet created", wallet)
	}
}

func getWalletHandler(svc *service.WalletService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/wallets/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("wallet.id", id))

		wallet, err := svc.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", wallet)
	}
}

func updateWalletHandler(svc *service.WalletService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /api/wallets/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("wallet.id", id))

		var req domain.UpdateWalletRequest
		if !decodeBody(w, r, &req) {
			return
		}

		wallet, err := svc.Update(ctx, id, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "wallet updated", wallet)
	}
}

func recalculateWalletHandler(svc *service.WalletService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/wallets/{id}/recalculate")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("wallet.id", id))

		wallet, err := svc.RecalculateBalance(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "balance recalculated", wallet)
	}
}
