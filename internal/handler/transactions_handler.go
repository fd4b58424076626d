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
// Transactions
// ============================================================

func listTransactionsHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/transactions")
		defer span.End()

		from, to, err := queryDateRange(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		q := r.URL.Query()
		filter := domain.TransactionFilter{
			From:     from,
			To:       to,
			WalletID: q.Get("wallet_id"),
			ClientID: q.Get("client_id"),
			Status:   domain.PaymentStatus(q.Get("payment_status")),
			Type:     domain.TransactionType(q.Get("transaction_type")),
		}

		txs, err := svc.List(ctx, filter)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", txs)
	}
}

func createTransactionHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/transactions")
		defer span.End()

		var req domain.CreateTransactionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		span.SetAttributes(
			attribute.String("wallet.id", req.WalletID),
			attribute.String("transaction.type", string(req.Type)),
		)

		tx, err := svc.Create(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusCreated, "transaction created", tx)
	}
}

func getTransactionHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/transactions/{id}")
		defer span.End()

		tx, err := svc.Get(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", tx)
	}
}

func deleteTransactionHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /api/transactions/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("transaction.id", id))

		if err := svc.Delete(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "transaction deleted", map[string]string{"id": id})
	}
}

func unpaidByClientHandler(svc *service.TransactionService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/transactions/unpaid/{clientId}")
		defer span.End()

		txs, err := svc.GetUnpaidByClient(ctx, chi.URLParam(r, "clientId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", txs)
	}
}

// ============================================================
// Attachments
// ============================================================

func createAttachmentHandler(svc *service.AttachmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/attachments")
		defer span.End()

		var req domain.CreateAttachmentRequest
		if !decodeBody(w, r, &req) {
			return
		}

		att, err := svc.Create(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusCreated, "attachment recorded", att)
	}
}

func listAttachmentsHandler(svc *service.AttachmentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/transactions/{id}/attachments")
		defer span.End()

		atts, err := svc.ListByTransaction(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", atts)
	}
}
