package handler

import (
	"net/http"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Payments
// ============================================================

func listPaymentsHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/payments")
		defer span.End()

		from, to, err := queryDateRange(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		payments, err := svc.List(ctx, domain.PaymentFilter{
			ClientID: r.URL.Query().Get("client_id"),
			From:     from,
			To:       to,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", payments)
	}
}

// createPaymentHandler records a client payment and spreads it over the
// client's unpaid transactions, oldest first.
func createPaymentHandler(svc *service.PaymentService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/payments")
		defer span.End()

		var req domain.CreatePaymentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		span.SetAttributes(attribute.String("client.id", req.ClientID))

		result, err := svc.Create(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		msg := "payment recorded"
		if result.Unallocated.IsPositive() {
			msg = "payment recorded; " + result.Unallocated.String() + " exceeded the outstanding debt and was not allocated"
		}
		writeSuccess(w, http.StatusCreated, msg, result)
	}
}
