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
// Clients
// ============================================================

func listClientsHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/clients")
		defer span.End()

		clients, err := svc.List(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", clients)
	}
}

func createClientHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/clients")
		defer span.End()

		var req domain.CreateClientRequest
		if !decodeBody(w, r, &req) {
			return
		}

		client, err := svc.Create(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusCreated, "client created", client)
	}
}

func getClientHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/clients/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("client.id", id))

		client, err := svc.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", client)
	}
}

func updateClientHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /api/clients/{id}")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("client.id", id))

		var req domain.UpdateClientRequest
		if !decodeBody(w, r, &req) {
			return
		}

		client, err := svc.Update(ctx, id, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "client updated", client)
	}
}

func listClientPhonesHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/clients/{id}/phones")
		defer span.End()

		phones, err := svc.ListPhones(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", phones)
	}
}

func addClientPhoneHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/clients/{id}/phones")
		defer span.End()

		var req domain.AddPhoneRequest
		if !decodeBody(w, r, &req) {
			return
		}

		phone, err := svc.AddPhone(ctx, chi.URLParam(r, "id"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusCreated, "phone added", phone)
	}
}

func clientStatementHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/clients/{id}/statement")
		defer span.End()

		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("client.id", id))

		from, to, err := queryDateRange(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		statement, err := svc.GetStatement(ctx, id, from, to)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", statement)
	}
}

func recalculateClientHandler(svc *service.ClientService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/clients/{id}/recalculate")
		defer span.End()

		id := chi.URLParam(r, "id")
		if _, err := svc.UpdateTotalDebt(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		client, err := svc.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "debt recalculated", client)
	}
}
