package handler

import (
	"net/http"

	"github.com/boddenberg/agent-ledger-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Dev Tools Handlers
// ============================================================

func devSeedHandler(devSvc *service.DevToolsService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/dev/seed")
		defer span.End()

		resp, err := devSvc.Seed(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeSuccess(w, http.StatusCreated, resp.Message, resp)
	}
}
