package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/infra/observability"
	"github.com/boddenberg/agent-ledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Options toggles optional parts of the router.
type Options struct {
	AllowedOrigins []string
	DevTools       bool
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(ledger *service.Ledger, authSvc *service.AuthService, metrics *observability.Metrics, logger *zap.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(ledger, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authLoginHandler(authSvc, logger))
		r.Post("/auth/logout", authLogoutHandler())

		r.Group(func(r chi.Router) {
			r.Use(SessionMiddleware(authSvc, logger))

			// Wallets
			r.Get("/wallets", listWalletsHandler(ledger.Wallets, logger))
			r.Post("/wallets", createWalletHandler(ledger.Wallets, logger))
			r.Get("/wallets/{id}", getWalletHandler(ledger.Wallets, logger))
			r.Put("/wallets/{id}", updateWalletHandler(ledger.Wallets, logger))
			r.Post("/wallets/{id}/recalculate", recalculateWalletHandler(ledger.Wallets, logger))

			// Clients
			r.Get("/clients", listClientsHandler(ledger.Clients, logger))
			r.Post("/clients", createClientHandler(ledger.Clients, logger))
			r.Get("/clients/{id}", getClientHandler(ledger.Clients, logger))
			r.Put("/clients/{id}", updateClientHandler(ledger.Clients, logger))
			r.Get("/clients/{id}/phones", listClientPhonesHandler(ledger.Clients, logger))
			r.Post("/clients/{id}/phones", addClientPhoneHandler(ledger.Clients, logger))
			r.Get("/clients/{id}/statement", clientStatementHandler(ledger.Clients, logger))
			r.Post("/clients/{id}/recalculate", recalculateClientHandler(ledger.Clients, logger))

			// Transactions
			r.Get("/transactions", listTransactionsHandler(ledger.Transactions, logger))
			r.Post("/transactions", createTransactionHandler(ledger.Transactions, logger))
			r.Get("/transactions/unpaid/{clientId}", unpaidByClientHandler(ledger.Transactions, logger))
			r.Get("/transactions/{id}", getTransactionHandler(ledger.Transactions, logger))
			r.Delete("/transactions/{id}", deleteTransactionHandler(ledger.Transactions, logger))
			r.Get("/transactions/{id}/attachments", listAttachmentsHandler(ledger.Attachments, logger))
			r.Post("/attachments", createAttachmentHandler(ledger.Attachments, logger))

			// Payments
			r.Get("/payments", listPaymentsHandler(ledger.Payments, logger))
			r.Post("/payments", createPaymentHandler(ledger.Payments, logger))

			// Dashboard & reports
			r.Get("/dashboard", dashboardHandler(ledger.Reports, logger))
			r.Get("/reports/profit", profitReportHandler(ledger.Reports, logger))
			r.Get("/reports/debt-aging", debtAgingHandler(ledger.Reports, logger))
			r.Get("/reports/chart", profitChartHandler(ledger.Reports, logger))
			r.Get("/reports/top-clients", topClientsHandler(ledger.Reports, logger))
			r.Get("/reports/volume", volumeByTypeHandler(ledger.Reports, logger))
			r.Get("/reports/monthly", monthlySummaryHandler(ledger.Reports, logger))

			r.Get("/metrics/ledger", ledgerMetricsHandler(metrics))

			if opts.DevTools {
				r.Post("/dev/seed", devSeedHandler(ledger.DevTools, logger))
			}
		})
	})

	return r
}

// ============================================================
// Health
// ============================================================

func healthzHandler(ledger *service.Ledger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC().Format(time.RFC3339)

		start := time.Now()
		status := "healthy"
		if err := ledger.Ping(r.Context()); err != nil {
			logger.Warn("healthz: store ping failed", zap.Error(err))
			status = "unhealthy"
		}

		health := domain.HealthStatus{
			Status: status,
			Services: []domain.ServiceHealth{
				{Name: "ledger-api", Status: "healthy", LastChecked: now},
				{Name: "store", Status: status, LatencyMs: time.Since(start).Milliseconds(), LastChecked: now},
			},
		}

		code := http.StatusOK
		if status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, health)
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
