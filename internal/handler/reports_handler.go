package handler

import (
	"net/http"

	"github.com/boddenberg/agent-ledger-go/internal/infra/observability"
	"github.com/boddenberg/agent-ledger-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Dashboard & Reports
// ============================================================

func dashboardHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/dashboard")
		defer span.End()

		kpis, err := svc.GetDashboardKPIs(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", kpis)
	}
}

func profitReportHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/reports/profit")
		defer span.End()

		from, to, err := queryDateRange(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		report, err := svc.GetProfitReport(ctx, from, to)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", report)
	}
}

func debtAgingHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/reports/debt-aging")
		defer span.End()

		report, err := svc.GetDebtAgingReport(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", report)
	}
}

func profitChartHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/reports/chart")
		defer span.End()

		days, err := queryInt(r, "days")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		points, err := svc.GetProfitChartData(ctx, days)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", points)
	}
}

func topClientsHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/reports/top-clients")
		defer span.End()

		limit, err := queryInt(r, "limit")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		top, err := svc.GetTopClients(ctx, limit)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", top)
	}
}

func volumeByTypeHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/reports/volume")
		defer span.End()

		from, to, err := queryDateRange(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		volume, err := svc.GetVolumeByType(ctx, from, to)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", volume)
	}
}

func monthlySummaryHandler(svc *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/reports/monthly")
		defer span.End()

		year, err := queryInt(r, "year")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		months, err := svc.GetMonthlySummary(ctx, year)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeSuccess(w, http.StatusOK, "", months)
	}
}

func ledgerMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, "", metrics.Snapshot())
	}
}
