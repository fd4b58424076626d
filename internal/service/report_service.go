package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var reportTracer = otel.Tracer("service/report")

const (
	defaultChartDays   = 30
	defaultTopClients  = 10
	activeClientWindow = 30
	maxChartDays       = 366
)

// ReportService aggregates the ledger into KPIs and time series. It never
// writes.
type ReportService struct {
	*base
	transactions *TransactionService
}

// snapshot is one consistent-enough read of the three collections the
// reports aggregate over.
type snapshot struct {
	wallets      []domain.Wallet
	clients      []domain.Client
	transactions []domain.Transaction
}

func (s *ReportService) load(ctx context.Context) (*snapshot, error) {
	var snap snapshot
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		w, err := s.store.Wallets().List(gCtx)
		if err != nil {
			return s.readErr("list wallets", err)
		}
		snap.wallets = w
		return nil
	})
	g.Go(func() error {
		c, err := s.store.Clients().List(gCtx)
		if err != nil {
			return s.readErr("list clients", err)
		}
		snap.clients = c
		return nil
	})
	g.Go(func() error {
		t, err := s.store.Transactions().List(gCtx)
		if err != nil {
			return s.readErr("list transactions", err)
		}
		snap.transactions = t
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ============================================================
// Dashboard
// ============================================================

// GetDashboardKPIs returns today / week / month profit, balances, debt
// and client activity. Results are cached per business day until the next
// ledger write.
func (s *ReportService) GetDashboardKPIs(ctx context.Context) (*domain.DashboardKPIs, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.GetDashboardKPIs")
	defer span.End()

	today := s.today()
	cacheKey := fmt.Sprintf("dashboard:%s", today)
	if s.reports != nil {
		if cached, ok := s.reports.Get(cacheKey); ok {
			s.metrics.IncrCacheHit(dashboardCacheName)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return cached.Clone(), nil
		}
		s.metrics.IncrCacheMiss(dashboardCacheName)
	}
	gen := s.reportsGeneration()

	start := time.Now()
	defer s.observe("dashboard", start)

	snap, err := s.load(ctx)
	if err != nil {
		s.logger.Error("dashboard: load failed", zap.Error(err))
		return nil, err
	}

	kpis := dashboard(snap, today)
	kpis.GeneratedAt = s.now().Format(time.RFC3339)

	if !s.cacheReport(cacheKey, gen, kpis.Clone()) && s.reports != nil {
		s.logger.Debug("dashboard: ledger written during load, not cached")
	}
	return kpis, nil
}

func dashboard(snap *snapshot, today domain.Date) *domain.DashboardKPIs {
	weekStart := today.WeekStart()
	monthStart := today.MonthStart()
	activeSince := today.AddDays(-activeClientWindow)

	k := &domain.DashboardKPIs{
		TodayProfit:        decimal.Zero,
		TodayVolume:        decimal.Zero,
		WeekProfit:         decimal.Zero,
		MonthProfit:        decimal.Zero,
		TotalWalletBalance: decimal.Zero,
		TotalDebt:          decimal.Zero,
		TotalWallets:       len(snap.wallets),
		TotalClients:       len(snap.clients),
	}

	active := make(map[string]struct{})
	var unpaid []domain.Transaction
	for _, t := range snap.transactions {
		if t.Date.Equal(today) {
			k.TodayProfit = k.TodayProfit.Add(t.FeeAmount)
			k.TodayVolume = k.TodayVolume.Add(t.VCAmount)
			k.TodayCount++
		}
		current := !t.Date.After(today)
		if current && !t.Date.Before(weekStart) {
			k.WeekProfit = k.WeekProfit.Add(t.FeeAmount)
			k.WeekCount++
		}
		if current && !t.Date.Before(monthStart) {
			k.MonthProfit = k.MonthProfit.Add(t.FeeAmount)
			k.MonthCount++
		}
		if t.ClientID != "" && !t.Date.Before(activeSince) {
			active[t.ClientID] = struct{}{}
		}
		if t.PaymentStatus.Unpaid() {
			unpaid = append(unpaid, t)
		}
	}
	k.ActiveClients = len(active)

	for _, w := range snap.wallets {
		k.TotalWalletBalance = k.TotalWalletBalance.Add(w.CurrentBalance)
	}
	for _, c := range snap.clients {
		k.TotalDebt = k.TotalDebt.Add(c.TotalDebt)
	}

	aging := agingReport(unpaid, today)
	for _, b := range aging.Buckets() {
		k.DebtAging = append(k.DebtAging, domain.AgingTotal{Label: b.Label, Total: b.Total, Count: b.Count})
	}
	return k
}

// ============================================================
// Time series
// ============================================================

// GetProfitChartData returns one point per day from today-days through
// today, zero-filled. days <= 0 means the default window.
func (s *ReportService) GetProfitChartData(ctx context.Context, days int) ([]domain.ChartPoint, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.GetProfitChartData")
	defer span.End()

	if days <= 0 {
		days = defaultChartDays
	}
	if days > maxChartDays {
		return nil, &domain.ErrValidation{Field: "days", Message: fmt.Sprintf("must be at most %d", maxChartDays)}
	}
	span.SetAttributes(attribute.Int("chart.days", days))

	today := s.today()
	from := today.AddDays(-days)

	txs, err := s.store.Transactions().Filter(ctx, domain.TransactionFilter{From: from, To: today}.Match)
	if err != nil {
		return nil, s.readErr("scan transactions", err)
	}

	points := make([]domain.ChartPoint, days+1)
	for i := range points {
		points[i] = domain.ChartPoint{Date: from.AddDays(i), Profit: decimal.Zero, Volume: decimal.Zero}
	}
	for _, t := range txs {
		i := t.Date.DaysSince(from)
		if i < 0 || i >= len(points) {
			continue
		}
		points[i].Profit = points[i].Profit.Add(t.FeeAmount)
		points[i].Volume = points[i].Volume.Add(t.VCAmount)
		points[i].Count++
	}
	return points, nil
}

// GetMonthlySummary returns all twelve months of year, zero-filled.
func (s *ReportService) GetMonthlySummary(ctx context.Context, year int) ([]domain.MonthlySummary, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.GetMonthlySummary")
	defer span.End()

	if year == 0 {
		year = s.today().Time().Year()
	}
	if year < 2000 || year > 9999 {
		return nil, &domain.ErrValidation{Field: "year", Message: "must be a four-digit year"}
	}

	from := domain.NewDate(year, time.January, 1)
	to := domain.NewDate(year, time.December, 31)

	txs, err := s.store.Transactions().Filter(ctx, domain.TransactionFilter{From: from, To: to}.Match)
	if err != nil {
		return nil, s.readErr("scan transactions", err)
	}
	payments, err := s.store.Payments().Filter(ctx, domain.PaymentFilter{From: from, To: to}.Match)
	if err != nil {
		return nil, s.readErr("scan payments", err)
	}

	months := make([]domain.MonthlySummary, 12)
	for i := range months {
		months[i] = domain.MonthlySummary{
			Month:            domain.NewDate(year, time.Month(i+1), 1).MonthKey(),
			Profit:           decimal.Zero,
			Volume:           decimal.Zero,
			PaymentsReceived: decimal.Zero,
		}
	}
	for _, t := range txs {
		m := &months[t.Date.Time().Month()-1]
		m.Profit = m.Profit.Add(t.FeeAmount)
		m.Volume = m.Volume.Add(t.VCAmount)
		m.Count++
	}
	for _, p := range payments {
		m := &months[p.Date.Time().Month()-1]
		m.PaymentsReceived = m.PaymentsReceived.Add(p.Amount)
	}
	return months, nil
}

// ============================================================
// Rankings
// ============================================================

// GetTopClients ranks every client by vc_amount volume, highest first.
// Clients without transactions are included with zero volume.
func (s *ReportService) GetTopClients(ctx context.Context, limit int) ([]domain.TopClient, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.GetTopClients")
	defer span.End()

	if limit <= 0 {
		limit = defaultTopClients
	}

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	byClient := make(map[string]*domain.TopClient, len(snap.clients))
	ranked := make([]*domain.TopClient, 0, len(snap.clients))
	for _, c := range snap.clients {
		tc := &domain.TopClient{
			ClientID:   c.ID,
			ClientName: c.Name,
			Volume:     decimal.Zero,
			Profit:     decimal.Zero,
			TotalDebt:  c.TotalDebt,
		}
		byClient[c.ID] = tc
		ranked = append(ranked, tc)
	}
	for _, t := range snap.transactions {
		tc, ok := byClient[t.ClientID]
		if !ok {
			continue
		}
		tc.Volume = tc.Volume.Add(t.VCAmount)
		tc.Profit = tc.Profit.Add(t.FeeAmount)
		tc.TransactionCount++
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Volume.GreaterThan(ranked[j].Volume)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]domain.TopClient, len(ranked))
	for i, tc := range ranked {
		out[i] = *tc
	}
	return out, nil
}

// GetVolumeByType breaks down transactions in [from, to] by type. All four
// types are always present.
func (s *ReportService) GetVolumeByType(ctx context.Context, from, to domain.Date) ([]domain.VolumeByType, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.GetVolumeByType")
	defer span.End()

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return nil, &domain.ErrValidation{Field: "from", Message: "must not be after to"}
	}

	txs, err := s.store.Transactions().Filter(ctx, domain.TransactionFilter{From: from, To: to}.Match)
	if err != nil {
		return nil, s.readErr("scan transactions", err)
	}

	index := make(map[domain.TransactionType]int, len(domain.TransactionTypes))
	out := make([]domain.VolumeByType, len(domain.TransactionTypes))
	for i, tt := range domain.TransactionTypes {
		index[tt] = i
		out[i] = domain.VolumeByType{Type: tt, Volume: decimal.Zero, Profit: decimal.Zero}
	}
	for _, t := range txs {
		i, ok := index[t.Type]
		if !ok {
			continue
		}
		out[i].Count++
		out[i].Volume = out[i].Volume.Add(t.VCAmount)
		out[i].Profit = out[i].Profit.Add(t.FeeAmount)
	}
	return out, nil
}

// ============================================================
// Delegates
// ============================================================

// GetDebtAgingReport is exposed here so the HTTP layer can serve every
// report from one service.
func (s *ReportService) GetDebtAgingReport(ctx context.Context) (*domain.DebtAgingReport, error) {
	return s.transactions.GetDebtAgingReport(ctx)
}

func (s *ReportService) GetProfitReport(ctx context.Context, from, to domain.Date) (*domain.ProfitReport, error) {
	return s.transactions.GetProfitReport(ctx, from, to)
}
