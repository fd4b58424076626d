// Package service provides the business logic layer (use cases).
//
// The ledger keeps three derived values consistent with the transaction
// log: wallet current_balance, transaction payment state and client
// total_debt. Cached totals are always fully recomputed from the log,
// never patched incrementally, so any missed update heals on the next
// write to the same wallet or client.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/infra/observability"
	"github.com/boddenberg/agent-ledger-go/internal/port"

	"go.uber.org/zap"
)

// Deps are the collaborators shared by every ledger service.
type Deps struct {
	Store   port.LedgerStore
	Locker  port.Locker
	Cache   port.Cache[*domain.DashboardKPIs]
	Metrics *observability.Metrics
	Logger  *zap.Logger

	// Clock defaults to time.Now; Location (the business timezone used to
	// decide what "today" is) defaults to UTC.
	Clock    func() time.Time
	Location *time.Location
}

// Ledger bundles the ledger services wired together.
type Ledger struct {
	Wallets      *WalletService
	Clients      *ClientService
	Transactions *TransactionService
	Payments     *PaymentService
	Reports      *ReportService
	Attachments  *AttachmentService
	DevTools     *DevToolsService

	store port.LedgerStore
}

// NewLedger wires the services on top of deps.
func NewLedger(deps Deps) *Ledger {
	b := newBase(deps)

	wallets := &WalletService{base: b}
	clients := &ClientService{base: b}
	transactions := &TransactionService{base: b, wallets: wallets, clients: clients}
	payments := &PaymentService{base: b, transactions: transactions, clients: clients}
	reports := &ReportService{base: b, transactions: transactions}
	attachments := &AttachmentService{base: b}

	l := &Ledger{
		Wallets:      wallets,
		Clients:      clients,
		Transactions: transactions,
		Payments:     payments,
		Reports:      reports,
		Attachments:  attachments,
		store:        deps.Store,
	}
	l.DevTools = &DevToolsService{base: b, ledger: l}
	return l
}

// Ping checks the persistence backend.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}

// ============================================================
// Shared plumbing
// ============================================================

const dashboardCacheName = "dashboard"

type base struct {
	store   port.LedgerStore
	locker  port.Locker
	reports port.Cache[*domain.DashboardKPIs]
	metrics *observability.Metrics
	logger  *zap.Logger
	clock   func() time.Time
	loc     *time.Location

	// reportsMu orders cache fills against invalidations; reportsGen
	// counts invalidations so a fill computed before a write is dropped.
	reportsMu  sync.Mutex
	reportsGen uint64
}

func newBase(d Deps) *base {
	b := &base{
		store:   d.Store,
		locker:  d.Locker,
		reports: d.Cache,
		metrics: d.Metrics,
		logger:  d.Logger,
		clock:   d.Clock,
		loc:     d.Location,
	}
	if b.clock == nil {
		b.clock = time.Now
	}
	if b.loc == nil {
		b.loc = time.UTC
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.metrics == nil {
		b.metrics = observability.NewMetrics()
	}
	return b
}

func (b *base) now() time.Time { return b.clock().UTC() }

// today is the current business date in the configured timezone.
func (b *base) today() domain.Date { return domain.DateOf(b.clock(), b.loc) }

// lock takes the serialisation keys for a write. A nil locker means the
// caller accepted single-writer semantics.
func (b *base) lock(ctx context.Context, keys ...string) (func(), error) {
	if b.locker == nil {
		return func() {}, nil
	}
	unlock, err := b.locker.Lock(ctx, keys...)
	if err != nil {
		b.metrics.IncrLockTimeout()
		b.logger.Warn("lock: acquire failed", zap.Strings("keys", keys), zap.Error(err))
		return nil, err
	}
	return unlock, nil
}

// invalidateReports drops cached dashboards after a ledger write.
func (b *base) invalidateReports() {
	if b.reports == nil {
		return
	}
	b.reportsMu.Lock()
	defer b.reportsMu.Unlock()
	b.reportsGen++
	b.reports.Delete("")
}

// reportsGeneration is read before loading the data a cached report is
// built from.
func (b *base) reportsGeneration() uint64 {
	b.reportsMu.Lock()
	defer b.reportsMu.Unlock()
	return b.reportsGen
}

// cacheReport stores kpis unless a write invalidated the cache after gen
// was read.
func (b *base) cacheReport(key string, gen uint64, kpis *domain.DashboardKPIs) bool {
	if b.reports == nil {
		return false
	}
	b.reportsMu.Lock()
	defer b.reportsMu.Unlock()
	if gen != b.reportsGen {
		return false
	}
	b.reports.Set(key, kpis)
	return true
}

// readErr and writeErr count and wrap store failures.
func (b *base) readErr(what string, err error) error {
	b.metrics.IncrStoreError("read")
	return fmt.Errorf("%s: %w", what, err)
}

func (b *base) writeErr(what string, err error) error {
	b.metrics.IncrStoreError("write")
	return fmt.Errorf("%s: %w", what, err)
}

func (b *base) observe(operation string, start time.Time) {
	b.metrics.RecordOperationDuration(operation, time.Since(start))
}
