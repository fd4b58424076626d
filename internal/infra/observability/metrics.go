package observability

import (
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
	ledgerWrites      *prometheus.CounterVec
	allocatedAmount   *prometheus.CounterVec
	recalculations    *prometheus.CounterVec
	lockTimeouts      prometheus.Counter
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_store_errors_total",
				Help: "Total errors returned by the ledger store.",
			},
			[]string{"operation"},
		),
		ledgerWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_writes_total",
				Help: "Records created, by collection.",
			},
			[]string{"collection"},
		),
		allocatedAmount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_payment_amount_total",
				Help: "Payment amounts received, split by allocation outcome.",
			},
			[]string{"outcome"},
		),
		recalculations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_recalculations_total",
				Help: "Full recomputations of cached totals.",
			},
			[]string{"kind"},
		),
		lockTimeouts: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_lock_timeouts_total",
				Help: "Writes rejected because a lock could not be acquired.",
			},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordOperationDuration records the duration of an operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

// IncrWrite counts a created record.
func (m *Metrics) IncrWrite(collection string) {
	m.ledgerWrites.WithLabelValues(collection).Inc()
}

// RecordAllocation adds the allocated and unallocated parts of a payment.
func (m *Metrics) RecordAllocation(allocated, unallocated float64) {
	m.allocatedAmount.WithLabelValues("allocated").Add(allocated)
	m.allocatedAmount.WithLabelValues("unallocated").Add(unallocated)
}

// IncrRecalculation counts a wallet balance or client debt recompute.
func (m *Metrics) IncrRecalculation(kind string) {
	m.recalculations.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrLockTimeout() {
	m.lockTimeouts.Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// Snapshot returns the ledger counters for GET /api/metrics/ledger.
func (m *Metrics) Snapshot() *domain.LedgerMetrics {
	storeErrors := float64(0)
	for _, op := range []string{"read", "write"} {
		storeErrors += getCounterValue(m.storeErrors, op)
	}

	recalcs := getCounterValue(m.recalculations, "wallet") +
		getCounterValue(m.recalculations, "client")

	hits := getCounterValue(m.cacheHits, "dashboard")
	misses := getCounterValue(m.cacheMisses, "dashboard")
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.LedgerMetrics{
		TransactionsCreated: getCounterValue(m.ledgerWrites, "transactions"),
		PaymentsCreated:     getCounterValue(m.ledgerWrites, "payments"),
		AmountAllocated:     getCounterValue(m.allocatedAmount, "allocated"),
		AmountUnallocated:   getCounterValue(m.allocatedAmount, "unallocated"),
		Recalculations:      recalcs,
		StoreErrors:         storeErrors,
		LockTimeouts:        readCounter(m.lockTimeouts),
		CacheHitRate:        hitRate,
		Period:              "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	return readCounter(cv.WithLabelValues(label))
}

func readCounter(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
