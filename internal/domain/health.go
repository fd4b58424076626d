package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
}

// LedgerMetrics is returned by GET /api/metrics/ledger. Counters are
// cumulative since process start.
type LedgerMetrics struct {
	TransactionsCreated float64 `json:"transactions_created"`
	PaymentsCreated     float64 `json:"payments_created"`
	AmountAllocated     float64 `json:"amount_allocated"`
	AmountUnallocated   float64 `json:"amount_unallocated"`
	Recalculations      float64 `json:"recalculations"`
	StoreErrors         float64 `json:"store_errors"`
	LockTimeouts        float64 `json:"lock_timeouts"`
	CacheHitRate        float64 `json:"cache_hit_rate"`
	Period              string  `json:"period"`
}
