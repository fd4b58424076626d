package domain

import "github.com/shopspring/decimal"

// ============================================================
// Debt aging
// ============================================================

// Aging bucket labels, oldest last.
const (
	Aging0To7   = "0-7"
	Aging8To30  = "8-30"
	Aging31To60 = "31-60"
	AgingOver60 = "60+"
)

// AgingLabel returns the bucket for a debt that is days old. Boundaries
// are inclusive on the upper end: 7 is "0-7", 30 is "8-30", 60 is "31-60".
func AgingLabel(days int) string {
	switch {
	case days <= 7:
		return Aging0To7
	case days <= 30:
		return Aging8To30
	case days <= 60:
		return Aging31To60
	default:
		return AgingOver60
	}
}

// DebtAgingBucket accumulates unpaid transactions of similar age.
type DebtAgingBucket struct {
	Label        string          `json:"label"`
	Transactions []Transaction   `json:"transactions"`
	Total        decimal.Decimal `json:"total"`
	Count        int             `json:"count"`
}

// DebtAgingReport is returned by GET /api/reports/debt-aging.
type DebtAgingReport struct {
	Days0To7   DebtAgingBucket `json:"0-7"`
	Days8To30  DebtAgingBucket `json:"8-30"`
	Days31To60 DebtAgingBucket `json:"31-60"`
	Over60     DebtAgingBucket `json:"60+"`
	TotalDebt  decimal.Decimal `json:"total_debt"`
	TotalCount int             `json:"total_count"`
}

// NewDebtAgingReport returns an empty report with labelled buckets.
func NewDebtAgingReport() *DebtAgingReport {
	empty := func(label string) DebtAgingBucket {
		return DebtAgingBucket{Label: label, Transactions: []Transaction{}}
	}
	return &DebtAgingReport{
		Days0To7:   empty(Aging0To7),
		Days8To30:  empty(Aging8To30),
		Days31To60: empty(Aging31To60),
		Over60:     empty(AgingOver60),
	}
}

// Bucket returns the bucket with the given label, or nil.
func (r *DebtAgingReport) Bucket(label string) *DebtAgingBucket {
	switch label {
	case Aging0To7:
		return &r.Days0To7
	case Aging8To30:
		return &r.Days8To30
	case Aging31To60:
		return &r.Days31To60
	case AgingOver60:
		return &r.Over60
	}
	return nil
}

// Buckets returns the four buckets from youngest to oldest.
func (r *DebtAgingReport) Buckets() []*DebtAgingBucket {
	return []*DebtAgingBucket{&r.Days0To7, &r.Days8To30, &r.Days31To60, &r.Over60}
}

// AgingTotal is the per-bucket summary embedded in the dashboard.
type AgingTotal struct {
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// ============================================================
// Profit
// ============================================================

// ProfitPoint is the fee sum for one period key (date, week start or month).
type ProfitPoint struct {
	Period string          `json:"period"`
	Profit decimal.Decimal `json:"profit"`
	Count  int             `json:"count"`
}

// ProfitReport is returned by GET /api/reports/profit.
type ProfitReport struct {
	From             Date            `json:"from"`
	To               Date            `json:"to"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	TotalVolume      decimal.Decimal `json:"total_volume"`
	TransactionCount int             `json:"transaction_count"`
	Daily            []ProfitPoint   `json:"daily"`
	Weekly           []ProfitPoint   `json:"weekly"`
	Monthly          []ProfitPoint   `json:"monthly"`
}

// ============================================================
// Dashboard & charts
// ============================================================

// DashboardKPIs is returned by GET /api/dashboard.
type DashboardKPIs struct {
	TodayProfit        decimal.Decimal `json:"today_profit"`
	TodayCount         int             `json:"today_count"`
	TodayVolume        decimal.Decimal `json:"today_volume"`
	WeekProfit         decimal.Decimal `json:"week_profit"`
	WeekCount          int             `json:"week_count"`
	MonthProfit        decimal.Decimal `json:"month_profit"`
	MonthCount         int             `json:"month_count"`
	TotalWalletBalance decimal.Decimal `json:"total_wallet_balance"`
	TotalWallets       int             `json:"total_wallets"`
	TotalDebt          decimal.Decimal `json:"total_debt"`
	TotalClients       int             `json:"total_clients"`
	ActiveClients      int             `json:"active_clients"`
	DebtAging          []AgingTotal    `json:"debt_aging"`
	GeneratedAt        string          `json:"generated_at"`
}

// Clone returns a copy that shares no memory with k.
func (k *DashboardKPIs) Clone() *DashboardKPIs {
	if k == nil {
		return nil
	}
	c := *k
	c.DebtAging = append([]AgingTotal(nil), k.DebtAging...)
	return &c
}

// ChartPoint is one day of GET /api/reports/chart.
type ChartPoint struct {
	Date   Date            `json:"date"`
	Profit decimal.Decimal `json:"profit"`
	Volume decimal.Decimal `json:"volume"`
	Count  int             `json:"count"`
}

// TopClient is one row of GET /api/reports/top-clients.
type TopClient struct {
	ClientID         string          `json:"client_id"`
	ClientName       string          `json:"client_name"`
	Volume           decimal.Decimal `json:"volume"`
	Profit           decimal.Decimal `json:"profit"`
	TransactionCount int             `json:"transaction_count"`
	TotalDebt        decimal.Decimal `json:"total_debt"`
}

// VolumeByType is one row of GET /api/reports/volume.
type VolumeByType struct {
	Type   TransactionType `json:"transaction_type"`
	Count  int             `json:"count"`
	Volume decimal.Decimal `json:"volume"`
	Profit decimal.Decimal `json:"profit"`
}

// MonthlySummary is one month of GET /api/reports/monthly.
type MonthlySummary struct {
	Month            string          `json:"month"`
	Profit           decimal.Decimal `json:"profit"`
	Volume           decimal.Decimal `json:"volume"`
	Count            int             `json:"count"`
	PaymentsReceived decimal.Decimal `json:"payments_received"`
}

// ============================================================
// Statement
// ============================================================

// ClientStatement is a client's account activity over a date range.
// Debits are the cash amounts owed for transactions, credits the payments
// received.
type ClientStatement struct {
	Client         Client          `json:"client"`
	From           Date            `json:"from"`
	To             Date            `json:"to"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Transactions   []Transaction   `json:"transactions"`
	Payments       []Payment       `json:"payments"`
	TotalDebits    decimal.Decimal `json:"total_debits"`
	TotalCredits   decimal.Decimal `json:"total_credits"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
}
