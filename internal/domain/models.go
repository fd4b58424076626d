// Package domain defines the core ledger entities for the mobile-money
// agent: wallets, clients, transactions and the payments allocated to them.
// These models are independent of the persistence backend.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is implemented by every persisted entity. The id is an opaque
// unique string.
type Record interface {
	RecordID() string
}

func (w Wallet) RecordID() string      { return w.ID }
func (c Client) RecordID() string      { return c.ID }
func (p ClientPhone) RecordID() string { return p.ID }
func (t Transaction) RecordID() string { return t.ID }
func (p Payment) RecordID() string     { return p.ID }
func (a Attachment) RecordID() string  { return a.ID }

// ============================================================
// Enumerations
// ============================================================

// TransactionType is the direction of an e-money movement.
type TransactionType string

const (
	TransferOut TransactionType = "TRANSFER_OUT"
	TransferIn  TransactionType = "TRANSFER_IN"
	Deposit     TransactionType = "DEPOSIT"
	Withdraw    TransactionType = "WITHDRAW"
)

// TransactionTypes lists every recognised type in display order.
var TransactionTypes = []TransactionType{TransferOut, TransferIn, Deposit, Withdraw}

// Valid reports whether t is one of the four recognised types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransferOut, TransferIn, Deposit, Withdraw:
		return true
	}
	return false
}

// IsFloat reports whether t is one of the agent's own float movements
// (DEPOSIT / WITHDRAW), which never carry client debt or a fee.
func (t TransactionType) IsFloat() bool {
	return t == Deposit || t == Withdraw
}

// Sign is the direction vc_amount moves the wallet balance: +1 for
// TRANSFER_IN and DEPOSIT, -1 for TRANSFER_OUT and WITHDRAW.
func (t TransactionType) Sign() int {
	switch t {
	case TransferIn, Deposit:
		return 1
	case TransferOut, Withdraw:
		return -1
	}
	return 0
}

// PaymentStatus tracks how much of a transaction's cash has been settled.
type PaymentStatus string

const (
	StatusPaid    PaymentStatus = "paid"
	StatusPartial PaymentStatus = "partial"
	StatusDebt    PaymentStatus = "debt"
)

// Unpaid reports whether the status still carries an amount due.
func (s PaymentStatus) Unpaid() bool {
	return s == StatusDebt || s == StatusPartial
}

// PaymentStatusFor is the single source of truth for payment status:
// paid when amountPaid covers cashAmount, partial when something was paid,
// debt otherwise.
func PaymentStatusFor(cashAmount, amountPaid decimal.Decimal) PaymentStatus {
	switch {
	case amountPaid.GreaterThanOrEqual(cashAmount):
		return StatusPaid
	case amountPaid.IsPositive():
		return StatusPartial
	default:
		return StatusDebt
	}
}

// AmountDueFor returns max(0, cashAmount - amountPaid).
func AmountDueFor(cashAmount, amountPaid decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, cashAmount.Sub(amountPaid))
}

// PaymentMethod is how a client settled a payment.
type PaymentMethod string

const (
	MethodCash       PaymentMethod = "cash"
	MethodVCTransfer PaymentMethod = "vc_transfer"
	MethodBank       PaymentMethod = "bank"
)

// ============================================================
// Wallet
// ============================================================

// Wallet is an e-money wallet operated by the agent. CurrentBalance is a
// cached projection of InitialBalance plus the signed vc_amount of every
// transaction booked against the wallet.
type Wallet struct {
	ID             string          `json:"wallet_id"`
	PhoneNumber    string          `json:"phone_number"`
	Name           string          `json:"wallet_name"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	IsActive       bool            `json:"is_active"`
	Notes          string          `json:"notes"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ============================================================
// Client
// ============================================================

// Client is a customer of the agent. TotalDebt is a cached projection of
// the amount_due of the client's unpaid transactions.
type Client struct {
	ID         string          `json:"client_id"`
	Name       string          `json:"client_name"`
	NationalID string          `json:"national_id"`
	Address    string          `json:"address"`
	Notes      string          `json:"notes"`
	TotalDebt  decimal.Decimal `json:"total_debt"`
	IsActive   bool            `json:"is_active"`
	Phones     []ClientPhone   `json:"phones,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ClientPhone is one of a client's contact numbers.
type ClientPhone struct {
	ID          string    `json:"phone_id"`
	ClientID    string    `json:"client_id"`
	PhoneNumber string    `json:"phone_number"`
	IsPrimary   bool      `json:"is_primary"`
	Label       string    `json:"phone_label"`
	CreatedAt   time.Time `json:"created_at"`
}

// DefaultPhoneLabel is used when a phone is added without a label.
const DefaultPhoneLabel = "personal"

// ============================================================
// Transaction
// ============================================================

// Transaction is one e-money movement through an agent wallet.
//
// AmountPaid, AmountDue and PaymentStatus are only mutated after creation
// through the payment allocator.
type Transaction struct {
	ID             string          `json:"transaction_id"`
	WalletID       string          `json:"wallet_id"`
	ClientID       string          `json:"client_id"`
	Type           TransactionType `json:"transaction_type"`
	VCAmount       decimal.Decimal `json:"vc_amount"`
	CashAmount     decimal.Decimal `json:"cash_amount"`
	FeeAmount      decimal.Decimal `json:"fee_amount"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	AmountDue      decimal.Decimal `json:"amount_due"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	RecipientPhone string          `json:"recipient_phone"`
	Description    string          `json:"description"`
	AttachmentID   string          `json:"attachment_id"`
	Date           Date            `json:"transaction_date"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	// Read-side enrichment, never persisted by the services.
	WalletName string `json:"wallet_name,omitempty"`
	ClientName string `json:"client_name,omitempty"`
}

// SignedVCAmount is the transaction's contribution to its wallet balance.
func (t Transaction) SignedVCAmount() decimal.Decimal {
	return t.VCAmount.Mul(decimal.NewFromInt(int64(t.Type.Sign())))
}

// ============================================================
// Payment
// ============================================================

// Payment is one immutable slice of a client payment, allocated to exactly
// one transaction.
type Payment struct {
	ID            string          `json:"payment_id"`
	ClientID      string          `json:"client_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"payment_method"`
	Notes         string          `json:"notes"`
	Date          Date            `json:"payment_date"`
	CreatedAt     time.Time       `json:"created_at"`

	ClientName string `json:"client_name,omitempty"`
}

// ============================================================
// Attachment
// ============================================================

// Attachment is metadata about a file stored elsewhere (receipt photo,
// transfer screenshot). Only the latest one per transaction is active.
type Attachment struct {
	ID            string    `json:"attachment_id"`
	TransactionID string    `json:"transaction_id"`
	FileName      string    `json:"file_name"`
	FileURL       string    `json:"file_url"`
	MimeType      string    `json:"mime_type"`
	FileSize      int64     `json:"file_size"`
	CreatedAt     time.Time `json:"created_at"`
}
