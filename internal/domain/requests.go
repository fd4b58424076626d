package domain

import "github.com/shopspring/decimal"

// ============================================================
// Wallets
// ============================================================

// CreateWalletRequest is the body for POST /api/wallets.
type CreateWalletRequest struct {
	PhoneNumber    string          `json:"phone_number" validate:"required,egphone"`
	Name           string          `json:"wallet_name" validate:"required"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Notes          string          `json:"notes"`
}

// UpdateWalletRequest is the body for PUT /api/wallets/{id}. Balances are
// derived and cannot be edited.
type UpdateWalletRequest struct {
	Name     *string `json:"wallet_name,omitempty" validate:"omitempty,min=1"`
	IsActive *bool   `json:"is_active,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

// ============================================================
// Clients
// ============================================================

// CreateClientRequest is the body for POST /api/clients.
type CreateClientRequest struct {
	Name        string `json:"client_name" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"omitempty,egphone"`
	NationalID  string `json:"national_id"`
	Address     string `json:"address"`
	Notes       string `json:"notes"`
}

// UpdateClientRequest is the body for PUT /api/clients/{id}.
type UpdateClientRequest struct {
	Name       *string `json:"client_name,omitempty" validate:"omitempty,min=1"`
	NationalID *string `json:"national_id,omitempty"`
	Address    *string `json:"address,omitempty"`
	Notes      *string `json:"notes,omitempty"`
	IsActive   *bool   `json:"is_active,omitempty"`
}

// AddPhoneRequest is the body for POST /api/clients/{id}/phones.
type AddPhoneRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,egphone"`
	IsPrimary   bool   `json:"is_primary"`
	Label       string `json:"phone_label"`
}

// ============================================================
// Transactions
// ============================================================

// CreateTransactionRequest is the body for POST /api/transactions.
// CashAmount, FeeAmount and AmountPaid are optional: nil or an explicit
// zero both mean "not supplied" and trigger the per-type derivation.
type CreateTransactionRequest struct {
	WalletID       string           `json:"wallet_id" validate:"required"`
	ClientID       string           `json:"client_id"`
	Type           TransactionType  `json:"transaction_type" validate:"required,oneof=TRANSFER_OUT TRANSFER_IN DEPOSIT WITHDRAW"`
	VCAmount       decimal.Decimal  `json:"vc_amount"`
	CashAmount     *decimal.Decimal `json:"cash_amount,omitempty"`
	FeeAmount      *decimal.Decimal `json:"fee_amount,omitempty"`
	AmountPaid     *decimal.Decimal `json:"amount_paid,omitempty"`
	RecipientPhone string           `json:"recipient_phone"`
	Description    string           `json:"description"`
	Date           Date             `json:"transaction_date"`
}

// TransactionFilter narrows GET /api/transactions. Zero values are ignored.
type TransactionFilter struct {
	From     Date
	To       Date
	WalletID string
	ClientID string
	Status   PaymentStatus
	Type     TransactionType
}

// Match reports whether t passes every set criterion. The To bound
// includes the whole day.
func (f TransactionFilter) Match(t Transaction) bool {
	if !f.From.IsZero() && t.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Date.After(f.To) {
		return false
	}
	if f.WalletID != "" && t.WalletID != f.WalletID {
		return false
	}
	if f.ClientID != "" && t.ClientID != f.ClientID {
		return false
	}
	if f.Status != "" && t.PaymentStatus != f.Status {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	return true
}

// ============================================================
// Payments
// ============================================================

// CreatePaymentRequest is the body for POST /api/payments. A single request
// may be split across several transactions by the allocator.
type CreatePaymentRequest struct {
	ClientID string          `json:"client_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Method   PaymentMethod   `json:"payment_method" validate:"omitempty,oneof=cash vc_transfer bank"`
	Notes    string          `json:"notes"`
	Date     Date            `json:"payment_date"`
}

// PaymentAllocation is the result of POST /api/payments.
type PaymentAllocation struct {
	Payments       []Payment       `json:"payments"`
	TotalAllocated decimal.Decimal `json:"total_allocated"`
	Unallocated    decimal.Decimal `json:"unallocated"`
}

// PaymentFilter narrows GET /api/payments.
type PaymentFilter struct {
	ClientID string
	From     Date
	To       Date
}

func (f PaymentFilter) Match(p Payment) bool {
	if f.ClientID != "" && p.ClientID != f.ClientID {
		return false
	}
	if !f.From.IsZero() && p.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && p.Date.After(f.To) {
		return false
	}
	return true
}

// ============================================================
// Attachments
// ============================================================

// CreateAttachmentRequest is the body for POST /api/attachments. The file
// itself lives in external storage; only its metadata is recorded.
type CreateAttachmentRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
	FileName      string `json:"file_name" validate:"required"`
	FileURL       string `json:"file_url" validate:"required,url"`
	MimeType      string `json:"mime_type"`
	FileSize      int64  `json:"file_size" validate:"gte=0"`
}
