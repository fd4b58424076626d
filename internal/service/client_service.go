package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/infra/lock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var clientTracer = otel.Tracer("service/client")

// ClientService manages clients, their phones and the total_debt
// projection.
type ClientService struct {
	*base
}

// ============================================================
// CRUD
// ============================================================

// Create stores a client. When a phone is supplied it becomes the
// client's primary phone.
func (s *ClientService) Create(ctx context.Context, req *domain.CreateClientRequest) (*domain.Client, error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.Create")
	defer span.End()

	req.Name = strings.TrimSpace(req.Name)
	req.PhoneNumber = NormalizePhone(req.PhoneNumber)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now()
	c := domain.Client{
		ID:         uuid.New().String(),
		Name:       req.Name,
		NationalID: strings.TrimSpace(req.NationalID),
		Address:    strings.TrimSpace(req.Address),
		Notes:      strings.TrimSpace(req.Notes),
		TotalDebt:  decimal.Zero,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := s.store.Clients().Insert(ctx, c)
	if err != nil {
		return nil, s.writeErr("insert client", err)
	}
	s.metrics.IncrWrite("clients")

	if req.PhoneNumber != "" {
		phone, err := s.insertPhone(ctx, created.ID, req.PhoneNumber, true, domain.DefaultPhoneLabel)
		if err != nil {
			return nil, err
		}
		created.Phones = []domain.ClientPhone{*phone}
	}
	s.invalidateReports()

	s.logger.Info("client created",
		zap.String("client_id", created.ID),
		zap.String("name", created.Name),
	)
	return created, nil
}

// Get returns the client with its phones, primary first.
func (s *ClientService) Get(ctx context.Context, id string) (*domain.Client, error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	c, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	phones, err := s.ListPhones(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Phones = phones
	return c, nil
}

func (s *ClientService) get(ctx context.Context, id string) (*domain.Client, error) {
	c, err := s.store.Clients().Get(ctx, id)
	if err != nil {
		return nil, s.readErr("get client", err)
	}
	if c == nil {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	return c, nil
}

// List returns every client with phones, newest first.
func (s *ClientService) List(ctx context.Context) ([]domain.Client, error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.List")
	defer span.End()

	clients, err := s.store.Clients().List(ctx)
	if err != nil {
		return nil, s.readErr("list clients", err)
	}
	phones, err := s.store.ClientPhones().List(ctx)
	if err != nil {
		return nil, s.readErr("list client phones", err)
	}

	byClient := make(map[string][]domain.ClientPhone, len(clients))
	for _, p := range phones {
		byClient[p.ClientID] = append(byClient[p.ClientID], p)
	}
	for i := range clients {
		clients[i].Phones = primaryFirst(byClient[clients[i].ID])
	}

	sort.SliceStable(clients, func(i, j int) bool {
		return clients[i].CreatedAt.After(clients[j].CreatedAt)
	})
	return clients, nil
}

func (s *ClientService) Update(ctx context.Context, id string, req *domain.UpdateClientRequest) (*domain.Client, error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", id))

	if req.Name != nil {
		trimmed := strings.TrimSpace(*req.Name)
		req.Name = &trimmed
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.store.Clients().Update(ctx, id, func(c *domain.Client) {
		if req.Name != nil {
			c.Name = *req.Name
		}
		if req.NationalID != nil {
			c.NationalID = strings.TrimSpace(*req.NationalID)
		}
		if req.Address != nil {
			c.Address = strings.TrimSpace(*req.Address)
		}
		if req.Notes != nil {
			c.Notes = strings.TrimSpace(*req.Notes)
		}
		if req.IsActive != nil {
			c.IsActive = *req.IsActive
		}
		c.UpdatedAt = now
	})
	if err != nil {
		return nil, s.writeErr("update client", err)
	}
	if updated == nil {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	return updated, nil
}

// ============================================================
// Phones
// ============================================================

// AddPhone attaches a phone to the client. The first phone is always
// primary; a new primary phone demotes the previous one.
func (s *ClientService) AddPhone(ctx context.Context, clientID string, req *domain.AddPhoneRequest) (*domain.ClientPhone, error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.AddPhone")
	defer span.End()

	req.PhoneNumber = NormalizePhone(req.PhoneNumber)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	unlock, err := s.lock(ctx, lock.ClientKey(clientID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if _, err := s.get(ctx, clientID); err != nil {
		return nil, err
	}

	existing, err := s.store.ClientPhones().Filter(ctx, func(p domain.ClientPhone) bool {
		return p.ClientID == clientID
	})
	if err != nil {
		return nil, s.readErr("list client phones", err)
	}

	primary := req.IsPrimary || len(existing) == 0
	if primary {
		for _, p := range existing {
			if !p.IsPrimary {
				continue
			}
			if _, err := s.store.ClientPhones().Update(ctx, p.ID, func(p *domain.ClientPhone) {
				p.IsPrimary = false
			}); err != nil {
				return nil, s.writeErr("demote primary phone", err)
			}
		}
	}

	label := strings.TrimSpace(req.Label)
	if label == "" {
		label = domain.DefaultPhoneLabel
	}
	return s.insertPhone(ctx, clientID, req.PhoneNumber, primary, label)
}

func (s *ClientService) insertPhone(ctx context.Context, clientID, number string, primary bool, label string) (*domain.ClientPhone, error) {
	phone, err := s.store.ClientPhones().Insert(ctx, domain.ClientPhone{
		ID:          uuid.New().String(),
		ClientID:    clientID,
		PhoneNumber: number,
		IsPrimary:   primary,
		Label:       label,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, s.writeErr("insert client phone", err)
	}
	s.metrics.IncrWrite("client_phones")
	return phone, nil
}

// ListPhones returns the client's phones, primary first.
func (s *ClientService) ListPhones(ctx context.Context, clientID string) ([]domain.ClientPhone, error) {
	phones, err := s.store.ClientPhones().Filter(ctx, func(p domain.ClientPhone) bool {
		return p.ClientID == clientID
	})
	if err != nil {
		return nil, s.readErr("list client phones", err)
	}
	return primaryFirst(phones), nil
}

func primaryFirst(phones []domain.ClientPhone) []domain.ClientPhone {
	if phones == nil {
		return []domain.ClientPhone{}
	}
	sort.SliceStable(phones, func(i, j int) bool {
		return phones[i].IsPrimary && !phones[j].IsPrimary
	})
	return phones
}

// ============================================================
// Debt projection
// ============================================================

// UpdateTotalDebt recomputes and persists the client's total_debt under
// the client lock and returns the new value.
func (s *ClientService) UpdateTotalDebt(ctx context.Context, clientID string) (decimal.Decimal, error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.UpdateTotalDebt")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	unlock, err := s.lock(ctx, lock.ClientKey(clientID))
	if err != nil {
		return decimal.Zero, err
	}
	defer unlock()

	debt, err := s.updateTotalDebt(ctx, clientID)
	if err != nil {
		return decimal.Zero, err
	}
	s.invalidateReports()
	return debt, nil
}

// updateTotalDebt expects the caller to hold the client lock.
func (s *ClientService) updateTotalDebt(ctx context.Context, clientID string) (decimal.Decimal, error) {
	start := time.Now()
	defer s.observe("update_total_debt", start)

	if _, err := s.get(ctx, clientID); err != nil {
		return decimal.Zero, err
	}

	unpaid, err := s.store.Transactions().Filter(ctx, func(t domain.Transaction) bool {
		return t.ClientID == clientID && t.PaymentStatus != domain.StatusPaid
	})
	if err != nil {
		return decimal.Zero, s.readErr("scan client transactions", err)
	}

	debt := decimal.Zero
	for _, t := range unpaid {
		debt = debt.Add(t.AmountDue)
	}

	now := s.now()
	updated, err := s.store.Clients().Update(ctx, clientID, func(c *domain.Client) {
		c.TotalDebt = debt
		c.UpdatedAt = now
	})
	if err != nil {
		return decimal.Zero, s.writeErr("persist client debt", err)
	}
	if updated == nil {
		return decimal.Zero, &domain.ErrNotFound{Resource: "client", ID: clientID}
	}
	s.metrics.IncrRecalculation("client")

	s.logger.Debug("client debt recalculated",
		zap.String("client_id", clientID),
		zap.String("total_debt", debt.String()),
		zap.Int("unpaid_transactions", len(unpaid)),
	)
	return debt, nil
}

// ============================================================
// Statement
// ============================================================

// GetStatement builds the client's account activity between from and to
// (inclusive). A zero to means today; a zero from means the first day of
// to's month.
//
// Debits are the cash amounts of the client's transactions and credits
// are the payments received. The opening balance applies the same rule
// to everything dated before from.
func (s *ClientService) GetStatement(ctx context.Context, clientID string, from, to domain.Date) (*domain.ClientStatement, error) {
	ctx, span := clientTracer.Start(ctx, "ClientService.GetStatement")
	defer span.End()
	span.SetAttributes(attribute.String("client.id", clientID))

	if to.IsZero() {
		to = s.today()
	}
	if from.IsZero() {
		from = to.MonthStart()
	}
	if from.After(to) {
		return nil, &domain.ErrValidation{Field: "from", Message: "must not be after to"}
	}

	client, err := s.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}

	txs, err := s.store.Transactions().Filter(ctx, func(t domain.Transaction) bool {
		return t.ClientID == clientID && !t.Date.After(to)
	})
	if err != nil {
		return nil, s.readErr("scan client transactions", err)
	}
	payments, err := s.store.Payments().Filter(ctx, func(p domain.Payment) bool {
		return p.ClientID == clientID && !p.Date.After(to)
	})
	if err != nil {
		return nil, s.readErr("scan client payments", err)
	}

	st := &domain.ClientStatement{
		Client:         *client,
		From:           from,
		To:             to,
		OpeningBalance: decimal.Zero,
		Transactions:   []domain.Transaction{},
		Payments:       []domain.Payment{},
		TotalDebits:    decimal.Zero,
		TotalCredits:   decimal.Zero,
	}

	for _, t := range txs {
		if t.Date.Before(from) {
			st.OpeningBalance = st.OpeningBalance.Add(t.CashAmount)
			continue
		}
		st.Transactions = append(st.Transactions, t)
		st.TotalDebits = st.TotalDebits.Add(t.CashAmount)
	}

	for _, p := range payments {
		if p.Date.Before(from) {
			st.OpeningBalance = st.OpeningBalance.Sub(p.Amount)
			continue
		}
		p.ClientName = client.Name
		st.Payments = append(st.Payments, p)
		st.TotalCredits = st.TotalCredits.Add(p.Amount)
	}

	sort.SliceStable(st.Transactions, func(i, j int) bool {
		return st.Transactions[i].Date.Before(st.Transactions[j].Date)
	})
	sort.SliceStable(st.Payments, func(i, j int) bool {
		return st.Payments[i].Date.Before(st.Payments[j].Date)
	})

	st.ClosingBalance = st.OpeningBalance.Add(st.TotalDebits).Sub(st.TotalCredits)
	return st, nil
}
