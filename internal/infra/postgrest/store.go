package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
)

// Store implements port.LedgerStore over PostgREST tables.
type Store struct {
	client *Client

	wallets      *Collection[domain.Wallet]
	clients      *Collection[domain.Client]
	clientPhones *Collection[domain.ClientPhone]
	transactions *Collection[domain.Transaction]
	payments     *Collection[domain.Payment]
	attachments  *Collection[domain.Attachment]
}

var _ port.LedgerStore = (*Store)(nil)

// NewStore maps every ledger collection to its table.
func NewStore(client *Client) *Store {
	return &Store{
		client:       client,
		wallets:      NewCollection[domain.Wallet](client, "wallets", "wallet_id"),
		clients:      NewCollection[domain.Client](client, "clients", "client_id"),
		clientPhones: NewCollection[domain.ClientPhone](client, "client_phones", "phone_id"),
		transactions: NewCollection[domain.Transaction](client, "transactions", "transaction_id"),
		payments:     NewCollection[domain.Payment](client, "payments", "payment_id"),
		attachments:  NewCollection[domain.Attachment](client, "attachments", "attachment_id"),
	}
}

func (s *Store) Wallets() port.Collection[domain.Wallet]           { return s.wallets }
func (s *Store) Clients() port.Collection[domain.Client]           { return s.clients }
func (s *Store) ClientPhones() port.Collection[domain.ClientPhone] { return s.clientPhones }
func (s *Store) Transactions() port.Collection[domain.Transaction] { return s.transactions }
func (s *Store) Payments() port.Collection[domain.Payment]         { return s.payments }
func (s *Store) Attachments() port.Collection[domain.Attachment]   { return s.attachments }

// Ping issues a one-row read against the wallets table.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.call(ctx, "postgrest/ping", http.MethodGet, "wallets?select=wallet_id&limit=1", nil, "")
	return err
}

// =============================================================================
// Collection
// =============================================================================

// Collection is one PostgREST table holding records of type T.
type Collection[T domain.Record] struct {
	client   *Client
	table    string
	idColumn string
}

// NewCollection binds T to table, keyed by idColumn.
func NewCollection[T domain.Record](client *Client, table, idColumn string) *Collection[T] {
	return &Collection[T]{client: client, table: table, idColumn: idColumn}
}

func (c *Collection[T]) service() string { return "postgrest/" + c.table }

func (c *Collection[T]) byID(id string) string {
	return fmt.Sprintf("%s?%s=eq.%s", c.table, c.idColumn, url.QueryEscape(id))
}

func (c *Collection[T]) decode(body []byte) ([]T, error) {
	rows := make([]T, 0)
	if len(body) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &domain.ErrExternalService{
			Service: c.service(),
			Err:     fmt.Errorf("failed to decode %s: %w", c.table, err),
		}
	}
	return rows, nil
}

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.List")
	defer span.End()
	span.SetAttributes(attribute.String("table", c.table))

	body, err := c.client.call(ctx, c.service(), http.MethodGet, c.table+"?select=*&order=seq.asc", nil, "")
	if err != nil {
		return nil, err
	}
	return c.decode(body)
}

// Filter lists the table and applies match locally.
func (c *Collection[T]) Filter(ctx context.Context, match func(T) bool) ([]T, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]T, 0, len(all))
	for _, rec := range all {
		if match(rec) {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.Get")
	defer span.End()
	span.SetAttributes(attribute.String("table", c.table), attribute.String("record.id", id))

	body, err := c.client.call(ctx, c.service(), http.MethodGet, c.byID(id)+"&limit=1", nil, "")
	if err != nil {
		return nil, err
	}
	rows, err := c.decode(body)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (c *Collection[T]) Insert(ctx context.Context, record T) (*T, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.Insert")
	defer span.End()
	span.SetAttributes(attribute.String("table", c.table), attribute.String("record.id", record.RecordID()))

	body, err := c.client.call(ctx, c.service(), http.MethodPost, c.table, record, "return=representation")
	if err != nil {
		return nil, err
	}
	rows, err := c.decode(body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &record, nil
	}
	return &rows[0], nil
}

// Update is a read followed by a full-row PATCH. It is not atomic on its
// own; the services serialise writers per wallet and client.
func (c *Collection[T]) Update(ctx context.Context, id string, mutate func(*T)) (*T, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.Update")
	defer span.End()
	span.SetAttributes(attribute.String("table", c.table), attribute.String("record.id", id))

	current, err := c.Get(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}
	mutate(current)
	if (*current).RecordID() != id {
		return nil, fmt.Errorf("postgrest: update %s: id of %s cannot change", c.table, id)
	}

	body, err := c.client.call(ctx, c.service(), http.MethodPatch, c.byID(id), current, "return=representation")
	if err != nil {
		return nil, err
	}
	rows, err := c.decode(body)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "PostgREST.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("table", c.table), attribute.String("record.id", id))

	body, err := c.client.call(ctx, c.service(), http.MethodDelete, c.byID(id), nil, "return=representation")
	if err != nil {
		return false, err
	}
	rows, err := c.decode(body)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
