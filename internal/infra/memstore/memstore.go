// Package memstore provides an in-memory LedgerStore for tests and local
// development. Records are kept by value, so callers never share memory
// with the store.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/port"
)

// Store is an in-memory ledger store.
type Store struct {
	wallets      *Collection[domain.Wallet]
	clients      *Collection[domain.Client]
	clientPhones *Collection[domain.ClientPhone]
	transactions *Collection[domain.Transaction]
	payments     *Collection[domain.Payment]
	attachments  *Collection[domain.Attachment]
}

var _ port.LedgerStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		wallets:      NewCollection[domain.Wallet](),
		clients:      NewCollection[domain.Client](),
		clientPhones: NewCollection[domain.ClientPhone](),
		transactions: NewCollection[domain.Transaction](),
		payments:     NewCollection[domain.Payment](),
		attachments:  NewCollection[domain.Attachment](),
	}
}

func (s *Store) Wallets() port.Collection[domain.Wallet]           { return s.wallets }
func (s *Store) Clients() port.Collection[domain.Client]           { return s.clients }
func (s *Store) ClientPhones() port.Collection[domain.ClientPhone] { return s.clientPhones }
func (s *Store) Transactions() port.Collection[domain.Transaction] { return s.transactions }
func (s *Store) Payments() port.Collection[domain.Payment]         { return s.payments }
func (s *Store) Attachments() port.Collection[domain.Attachment]   { return s.attachments }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// =============================================================================
// Collection
// =============================================================================

// Collection is a thread-safe, insertion-ordered record set.
type Collection[T domain.Record] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

// NewCollection returns an empty collection.
func NewCollection[T domain.Record]() *Collection[T] {
	return &Collection[T]{items: make(map[string]T)}
}

func (c *Collection[T]) List(_ context.Context) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]T, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.items[id])
	}
	return result, nil
}

func (c *Collection[T]) Get(_ context.Context, id string) (*T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.items[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (c *Collection[T]) Filter(_ context.Context, match func(T) bool) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]T, 0)
	for _, id := range c.order {
		if rec := c.items[id]; match(rec) {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (c *Collection[T]) Insert(_ context.Context, record T) (*T, error) {
	id := record.RecordID()
	if id == "" {
		return nil, fmt.Errorf("insert: record has no id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[id]; exists {
		return nil, fmt.Errorf("insert: duplicate id %s", id)
	}
	c.items[id] = record
	c.order = append(c.order, id)
	return &record, nil
}

// Update applies mutate to a copy of the record and stores the result.
// The id cannot be changed.
func (c *Collection[T]) Update(_ context.Context, id string, mutate func(*T)) (*T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.items[id]
	if !ok {
		return nil, nil
	}
	mutate(&rec)
	if rec.RecordID() != id {
		return nil, fmt.Errorf("update: id of %s cannot change", id)
	}
	c.items[id] = rec
	return &rec, nil
}

func (c *Collection[T]) Delete(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[id]; !ok {
		return false, nil
	}
	delete(c.items, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true, nil
}
