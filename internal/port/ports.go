// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
)

// Collection is CRUD plus filtered scan over one record type.
//
// List and Filter return records in insertion order. Get and Update return
// (nil, nil) when the id does not resolve. Writes to different collections
// are independent: there is no multi-collection transaction.
type Collection[T any] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (*T, error)
	Filter(ctx context.Context, match func(T) bool) ([]T, error)
	Insert(ctx context.Context, record T) (*T, error)
	Update(ctx context.Context, id string, mutate func(*T)) (*T, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// LedgerStore groups the ledger collections.
// Implemented by the memory, SQLite and PostgREST adapters.
type LedgerStore interface {
	Wallets() Collection[domain.Wallet]
	Clients() Collection[domain.Client]
	ClientPhones() Collection[domain.ClientPhone]
	Transactions() Collection[domain.Transaction]
	Payments() Collection[domain.Payment]
	Attachments() Collection[domain.Attachment]

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Locker serialises writes that touch the same wallet or client. Lock
// blocks until every key is held or ctx is done; the returned func
// releases all of them.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}
