/*
Package sqlite provides a SQLite-backed LedgerStore.

Every collection lives in one document table:

	records(seq, collection, id, data, updated_at)

seq is an AUTOINCREMENT key and gives List/Filter their insertion order,
which the payment allocator relies on to break ties between transactions
booked on the same date. data holds the record's JSON encoding.

Filter loads the collection and applies the predicate in Go; the ledger is
sized for a single agent, where a full scan is cheap.

The database is opened with WAL and a single connection, so ":memory:"
works for tests and all writes are serialised by database/sql.

USAGE:

	store, err := sqlite.New("./data/ledger.db")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/port"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_records_collection_seq
	ON records(collection, seq);
`

// Collection names, shared with the PostgREST table names.
const (
	CollWallets      = "wallets"
	CollClients      = "clients"
	CollClientPhones = "client_phones"
	CollTransactions = "transactions"
	CollPayments     = "payments"
	CollAttachments  = "attachments"
)

// Store implements port.LedgerStore on SQLite.
type Store struct {
	db *sql.DB

	wallets      *Collection[domain.Wallet]
	clients      *Collection[domain.Client]
	clientPhones *Collection[domain.ClientPhone]
	transactions *Collection[domain.Transaction]
	payments     *Collection[domain.Payment]
	attachments  *Collection[domain.Attachment]
}

var _ port.LedgerStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := NewWithDB(db)
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// NewWithDB wraps an already open database without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{
		db:           db,
		wallets:      newCollection[domain.Wallet](db, CollWallets),
		clients:      newCollection[domain.Client](db, CollClients),
		clientPhones: newCollection[domain.ClientPhone](db, CollClientPhones),
		transactions: newCollection[domain.Transaction](db, CollTransactions),
		payments:     newCollection[domain.Payment](db, CollPayments),
		attachments:  newCollection[domain.Attachment](db, CollAttachments),
	}
}

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Wallets() port.Collection[domain.Wallet]           { return s.wallets }
func (s *Store) Clients() port.Collection[domain.Client]           { return s.clients }
func (s *Store) ClientPhones() port.Collection[domain.ClientPhone] { return s.clientPhones }
func (s *Store) Transactions() port.Collection[domain.Transaction] { return s.transactions }
func (s *Store) Payments() port.Collection[domain.Payment]         { return s.payments }
func (s *Store) Attachments() port.Collection[domain.Attachment]   { return s.attachments }

// =============================================================================
// Collection
// =============================================================================

// Collection stores records of one type as JSON documents.
type Collection[T domain.Record] struct {
	db   *sql.DB
	name string
}

func newCollection[T domain.Record](db *sql.DB, name string) *Collection[T] {
	return &Collection[T]{db: db, name: name}
}

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	return c.scan(ctx, nil)
}

func (c *Collection[T]) Filter(ctx context.Context, match func(T) bool) ([]T, error) {
	return c.scan(ctx, match)
}

func (c *Collection[T]) scan(ctx context.Context, match func(T) bool) ([]T, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT data FROM records WHERE collection = ? ORDER BY seq`, c.name)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", c.name, err)
	}
	defer rows.Close()

	result := make([]T, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", c.name, err)
		}
		var rec T
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("sqlite: decode %s: %w", c.name, err)
		}
		if match == nil || match(rec) {
			result = append(result, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list %s: %w", c.name, err)
	}
	return result, nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	var data string
	err := c.db.QueryRowContext(ctx,
		`SELECT data FROM records WHERE collection = ? AND id = ?`, c.name, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s %s: %w", c.name, id, err)
	}

	var rec T
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("sqlite: decode %s %s: %w", c.name, id, err)
	}
	return &rec, nil
}

func (c *Collection[T]) Insert(ctx context.Context, record T) (*T, error) {
	id := record.RecordID()
	if id == "" {
		return nil, fmt.Errorf("sqlite: insert %s: record has no id", c.name)
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode %s: %w", c.name, err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT INTO records (collection, id, data, updated_at) VALUES (?, ?, ?, ?)`,
		c.name, id, string(data), now())
	if err != nil {
		return nil, fmt.Errorf("sqlite: insert %s %s: %w", c.name, id, err)
	}
	return &record, nil
}

// Update reads, mutates and writes the record inside one SQL transaction.
func (c *Collection[T]) Update(ctx context.Context, id string, mutate func(*T)) (*T, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin update %s: %w", c.name, err)
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM records WHERE collection = ? AND id = ?`, c.name, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get %s %s: %w", c.name, id, err)
	}

	var rec T
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("sqlite: decode %s %s: %w", c.name, id, err)
	}
	mutate(&rec)
	if rec.RecordID() != id {
		return nil, fmt.Errorf("sqlite: update %s: id of %s cannot change", c.name, id)
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode %s: %w", c.name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE records SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(encoded), now(), c.name, id); err != nil {
		return nil, fmt.Errorf("sqlite: update %s %s: %w", c.name, id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit %s %s: %w", c.name, id, err)
	}
	return &rec, nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ? AND id = ?`, c.name, id)
	if err != nil {
		return false, fmt.Errorf("sqlite: delete %s %s: %w", c.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: delete %s %s: %w", c.name, id, err)
	}
	return n > 0, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
