package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinflip/exchange-ledger/internal/domain"
)

// BalanceRepository defines data access for per-(user, currency) balances.
type BalanceRepository interface {
	Get(ctx context.Context, userID int64, currency string) (*domain.Balance, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.Balance, error)
	// GetForUpdate locks the balance rows of the given users for one currency
	// with SELECT ... FOR UPDATE, acquiring locks in ascending user ID order.
	// Missing rows are not an error; absent balances are zero.
	GetForUpdate(ctx context.Context, tx Transaction, userIDs []int64, currency string) ([]*domain.Balance, error)
	// ApplyDelta upserts the balance row and adds delta to it, returning the
	// resulting amount. The store rejects results below zero.
	ApplyDelta(ctx context.Context, tx Transaction, userID int64, currency string, delta decimal.Decimal) (decimal.Decimal, error)
	SumByCurrency(ctx context.Context, currency string) (decimal.Decimal, error)
}

// EntryRepository defines data access for the append-only ledger.
type EntryRepository interface {
	// Append inserts all entries atomically and fills their store-assigned IDs.
	Append(ctx context.Context, tx Transaction, entries []*domain.Entry) error
	ListByUser(ctx context.Context, userID int64, entryType domain.EntryType, limit, offset int) ([]*domain.Entry, error)
	ListByReference(ctx context.Context, reference string) ([]*domain.Entry, error)
	SumByCurrency(ctx context.Context, currency string) (decimal.Decimal, error)
}

// IdempotencyRecord is the durable outcome of one idempotency key.
type IdempotencyRecord struct {
	CreatedAt time.Time
	Key       string
	Operation string
	ErrorKind string
	Payload   []byte
	Succeeded bool
}

// IdempotencyRepository stores idempotency outcomes. Record must run inside
// the same transaction as the writes it guards; a duplicate key surfaces as
// domain.ErrConflict so the caller can re-read the winner's outcome.
type IdempotencyRepository interface {
	Lookup(ctx context.Context, key string) (*IdempotencyRecord, error)
	Record(ctx context.Context, tx Transaction, record *IdempotencyRecord) error
}

// UserRepository defines data access for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	List(ctx context.Context, limit, offset int) ([]*domain.User, error)
}

// CurrencyRepository defines data access for supported currencies.
type CurrencyRepository interface {
	Get(ctx context.Context, code string) (*domain.Currency, error)
	List(ctx context.Context) ([]*domain.Currency, error)
}

// RateRepository defines data access for exchange rates and their history.
type RateRepository interface {
	Get(ctx context.Context, base, target string) (*domain.ExchangeRate, error)
	Upsert(ctx context.Context, rate *domain.ExchangeRate) error
	ListPairs(ctx context.Context) ([]*domain.ExchangeRate, error)
	GetHistory(ctx context.Context, base, target string, from, to time.Time) ([]*domain.RatePoint, error)
	UpsertHistory(ctx context.Context, base, target string, points []*domain.RatePoint) error
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on retryable store conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
