package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

const pgErrUniqueViolation = "23505"

// IdempotencyRepository implements usecase.IdempotencyRepository on the same
// store as the balances it guards, so a record commits atomically with the
// writes of its unit of work.
type IdempotencyRepository struct {
	pool *pgxpool.Pool
}

// NewIdempotencyRepository creates a new IdempotencyRepository.
func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool}
}

// Lookup returns the committed record for key, or nil if absent.
func (r *IdempotencyRepository) Lookup(ctx context.Context, key string) (*usecase.IdempotencyRecord, error) {
	var (
		record    usecase.IdempotencyRecord
		createdAt pgtype.Timestamptz
	)

	err := r.pool.QueryRow(ctx,
		`SELECT key, operation, succeeded, error_kind, payload, created_at
		 FROM idempotency_keys
		 WHERE key = $1`,
		key,
	).Scan(&record.Key, &record.Operation, &record.Succeeded, &record.ErrorKind, &record.Payload, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	record.CreatedAt = createdAt.Time

	return &record, nil
}

// Record inserts the outcome for a key inside the given transaction. A
// duplicate key means a concurrent attempt already committed; it surfaces as
// domain.ErrConflict so the caller can replay the winner's outcome.
func (r *IdempotencyRepository) Record(ctx context.Context, tx usecase.Transaction, record *usecase.IdempotencyRecord) error {
	pgxTx := tx.(*Tx).PgxTx()

	_, err := pgxTx.Exec(ctx,
		`INSERT INTO idempotency_keys (key, operation, succeeded, error_kind, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		record.Key,
		record.Operation,
		record.Succeeded,
		record.ErrorKind,
		record.Payload,
		timeToPgTimestamptz(record.CreatedAt),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return fmt.Errorf("%w: idempotency key already recorded", domain.ErrConflict)
		}

		return err
	}

	return nil
}

// DeleteExpired removes records older than the retention window.
func (r *IdempotencyRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE created_at < now() - make_interval(secs => $1)`,
		usecase.IdempotencyRetention.Seconds(),
	)
	if err != nil {
		return 0, err
	}

	return tag.RowsAffected(), nil
}
