package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	pool *pgxpool.Pool
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{pool: pool}
}

// Append inserts all entries inside the given transaction and fills their
// store-assigned monotonic IDs.
func (r *EntryRepository) Append(ctx context.Context, tx usecase.Transaction, entries []*domain.Entry) error {
	pgxTx := tx.(*Tx).PgxTx()

	for _, entry := range entries {
		err := pgxTx.QueryRow(ctx,
			`INSERT INTO ledger_entries (user_id, type, currency, amount, balance_after, reference, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			entry.UserID,
			string(entry.Type),
			entry.Currency,
			decimalToNumeric(entry.Amount),
			decimalToNumeric(entry.BalanceAfter),
			entry.Reference,
			timeToPgTimestamptz(entry.CreatedAt),
		).Scan(&entry.ID)
		if err != nil {
			return err
		}
	}

	return nil
}

// ListByUser retrieves a user's entries newest first, optionally filtered
// by type.
func (r *EntryRepository) ListByUser(ctx context.Context, userID int64, entryType domain.EntryType, limit, offset int) ([]*domain.Entry, error) {
	query := `SELECT id, user_id, type, currency, amount, balance_after, reference, created_at
		 FROM ledger_entries
		 WHERE user_id = $1
		 ORDER BY id DESC
		 LIMIT $2 OFFSET $3`
	args := []any{userID, limit, offset}

	if entryType != "" {
		query = `SELECT id, user_id, type, currency, amount, balance_after, reference, created_at
			 FROM ledger_entries
			 WHERE user_id = $1 AND type = $4
			 ORDER BY id DESC
			 LIMIT $2 OFFSET $3`
		args = append(args, string(entryType))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListByReference retrieves the entries of one transfer or trade.
func (r *EntryRepository) ListByReference(ctx context.Context, reference string) ([]*domain.Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, type, currency, amount, balance_after, reference, created_at
		 FROM ledger_entries
		 WHERE reference = $1
		 ORDER BY id`,
		reference)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectEntries(rows)
}

// SumByCurrency returns the signed sum of all entries for one currency:
// credits (DEPOSIT, BUY) minus debits (WITHDRAW, SELL).
func (r *EntryRepository) SumByCurrency(ctx context.Context, currency string) (decimal.Decimal, error) {
	var sum pgtype.Numeric

	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(CASE WHEN type IN ('DEPOSIT', 'BUY') THEN amount ELSE -amount END), 0)
		 FROM ledger_entries
		 WHERE currency = $1`,
		currency,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}

	return numericToDecimal(sum), nil
}

func collectEntries(rows pgx.Rows) ([]*domain.Entry, error) {
	var entries []*domain.Entry

	for rows.Next() {
		var (
			e            domain.Entry
			entryType    string
			amount       pgtype.Numeric
			balanceAfter pgtype.Numeric
			createdAt    pgtype.Timestamptz
		)

		err := rows.Scan(&e.ID, &e.UserID, &entryType, &e.Currency, &amount, &balanceAfter, &e.Reference, &createdAt)
		if err != nil {
			return nil, err
		}

		e.Type = domain.EntryType(entryType)
		e.Amount = numericToDecimal(amount)
		e.BalanceAfter = numericToDecimal(balanceAfter)
		e.CreatedAt = createdAt.Time

		entries = append(entries, &e)
	}

	return entries, rows.Err()
}
