package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

// BalanceRepository implements usecase.BalanceRepository.
type BalanceRepository struct {
	pool *pgxpool.Pool
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(pool *pgxpool.Pool) *BalanceRepository {
	return &BalanceRepository{pool: pool}
}

// Get retrieves one balance row.
func (r *BalanceRepository) Get(ctx context.Context, userID int64, currency string) (*domain.Balance, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT user_id, currency, amount, updated_at
		 FROM balances
		 WHERE user_id = $1 AND currency = $2`,
		userID, currency)

	balance, err := scanBalance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBalanceNotFound
		}

		return nil, err
	}

	return balance, nil
}

// ListByUser retrieves all balances of a user ordered by currency.
func (r *BalanceRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Balance, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, currency, amount, updated_at
		 FROM balances
		 WHERE user_id = $1
		 ORDER BY currency`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBalances(rows)
}

// GetForUpdate locks the balance rows of the given users for one currency.
// Rows are locked in ascending user_id order; missing rows are skipped.
func (r *BalanceRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, userIDs []int64, currency string) ([]*domain.Balance, error) {
	pgxTx := tx.(*Tx).PgxTx()

	rows, err := pgxTx.Query(ctx,
		`SELECT user_id, currency, amount, updated_at
		 FROM balances
		 WHERE user_id = ANY($1) AND currency = $2
		 ORDER BY user_id
		 FOR UPDATE`,
		userIDs, currency)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBalances(rows)
}

// ApplyDelta upserts the balance row and adds delta, returning the resulting
// amount. The amount_non_negative CHECK constraint rejects results below
// zero.
func (r *BalanceRepository) ApplyDelta(ctx context.Context, tx usecase.Transaction, userID int64, currency string, delta decimal.Decimal) (decimal.Decimal, error) {
	pgxTx := tx.(*Tx).PgxTx()

	var amount pgtype.Numeric

	err := pgxTx.QueryRow(ctx,
		`INSERT INTO balances (user_id, currency, amount, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, currency)
		 DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = EXCLUDED.updated_at
		 RETURNING amount`,
		userID, currency, decimalToNumeric(delta), timeToPgTimestamptz(time.Now().UTC()),
	).Scan(&amount)
	if err != nil {
		return decimal.Zero, err
	}

	return numericToDecimal(amount), nil
}

// SumByCurrency returns the sum of all balances for one currency.
func (r *BalanceRepository) SumByCurrency(ctx context.Context, currency string) (decimal.Decimal, error) {
	var sum pgtype.Numeric

	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM balances WHERE currency = $1`,
		currency,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}

	return numericToDecimal(sum), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBalance(row rowScanner) (*domain.Balance, error) {
	var (
		b         domain.Balance
		amount    pgtype.Numeric
		updatedAt pgtype.Timestamptz
	)

	if err := row.Scan(&b.UserID, &b.Currency, &amount, &updatedAt); err != nil {
		return nil, err
	}

	b.Amount = numericToDecimal(amount)
	b.UpdatedAt = updatedAt.Time

	return &b, nil
}

func collectBalances(rows pgx.Rows) ([]*domain.Balance, error) {
	var balances []*domain.Balance

	for rows.Next() {
		balance, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}

		balances = append(balances, balance)
	}

	return balances, rows.Err()
}
