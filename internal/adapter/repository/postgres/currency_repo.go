package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinflip/exchange-ledger/internal/domain"
)

// CurrencyRepository implements usecase.CurrencyRepository.
type CurrencyRepository struct {
	pool *pgxpool.Pool
}

// NewCurrencyRepository creates a new CurrencyRepository.
func NewCurrencyRepository(pool *pgxpool.Pool) *CurrencyRepository {
	return &CurrencyRepository{pool: pool}
}

// Get retrieves one supported currency.
func (r *CurrencyRepository) Get(ctx context.Context, code string) (*domain.Currency, error) {
	var c domain.Currency

	err := r.pool.QueryRow(ctx,
		`SELECT code, scale FROM currencies WHERE code = $1`,
		code,
	).Scan(&c.Code, &c.Scale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCurrency, code)
		}

		return nil, err
	}

	return &c, nil
}

// List retrieves all supported currencies ordered by code.
func (r *CurrencyRepository) List(ctx context.Context) ([]*domain.Currency, error) {
	rows, err := r.pool.Query(ctx, `SELECT code, scale FROM currencies ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var currencies []*domain.Currency

	for rows.Next() {
		var c domain.Currency
		if err := rows.Scan(&c.Code, &c.Scale); err != nil {
			return nil, err
		}

		currencies = append(currencies, &c)
	}

	return currencies, rows.Err()
}
