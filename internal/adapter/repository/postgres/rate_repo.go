package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinflip/exchange-ledger/internal/domain"
)

// RateRepository implements usecase.RateRepository.
type RateRepository struct {
	pool *pgxpool.Pool
}

// NewRateRepository creates a new RateRepository.
func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{pool: pool}
}

// Get retrieves the current rate for one pair.
func (r *RateRepository) Get(ctx context.Context, base, target string) (*domain.ExchangeRate, error) {
	var (
		rate      domain.ExchangeRate
		value     pgtype.Numeric
		updatedAt pgtype.Timestamptz
	)

	err := r.pool.QueryRow(ctx,
		`SELECT base_currency, target_currency, rate, updated_at
		 FROM exchange_rates
		 WHERE base_currency = $1 AND target_currency = $2`,
		base, target,
	).Scan(&rate.BaseCurrency, &rate.TargetCurrency, &value, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", domain.ErrRateNotFound, base, target)
		}

		return nil, err
	}

	rate.Rate = numericToDecimal(value)
	rate.UpdatedAt = updatedAt.Time

	return &rate, nil
}

// Upsert stores or updates the rate for one pair.
func (r *RateRepository) Upsert(ctx context.Context, rate *domain.ExchangeRate) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exchange_rates (base_currency, target_currency, rate, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (base_currency, target_currency)
		 DO UPDATE SET rate = EXCLUDED.rate, updated_at = EXCLUDED.updated_at`,
		rate.BaseCurrency,
		rate.TargetCurrency,
		decimalToNumeric(rate.Rate),
		timeToPgTimestamptz(rate.UpdatedAt),
	)

	return err
}

// ListPairs retrieves all known pairs.
func (r *RateRepository) ListPairs(ctx context.Context) ([]*domain.ExchangeRate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT base_currency, target_currency, rate, updated_at
		 FROM exchange_rates
		 ORDER BY base_currency, target_currency`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rates []*domain.ExchangeRate

	for rows.Next() {
		var (
			rate      domain.ExchangeRate
			value     pgtype.Numeric
			updatedAt pgtype.Timestamptz
		)

		if err := rows.Scan(&rate.BaseCurrency, &rate.TargetCurrency, &value, &updatedAt); err != nil {
			return nil, err
		}

		rate.Rate = numericToDecimal(value)
		rate.UpdatedAt = updatedAt.Time

		rates = append(rates, &rate)
	}

	return rates, rows.Err()
}

// GetHistory retrieves daily rate points for a pair in [from, to].
func (r *RateRepository) GetHistory(ctx context.Context, base, target string, from, to time.Time) ([]*domain.RatePoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT rate_date, rate
		 FROM exchange_rate_history
		 WHERE base_currency = $1 AND target_currency = $2
		   AND rate_date BETWEEN $3 AND $4
		 ORDER BY rate_date`,
		base, target, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []*domain.RatePoint

	for rows.Next() {
		var (
			p     domain.RatePoint
			date  pgtype.Date
			value pgtype.Numeric
		)

		if err := rows.Scan(&date, &value); err != nil {
			return nil, err
		}

		p.Date = date.Time
		p.Rate = numericToDecimal(value)

		points = append(points, &p)
	}

	return points, rows.Err()
}

// UpsertHistory stores daily rate points for a pair.
func (r *RateRepository) UpsertHistory(ctx context.Context, base, target string, points []*domain.RatePoint) error {
	for _, p := range points {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO exchange_rate_history (base_currency, target_currency, rate_date, rate)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (base_currency, target_currency, rate_date)
			 DO UPDATE SET rate = EXCLUDED.rate`,
			base, target, pgtype.Date{Time: p.Date, Valid: true}, decimalToNumeric(p.Rate),
		)
		if err != nil {
			return err
		}
	}

	return nil
}
