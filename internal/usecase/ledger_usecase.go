package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInconsistentLedger is returned when balances and entries disagree.
var ErrInconsistentLedger = errors.New("ledger is inconsistent: balances do not match entries")

// LedgerUseCase handles ledger-wide operations.
type LedgerUseCase struct {
	balanceRepo  BalanceRepository
	entryRepo    EntryRepository
	currencyRepo CurrencyRepository
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(balanceRepo BalanceRepository, entryRepo EntryRepository, currencyRepo CurrencyRepository) *LedgerUseCase {
	return &LedgerUseCase{
		balanceRepo:  balanceRepo,
		entryRepo:    entryRepo,
		currencyRepo: currencyRepo,
	}
}

// CurrencyConsistency is the per-currency reconciliation result.
type CurrencyConsistency struct {
	Currency   string          `json:"currency"`
	Balances   decimal.Decimal `json:"balances"`
	EntryDelta decimal.Decimal `json:"entry_delta"`
	Consistent bool            `json:"consistent"`
}

// CheckConsistency verifies, per currency, that the sum of all balances
// equals the signed sum of all ledger entries (credits minus debits).
func (uc *LedgerUseCase) CheckConsistency(ctx context.Context) ([]*CurrencyConsistency, error) {
	currencies, err := uc.currencyRepo.List(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*CurrencyConsistency, 0, len(currencies))

	var firstErr error

	for _, c := range currencies {
		balances, err := uc.balanceRepo.SumByCurrency(ctx, c.Code)
		if err != nil {
			return nil, err
		}

		entryDelta, err := uc.entryRepo.SumByCurrency(ctx, c.Code)
		if err != nil {
			return nil, err
		}

		consistent := balances.Equal(entryDelta)
		if !consistent && firstErr == nil {
			firstErr = fmt.Errorf("%w: %s balances=%s entries=%s",
				ErrInconsistentLedger, c.Code, balances, entryDelta)
		}

		results = append(results, &CurrencyConsistency{
			Currency:   c.Code,
			Balances:   balances,
			EntryDelta: entryDelta,
			Consistent: consistent,
		})
	}

	return results, firstErr
}
