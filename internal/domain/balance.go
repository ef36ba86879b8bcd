package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance represents the quantity of one currency held by one user.
// At most one balance exists per (user, currency) pair.
type Balance struct {
	UpdatedAt time.Time
	Currency  string
	Amount    decimal.Decimal
	UserID    int64
}

// CanDebit checks if the balance covers a debit of amount.
func (b *Balance) CanDebit(amount decimal.Decimal) bool {
	return b.Amount.GreaterThanOrEqual(amount)
}

// ApplyDebit returns the balance amount after a debit.
func (b *Balance) ApplyDebit(amount decimal.Decimal) decimal.Decimal {
	return b.Amount.Sub(amount)
}

// ApplyCredit returns the balance amount after a credit.
func (b *Balance) ApplyCredit(amount decimal.Decimal) decimal.Decimal {
	return b.Amount.Add(amount)
}
