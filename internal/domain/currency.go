package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency describes a supported currency and its fixed-point scale
// (2 for most fiat, up to 8 for crypto).
type Currency struct {
	Code  string
	Scale int32
}

// CheckScale verifies that amount has no more fractional digits than the
// currency allows.
func (c *Currency) CheckScale(amount decimal.Decimal) error {
	if amount.Exponent() < -c.Scale {
		return ErrAmountPrecision
	}
	return nil
}

// ExchangeRate is the current conversion rate for one currency pair.
type ExchangeRate struct {
	UpdatedAt      time.Time
	BaseCurrency   string
	TargetCurrency string
	Rate           decimal.Decimal
}

// RatePoint is one day of rate history for a pair.
type RatePoint struct {
	Date time.Time
	Rate decimal.Decimal
}
