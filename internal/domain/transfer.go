package domain

import (
	"github.com/shopspring/decimal"
)

// TransferRequest describes one attempted balance movement between two users.
// The idempotency key identifies a single logical attempt across retries.
type TransferRequest struct {
	Currency       string
	IdempotencyKey string
	Amount         decimal.Decimal
	FromUserID     int64
	ToUserID       int64
}

// Validate performs the request-shape checks that need no store access.
func (r *TransferRequest) Validate() error {
	if r.FromUserID == r.ToUserID {
		return ErrSelfTransfer
	}

	if r.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if err := ValidateCurrencyCode(r.Currency); err != nil {
		return err
	}

	return nil
}

// TransferResult reports a completed transfer: the two ledger entry IDs and
// both balances after commit.
type TransferResult struct {
	Reference            string
	SenderBalanceAfter   decimal.Decimal
	ReceiverBalanceAfter decimal.Decimal
	WithdrawEntryID      int64
	DepositEntryID       int64
}
