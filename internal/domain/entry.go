package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType classifies a ledger entry.
type EntryType string

const (
	EntryDeposit  EntryType = "DEPOSIT"
	EntryWithdraw EntryType = "WITHDRAW"
	EntryBuy      EntryType = "BUY"
	EntrySell     EntryType = "SELL"
)

// IsValid checks if the entry type is a known value.
func (t EntryType) IsValid() bool {
	switch t {
	case EntryDeposit, EntryWithdraw, EntryBuy, EntrySell:
		return true
	}
	return false
}

// Entry is one immutable leg of a movement: a debit or credit event.
// The two legs of a transfer share the same Reference. IDs are assigned
// by the store and are monotonic.
type Entry struct {
	CreatedAt    time.Time
	Type         EntryType
	Currency     string
	Reference    string
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	ID           int64
	UserID       int64
}
