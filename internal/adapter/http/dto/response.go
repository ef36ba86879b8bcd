package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserFromDomain converts a domain user to a response.
func UserFromDomain(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
	}
}

// UsersFromDomain converts a slice of domain users.
func UsersFromDomain(users []*domain.User) []*UserResponse {
	out := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, UserFromDomain(u))
	}
	return out
}

// TokenResponse represents a successful authentication.
type TokenResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user"`
}

// BalanceResponse represents a single currency balance.
type BalanceResponse struct {
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BalanceFromDomain converts a domain balance to a response.
func BalanceFromDomain(b *domain.Balance) *BalanceResponse {
	return &BalanceResponse{
		Currency:  b.Currency,
		Amount:    b.Amount,
		UpdatedAt: b.UpdatedAt,
	}
}

// BalancesFromDomain converts a slice of domain balances.
func BalancesFromDomain(balances []*domain.Balance) []*BalanceResponse {
	out := make([]*BalanceResponse, 0, len(balances))
	for _, b := range balances {
		out = append(out, BalanceFromDomain(b))
	}
	return out
}

// EntryResponse represents a ledger entry.
type EntryResponse struct {
	ID           int64           `json:"id"`
	Type         string          `json:"type"`
	Currency     string          `json:"currency"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	Reference    string          `json:"reference"`
	CreatedAt    time.Time       `json:"created_at"`
}

// EntryFromDomain converts a domain entry to a response.
func EntryFromDomain(e *domain.Entry) *EntryResponse {
	return &EntryResponse{
		ID:           e.ID,
		Type:         string(e.Type),
		Currency:     e.Currency,
		Amount:       e.Amount,
		BalanceAfter: e.BalanceAfter,
		Reference:    e.Reference,
		CreatedAt:    e.CreatedAt,
	}
}

// EntriesFromDomain converts a slice of domain entries.
func EntriesFromDomain(entries []*domain.Entry) []*EntryResponse {
	out := make([]*EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, EntryFromDomain(e))
	}
	return out
}

// TransferResponse represents a completed transfer.
type TransferResponse struct {
	Reference          string          `json:"reference"`
	SenderBalanceAfter decimal.Decimal `json:"sender_balance_after"`
	WithdrawEntryID    int64           `json:"withdraw_entry_id"`
	DepositEntryID     int64           `json:"deposit_entry_id"`
}

// TransferFromDomain converts a domain transfer result. The receiver's new
// balance is deliberately not exposed to the sender.
func TransferFromDomain(res *domain.TransferResult) *TransferResponse {
	return &TransferResponse{
		Reference:          res.Reference,
		SenderBalanceAfter: res.SenderBalanceAfter,
		WithdrawEntryID:    res.WithdrawEntryID,
		DepositEntryID:     res.DepositEntryID,
	}
}

// TradeResponse represents an executed trade.
type TradeResponse struct {
	Reference         string          `json:"reference"`
	Side              string          `json:"side"`
	Rate              decimal.Decimal `json:"rate"`
	Total             decimal.Decimal `json:"total"`
	BaseBalanceAfter  decimal.Decimal `json:"base_balance_after"`
	QuoteBalanceAfter decimal.Decimal `json:"quote_balance_after"`
}

// TradeFromUseCase converts a trade result to a response.
func TradeFromUseCase(res *usecase.TradeResult) *TradeResponse {
	return &TradeResponse{
		Reference:         res.Reference,
		Side:              string(res.Side),
		Rate:              res.Rate,
		Total:             res.Total,
		BaseBalanceAfter:  res.BaseBalanceAfter,
		QuoteBalanceAfter: res.QuoteBalanceAfter,
	}
}

// CurrencyResponse represents a supported currency.
type CurrencyResponse struct {
	Code  string `json:"code"`
	Scale int32  `json:"scale"`
}

// CurrenciesFromDomain converts a slice of domain currencies.
func CurrenciesFromDomain(currencies []*domain.Currency) []*CurrencyResponse {
	out := make([]*CurrencyResponse, 0, len(currencies))
	for _, c := range currencies {
		out = append(out, &CurrencyResponse{Code: c.Code, Scale: c.Scale})
	}
	return out
}

// ConversionResponse represents a rate conversion quote.
type ConversionResponse struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
	Rate   decimal.Decimal `json:"rate"`
	Result decimal.Decimal `json:"result"`
}

// TimeseriesResponse represents a daily rate history.
type TimeseriesResponse struct {
	Base  string                     `json:"base"`
	Quote string                     `json:"quote"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// ConsistencyResponse represents a per-currency ledger consistency report.
type ConsistencyResponse struct {
	Currency   string          `json:"currency"`
	Balances   decimal.Decimal `json:"balances"`
	EntryDelta decimal.Decimal `json:"entry_delta"`
	Consistent bool            `json:"consistent"`
}

// ConsistencyFromUseCase converts consistency results to responses.
func ConsistencyFromUseCase(results []*usecase.CurrencyConsistency) []*ConsistencyResponse {
	out := make([]*ConsistencyResponse, 0, len(results))
	for _, r := range results {
		out = append(out, &ConsistencyResponse{
			Currency:   r.Currency,
			Balances:   r.Balances,
			EntryDelta: r.EntryDelta,
			Consistent: r.Consistent,
		})
	}
	return out
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
