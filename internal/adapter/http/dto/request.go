package dto

import (
	"github.com/shopspring/decimal"

	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ToUseCaseInput converts to use case input.
func (r *RegisterRequest) ToUseCaseInput() usecase.RegisterInput {
	return usecase.RegisterInput{
		Username: r.Username,
		Email:    r.Email,
		Password: r.Password,
	}
}

// LoginRequest represents a login request. Identifier is a username or
// email.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// ToUseCaseInput converts to use case input.
func (r *LoginRequest) ToUseCaseInput() usecase.AuthenticateInput {
	return usecase.AuthenticateInput{
		Identifier: r.Identifier,
		Password:   r.Password,
	}
}

// CreateTransferRequest represents a transfer request. The sender is always
// the authenticated caller; ToUsername resolves to the recipient.
type CreateTransferRequest struct {
	ToUsername     string          `json:"to_username"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// ToDomainRequest converts to a domain transfer request once both user IDs
// are resolved.
func (r *CreateTransferRequest) ToDomainRequest(fromUserID, toUserID int64) domain.TransferRequest {
	return domain.TransferRequest{
		FromUserID:     fromUserID,
		ToUserID:       toUserID,
		Currency:       r.Currency,
		Amount:         r.Amount,
		IdempotencyKey: r.IdempotencyKey,
	}
}

// CreateTradeRequest represents a buy or sell request.
type CreateTradeRequest struct {
	Side           string          `json:"side"`
	BaseCurrency   string          `json:"base_currency"`
	QuoteCurrency  string          `json:"quote_currency"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// ToUseCaseInput converts to use case input for the authenticated caller.
func (r *CreateTradeRequest) ToUseCaseInput(userID int64) usecase.ExecuteTradeInput {
	return usecase.ExecuteTradeInput{
		UserID:         userID,
		Side:           usecase.TradeSide(r.Side),
		BaseCurrency:   r.BaseCurrency,
		QuoteCurrency:  r.QuoteCurrency,
		Amount:         r.Amount,
		IdempotencyKey: r.IdempotencyKey,
	}
}

// UpsertRateRequest represents an admin rate upsert.
type UpsertRateRequest struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

// UpdateUserRequest represents an admin user update.
type UpdateUserRequest struct {
	Role   *string `json:"role,omitempty"`
	Active *bool   `json:"active,omitempty"`
}
