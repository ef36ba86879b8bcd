package domain

import "errors"

var (
	// Transfer errors
	ErrSelfTransfer      = errors.New("cannot transfer to the same user")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrAmountPrecision   = errors.New("amount exceeds currency precision")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("transfer conflicted with a concurrent operation")

	// Trade errors
	ErrInvalidTradeSide = errors.New("trade side must be buy or sell")

	// Idempotency errors
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")

	// Balance errors
	ErrBalanceNotFound = errors.New("balance not found")

	// Entry errors
	ErrEntryNotFound    = errors.New("entry not found")
	ErrInvalidEntryType = errors.New("invalid entry type")

	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrRecipientNotFound  = errors.New("recipient not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user is deactivated")

	// Currency errors
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrRateNotFound    = errors.New("exchange rate not found")

	// Auth errors
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)
