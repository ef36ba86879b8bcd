package domain

import "time"

// Event types
const (
	EventTypeTransferCompleted = "transfer.completed"
	EventTypeTradeExecuted     = "trade.executed"
	EventTypeUserRegistered    = "user.registered"
)

// Aggregate types
const (
	AggregateTypeTransfer = "transfer"
	AggregateTypeTrade    = "trade"
	AggregateTypeUser     = "user"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TransferCompletedEvent payload
type TransferCompletedEvent struct {
	Reference  string `json:"reference"`
	FromUserID int64  `json:"from_user_id"`
	ToUserID   int64  `json:"to_user_id"`
	Currency   string `json:"currency"`
	Amount     string `json:"amount"`
}

// TradeExecutedEvent payload
type TradeExecutedEvent struct {
	Reference     string `json:"reference"`
	UserID        int64  `json:"user_id"`
	Side          string `json:"side"`
	BaseCurrency  string `json:"base_currency"`
	QuoteCurrency string `json:"quote_currency"`
	Amount        string `json:"amount"`
	Rate          string `json:"rate"`
}

// UserRegisteredEvent payload
type UserRegisteredEvent struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}
