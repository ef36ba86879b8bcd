package usecase

import "time"

const (
	// DefaultTransactionTimeout bounds a single unit of work so a stuck
	// transfer cannot hold row locks indefinitely.
	DefaultTransactionTimeout = 10 * time.Second

	// IdempotencyRetention is how long committed idempotency records are
	// kept before cleanup.
	IdempotencyRetention = 24 * time.Hour
)
