package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/metrics"
)

// Idempotency record operations and error kinds.
const (
	opTransfer = "transfer"
	opTrade    = "trade"

	errKindInsufficientFunds = "insufficient_funds"
)

// TransferUseCase executes peer-to-peer balance transfers. Each transfer
// debits the sender, credits the receiver and appends a paired WITHDRAW and
// DEPOSIT entry in one atomic unit of work, exactly once per idempotency key.
type TransferUseCase struct {
	txManager       TransactionManager
	balanceRepo     BalanceRepository
	entryRepo       EntryRepository
	idempotencyRepo IdempotencyRepository
	userRepo        UserRepository
	currencyRepo    CurrencyRepository
	outboxRepo      OutboxRepository
	retrier         Retrier
	idGen           IDGenerator
	metrics         *metrics.Metrics
}

// NewTransferUseCase creates a new TransferUseCase. outboxRepo and metrics
// may be nil to disable event publishing and instrumentation.
func NewTransferUseCase(
	txManager TransactionManager,
	balanceRepo BalanceRepository,
	entryRepo EntryRepository,
	idempotencyRepo IdempotencyRepository,
	userRepo UserRepository,
	currencyRepo CurrencyRepository,
	outboxRepo OutboxRepository,
	retrier Retrier,
	idGen IDGenerator,
	metrics *metrics.Metrics,
) *TransferUseCase {
	return &TransferUseCase{
		txManager:       txManager,
		balanceRepo:     balanceRepo,
		entryRepo:       entryRepo,
		idempotencyRepo: idempotencyRepo,
		userRepo:        userRepo,
		currencyRepo:    currencyRepo,
		outboxRepo:      outboxRepo,
		retrier:         retrier,
		idGen:           idGen,
		metrics:         metrics,
	}
}

// Execute runs one transfer attempt. Replays of an already-committed
// idempotency key return the recorded outcome without moving funds.
func (uc *TransferUseCase) Execute(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	req.Currency = domain.NormalizeCurrencyCode(req.Currency)

	if req.IdempotencyKey == "" {
		return nil, domain.ErrIdempotencyKeyRequired
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	currency, err := uc.currencyRepo.Get(ctx, req.Currency)
	if err != nil {
		return nil, err
	}

	if err := currency.CheckScale(req.Amount); err != nil {
		return nil, err
	}

	if _, err := uc.userRepo.GetByID(ctx, req.FromUserID); err != nil {
		return nil, err
	}

	if _, err := uc.userRepo.GetByID(ctx, req.ToUserID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrRecipientNotFound
		}

		return nil, err
	}

	// Fast path: the key was already committed by an earlier attempt.
	record, err := uc.idempotencyRepo.Lookup(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	if record != nil {
		if uc.metrics != nil {
			uc.metrics.TransferReplays.Inc()
		}

		return replayTransfer(record)
	}

	start := time.Now()

	var result *domain.TransferResult

	err = uc.retrier.Retry(ctx, func() error {
		var opErr error
		result, opErr = uc.executeOnce(ctx, req)

		return opErr
	})
	if err != nil {
		// A concurrent attempt with the same key may have won the race to
		// record the outcome. Replay it instead of surfacing the conflict.
		if errors.Is(err, domain.ErrConflict) {
			record, lookupErr := uc.idempotencyRepo.Lookup(ctx, req.IdempotencyKey)
			if lookupErr == nil && record != nil {
				if uc.metrics != nil {
					uc.metrics.TransferReplays.Inc()
				}

				return replayTransfer(record)
			}
		}

		if uc.metrics != nil {
			uc.metrics.TransferErrors.WithLabelValues(errorKind(err)).Inc()
		}

		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TransfersCompleted.Inc()
		uc.metrics.TransferDuration.Observe(time.Since(start).Seconds())
	}

	return result, nil
}

// errorKind buckets an execution error for the error counter.
func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return errKindInsufficientFunds
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// GetByReference returns the two ledger entries of a committed transfer.
func (uc *TransferUseCase) GetByReference(ctx context.Context, reference string) ([]*domain.Entry, error) {
	entries, err := uc.entryRepo.ListByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, domain.ErrEntryNotFound
	}

	return entries, nil
}

// executeOnce runs a single unit of work. Any error leaves the store
// untouched; retryable store conflicts are handled by the caller's retrier.
func (uc *TransferUseCase) executeOnce(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Lock both balance rows in ascending user ID order so opposite-direction
	// transfers between the same pair cannot deadlock.
	lockIDs := orderedPair(req.FromUserID, req.ToUserID)

	balances, err := uc.balanceRepo.GetForUpdate(ctx, tx, lockIDs, req.Currency)
	if err != nil {
		return nil, err
	}

	senderBalance := decimal.Zero
	for _, b := range balances {
		if b.UserID == req.FromUserID {
			senderBalance = b.Amount
		}
	}

	if senderBalance.LessThan(req.Amount) {
		// Record the failure under the key so a replay is deterministic,
		// then commit only that record.
		failure := &IdempotencyRecord{
			Key:       req.IdempotencyKey,
			Operation: opTransfer,
			Succeeded: false,
			ErrorKind: errKindInsufficientFunds,
			CreatedAt: time.Now().UTC(),
		}

		if err := uc.idempotencyRepo.Record(ctx, tx, failure); err != nil {
			return nil, err
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		return nil, domain.ErrInsufficientFunds
	}

	senderAfter, err := uc.balanceRepo.ApplyDelta(ctx, tx, req.FromUserID, req.Currency, req.Amount.Neg())
	if err != nil {
		return nil, err
	}

	receiverAfter, err := uc.balanceRepo.ApplyDelta(ctx, tx, req.ToUserID, req.Currency, req.Amount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	reference := uc.idGen.Generate()

	entries := []*domain.Entry{
		{
			UserID:       req.FromUserID,
			Type:         domain.EntryWithdraw,
			Currency:     req.Currency,
			Amount:       req.Amount,
			BalanceAfter: senderAfter,
			Reference:    reference,
			CreatedAt:    now,
		},
		{
			UserID:       req.ToUserID,
			Type:         domain.EntryDeposit,
			Currency:     req.Currency,
			Amount:       req.Amount,
			BalanceAfter: receiverAfter,
			Reference:    reference,
			CreatedAt:    now,
		},
	}

	if err := uc.entryRepo.Append(ctx, tx, entries); err != nil {
		return nil, err
	}

	result := &domain.TransferResult{
		Reference:            reference,
		WithdrawEntryID:      entries[0].ID,
		DepositEntryID:       entries[1].ID,
		SenderBalanceAfter:   senderAfter,
		ReceiverBalanceAfter: receiverAfter,
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	success := &IdempotencyRecord{
		Key:       req.IdempotencyKey,
		Operation: opTransfer,
		Succeeded: true,
		Payload:   payload,
		CreatedAt: now,
	}

	if err := uc.idempotencyRepo.Record(ctx, tx, success); err != nil {
		return nil, err
	}

	if uc.outboxRepo != nil {
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   reference,
			AggregateType: domain.AggregateTypeTransfer,
			EventType:     domain.EventTypeTransferCompleted,
			Payload: map[string]any{
				"reference":    reference,
				"from_user_id": req.FromUserID,
				"to_user_id":   req.ToUserID,
				"currency":     req.Currency,
				"amount":       req.Amount.String(),
			},
			CreatedAt: now,
		}

		if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return result, nil
}

// replayTransfer reconstructs the original outcome from a committed
// idempotency record.
func replayTransfer(record *IdempotencyRecord) (*domain.TransferResult, error) {
	if !record.Succeeded {
		switch record.ErrorKind {
		case errKindInsufficientFunds:
			return nil, domain.ErrInsufficientFunds
		default:
			return nil, fmt.Errorf("unknown recorded failure: %s", record.ErrorKind)
		}
	}

	var result domain.TransferResult
	if err := json.Unmarshal(record.Payload, &result); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record: %w", err)
	}

	return &result, nil
}

func orderedPair(a, b int64) []int64 {
	if a < b {
		return []int64{a, b}
	}

	return []int64{b, a}
}
