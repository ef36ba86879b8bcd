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

// TradeSide is the direction of a trade from the user's point of view.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// ExecuteTradeInput describes one buy or sell: Amount of BaseCurrency
// exchanged against QuoteCurrency at the stored rate.
type ExecuteTradeInput struct {
	Side           TradeSide
	BaseCurrency   string
	QuoteCurrency  string
	IdempotencyKey string
	Amount         decimal.Decimal
	UserID         int64
}

// TradeResult reports an executed trade.
type TradeResult struct {
	Reference         string          `json:"reference"`
	Side              TradeSide       `json:"side"`
	Rate              decimal.Decimal `json:"rate"`
	Total             decimal.Decimal `json:"total"`
	BaseBalanceAfter  decimal.Decimal `json:"base_balance_after"`
	QuoteBalanceAfter decimal.Decimal `json:"quote_balance_after"`
	BaseEntryID       int64           `json:"base_entry_id"`
	QuoteEntryID      int64           `json:"quote_entry_id"`
}

// TradeUseCase exchanges one user's holdings between two currencies at the
// stored rate. Both legs commit in one unit of work with the same
// idempotency machinery as transfers.
type TradeUseCase struct {
	txManager       TransactionManager
	balanceRepo     BalanceRepository
	entryRepo       EntryRepository
	idempotencyRepo IdempotencyRepository
	currencyRepo    CurrencyRepository
	rateRepo        RateRepository
	outboxRepo      OutboxRepository
	retrier         Retrier
	idGen           IDGenerator
	metrics         *metrics.Metrics
}

// NewTradeUseCase creates a new TradeUseCase.
func NewTradeUseCase(
	txManager TransactionManager,
	balanceRepo BalanceRepository,
	entryRepo EntryRepository,
	idempotencyRepo IdempotencyRepository,
	currencyRepo CurrencyRepository,
	rateRepo RateRepository,
	outboxRepo OutboxRepository,
	retrier Retrier,
	idGen IDGenerator,
	metrics *metrics.Metrics,
) *TradeUseCase {
	return &TradeUseCase{
		txManager:       txManager,
		balanceRepo:     balanceRepo,
		entryRepo:       entryRepo,
		idempotencyRepo: idempotencyRepo,
		currencyRepo:    currencyRepo,
		rateRepo:        rateRepo,
		outboxRepo:      outboxRepo,
		retrier:         retrier,
		idGen:           idGen,
		metrics:         metrics,
	}
}

// Execute runs one trade attempt.
func (uc *TradeUseCase) Execute(ctx context.Context, input ExecuteTradeInput) (*TradeResult, error) {
	input.BaseCurrency = domain.NormalizeCurrencyCode(input.BaseCurrency)
	input.QuoteCurrency = domain.NormalizeCurrencyCode(input.QuoteCurrency)

	if input.IdempotencyKey == "" {
		return nil, domain.ErrIdempotencyKeyRequired
	}

	if input.Side != TradeSideBuy && input.Side != TradeSideSell {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTradeSide, input.Side)
	}

	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}

	if input.BaseCurrency == input.QuoteCurrency {
		return nil, domain.ErrSelfTransfer
	}

	base, err := uc.currencyRepo.Get(ctx, input.BaseCurrency)
	if err != nil {
		return nil, err
	}

	quote, err := uc.currencyRepo.Get(ctx, input.QuoteCurrency)
	if err != nil {
		return nil, err
	}

	if err := base.CheckScale(input.Amount); err != nil {
		return nil, err
	}

	rate, err := uc.rateRepo.Get(ctx, input.BaseCurrency, input.QuoteCurrency)
	if err != nil {
		return nil, err
	}

	// Quote-leg value, rounded to the quote currency's scale.
	total := input.Amount.Mul(rate.Rate).Round(quote.Scale)
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}

	record, err := uc.idempotencyRepo.Lookup(ctx, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	if record != nil {
		return replayTrade(record)
	}

	var result *TradeResult

	err = uc.retrier.Retry(ctx, func() error {
		var opErr error
		result, opErr = uc.executeOnce(ctx, input, rate.Rate, total)

		return opErr
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			record, lookupErr := uc.idempotencyRepo.Lookup(ctx, input.IdempotencyKey)
			if lookupErr == nil && record != nil {
				return replayTrade(record)
			}
		}

		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TradesExecuted.WithLabelValues(string(input.Side)).Inc()
	}

	return result, nil
}

func (uc *TradeUseCase) executeOnce(ctx context.Context, input ExecuteTradeInput, rate, total decimal.Decimal) (*TradeResult, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// A buy debits the quote currency and credits the base; a sell is the
	// mirror image.
	debitCurrency, debitAmount := input.QuoteCurrency, total
	creditCurrency, creditAmount := input.BaseCurrency, input.Amount

	if input.Side == TradeSideSell {
		debitCurrency, debitAmount = input.BaseCurrency, input.Amount
		creditCurrency, creditAmount = input.QuoteCurrency, total
	}

	balances, err := uc.balanceRepo.GetForUpdate(ctx, tx, []int64{input.UserID}, debitCurrency)
	if err != nil {
		return nil, err
	}

	available := decimal.Zero
	if len(balances) > 0 {
		available = balances[0].Amount
	}

	if available.LessThan(debitAmount) {
		failure := &IdempotencyRecord{
			Key:       input.IdempotencyKey,
			Operation: opTrade,
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

	debitAfter, err := uc.balanceRepo.ApplyDelta(ctx, tx, input.UserID, debitCurrency, debitAmount.Neg())
	if err != nil {
		return nil, err
	}

	creditAfter, err := uc.balanceRepo.ApplyDelta(ctx, tx, input.UserID, creditCurrency, creditAmount)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	reference := uc.idGen.Generate()

	// A buy writes a BUY entry on the credited crypto leg and a WITHDRAW on
	// the debited fiat leg; a sell writes SELL plus DEPOSIT.
	debitType, creditType := domain.EntryWithdraw, domain.EntryBuy
	if input.Side == TradeSideSell {
		debitType, creditType = domain.EntrySell, domain.EntryDeposit
	}

	entries := []*domain.Entry{
		{
			UserID:       input.UserID,
			Type:         debitType,
			Currency:     debitCurrency,
			Amount:       debitAmount,
			BalanceAfter: debitAfter,
			Reference:    reference,
			CreatedAt:    now,
		},
		{
			UserID:       input.UserID,
			Type:         creditType,
			Currency:     creditCurrency,
			Amount:       creditAmount,
			BalanceAfter: creditAfter,
			Reference:    reference,
			CreatedAt:    now,
		},
	}

	if err := uc.entryRepo.Append(ctx, tx, entries); err != nil {
		return nil, err
	}

	// The executed rate goes into the result before it is recorded, so a
	// replay reports the same rate as the original response.
	result := &TradeResult{
		Reference: reference,
		Side:      input.Side,
		Rate:      rate,
		Total:     total,
	}

	if input.Side == TradeSideBuy {
		result.QuoteEntryID = entries[0].ID
		result.BaseEntryID = entries[1].ID
		result.QuoteBalanceAfter = debitAfter
		result.BaseBalanceAfter = creditAfter
	} else {
		result.BaseEntryID = entries[0].ID
		result.QuoteEntryID = entries[1].ID
		result.BaseBalanceAfter = debitAfter
		result.QuoteBalanceAfter = creditAfter
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	success := &IdempotencyRecord{
		Key:       input.IdempotencyKey,
		Operation: opTrade,
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
			AggregateType: domain.AggregateTypeTrade,
			EventType:     domain.EventTypeTradeExecuted,
			Payload: map[string]any{
				"reference":      reference,
				"user_id":        input.UserID,
				"side":           string(input.Side),
				"base_currency":  input.BaseCurrency,
				"quote_currency": input.QuoteCurrency,
				"amount":         input.Amount.String(),
				"total":          total.String(),
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

func replayTrade(record *IdempotencyRecord) (*TradeResult, error) {
	if !record.Succeeded {
		switch record.ErrorKind {
		case errKindInsufficientFunds:
			return nil, domain.ErrInsufficientFunds
		default:
			return nil, fmt.Errorf("unknown recorded failure: %s", record.ErrorKind)
		}
	}

	var result TradeResult
	if err := json.Unmarshal(record.Payload, &result); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record: %w", err)
	}

	return &result, nil
}
