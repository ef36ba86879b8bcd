package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"

	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/usecase"
	"github.com/coinflip/exchange-ledger/internal/usecase/mocks"
)

type transferFixture struct {
	balanceRepo     *mocks.MockBalanceRepository
	entryRepo       *mocks.MockEntryRepository
	idempotencyRepo *mocks.MockIdempotencyRepository
	userRepo        *mocks.MockUserRepository
	outboxRepo      *mocks.MockOutboxRepository
	uc              *usecase.TransferUseCase
}

// newTransferFixture wires a transfer usecase against in-memory repos with
// two seeded users (alice=1, bob=2) and a USD currency with scale 2.
func newTransferFixture(t *testing.T) *transferFixture {
	t.Helper()

	ctrl := gomock.NewController(t)

	currencyRepo := mocks.NewMockCurrencyRepository(ctrl)
	currencyRepo.EXPECT().Get(gomock.Any(), "USD").Return(&domain.Currency{Code: "USD", Scale: 2}, nil).AnyTimes()
	currencyRepo.EXPECT().Get(gomock.Any(), "BTC").Return(&domain.Currency{Code: "BTC", Scale: 8}, nil).AnyTimes()
	currencyRepo.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, domain.ErrUnknownCurrency).AnyTimes()

	idGen := mocks.NewMockIDGenerator(ctrl)
	seq := 0
	idGen.EXPECT().Generate().DoAndReturn(func() string {
		seq++
		return "01J" + time.Now().Format("150405") + string(rune('A'+seq%26))
	}).AnyTimes()

	f := &transferFixture{
		balanceRepo:     mocks.NewMockBalanceRepository(),
		entryRepo:       mocks.NewMockEntryRepository(),
		idempotencyRepo: mocks.NewMockIdempotencyRepository(),
		userRepo:        mocks.NewMockUserRepository(),
		outboxRepo:      mocks.NewMockOutboxRepository(),
	}

	for _, username := range []string{"alice", "bob"} {
		if err := f.userRepo.Create(context.Background(), &domain.User{
			Username: username,
			Email:    username + "@example.com",
			Role:     domain.RoleUser,
			Active:   true,
		}); err != nil {
			t.Fatalf("seed user %s: %v", username, err)
		}
	}

	f.uc = usecase.NewTransferUseCase(
		mocks.NewMockTransactionManager(),
		f.balanceRepo,
		f.entryRepo,
		f.idempotencyRepo,
		f.userRepo,
		currencyRepo,
		f.outboxRepo,
		mocks.NewMockRetrier(),
		idGen,
		nil,
	)

	return f
}

func transferReq(amount string, key string) domain.TransferRequest {
	return domain.TransferRequest{
		FromUserID:     1,
		ToUserID:       2,
		Currency:       "USD",
		Amount:         decimal.RequireFromString(amount),
		IdempotencyKey: key,
	}
}

func TestTransferUseCase_Execute(t *testing.T) {
	f := newTransferFixture(t)
	f.balanceRepo.Seed(1, "USD", decimal.NewFromInt(100))

	result, err := f.uc.Execute(context.Background(), transferReq("30.50", "key-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Reference == "" {
		t.Error("expected a reference")
	}

	if !result.SenderBalanceAfter.Equal(decimal.RequireFromString("69.50")) {
		t.Errorf("sender balance after = %s, want 69.50", result.SenderBalanceAfter)
	}

	if !result.ReceiverBalanceAfter.Equal(decimal.RequireFromString("30.50")) {
		t.Errorf("receiver balance after = %s, want 30.50", result.ReceiverBalanceAfter)
	}

	entries := f.entryRepo.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	withdraw, deposit := entries[0], entries[1]
	if withdraw.Type != domain.EntryWithdraw || withdraw.UserID != 1 {
		t.Errorf("first entry = %s for user %d, want WITHDRAW for user 1", withdraw.Type, withdraw.UserID)
	}

	if deposit.Type != domain.EntryDeposit || deposit.UserID != 2 {
		t.Errorf("second entry = %s for user %d, want DEPOSIT for user 2", deposit.Type, deposit.UserID)
	}

	if withdraw.Reference != deposit.Reference {
		t.Errorf("entry references differ: %s vs %s", withdraw.Reference, deposit.Reference)
	}

	if !withdraw.Amount.Equal(deposit.Amount) {
		t.Errorf("entry amounts differ: %s vs %s", withdraw.Amount, deposit.Amount)
	}

	if len(f.outboxRepo.All()) != 1 {
		t.Errorf("expected 1 outbox event, got %d", len(f.outboxRepo.All()))
	}
}

func TestTransferUseCase_Execute_ConservesTotal(t *testing.T) {
	f := newTransferFixture(t)
	f.balanceRepo.Seed(1, "USD", decimal.NewFromInt(100))
	f.balanceRepo.Seed(2, "USD", decimal.NewFromInt(40))

	if _, err := f.uc.Execute(context.Background(), transferReq("25", "key-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum, err := f.balanceRepo.SumByCurrency(context.Background(), "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !sum.Equal(decimal.NewFromInt(140)) {
		t.Errorf("total balance = %s, want 140", sum)
	}
}

func TestTransferUseCase_Execute_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.TransferRequest)
		wantErr error
	}{
		{
			name:    "self transfer",
			mutate:  func(r *domain.TransferRequest) { r.ToUserID = r.FromUserID },
			wantErr: domain.ErrSelfTransfer,
		},
		{
			name:    "zero amount",
			mutate:  func(r *domain.TransferRequest) { r.Amount = decimal.Zero },
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			mutate:  func(r *domain.TransferRequest) { r.Amount = decimal.NewFromInt(-5) },
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "too many fractional digits",
			mutate:  func(r *domain.TransferRequest) { r.Amount = decimal.RequireFromString("1.005") },
			wantErr: domain.ErrAmountPrecision,
		},
		{
			name:    "unknown currency",
			mutate:  func(r *domain.TransferRequest) { r.Currency = "XYZ" },
			wantErr: domain.ErrUnknownCurrency,
		},
		{
			name:    "missing idempotency key",
			mutate:  func(r *domain.TransferRequest) { r.IdempotencyKey = "" },
			wantErr: domain.ErrIdempotencyKeyRequired,
		},
		{
			name:    "recipient not found",
			mutate:  func(r *domain.TransferRequest) { r.ToUserID = 99 },
			wantErr: domain.ErrRecipientNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTransferFixture(t)
			f.balanceRepo.Seed(1, "USD", decimal.NewFromInt(100))

			req := transferReq("10", "key-1")
			tt.mutate(&req)

			_, err := f.uc.Execute(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}

			if n := len(f.entryRepo.All()); n != 0 {
				t.Errorf("expected no entries, got %d", n)
			}
		})
	}
}

func TestTransferUseCase_Execute_LowercaseCurrencyNormalized(t *testing.T) {
	f := newTransferFixture(t)
	f.balanceRepo.Seed(1, "USD", decimal.NewFromInt(100))

	req := transferReq("10", "key-1")
	req.Currency = "usd"

	if _, err := f.uc.Execute(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries := f.entryRepo.All()
	if len(entries) != 2 || entries[0].Currency != "USD" {
		t.Errorf("expected entries in USD, got %+v", entries)
	}
}

func TestTransferUseCase_Execute_InsufficientFunds(t *testing.T) {
	f := newTransferFixture(t)
	f.balanceRepo.Seed(1, "USD", decimal.NewFromInt(10))

	_, err := f.uc.Execute(context.Background(), transferReq("50", "key-1"))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// No funds moved and no entries written, but the failure itself is
	// recorded under the key.
	balance, err := f.balanceRepo.Get(context.Background(), 1, "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !balance.Amount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("sender balance = %s, want 10", balance.Amount)
	}

	if n := len(f.entryRepo.All()); n != 0 {
		t.Errorf("expected no entries, got %d", n)
	}

	record, err := f.idempotencyRepo.Lookup(context.Background(), "key-1")
	if err != nil || record == nil {
		t.Fatalf("expected a recorded failure, got record=%v err=%v", record, err)
	}

	if record.Succeeded {
		t.Error("recorded outcome should be a failure")
	}
}

func TestTransferUseCase_Execute_FailureReplayStaysFailed(t *testing.T) {
	f := newTransferFixture(t)
	f.balanceRepo.Seed(1, "USD", decimal.NewFromInt(10))

	if _, err := f.uc.Execute(context.Background(), transferReq("50", "key-1")); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Top the sender up. The replay must still report the recorded failure,
	// not re-run the transfer.
	f.balanceRepo.Seed(1, "USD", decimal.NewFromInt(1000))

	if _, err := f.uc.Execute(context.Background(), transferReq("50", "key-1")); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected replayed ErrInsufficientFunds, got %v", err)
	}

	balance, _ := f.balanceRepo.Get(context.Background(), 1, "USD")
	if !balance.Amount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("replay moved funds: balance = %s", balance.Amount)
	}
}

func TestTransferUseCase_Execute_SuccessReplay(t *testing.T) {
	f := newTransferFixture(t)
	f.balanceRepo.Seed(1, "USD", decimal.NewFromInt(100))

	first, err := f.uc.Execute(context.Background(), transferReq("30", "key-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := f.uc.Execute(context.Background(), transferReq("30", "key-1"))
	if err != nil {
		t.Fatalf("unexpected error on replay: %v", err)
	}

	if first.Reference != second.Reference {
		t.Errorf("replay returned a different reference: %s vs %s", first.Reference, second.Reference)
	}

	if !first.SenderBalanceAfter.Equal(second.SenderBalanceAfter) {
		t.Errorf("replay returned a different balance: %s vs %s", first.SenderBalanceAfter, second.SenderBalanceAfter)
	}

	// Exactly one transfer happened.
	if n := len(f.entryRepo.All()); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}

	balance, _ := f.balanceRepo.Get(context.Background(), 1, "USD")
	if !balance.Amount.Equal(decimal.NewFromInt(70)) {
		t.Errorf("sender balance = %s, want 70", balance.Amount)
	}
}

func TestTransferUseCase_Execute_ConflictReplaysWinner(t *testing.T) {
	f := newTransferFixture(t)
	f.balanceRepo.Seed(1, "USD", decimal.NewFromInt(100))

	winner := &usecase.IdempotencyRecord{
		Key:       "key-1",
		Operation: "transfer",
		Succeeded: true,
		Payload:   []byte(`{"Reference":"01JWINNER","SenderBalanceAfter":"70","ReceiverBalanceAfter":"30","WithdrawEntryID":1,"DepositEntryID":2}`),
	}

	// Simulate losing the record race: the first lookup misses, the write
	// conflicts, and the second lookup sees the winner's committed record.
	looked := false
	f.idempotencyRepo.LookupFunc = func(ctx context.Context, key string) (*usecase.IdempotencyRecord, error) {
		if !looked {
			looked = true
			return nil, nil
		}
		return winner, nil
	}
	f.idempotencyRepo.RecordFunc = func(ctx context.Context, tx usecase.Transaction, record *usecase.IdempotencyRecord) error {
		return domain.ErrConflict
	}

	result, err := f.uc.Execute(context.Background(), transferReq("30", "key-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Reference != "01JWINNER" {
		t.Errorf("expected the winner's reference, got %s", result.Reference)
	}
}

func TestTransferUseCase_GetByReference(t *testing.T) {
	f := newTransferFixture(t)
	f.balanceRepo.Seed(1, "USD", decimal.NewFromInt(100))

	result, err := f.uc.Execute(context.Background(), transferReq("30", "key-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := f.uc.GetByReference(context.Background(), result.Reference)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}

	if _, err := f.uc.GetByReference(context.Background(), "no-such-ref"); !errors.Is(err, domain.ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound, got %v", err)
	}
}

// newTxStoreTransfer wires the transfer usecase over a staging store so
// commit outcomes actually gate visibility.
func newTxStoreTransfer(t *testing.T) (*mocks.TxStore, *usecase.TransferUseCase) {
	t.Helper()

	ctrl := gomock.NewController(t)

	currencyRepo := mocks.NewMockCurrencyRepository(ctrl)
	currencyRepo.EXPECT().Get(gomock.Any(), "USD").Return(&domain.Currency{Code: "USD", Scale: 2}, nil).AnyTimes()

	idGen := mocks.NewMockIDGenerator(ctrl)
	seq := 0
	idGen.EXPECT().Generate().DoAndReturn(func() string {
		seq++
		return "01JSTORE" + string(rune('A'+seq%26))
	}).AnyTimes()

	userRepo := mocks.NewMockUserRepository()
	for _, username := range []string{"alice", "bob"} {
		if err := userRepo.Create(context.Background(), &domain.User{
			Username: username,
			Email:    username + "@example.com",
			Role:     domain.RoleUser,
			Active:   true,
		}); err != nil {
			t.Fatalf("seed user %s: %v", username, err)
		}
	}

	store := mocks.NewTxStore()

	uc := usecase.NewTransferUseCase(
		store,
		store.BalanceRepo(),
		store.EntryRepo(),
		store,
		userRepo,
		currencyRepo,
		store,
		mocks.NewMockRetrier(),
		idGen,
		nil,
	)

	return store, uc
}

func TestTransferUseCase_Execute_CommitFailureIsAtomic(t *testing.T) {
	store, uc := newTxStoreTransfer(t)
	store.Seed(1, "USD", decimal.NewFromInt(100))

	store.CommitErr = errors.New("connection reset during commit")

	if _, err := uc.Execute(context.Background(), transferReq("30.50", "key-1")); err == nil {
		t.Fatal("expected commit error")
	}

	// The failed commit must leave no partial state behind.
	if got := store.Balance(1, "USD"); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("sender balance = %s, want untouched 100", got)
	}

	if got := store.Balance(2, "USD"); !got.IsZero() {
		t.Errorf("receiver balance = %s, want 0", got)
	}

	if n := len(store.Entries()); n != 0 {
		t.Errorf("expected no entries, got %d", n)
	}

	if n := len(store.Events()); n != 0 {
		t.Errorf("expected no outbox events, got %d", n)
	}

	record, err := store.Lookup(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Errorf("expected no idempotency record, got %+v", record)
	}

	// With the store healthy again the same key goes through as a fresh
	// attempt, not a replay of the aborted one.
	result, err := uc.Execute(context.Background(), transferReq("30.50", "key-1"))
	if err != nil {
		t.Fatalf("unexpected error after recovery: %v", err)
	}

	if !result.SenderBalanceAfter.Equal(decimal.RequireFromString("69.50")) {
		t.Errorf("sender balance after = %s, want 69.50", result.SenderBalanceAfter)
	}

	if !store.Balance(2, "USD").Equal(decimal.RequireFromString("30.50")) {
		t.Errorf("receiver balance = %s, want 30.50", store.Balance(2, "USD"))
	}

	if n := len(store.Entries()); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}
}

func TestTransferUseCase_Execute_RollbackDiscardsStagedWrites(t *testing.T) {
	store, uc := newTxStoreTransfer(t)
	store.Seed(1, "USD", decimal.NewFromInt(100))

	result, err := uc.Execute(context.Background(), transferReq("40", "key-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A committed transfer is fully visible...
	if !result.SenderBalanceAfter.Equal(decimal.NewFromInt(60)) {
		t.Errorf("sender balance after = %s, want 60", result.SenderBalanceAfter)
	}

	// ...and an insufficient-funds abort of a second transfer moves nothing,
	// while its failure record still commits.
	if _, err := uc.Execute(context.Background(), transferReq("1000", "key-2")); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if got := store.Balance(1, "USD"); !got.Equal(decimal.NewFromInt(60)) {
		t.Errorf("sender balance = %s, want 60", got)
	}

	if n := len(store.Entries()); n != 2 {
		t.Errorf("expected 2 entries, got %d", n)
	}

	record, err := store.Lookup(context.Background(), "key-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record == nil || record.Succeeded {
		t.Errorf("expected a recorded failure, got %+v", record)
	}
}
