package mocks

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

// TxStore is an in-memory store with real transaction staging: writes made
// through a transaction stay buffered until Commit and are discarded on
// Rollback or a forced commit failure. It backs atomicity tests where the
// plain mocks, which apply writes immediately, cannot.
//
// TxStore itself implements TransactionManager, IdempotencyRepository and
// OutboxRepository; BalanceRepo and EntryRepo return views implementing the
// balance and entry interfaces.
type TxStore struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	entries  []*domain.Entry
	records  map[string]*usecase.IdempotencyRecord
	events   []*domain.OutboxEvent
	nextID   int64

	// CommitErr makes the next Commit fail and discard the staged writes.
	CommitErr error
}

func NewTxStore() *TxStore {
	return &TxStore{
		balances: make(map[string]decimal.Decimal),
		records:  make(map[string]*usecase.IdempotencyRecord),
	}
}

// Seed sets a committed balance directly.
func (s *TxStore) Seed(userID int64, currency string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[balanceKey(userID, currency)] = amount
}

// Balance returns the committed balance, zero if absent.
func (s *TxStore) Balance(userID int64, currency string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[balanceKey(userID, currency)]
}

// Entries returns all committed entries, oldest first.
func (s *TxStore) Entries() []*domain.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Entry(nil), s.entries...)
}

// Events returns all committed outbox events.
func (s *TxStore) Events() []*domain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.OutboxEvent(nil), s.events...)
}

// BalanceRepo returns a view implementing usecase.BalanceRepository.
func (s *TxStore) BalanceRepo() usecase.BalanceRepository {
	return &txBalanceRepo{store: s}
}

// EntryRepo returns a view implementing usecase.EntryRepository.
func (s *TxStore) EntryRepo() usecase.EntryRepository {
	return &txEntryRepo{store: s}
}

// Begin starts a transaction with an empty staging buffer.
func (s *TxStore) Begin(ctx context.Context) (usecase.Transaction, error) {
	return &storeTx{
		store:    s,
		balances: make(map[string]decimal.Decimal),
	}, nil
}

type storeTx struct {
	store    *TxStore
	balances map[string]decimal.Decimal
	entries  []*domain.Entry
	records  []*usecase.IdempotencyRecord
	events   []*domain.OutboxEvent
	done     bool
}

func (tx *storeTx) Commit(ctx context.Context) error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.done {
		return errors.New("transaction already finished")
	}
	tx.done = true

	if s.CommitErr != nil {
		err := s.CommitErr
		s.CommitErr = nil
		return err
	}

	for key, amount := range tx.balances {
		s.balances[key] = amount
	}
	s.entries = append(s.entries, tx.entries...)
	for _, record := range tx.records {
		s.records[record.Key] = record
	}
	s.events = append(s.events, tx.events...)

	return nil
}

func (tx *storeTx) Rollback(ctx context.Context) error {
	tx.done = true
	return nil
}

// amountFor reads through the staging buffer to the committed state. Caller
// holds the store lock.
func (tx *storeTx) amountFor(key string) (decimal.Decimal, bool) {
	if amount, ok := tx.balances[key]; ok {
		return amount, true
	}
	amount, ok := tx.store.balances[key]
	return amount, ok
}

func storeTxOf(tx usecase.Transaction) *storeTx {
	return tx.(*storeTx)
}

func currencyOf(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}

type txBalanceRepo struct {
	store *TxStore
}

func (r *txBalanceRepo) Get(ctx context.Context, userID int64, currency string) (*domain.Balance, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	amount, ok := s.balances[balanceKey(userID, currency)]
	if !ok {
		return nil, domain.ErrBalanceNotFound
	}
	return &domain.Balance{UserID: userID, Currency: currency, Amount: amount}, nil
}

func (r *txBalanceRepo) ListByUser(ctx context.Context, userID int64) ([]*domain.Balance, error) {
	return nil, errors.New("not implemented")
}

func (r *txBalanceRepo) GetForUpdate(ctx context.Context, tx usecase.Transaction, userIDs []int64, currency string) ([]*domain.Balance, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	stx := storeTxOf(tx)
	var balances []*domain.Balance
	for _, id := range userIDs {
		if amount, ok := stx.amountFor(balanceKey(id, currency)); ok {
			balances = append(balances, &domain.Balance{UserID: id, Currency: currency, Amount: amount})
		}
	}
	return balances, nil
}

func (r *txBalanceRepo) ApplyDelta(ctx context.Context, tx usecase.Transaction, userID int64, currency string, delta decimal.Decimal) (decimal.Decimal, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	stx := storeTxOf(tx)
	key := balanceKey(userID, currency)
	current, _ := stx.amountFor(key)
	next := current.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, domain.ErrInsufficientFunds
	}
	stx.balances[key] = next
	return next, nil
}

func (r *txBalanceRepo) SumByCurrency(ctx context.Context, currency string) (decimal.Decimal, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for key, amount := range s.balances {
		if currencyOf(key) == currency {
			sum = sum.Add(amount)
		}
	}
	return sum, nil
}

type txEntryRepo struct {
	store *TxStore
}

// Append stages entries. IDs come off the store sequence immediately, like a
// database serial, so rolled-back IDs leave gaps.
func (r *txEntryRepo) Append(ctx context.Context, tx usecase.Transaction, entries []*domain.Entry) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	stx := storeTxOf(tx)
	for _, entry := range entries {
		s.nextID++
		entry.ID = s.nextID
		stx.entries = append(stx.entries, entry)
	}
	return nil
}

func (r *txEntryRepo) ListByUser(ctx context.Context, userID int64, entryType domain.EntryType, limit, offset int) ([]*domain.Entry, error) {
	return nil, errors.New("not implemented")
}

func (r *txEntryRepo) ListByReference(ctx context.Context, reference string) ([]*domain.Entry, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []*domain.Entry
	for _, entry := range s.entries {
		if entry.Reference == reference {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (r *txEntryRepo) SumByCurrency(ctx context.Context, currency string) (decimal.Decimal, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, entry := range s.entries {
		if entry.Currency != currency {
			continue
		}
		switch entry.Type {
		case domain.EntryDeposit, domain.EntryBuy:
			sum = sum.Add(entry.Amount)
		default:
			sum = sum.Sub(entry.Amount)
		}
	}
	return sum, nil
}

func (s *TxStore) Lookup(ctx context.Context, key string) (*usecase.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	return record, nil
}

func (s *TxStore) Record(ctx context.Context, tx usecase.Transaction, record *usecase.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.Key]; exists {
		return domain.ErrConflict
	}
	stx := storeTxOf(tx)
	stx.records = append(stx.records, record)
	return nil
}

func (s *TxStore) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stx := storeTxOf(tx)
	stx.events = append(stx.events, event)
	return nil
}

func (s *TxStore) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []*domain.OutboxEvent
	for _, event := range s.events {
		if event.PublishedAt == nil {
			events = append(events, event)
		}
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *TxStore) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range s.events {
		if event.ID == id {
			event.PublishedAt = &publishedAt
			return nil
		}
	}
	return errors.New("event not found")
}
