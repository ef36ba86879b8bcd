package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/usecase"
)

// MockBalanceRepository is a mock implementation of BalanceRepository.
type MockBalanceRepository struct {
	mu       sync.RWMutex
	balances map[string]*domain.Balance

	GetFunc           func(ctx context.Context, userID int64, currency string) (*domain.Balance, error)
	ListByUserFunc    func(ctx context.Context, userID int64) ([]*domain.Balance, error)
	GetForUpdateFunc  func(ctx context.Context, tx usecase.Transaction, userIDs []int64, currency string) ([]*domain.Balance, error)
	ApplyDeltaFunc    func(ctx context.Context, tx usecase.Transaction, userID int64, currency string, delta decimal.Decimal) (decimal.Decimal, error)
	SumByCurrencyFunc func(ctx context.Context, currency string) (decimal.Decimal, error)
}

func NewMockBalanceRepository() *MockBalanceRepository {
	return &MockBalanceRepository{
		balances: make(map[string]*domain.Balance),
	}
}

func balanceKey(userID int64, currency string) string {
	return fmt.Sprintf("%d:%s", userID, currency)
}

// Seed sets a balance directly, bypassing the delta path.
func (m *MockBalanceRepository) Seed(userID int64, currency string, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey(userID, currency)] = &domain.Balance{
		UserID:    userID,
		Currency:  currency,
		Amount:    amount,
		UpdatedAt: time.Now().UTC(),
	}
}

func (m *MockBalanceRepository) Get(ctx context.Context, userID int64, currency string) (*domain.Balance, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID, currency)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.balances[balanceKey(userID, currency)]; ok {
		return b, nil
	}
	return nil, domain.ErrBalanceNotFound
}

func (m *MockBalanceRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Balance, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var balances []*domain.Balance
	for _, b := range m.balances {
		if b.UserID == userID {
			balances = append(balances, b)
		}
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Currency < balances[j].Currency })
	return balances, nil
}

func (m *MockBalanceRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, userIDs []int64, currency string) ([]*domain.Balance, error) {
	if m.GetForUpdateFunc != nil {
		return m.GetForUpdateFunc(ctx, tx, userIDs, currency)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var balances []*domain.Balance
	for _, id := range userIDs {
		if b, ok := m.balances[balanceKey(id, currency)]; ok {
			balances = append(balances, b)
		}
	}
	return balances, nil
}

func (m *MockBalanceRepository) ApplyDelta(ctx context.Context, tx usecase.Transaction, userID int64, currency string, delta decimal.Decimal) (decimal.Decimal, error) {
	if m.ApplyDeltaFunc != nil {
		return m.ApplyDeltaFunc(ctx, tx, userID, currency, delta)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := balanceKey(userID, currency)
	b, ok := m.balances[key]
	if !ok {
		b = &domain.Balance{UserID: userID, Currency: currency, Amount: decimal.Zero}
		m.balances[key] = b
	}
	next := b.Amount.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, domain.ErrInsufficientFunds
	}
	b.Amount = next
	b.UpdatedAt = time.Now().UTC()
	return next, nil
}

func (m *MockBalanceRepository) SumByCurrency(ctx context.Context, currency string) (decimal.Decimal, error) {
	if m.SumByCurrencyFunc != nil {
		return m.SumByCurrencyFunc(ctx, currency)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := decimal.Zero
	for _, b := range m.balances {
		if b.Currency == currency {
			sum = sum.Add(b.Amount)
		}
	}
	return sum, nil
}

// MockEntryRepository is a mock implementation of EntryRepository.
type MockEntryRepository struct {
	mu      sync.RWMutex
	entries []*domain.Entry
	nextID  int64

	AppendFunc          func(ctx context.Context, tx usecase.Transaction, entries []*domain.Entry) error
	ListByUserFunc      func(ctx context.Context, userID int64, entryType domain.EntryType, limit, offset int) ([]*domain.Entry, error)
	ListByReferenceFunc func(ctx context.Context, reference string) ([]*domain.Entry, error)
	SumByCurrencyFunc   func(ctx context.Context, currency string) (decimal.Decimal, error)
}

func NewMockEntryRepository() *MockEntryRepository {
	return &MockEntryRepository{}
}

func (m *MockEntryRepository) Append(ctx context.Context, tx usecase.Transaction, entries []*domain.Entry) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, tx, entries)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.nextID++
		e.ID = m.nextID
		m.entries = append(m.entries, e)
	}
	return nil
}

func (m *MockEntryRepository) ListByUser(ctx context.Context, userID int64, entryType domain.EntryType, limit, offset int) ([]*domain.Entry, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, entryType, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*domain.Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.UserID != userID {
			continue
		}
		if entryType != "" && e.Type != entryType {
			continue
		}
		entries = append(entries, e)
	}
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *MockEntryRepository) ListByReference(ctx context.Context, reference string) ([]*domain.Entry, error) {
	if m.ListByReferenceFunc != nil {
		return m.ListByReferenceFunc(ctx, reference)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []*domain.Entry
	for _, e := range m.entries {
		if e.Reference == reference {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (m *MockEntryRepository) SumByCurrency(ctx context.Context, currency string) (decimal.Decimal, error) {
	if m.SumByCurrencyFunc != nil {
		return m.SumByCurrencyFunc(ctx, currency)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := decimal.Zero
	for _, e := range m.entries {
		if e.Currency != currency {
			continue
		}
		switch e.Type {
		case domain.EntryDeposit, domain.EntryBuy:
			sum = sum.Add(e.Amount)
		default:
			sum = sum.Sub(e.Amount)
		}
	}
	return sum, nil
}

// All returns every stored entry, oldest first.
func (m *MockEntryRepository) All() []*domain.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.Entry(nil), m.entries...)
}

// MockIdempotencyRepository is a mock implementation of IdempotencyRepository.
type MockIdempotencyRepository struct {
	mu      sync.RWMutex
	records map[string]*usecase.IdempotencyRecord

	LookupFunc func(ctx context.Context, key string) (*usecase.IdempotencyRecord, error)
	RecordFunc func(ctx context.Context, tx usecase.Transaction, record *usecase.IdempotencyRecord) error
}

func NewMockIdempotencyRepository() *MockIdempotencyRepository {
	return &MockIdempotencyRepository{
		records: make(map[string]*usecase.IdempotencyRecord),
	}
}

func (m *MockIdempotencyRepository) Lookup(ctx context.Context, key string) (*usecase.IdempotencyRecord, error) {
	if m.LookupFunc != nil {
		return m.LookupFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.records[key]; ok {
		return r, nil
	}
	return nil, nil
}

func (m *MockIdempotencyRepository) Record(ctx context.Context, tx usecase.Transaction, record *usecase.IdempotencyRecord) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, tx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.Key]; ok {
		return domain.ErrConflict
	}
	m.records[record.Key] = record
	return nil
}

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu     sync.RWMutex
	users  map[int64]*domain.User
	nextID int64

	CreateFunc          func(ctx context.Context, user *domain.User) error
	GetByIDFunc         func(ctx context.Context, id int64) (*domain.User, error)
	GetByUsernameFunc   func(ctx context.Context, username string) (*domain.User, error)
	GetByIdentifierFunc func(ctx context.Context, identifier string) (*domain.User, error)
	UpdateFunc          func(ctx context.Context, user *domain.User) error
	ListFunc            func(ctx context.Context, limit, offset int) ([]*domain.User, error)
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[int64]*domain.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	user.ID = m.nextID
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	if m.GetByIdentifierFunc != nil {
		return m.GetByIdentifierFunc(ctx, identifier)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == identifier || u.Email == identifier {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var users []*domain.User
	for _, u := range m.users {
		copied := *u
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	if offset >= len(users) {
		return nil, nil
	}
	users = users[offset:]
	if limit > 0 && limit < len(users) {
		users = users[:limit]
	}
	return users, nil
}

// MockRateRepository is a mock implementation of RateRepository.
type MockRateRepository struct {
	mu      sync.RWMutex
	rates   map[string]*domain.ExchangeRate
	history map[string][]*domain.RatePoint

	GetFunc           func(ctx context.Context, base, target string) (*domain.ExchangeRate, error)
	UpsertFunc        func(ctx context.Context, rate *domain.ExchangeRate) error
	ListPairsFunc     func(ctx context.Context) ([]*domain.ExchangeRate, error)
	GetHistoryFunc    func(ctx context.Context, base, target string, from, to time.Time) ([]*domain.RatePoint, error)
	UpsertHistoryFunc func(ctx context.Context, base, target string, points []*domain.RatePoint) error
}

func NewMockRateRepository() *MockRateRepository {
	return &MockRateRepository{
		rates:   make(map[string]*domain.ExchangeRate),
		history: make(map[string][]*domain.RatePoint),
	}
}

func pairKey(base, target string) string {
	return base + ":" + target
}

func (m *MockRateRepository) Get(ctx context.Context, base, target string) (*domain.ExchangeRate, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, base, target)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if r, ok := m.rates[pairKey(base, target)]; ok {
		return r, nil
	}
	return nil, domain.ErrRateNotFound
}

func (m *MockRateRepository) Upsert(ctx context.Context, rate *domain.ExchangeRate) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, rate)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[pairKey(rate.BaseCurrency, rate.TargetCurrency)] = rate
	return nil
}

func (m *MockRateRepository) ListPairs(ctx context.Context) ([]*domain.ExchangeRate, error) {
	if m.ListPairsFunc != nil {
		return m.ListPairsFunc(ctx)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rates []*domain.ExchangeRate
	for _, r := range m.rates {
		rates = append(rates, r)
	}
	return rates, nil
}

func (m *MockRateRepository) GetHistory(ctx context.Context, base, target string, from, to time.Time) ([]*domain.RatePoint, error) {
	if m.GetHistoryFunc != nil {
		return m.GetHistoryFunc(ctx, base, target, from, to)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var points []*domain.RatePoint
	for _, p := range m.history[pairKey(base, target)] {
		if p.Date.Before(from) || p.Date.After(to) {
			continue
		}
		points = append(points, p)
	}
	return points, nil
}

func (m *MockRateRepository) UpsertHistory(ctx context.Context, base, target string, points []*domain.RatePoint) error {
	if m.UpsertHistoryFunc != nil {
		return m.UpsertHistoryFunc(ctx, base, target, points)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(base, target)
	for _, p := range points {
		replaced := false
		for i, existing := range m.history[key] {
			if existing.Date.Equal(p.Date) {
				m.history[key][i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			m.history[key] = append(m.history[key], p)
		}
	}
	return nil
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent

	CreateFunc         func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
	GetUnpublishedFunc func(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublishedFunc  func(ctx context.Context, id string, publishedAt time.Time) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	if m.GetUnpublishedFunc != nil {
		return m.GetUnpublishedFunc(ctx, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []*domain.OutboxEvent
	for _, e := range m.events {
		if e.Published {
			continue
		}
		events = append(events, e)
		if limit > 0 && len(events) == limit {
			break
		}
	}
	return events, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id, publishedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
			return nil
		}
	}
	return nil
}

// All returns every stored event.
func (m *MockOutboxRepository) All() []*domain.OutboxEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.OutboxEvent(nil), m.events...)
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTransaction{}, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	return nil
}

// MockRetrier runs the operation once unless overridden.
type MockRetrier struct {
	RetryFunc func(ctx context.Context, operation func() error) error
}

func NewMockRetrier() *MockRetrier {
	return &MockRetrier{}
}

func (m *MockRetrier) Retry(ctx context.Context, operation func() error) error {
	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, operation)
	}
	return operation()
}

// MockCache is an in-memory mock implementation of Cache.
type MockCache struct {
	mu   sync.RWMutex
	data map[string][]byte

	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, key string) error
}

func NewMockCache() *MockCache {
	return &MockCache{
		data: make(map[string][]byte),
	}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("cache miss: %s", key)
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
