package usecase

import (
	"context"

	"github.com/coinflip/exchange-ledger/internal/domain"
)

// PortfolioUseCase serves per-user balances and ledger history.
type PortfolioUseCase struct {
	balanceRepo BalanceRepository
	entryRepo   EntryRepository
	userRepo    UserRepository
}

// NewPortfolioUseCase creates a new PortfolioUseCase.
func NewPortfolioUseCase(balanceRepo BalanceRepository, entryRepo EntryRepository, userRepo UserRepository) *PortfolioUseCase {
	return &PortfolioUseCase{
		balanceRepo: balanceRepo,
		entryRepo:   entryRepo,
		userRepo:    userRepo,
	}
}

// GetBalances lists all nonzero balances of a user.
func (uc *PortfolioUseCase) GetBalances(ctx context.Context, userID int64) ([]*domain.Balance, error) {
	if _, err := uc.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	return uc.balanceRepo.ListByUser(ctx, userID)
}

// ListEntriesInput represents input for listing ledger entries.
type ListEntriesInput struct {
	Type   domain.EntryType
	UserID int64
	Limit  int
	Offset int
}

// ListEntries lists a user's ledger entries, newest first, optionally
// filtered by type.
func (uc *PortfolioUseCase) ListEntries(ctx context.Context, input ListEntriesInput) ([]*domain.Entry, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}

	if input.Limit > 100 {
		input.Limit = 100
	}

	if input.Type != "" && !input.Type.IsValid() {
		return nil, domain.ErrInvalidEntryType
	}

	return uc.entryRepo.ListByUser(ctx, input.UserID, input.Type, input.Limit, input.Offset)
}
