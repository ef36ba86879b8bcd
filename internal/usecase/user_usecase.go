package usecase

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/metrics"
)

// UserUseCase handles registration, authentication and admin user management.
type UserUseCase struct {
	userRepo UserRepository
	metrics  *metrics.Metrics
}

// NewUserUseCase creates a new UserUseCase. metrics may be nil.
func NewUserUseCase(userRepo UserRepository, metrics *metrics.Metrics) *UserUseCase {
	return &UserUseCase{userRepo: userRepo, metrics: metrics}
}

// RegisterInput represents input for registering a user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a new user with a bcrypt-hashed password.
func (uc *UserUseCase) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if err := domain.ValidateUsername(input.Username); err != nil {
		return nil, err
	}

	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, err
	}

	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	for _, identifier := range []string{input.Username, input.Email} {
		existing, err := uc.userRepo.GetByIdentifier(ctx, identifier)
		if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}

		if existing != nil {
			return nil, domain.ErrUserExists
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		Username:       input.Username,
		Email:          input.Email,
		HashedPassword: string(hash),
		Role:           domain.RoleUser,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.UsersRegistered.Inc()
	}

	user.HashedPassword = ""

	return user, nil
}

// AuthenticateInput represents login input. Identifier is a username or
// email.
type AuthenticateInput struct {
	Identifier string
	Password   string
}

// Authenticate verifies credentials and returns the user.
func (uc *UserUseCase) Authenticate(ctx context.Context, input AuthenticateInput) (*domain.User, error) {
	user, err := uc.userRepo.GetByIdentifier(ctx, input.Identifier)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			uc.authFailure("unknown_user")
			return nil, domain.ErrInvalidCredentials
		}

		return nil, err
	}

	if !user.Active {
		uc.authFailure("inactive")
		return nil, domain.ErrUserInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(input.Password)); err != nil {
		uc.authFailure("bad_password")
		return nil, domain.ErrInvalidCredentials
	}

	user.HashedPassword = ""

	return user, nil
}

func (uc *UserUseCase) authFailure(reason string) {
	if uc.metrics != nil {
		uc.metrics.AuthFailures.WithLabelValues(reason).Inc()
	}
}

// GetUser retrieves a user by ID.
func (uc *UserUseCase) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := uc.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.HashedPassword = ""

	return user, nil
}

// ResolveUsername maps a human-entered username to a user ID.
func (uc *UserUseCase) ResolveUsername(ctx context.Context, username string) (int64, error) {
	user, err := uc.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return 0, err
	}

	return user.ID, nil
}

// ListUsers lists users with pagination. Admin only at the HTTP boundary.
func (uc *UserUseCase) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	if limit <= 0 {
		limit = 20
	}

	if limit > 100 {
		limit = 100
	}

	users, err := uc.userRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		u.HashedPassword = ""
	}

	return users, nil
}

// SetRole changes a user's role.
func (uc *UserUseCase) SetRole(ctx context.Context, id int64, role domain.Role) (*domain.User, error) {
	if !role.IsValid() {
		return nil, errors.New("invalid role")
	}

	user, err := uc.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Role = role
	user.UpdatedAt = time.Now().UTC()

	if err := uc.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	user.HashedPassword = ""

	return user, nil
}

// SetActive activates or deactivates a user. Deactivated users cannot log in;
// their balances stay on the ledger.
func (uc *UserUseCase) SetActive(ctx context.Context, id int64, active bool) (*domain.User, error) {
	user, err := uc.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Active = active
	user.UpdatedAt = time.Now().UTC()

	if err := uc.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	user.HashedPassword = ""

	return user, nil
}
