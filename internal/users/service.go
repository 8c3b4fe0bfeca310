package users

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Create(ctx context.Context, u User) (User, error)
	Get(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, u User) (User, error)
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
}

// Service manages the account registry.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create registers an account with a bcrypt password hash.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Name == "" {
		return User{}, ErrNameRequired
	}
	if input.Email == "" {
		return User{}, ErrEmailRequired
	}
	if !input.Role.Valid() {
		return User{}, ErrInvalidRole
	}
	if len(input.Password) < 8 {
		return User{}, ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.Create(ctx, User{
		Name:         input.Name,
		Email:        input.Email,
		Role:         input.Role,
		PasswordHash: string(hash),
	})
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// Update rewrites account fields. A non-empty password is re-hashed.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (User, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return User{}, ErrNameRequired
	}
	if !input.Role.Valid() {
		return User{}, ErrInvalidRole
	}

	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	user.Name = input.Name
	user.Role = input.Role
	user.Active = input.Active
	if input.Password != "" {
		if len(input.Password) < 8 {
			return User{}, ErrPasswordTooShort
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, err
		}
		user.PasswordHash = string(hash)
	}
	return s.repo.Update(ctx, user)
}

// List returns users matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	return s.repo.List(ctx, filter)
}

// Authenticate verifies an email/password pair and returns the account.
// Inactive accounts fail the same way bad credentials do.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return User{}, ErrBadCredentials
	}
	if !user.Active {
		return User{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrBadCredentials
	}
	return user, nil
}
