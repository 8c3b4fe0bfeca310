package category

import (
	"context"
	"strings"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Create(ctx context.Context, input CreateInput) (Category, error)
	Get(ctx context.Context, id int64) (Category, error)
	Update(ctx context.Context, id int64, input UpdateInput) (Category, error)
	List(ctx context.Context, filter ListFilter) ([]Category, int, error)
}

// Service coordinates category master data.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create validates and inserts a category.
func (s *Service) Create(ctx context.Context, input CreateInput) (Category, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return Category{}, ErrTitleRequired
	}
	if input.PricePerBox.IsNegative() || input.SalesPrice.IsNegative() {
		return Category{}, ErrNegativePrice
	}
	if input.ActorID == 0 {
		return Category{}, shared.ErrActorRequired
	}
	return s.repo.Create(ctx, input)
}

// Get fetches one category.
func (s *Service) Get(ctx context.Context, id int64) (Category, error) {
	return s.repo.Get(ctx, id)
}

// Update rewrites title and pricing.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Category, error) {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return Category{}, ErrTitleRequired
	}
	if input.PricePerBox.IsNegative() || input.SalesPrice.IsNegative() {
		return Category{}, ErrNegativePrice
	}
	return s.repo.Update(ctx, id, input)
}

// List returns categories with pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Category, shared.Pagination, error) {
	categories, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return categories, shared.NewPagination(filter.Page, filter.Limit, total), nil
}
