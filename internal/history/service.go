package history

import (
	"context"
	"errors"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]EnrichedEntry, int, error)
}

// Service exposes the audit trail read path.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ErrInvalidRange indicates from > to.
var ErrInvalidRange = errors.New("history: from must not be after to")

// List returns entries with pagination metadata.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]EnrichedEntry, shared.Pagination, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.From.After(filter.To) {
		return nil, shared.Pagination{}, ErrInvalidRange
	}
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, shared.NewPagination(filter.Page, filter.Limit, total), nil
}
