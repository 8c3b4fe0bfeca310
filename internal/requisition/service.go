package requisition

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-erp/meridian-erp/internal/history"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Requisition, error)
	List(ctx context.Context, filter ListFilter) ([]Requisition, int, error)
}

// Invalidator drops derived read caches after a ledger mutation.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service runs the requisition approval workflow. Creation reserves boxes
// against the production ledger; every transition locks the requisition row
// first, so a second decision on the same requisition fails with
// ErrInvalidTransition instead of applying the ledger delta twice.
type Service struct {
	repo        RepositoryPort
	idempotency *shared.IdempotencyStore
	invalidate  Invalidator
}

// NewService builds Service.
func NewService(repo RepositoryPort, idem *shared.IdempotencyStore, invalidate Invalidator) *Service {
	return &Service{repo: repo, idempotency: idem, invalidate: invalidate}
}

// Create opens a new requisition. The requested boxes move out of
// ProductionStock into the matching pending counter so they cannot be sold or
// requisitioned twice while the decision is outstanding.
func (s *Service) Create(ctx context.Context, input CreateInput) (Requisition, error) {
	if !input.Type.Valid() {
		return Requisition{}, ErrInvalidType
	}
	if input.Boxes <= 0 {
		return Requisition{}, ErrInvalidQuantity
	}
	if input.ActorID == 0 {
		return Requisition{}, shared.ErrActorRequired
	}

	release, err := s.claimRequest(ctx, input.RequestID)
	if err != nil {
		return Requisition{}, err
	}

	var created Requisition
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cat, err := tx.GetCategoryForUpdate(ctx, input.CategoryID)
		if err != nil {
			return err
		}
		if input.Boxes > cat.ProductionStock {
			return &InsufficientStockError{Requested: input.Boxes, Available: cat.ProductionStock}
		}

		cat.ProductionStock -= input.Boxes
		if input.Type == TypeProduction {
			cat.PendingProduction += input.Boxes
		} else {
			cat.PendingWarehouse += input.Boxes
		}
		if err := tx.UpdateCategoryLedger(ctx, cat); err != nil {
			return err
		}

		created = Requisition{
			Type:           input.Type,
			State:          StatePending,
			CategoryID:     cat.ID,
			CategoryTitle:  cat.Title,
			Boxes:          input.Boxes,
			Requisitionist: input.ActorID,
			Description:    input.Description,
		}
		id, err := tx.Insert(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id

		return tx.AppendHistory(ctx, history.Entry{
			Boxes:          input.Boxes,
			Requisitionist: input.ActorID,
			CategoryTitle:  cat.Title,
			Type:           string(input.Type),
			Event:          history.EventPending,
			Description:    input.Description,
		})
	})
	if err != nil {
		release(ctx)
		return Requisition{}, err
	}

	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	s.bump(ctx)
	return created, nil
}

// Approve moves a pending requisition to approved. Warehouse requisitions
// commit their boxes into WarehouseStock here; production requisitions keep
// the reservation until Issue.
func (s *Service) Approve(ctx context.Context, id, actorID int64) (Requisition, error) {
	return s.transition(ctx, id, actorID, "approve", func(ctx context.Context, tx TxRepository, req *Requisition) error {
		if req.State != StatePending {
			return invalidTransition(req.State, "approve")
		}
		if req.Type == TypeWarehouse {
			cat, err := tx.GetCategoryForUpdate(ctx, req.CategoryID)
			if err != nil {
				return err
			}
			cat.PendingWarehouse -= req.Boxes
			cat.WarehouseStock += req.Boxes
			if err := tx.UpdateCategoryLedger(ctx, cat); err != nil {
				return err
			}
		}
		req.State = StateApproved
		return s.record(ctx, tx, *req, actorID, history.EventApproved)
	})
}

// Deny rejects a pending requisition and restores the reserved boxes to
// ProductionStock.
func (s *Service) Deny(ctx context.Context, id, actorID int64) (Requisition, error) {
	return s.transition(ctx, id, actorID, "deny", func(ctx context.Context, tx TxRepository, req *Requisition) error {
		if req.State != StatePending {
			return invalidTransition(req.State, "deny")
		}
		cat, err := tx.GetCategoryForUpdate(ctx, req.CategoryID)
		if err != nil {
			return err
		}
		if req.Type == TypeProduction {
			cat.PendingProduction -= req.Boxes
		} else {
			cat.PendingWarehouse -= req.Boxes
		}
		cat.ProductionStock += req.Boxes
		if err := tx.UpdateCategoryLedger(ctx, cat); err != nil {
			return err
		}
		req.State = StateDenied
		return s.record(ctx, tx, *req, actorID, history.EventDenied)
	})
}

// Issue hands an approved production requisition over to the requisitionist,
// clearing the pending reservation.
func (s *Service) Issue(ctx context.Context, id, actorID int64) (Requisition, error) {
	return s.transition(ctx, id, actorID, "issue", func(ctx context.Context, tx TxRepository, req *Requisition) error {
		if req.Type != TypeProduction {
			return invalidTransition(req.State, "issue")
		}
		if req.State != StateApproved {
			return invalidTransition(req.State, "issue")
		}
		cat, err := tx.GetCategoryForUpdate(ctx, req.CategoryID)
		if err != nil {
			return err
		}
		cat.PendingProduction -= req.Boxes
		if err := tx.UpdateCategoryLedger(ctx, cat); err != nil {
			return err
		}
		req.State = StateIssued
		return s.record(ctx, tx, *req, actorID, history.EventIssued)
	})
}

// Push finalizes an approved warehouse requisition. The boxes already sit in
// WarehouseStock since Approve, so only the state and the trail change.
func (s *Service) Push(ctx context.Context, id, actorID int64) (Requisition, error) {
	return s.transition(ctx, id, actorID, "push", func(ctx context.Context, tx TxRepository, req *Requisition) error {
		if req.Type != TypeWarehouse {
			return invalidTransition(req.State, "push")
		}
		if req.State != StateApproved {
			return invalidTransition(req.State, "push")
		}
		req.State = StatePushed
		return s.record(ctx, tx, *req, actorID, history.EventPushed)
	})
}

// Get returns one requisition.
func (s *Service) Get(ctx context.Context, id int64) (Requisition, error) {
	return s.repo.Get(ctx, id)
}

// List returns requisitions matching the filter plus the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Requisition, int, error) {
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	return s.repo.List(ctx, filter)
}

func (s *Service) transition(ctx context.Context, id, actorID int64, action string,
	apply func(context.Context, TxRepository, *Requisition) error) (Requisition, error) {
	if actorID == 0 {
		return Requisition{}, shared.ErrActorRequired
	}
	var req Requisition
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		req, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		return apply(ctx, tx, &req)
	})
	if err != nil {
		return Requisition{}, fmt.Errorf("%s requisition %d: %w", action, id, err)
	}
	req.DecidedBy = actorID
	s.bump(ctx)
	return req, nil
}

func (s *Service) record(ctx context.Context, tx TxRepository, req Requisition, actorID int64, event history.Event) error {
	if err := tx.SetState(ctx, req.ID, req.State, actorID); err != nil {
		return err
	}
	return tx.AppendHistory(ctx, history.Entry{
		Boxes:          req.Boxes,
		Requisitionist: req.Requisitionist,
		CategoryTitle:  req.CategoryTitle,
		Type:           string(req.Type),
		Event:          event,
		Description:    req.Description,
	})
}

func (s *Service) claimRequest(ctx context.Context, requestID string) (func(context.Context), error) {
	noop := func(context.Context) {}
	if requestID == "" || s.idempotency == nil {
		return noop, nil
	}
	if _, err := uuid.Parse(requestID); err != nil {
		return noop, ErrInvalidRequestID
	}
	key := fmt.Sprintf("requisition:create:%s", requestID)
	if err := s.idempotency.CheckAndInsert(ctx, key, "requisition"); err != nil {
		return noop, err
	}
	return func(ctx context.Context) {
		_ = s.idempotency.Delete(ctx, key)
	}, nil
}

func (s *Service) bump(ctx context.Context) {
	if s.invalidate != nil {
		_ = s.invalidate.Bump(ctx)
	}
}
