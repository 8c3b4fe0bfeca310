package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/history"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	VehicleExists(ctx context.Context, vehicleID int64) (bool, error)
	ListAllocations(ctx context.Context, filter AllocationFilter) ([]Allocation, error)
}

// Invalidator drops derived read caches after a ledger mutation.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service coordinates stock-moving operations. Every operation runs as one
// database transaction: the category (and allocation/customer) rows are locked
// before validation, so two concurrent movements against the same category
// serialize instead of both passing a stale validation read.
type Service struct {
	repo        RepositoryPort
	idempotency *shared.IdempotencyStore
	invalidate  Invalidator
}

// NewService builds Service.
func NewService(repo RepositoryPort, idem *shared.IdempotencyStore, invalidate Invalidator) *Service {
	return &Service{repo: repo, idempotency: idem, invalidate: invalidate}
}

// Distribute moves warehouse stock onto a vehicle.
func (s *Service) Distribute(ctx context.Context, input DistributeInput) (Distribution, error) {
	if input.Boxes <= 0 {
		return Distribution{}, ErrInvalidQuantity
	}
	if input.VehicleID == 0 {
		return Distribution{}, ErrVehicleRequired
	}
	if input.ActorID == 0 {
		return Distribution{}, shared.ErrActorRequired
	}
	if err := s.checkVehicle(ctx, input.VehicleID); err != nil {
		return Distribution{}, err
	}

	release, err := s.claimRequest(ctx, "distribute", input.RequestID)
	if err != nil {
		return Distribution{}, err
	}

	var created Distribution
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cat, err := tx.GetCategoryForUpdate(ctx, input.CategoryID)
		if err != nil {
			return err
		}
		if input.Boxes > cat.WarehouseStock {
			return &InsufficientStockError{Field: "warehouse_stock", Requested: input.Boxes, Available: cat.WarehouseStock}
		}

		totalValue := cat.PricePerBox.Mul(decimal.NewFromInt(input.Boxes))
		created = Distribution{
			CategoryID:  input.CategoryID,
			VehicleID:   input.VehicleID,
			Boxes:       input.Boxes,
			TotalValue:  totalValue,
			Description: input.Description,
			CreatedBy:   input.ActorID,
			CreatedAt:   time.Now().UTC(),
		}
		id, err := tx.InsertDistribution(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id

		cat.WarehouseStock -= input.Boxes
		if err := tx.UpdateCategoryLedger(ctx, cat); err != nil {
			return err
		}

		alloc, err := tx.GetAllocationForUpdate(ctx, input.CategoryID, input.VehicleID)
		if err != nil && err != ErrAllocationNotFound {
			return err
		}
		alloc.Distributed += input.Boxes
		alloc.DistributedValue = alloc.DistributedValue.Add(totalValue)
		if err := tx.UpsertAllocation(ctx, alloc); err != nil {
			return err
		}

		return tx.AppendHistory(ctx, history.Entry{
			Boxes:          input.Boxes,
			Requisitionist: input.ActorID,
			CategoryTitle:  cat.Title,
			Type:           "distribution",
			Event:          history.EventDistributed,
			Description:    input.Description,
		})
	})
	if err != nil {
		release(ctx)
		return Distribution{}, err
	}

	s.bump(ctx)
	return created, nil
}

// Sell records a sale off a vehicle: the allocation moves boxes from
// distributed to sold, and the customer's spend/debt totals advance.
func (s *Service) Sell(ctx context.Context, input SellInput) (Order, error) {
	if input.Boxes <= 0 {
		return Order{}, ErrInvalidQuantity
	}
	if input.VehicleID == 0 {
		return Order{}, ErrVehicleRequired
	}
	if input.CustomerID == 0 {
		return Order{}, ErrCustomerRequired
	}
	if input.ActorID == 0 {
		return Order{}, shared.ErrActorRequired
	}
	if input.Payment.Negative() {
		return Order{}, ErrNegativePayment
	}

	release, err := s.claimRequest(ctx, "sell", input.RequestID)
	if err != nil {
		return Order{}, err
	}

	var created Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cat, err := tx.GetCategoryForUpdate(ctx, input.CategoryID)
		if err != nil {
			return err
		}

		alloc, err := tx.GetAllocationForUpdate(ctx, input.CategoryID, input.VehicleID)
		if err != nil {
			if err == ErrAllocationNotFound {
				return &InsufficientStockError{Field: "distributed", Requested: input.Boxes, Available: 0}
			}
			return err
		}
		if input.Boxes > alloc.Distributed {
			return &InsufficientStockError{Field: "distributed", Requested: input.Boxes, Available: alloc.Distributed}
		}

		total := cat.SalesPrice.Mul(decimal.NewFromInt(input.Boxes))
		paid := input.Payment.Total()
		if paid.GreaterThan(total) {
			return ErrOverpayment
		}

		status := PaymentUnpaid
		switch {
		case paid.Equal(total):
			status = PaymentPaid
		case paid.IsPositive():
			status = PaymentPartial
		}

		created = Order{
			CategoryID:    input.CategoryID,
			VehicleID:     input.VehicleID,
			CustomerID:    input.CustomerID,
			Boxes:         input.Boxes,
			TotalPrice:    total,
			Payment:       input.Payment,
			PaymentStatus: status,
			Description:   input.Description,
			CreatedBy:     input.ActorID,
			CreatedAt:     time.Now().UTC(),
		}
		id, err := tx.InsertOrder(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id

		alloc.Distributed -= input.Boxes
		alloc.Sold += input.Boxes
		alloc.SoldValue = alloc.SoldValue.Add(total)
		if err := tx.UpsertAllocation(ctx, alloc); err != nil {
			return err
		}

		customer, err := tx.GetCustomerForUpdate(ctx, input.CustomerID)
		if err != nil {
			return err
		}
		customer.TotalSpent = customer.TotalSpent.Add(total)
		if status != PaymentPaid {
			customer.Debt = customer.Debt.Add(total.Sub(paid))
		}
		if err := tx.UpdateCustomerBalance(ctx, customer); err != nil {
			return err
		}

		return tx.AppendHistory(ctx, history.Entry{
			Boxes:          input.Boxes,
			Requisitionist: input.ActorID,
			CategoryTitle:  cat.Title,
			Type:           "sales",
			Event:          history.EventSold,
			Description:    input.Description,
		})
	})
	if err != nil {
		release(ctx)
		return Order{}, err
	}

	s.bump(ctx)
	return created, nil
}

// Return moves boxes from a vehicle back into the warehouse.
func (s *Service) Return(ctx context.Context, input ReturnInput) (Return, error) {
	if input.Boxes <= 0 {
		return Return{}, ErrInvalidQuantity
	}
	if input.VehicleID == 0 {
		return Return{}, ErrVehicleRequired
	}
	if input.ActorID == 0 {
		return Return{}, shared.ErrActorRequired
	}

	release, err := s.claimRequest(ctx, "return", input.RequestID)
	if err != nil {
		return Return{}, err
	}

	var created Return
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cat, err := tx.GetCategoryForUpdate(ctx, input.CategoryID)
		if err != nil {
			return err
		}

		alloc, err := tx.GetAllocationForUpdate(ctx, input.CategoryID, input.VehicleID)
		if err != nil {
			if err == ErrAllocationNotFound {
				return &InsufficientStockError{Field: "distributed", Requested: input.Boxes, Available: 0}
			}
			return err
		}
		if input.Boxes > alloc.Distributed {
			return &InsufficientStockError{Field: "distributed", Requested: input.Boxes, Available: alloc.Distributed}
		}

		created = Return{
			CategoryID:  input.CategoryID,
			VehicleID:   input.VehicleID,
			Boxes:       input.Boxes,
			Description: input.Description,
			CreatedBy:   input.ActorID,
			CreatedAt:   time.Now().UTC(),
		}
		id, err := tx.InsertReturn(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id

		alloc.Distributed -= input.Boxes
		alloc.DistributedValue = alloc.DistributedValue.Sub(cat.PricePerBox.Mul(decimal.NewFromInt(input.Boxes)))
		if err := tx.UpsertAllocation(ctx, alloc); err != nil {
			return err
		}

		cat.WarehouseStock += input.Boxes
		if err := tx.UpdateCategoryLedger(ctx, cat); err != nil {
			return err
		}

		return tx.AppendHistory(ctx, history.Entry{
			Boxes:          input.Boxes,
			Requisitionist: input.ActorID,
			CategoryTitle:  cat.Title,
			Type:           "returns",
			Event:          history.EventReturned,
			Description:    input.Description,
		})
	})
	if err != nil {
		release(ctx)
		return Return{}, err
	}

	s.bump(ctx)
	return created, nil
}

// RecordDamage writes off boxes from the warehouse or from a vehicle.
func (s *Service) RecordDamage(ctx context.Context, input DamageInput) (Damage, error) {
	if input.Boxes <= 0 {
		return Damage{}, ErrInvalidQuantity
	}
	if input.ActorID == 0 {
		return Damage{}, shared.ErrActorRequired
	}
	switch input.Source {
	case DamageWarehouse:
	case DamageVehicle:
		if input.VehicleID == 0 {
			return Damage{}, ErrVehicleRequired
		}
	default:
		return Damage{}, ErrUnknownDamageSource
	}

	release, err := s.claimRequest(ctx, "damage", input.RequestID)
	if err != nil {
		return Damage{}, err
	}

	var created Damage
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cat, err := tx.GetCategoryForUpdate(ctx, input.CategoryID)
		if err != nil {
			return err
		}

		switch input.Source {
		case DamageWarehouse:
			if input.Boxes > cat.WarehouseStock {
				return &InsufficientStockError{Field: "warehouse_stock", Requested: input.Boxes, Available: cat.WarehouseStock}
			}
			cat.WarehouseStock -= input.Boxes
			if err := tx.UpdateCategoryLedger(ctx, cat); err != nil {
				return err
			}
		case DamageVehicle:
			alloc, err := tx.GetAllocationForUpdate(ctx, input.CategoryID, input.VehicleID)
			if err != nil {
				if err == ErrAllocationNotFound {
					return &InsufficientStockError{Field: "distributed", Requested: input.Boxes, Available: 0}
				}
				return err
			}
			if input.Boxes > alloc.Distributed {
				return &InsufficientStockError{Field: "distributed", Requested: input.Boxes, Available: alloc.Distributed}
			}
			alloc.Distributed -= input.Boxes
			alloc.DistributedValue = alloc.DistributedValue.Sub(cat.PricePerBox.Mul(decimal.NewFromInt(input.Boxes)))
			if err := tx.UpsertAllocation(ctx, alloc); err != nil {
				return err
			}
		}

		created = Damage{
			CategoryID:  input.CategoryID,
			VehicleID:   input.VehicleID,
			Source:      input.Source,
			Boxes:       input.Boxes,
			Description: input.Description,
			CreatedBy:   input.ActorID,
			CreatedAt:   time.Now().UTC(),
		}
		id, err := tx.InsertDamage(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id

		return tx.AppendHistory(ctx, history.Entry{
			Boxes:          input.Boxes,
			Requisitionist: input.ActorID,
			CategoryTitle:  cat.Title,
			Type:           "damage",
			Event:          history.EventDamaged,
			Description:    input.Description,
		})
	})
	if err != nil {
		release(ctx)
		return Damage{}, err
	}

	s.bump(ctx)
	return created, nil
}

// PushToWarehouse moves production stock into the warehouse.
func (s *Service) PushToWarehouse(ctx context.Context, input PushInput) (WarehousePush, error) {
	if input.Boxes <= 0 {
		return WarehousePush{}, ErrInvalidQuantity
	}
	if input.ActorID == 0 {
		return WarehousePush{}, shared.ErrActorRequired
	}

	release, err := s.claimRequest(ctx, "push", input.RequestID)
	if err != nil {
		return WarehousePush{}, err
	}

	var created WarehousePush
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cat, err := tx.GetCategoryForUpdate(ctx, input.CategoryID)
		if err != nil {
			return err
		}
		if input.Boxes > cat.ProductionStock {
			return &InsufficientStockError{Field: "production_stock", Requested: input.Boxes, Available: cat.ProductionStock}
		}

		created = WarehousePush{
			CategoryID:  input.CategoryID,
			Boxes:       input.Boxes,
			Description: input.Description,
			CreatedBy:   input.ActorID,
			CreatedAt:   time.Now().UTC(),
		}
		id, err := tx.InsertPush(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id

		cat.ProductionStock -= input.Boxes
		cat.WarehouseStock += input.Boxes
		if err := tx.UpdateCategoryLedger(ctx, cat); err != nil {
			return err
		}

		return tx.AppendHistory(ctx, history.Entry{
			Boxes:          input.Boxes,
			Requisitionist: input.ActorID,
			CategoryTitle:  cat.Title,
			Type:           "warehouse",
			Event:          history.EventPushed,
			Description:    input.Description,
		})
	})
	if err != nil {
		release(ctx)
		return WarehousePush{}, err
	}

	s.bump(ctx)
	return created, nil
}

// ListAllocations returns allocation ledger rows.
func (s *Service) ListAllocations(ctx context.Context, filter AllocationFilter) ([]Allocation, error) {
	return s.repo.ListAllocations(ctx, filter)
}

func (s *Service) checkVehicle(ctx context.Context, vehicleID int64) error {
	exists, err := s.repo.VehicleExists(ctx, vehicleID)
	if err != nil {
		return fmt.Errorf("check vehicle: %w", err)
	}
	if !exists {
		return ErrVehicleNotFound
	}
	return nil
}

// claimRequest reserves the idempotency key for this movement. A retried
// request with the same id fails with ErrIdempotencyConflict instead of
// re-creating the primary record. The returned release func rolls the claim
// back when the transaction fails so the caller may retry.
func (s *Service) claimRequest(ctx context.Context, op, requestID string) (func(context.Context), error) {
	noop := func(context.Context) {}
	if requestID == "" || s.idempotency == nil {
		return noop, nil
	}
	if _, err := uuid.Parse(requestID); err != nil {
		return noop, ErrInvalidRequestID
	}
	key := fmt.Sprintf("stock:%s:%s", op, requestID)
	if err := s.idempotency.CheckAndInsert(ctx, key, "stock"); err != nil {
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
