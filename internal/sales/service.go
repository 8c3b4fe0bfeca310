package sales

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateCustomer(ctx context.Context, input CustomerInput) (Customer, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	UpdateCustomer(ctx context.Context, id int64, input CustomerInput) (Customer, error)
	ListCustomers(ctx context.Context, filter CustomerFilter) ([]Customer, int, error)
	ListCustomerIDs(ctx context.Context) ([]int64, error)
	GetOrder(ctx context.Context, id int64) (stock.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]stock.Order, int, error)
	InsertExpense(ctx context.Context, input ExpenseInput) (Expense, error)
	ListExpenses(ctx context.Context, filter ExpenseFilter) ([]Expense, int, error)
}

// Invalidator drops derived read caches after a balance mutation.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service manages customers, order payments and expenses. Debt is maintained
// incrementally by payments and sales, and RecalculateDebt restores it to the
// sum of outstanding order balances whenever the two drift apart.
type Service struct {
	repo        RepositoryPort
	idempotency *shared.IdempotencyStore
	invalidate  Invalidator
}

// NewService builds Service.
func NewService(repo RepositoryPort, idem *shared.IdempotencyStore, invalidate Invalidator) *Service {
	return &Service{repo: repo, idempotency: idem, invalidate: invalidate}
}

// CreateCustomer registers a customer with zero debt.
func (s *Service) CreateCustomer(ctx context.Context, input CustomerInput) (Customer, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Customer{}, ErrNameRequired
	}
	if input.ActorID == 0 {
		return Customer{}, shared.ErrActorRequired
	}
	return s.repo.CreateCustomer(ctx, input)
}

// GetCustomer returns one customer.
func (s *Service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// UpdateCustomer rewrites contact fields.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, input CustomerInput) (Customer, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Customer{}, ErrNameRequired
	}
	return s.repo.UpdateCustomer(ctx, id, input)
}

// ListCustomers returns customers matching the filter.
func (s *Service) ListCustomers(ctx context.Context, filter CustomerFilter) ([]Customer, int, error) {
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	return s.repo.ListCustomers(ctx, filter)
}

// GetOrder returns one order.
func (s *Service) GetOrder(ctx context.Context, id int64) (stock.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns orders matching the filter.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]stock.Order, int, error) {
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	return s.repo.ListOrders(ctx, filter)
}

// RecordPayment applies a payment to an order and decrements the customer's
// debt by the same amount, in one transaction with both rows locked.
func (s *Service) RecordPayment(ctx context.Context, input PaymentInput) (stock.Order, error) {
	if input.Amounts.Negative() {
		return stock.Order{}, ErrNegativeAmount
	}
	amount := input.Amounts.Total()
	if !amount.IsPositive() {
		return stock.Order{}, ErrZeroPayment
	}
	if input.ActorID == 0 {
		return stock.Order{}, shared.ErrActorRequired
	}

	release, err := s.claimRequest(ctx, "payment", input.RequestID)
	if err != nil {
		return stock.Order{}, err
	}

	var updated stock.Order
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus == stock.PaymentPaid {
			return ErrAlreadyPaid
		}

		outstanding := order.TotalPrice.Sub(order.Payment.Total())
		if amount.GreaterThan(outstanding) {
			return ErrOverpayment
		}

		order.Payment.Cash = order.Payment.Cash.Add(input.Amounts.Cash)
		order.Payment.Bank = order.Payment.Bank.Add(input.Amounts.Bank)
		order.Payment.Cheque = order.Payment.Cheque.Add(input.Amounts.Cheque)
		order.Payment.Momo = order.Payment.Momo.Add(input.Amounts.Momo)
		if order.Payment.Total().Equal(order.TotalPrice) {
			order.PaymentStatus = stock.PaymentPaid
		} else {
			order.PaymentStatus = stock.PaymentPartial
		}
		if err := tx.UpdateOrderPayment(ctx, order); err != nil {
			return err
		}

		customer, err := tx.GetCustomerForUpdate(ctx, order.CustomerID)
		if err != nil {
			return err
		}
		debt := customer.Debt.Sub(amount)
		if debt.IsNegative() {
			debt = decimal.Zero
		}
		if err := tx.SetCustomerDebt(ctx, customer.ID, debt); err != nil {
			return err
		}

		updated = order
		return nil
	})
	if err != nil {
		release(ctx)
		return stock.Order{}, err
	}

	s.bump(ctx)
	return updated, nil
}

// RecalculateDebt rewrites the customer's debt from the sum of outstanding
// balances on non-paid orders. Drift can only enter through out-of-band data
// fixes; this is the documented way back.
func (s *Service) RecalculateDebt(ctx context.Context, customerID int64) (Customer, error) {
	var customer Customer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		customer, err = tx.GetCustomerForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		outstanding, err := tx.OutstandingBalance(ctx, customerID)
		if err != nil {
			return err
		}
		if outstanding.IsNegative() {
			outstanding = decimal.Zero
		}
		if customer.Debt.Equal(outstanding) {
			return nil
		}
		customer.Debt = outstanding
		return tx.SetCustomerDebt(ctx, customerID, outstanding)
	})
	if err != nil {
		return Customer{}, err
	}
	s.bump(ctx)
	return customer, nil
}

// ReconcileAllDebts sweeps every customer through RecalculateDebt. Used by
// the nightly job; errors on individual customers abort the sweep.
func (s *Service) ReconcileAllDebts(ctx context.Context) (int, error) {
	ids, err := s.repo.ListCustomerIDs(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if _, err := s.RecalculateDebt(ctx, id); err != nil {
			return i, fmt.Errorf("reconcile customer %d: %w", id, err)
		}
	}
	return len(ids), nil
}

// RecordExpense stores an operating expense.
func (s *Service) RecordExpense(ctx context.Context, input ExpenseInput) (Expense, error) {
	input.Kind = strings.TrimSpace(input.Kind)
	if input.Kind == "" {
		return Expense{}, ErrKindRequired
	}
	if input.Amount.IsNegative() || input.Amount.IsZero() {
		return Expense{}, ErrNegativeAmount
	}
	if input.ActorID == 0 {
		return Expense{}, shared.ErrActorRequired
	}
	e, err := s.repo.InsertExpense(ctx, input)
	if err != nil {
		return Expense{}, err
	}
	s.bump(ctx)
	return e, nil
}

// ListExpenses returns expenses matching the filter.
func (s *Service) ListExpenses(ctx context.Context, filter ExpenseFilter) ([]Expense, int, error) {
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	return s.repo.ListExpenses(ctx, filter)
}

func (s *Service) claimRequest(ctx context.Context, op, requestID string) (func(context.Context), error) {
	noop := func(context.Context) {}
	if requestID == "" || s.idempotency == nil {
		return noop, nil
	}
	if _, err := uuid.Parse(requestID); err != nil {
		return noop, ErrInvalidRequestID
	}
	key := fmt.Sprintf("sales:%s:%s", op, requestID)
	if err := s.idempotency.CheckAndInsert(ctx, key, "sales"); err != nil {
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
