package sales

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/stock"
)

type memoryRepo struct {
	customers map[int64]Customer
	orders    map[int64]stock.Order
	expenses  []Expense
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		customers: make(map[int64]Customer),
		orders:    make(map[int64]stock.Order),
	}
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	customers := make(map[int64]Customer, len(r.customers))
	for k, v := range r.customers {
		customers[k] = v
	}
	orders := make(map[int64]stock.Order, len(r.orders))
	for k, v := range r.orders {
		orders[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.customers = customers
		r.orders = orders
		return err
	}
	return nil
}

func (r *memoryRepo) CreateCustomer(ctx context.Context, input CustomerInput) (Customer, error) {
	r.nextID++
	c := Customer{
		ID:         r.nextID,
		Name:       input.Name,
		Phone:      input.Phone,
		Address:    input.Address,
		Debt:       decimal.Zero,
		TotalSpent: decimal.Zero,
		CreatedBy:  input.ActorID,
	}
	r.customers[c.ID] = c
	return c, nil
}

func (r *memoryRepo) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	if c, ok := r.customers[id]; ok {
		return c, nil
	}
	return Customer{}, ErrCustomerNotFound
}

func (r *memoryRepo) UpdateCustomer(ctx context.Context, id int64, input CustomerInput) (Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrCustomerNotFound
	}
	c.Name, c.Phone, c.Address = input.Name, input.Phone, input.Address
	r.customers[id] = c
	return c, nil
}

func (r *memoryRepo) ListCustomers(ctx context.Context, filter CustomerFilter) ([]Customer, int, error) {
	var out []Customer
	for _, c := range r.customers {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListCustomerIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for id := range r.customers {
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *memoryRepo) GetOrder(ctx context.Context, id int64) (stock.Order, error) {
	if o, ok := r.orders[id]; ok {
		return o, nil
	}
	return stock.Order{}, ErrOrderNotFound
}

func (r *memoryRepo) ListOrders(ctx context.Context, filter OrderFilter) ([]stock.Order, int, error) {
	var out []stock.Order
	for _, o := range r.orders {
		if filter.CustomerID != 0 && o.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (r *memoryRepo) InsertExpense(ctx context.Context, input ExpenseInput) (Expense, error) {
	r.nextID++
	e := Expense{
		ID:          r.nextID,
		VehicleID:   input.VehicleID,
		Kind:        input.Kind,
		Amount:      input.Amount,
		Description: input.Description,
		SpentAt:     input.SpentAt,
		CreatedBy:   input.ActorID,
	}
	r.expenses = append(r.expenses, e)
	return e, nil
}

func (r *memoryRepo) ListExpenses(ctx context.Context, filter ExpenseFilter) ([]Expense, int, error) {
	return r.expenses, len(r.expenses), nil
}

func (t *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (stock.Order, error) {
	return t.repo.GetOrder(ctx, id)
}

func (t *memoryTx) UpdateOrderPayment(ctx context.Context, o stock.Order) error {
	if _, ok := t.repo.orders[o.ID]; !ok {
		return ErrOrderNotFound
	}
	t.repo.orders[o.ID] = o
	return nil
}

func (t *memoryTx) GetCustomerForUpdate(ctx context.Context, id int64) (Customer, error) {
	return t.repo.GetCustomer(ctx, id)
}

func (t *memoryTx) SetCustomerDebt(ctx context.Context, customerID int64, debt decimal.Decimal) error {
	c, ok := t.repo.customers[customerID]
	if !ok {
		return ErrCustomerNotFound
	}
	c.Debt = debt
	t.repo.customers[customerID] = c
	return nil
}

func (t *memoryTx) OutstandingBalance(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	outstanding := decimal.Zero
	for _, o := range t.repo.orders {
		if o.CustomerID != customerID || o.PaymentStatus == stock.PaymentPaid {
			continue
		}
		outstanding = outstanding.Add(o.TotalPrice.Sub(o.Payment.Total()))
	}
	return outstanding, nil
}

func seedOrder(repo *memoryRepo, customerID int64, total, paid int64) stock.Order {
	repo.nextID++
	status := stock.PaymentUnpaid
	if paid > 0 {
		status = stock.PaymentPartial
	}
	if paid == total {
		status = stock.PaymentPaid
	}
	o := stock.Order{
		ID:            repo.nextID,
		CustomerID:    customerID,
		Boxes:         10,
		TotalPrice:    decimal.NewFromInt(total),
		Payment:       stock.PaymentSplit{Cash: decimal.NewFromInt(paid)},
		PaymentStatus: status,
	}
	repo.orders[o.ID] = o
	return o
}

func seedCustomer(repo *memoryRepo, debt int64) Customer {
	repo.nextID++
	c := Customer{ID: repo.nextID, Name: "Acme Stores", Debt: decimal.NewFromInt(debt)}
	repo.customers[c.ID] = c
	return c
}

func TestRecordPaymentSettlesOrderAndDebt(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	customer := seedCustomer(repo, 200)
	order := seedOrder(repo, customer.ID, 500, 300)

	updated, err := svc.RecordPayment(context.Background(), PaymentInput{
		OrderID: order.ID,
		Amounts: stock.PaymentSplit{Bank: decimal.NewFromInt(200)},
		ActorID: 9,
	})
	require.NoError(t, err)
	require.Equal(t, stock.PaymentPaid, updated.PaymentStatus)
	require.True(t, updated.Payment.Total().Equal(decimal.NewFromInt(500)))
	require.True(t, repo.customers[customer.ID].Debt.IsZero())
}

func TestRecordPartialPayment(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	customer := seedCustomer(repo, 500)
	order := seedOrder(repo, customer.ID, 500, 0)

	updated, err := svc.RecordPayment(context.Background(), PaymentInput{
		OrderID: order.ID,
		Amounts: stock.PaymentSplit{Momo: decimal.NewFromInt(150)},
		ActorID: 9,
	})
	require.NoError(t, err)
	require.Equal(t, stock.PaymentPartial, updated.PaymentStatus)
	require.True(t, repo.customers[customer.ID].Debt.Equal(decimal.NewFromInt(350)))
}

func TestRecordPaymentOverpaymentRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	customer := seedCustomer(repo, 200)
	order := seedOrder(repo, customer.ID, 500, 300)

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		OrderID: order.ID,
		Amounts: stock.PaymentSplit{Cash: decimal.NewFromInt(300)},
		ActorID: 9,
	})
	require.ErrorIs(t, err, ErrOverpayment)
	require.True(t, repo.customers[customer.ID].Debt.Equal(decimal.NewFromInt(200)))
	require.Equal(t, stock.PaymentPartial, repo.orders[order.ID].PaymentStatus)
}

func TestRecordPaymentOnPaidOrderRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	customer := seedCustomer(repo, 0)
	order := seedOrder(repo, customer.ID, 500, 500)

	_, err := svc.RecordPayment(context.Background(), PaymentInput{
		OrderID: order.ID,
		Amounts: stock.PaymentSplit{Cash: decimal.NewFromInt(10)},
		ActorID: 9,
	})
	require.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestRecordPaymentValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordPayment(ctx, PaymentInput{OrderID: 1, ActorID: 9})
	require.ErrorIs(t, err, ErrZeroPayment)

	_, err = svc.RecordPayment(ctx, PaymentInput{
		OrderID: 1,
		Amounts: stock.PaymentSplit{Cash: decimal.NewFromInt(-5)},
		ActorID: 9,
	})
	require.ErrorIs(t, err, ErrNegativeAmount)
}

func TestRecalculateDebtResyncsFromOrders(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	customer := seedCustomer(repo, 9999) // drifted
	seedOrder(repo, customer.ID, 500, 300) // outstanding 200
	seedOrder(repo, customer.ID, 400, 0)   // outstanding 400
	seedOrder(repo, customer.ID, 100, 100) // paid, ignored

	updated, err := svc.RecalculateDebt(context.Background(), customer.ID)
	require.NoError(t, err)
	require.True(t, updated.Debt.Equal(decimal.NewFromInt(600)))
	require.True(t, repo.customers[customer.ID].Debt.Equal(decimal.NewFromInt(600)))
}

func TestReconcileAllDebts(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	a := seedCustomer(repo, 123)
	b := seedCustomer(repo, 456)
	seedOrder(repo, a.ID, 500, 250)

	count, err := svc.ReconcileAllDebts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.True(t, repo.customers[a.ID].Debt.Equal(decimal.NewFromInt(250)))
	require.True(t, repo.customers[b.ID].Debt.IsZero())
}

func TestCreateCustomerValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.CreateCustomer(context.Background(), CustomerInput{Name: "  ", ActorID: 9})
	require.ErrorIs(t, err, ErrNameRequired)

	created, err := svc.CreateCustomer(context.Background(), CustomerInput{Name: "Acme Stores", ActorID: 9})
	require.NoError(t, err)
	require.True(t, created.Debt.IsZero())
}

func TestRecordExpenseValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.RecordExpense(ctx, ExpenseInput{Kind: "", Amount: decimal.NewFromInt(10), ActorID: 9})
	require.ErrorIs(t, err, ErrKindRequired)

	_, err = svc.RecordExpense(ctx, ExpenseInput{Kind: "fuel", Amount: decimal.Zero, ActorID: 9})
	require.ErrorIs(t, err, ErrNegativeAmount)

	e, err := svc.RecordExpense(ctx, ExpenseInput{Kind: "fuel", Amount: decimal.NewFromInt(80), VehicleID: 7, ActorID: 9})
	require.NoError(t, err)
	require.Equal(t, "fuel", e.Kind)
}
