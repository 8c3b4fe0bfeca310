package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/stock"
)

// Repository persists customers, payments and expenses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations a payment or reconciliation needs. The
// order and customer rows are both locked before balances change.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, id int64) (stock.Order, error)
	UpdateOrderPayment(ctx context.Context, o stock.Order) error
	GetCustomerForUpdate(ctx context.Context, id int64) (Customer, error)
	SetCustomerDebt(ctx context.Context, customerID int64, debt decimal.Decimal) error
	OutstandingBalance(ctx context.Context, customerID int64) (decimal.Decimal, error)
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const customerColumns = `id, name, phone, address, debt, total_spent, created_by, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Address, &c.Debt, &c.TotalSpent,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrCustomerNotFound
		}
		return Customer{}, fmt.Errorf("scan customer: %w", err)
	}
	return c, nil
}

// CreateCustomer inserts a customer with zero balances.
func (r *Repository) CreateCustomer(ctx context.Context, input CustomerInput) (Customer, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO customers (name, phone, address, debt, total_spent, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, 0, 0, $4, NOW(), NOW())
		RETURNING `+customerColumns+`
	`, input.Name, input.Phone, input.Address, input.ActorID)
	return scanCustomer(row)
}

// GetCustomer returns one customer.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

// UpdateCustomer rewrites contact fields, never balances.
func (r *Repository) UpdateCustomer(ctx context.Context, id int64, input CustomerInput) (Customer, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE customers SET name = $1, phone = $2, address = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING `+customerColumns+`
	`, input.Name, input.Phone, input.Address, id)
	return scanCustomer(row)
}

// ListCustomers returns customers matching the filter with the total count.
func (r *Repository) ListCustomers(ctx context.Context, filter CustomerFilter) ([]Customer, int, error) {
	where := ""
	var args []interface{}
	argPos := 1
	if filter.Search != "" {
		where = fmt.Sprintf(" WHERE name ILIKE $%d OR phone ILIKE $%d", argPos, argPos)
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	query := `SELECT ` + customerColumns + ` FROM customers` + where +
		fmt.Sprintf(" ORDER BY name ASC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// ListCustomerIDs returns every customer id, for reconciliation sweeps.
func (r *Repository) ListCustomerIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM customers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list customer ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const orderColumns = `id, category_id, vehicle_id, customer_id, boxes, total_price,
	paid_cash, paid_bank, paid_cheque, paid_momo, payment_status, description, created_by, created_at`

func scanOrder(row pgx.Row) (stock.Order, error) {
	var o stock.Order
	err := row.Scan(&o.ID, &o.CategoryID, &o.VehicleID, &o.CustomerID, &o.Boxes, &o.TotalPrice,
		&o.Payment.Cash, &o.Payment.Bank, &o.Payment.Cheque, &o.Payment.Momo,
		&o.PaymentStatus, &o.Description, &o.CreatedBy, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stock.Order{}, ErrOrderNotFound
		}
		return stock.Order{}, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}

// GetOrder returns one order.
func (r *Repository) GetOrder(ctx context.Context, id int64) (stock.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// ListOrders returns orders matching the filter, newest first, with the total
// count.
func (r *Repository) ListOrders(ctx context.Context, filter OrderFilter) ([]stock.Order, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	add := func(cond string, val interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argPos))
		args = append(args, val)
		argPos++
	}
	if filter.CustomerID != 0 {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.VehicleID != 0 {
		add("vehicle_id = $%d", filter.VehicleID)
	}
	if filter.Status != "" {
		add("payment_status = $%d", filter.Status)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []stock.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// InsertExpense records an operating expense.
func (r *Repository) InsertExpense(ctx context.Context, input ExpenseInput) (Expense, error) {
	spentAt := input.SpentAt
	if spentAt.IsZero() {
		spentAt = time.Now()
	}
	var e Expense
	err := r.pool.QueryRow(ctx, `
		INSERT INTO expenses (vehicle_id, kind, amount, description, spent_at, created_by, created_at)
		VALUES (NULLIF($1, 0), $2, $3, $4, $5, $6, NOW())
		RETURNING id, COALESCE(vehicle_id, 0), kind, amount, description, spent_at, created_by, created_at
	`, input.VehicleID, input.Kind, input.Amount, input.Description, spentAt, input.ActorID).
		Scan(&e.ID, &e.VehicleID, &e.Kind, &e.Amount, &e.Description, &e.SpentAt, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		return Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns expenses matching the filter with the total count.
func (r *Repository) ListExpenses(ctx context.Context, filter ExpenseFilter) ([]Expense, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.VehicleID != 0 {
		conditions = append(conditions, fmt.Sprintf("vehicle_id = $%d", argPos))
		args = append(args, filter.VehicleID)
		argPos++
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("spent_at >= $%d", argPos))
		args = append(args, filter.From)
		argPos++
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("spent_at <= $%d", argPos))
		args = append(args, filter.To)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM expenses`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count expenses: %w", err)
	}

	query := `SELECT id, COALESCE(vehicle_id, 0), kind, amount, description, spent_at, created_by, created_at FROM expenses` +
		where + fmt.Sprintf(" ORDER BY spent_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.VehicleID, &e.Kind, &e.Amount, &e.Description,
			&e.SpentAt, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (stock.Order, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	return scanOrder(row)
}

func (t *txRepo) UpdateOrderPayment(ctx context.Context, o stock.Order) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE orders
		SET paid_cash = $1, paid_bank = $2, paid_cheque = $3, paid_momo = $4, payment_status = $5
		WHERE id = $6
	`, o.Payment.Cash, o.Payment.Bank, o.Payment.Cheque, o.Payment.Momo, o.PaymentStatus, o.ID)
	if err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *txRepo) GetCustomerForUpdate(ctx context.Context, id int64) (Customer, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, id)
	return scanCustomer(row)
}

func (t *txRepo) SetCustomerDebt(ctx context.Context, customerID int64, debt decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `UPDATE customers SET debt = $1, updated_at = NOW() WHERE id = $2`, debt, customerID)
	if err != nil {
		return fmt.Errorf("set customer debt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// OutstandingBalance sums total_price minus received payments across the
// customer's non-paid orders.
func (t *txRepo) OutstandingBalance(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	var outstanding decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_price - paid_cash - paid_bank - paid_cheque - paid_momo), 0)
		FROM orders
		WHERE customer_id = $1 AND payment_status <> 'paid'
	`, customerID).Scan(&outstanding)
	if err != nil {
		return decimal.Zero, fmt.Errorf("outstanding balance: %w", err)
	}
	return outstanding, nil
}
