package stock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/category"
	"github.com/meridian-erp/meridian-erp/internal/history"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists stock movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations a stock-moving transaction needs. All
// reads lock the rows they return; the transaction commits or rolls back the
// ledger mutation, the primary record and the audit entry together.
type TxRepository interface {
	GetCategoryForUpdate(ctx context.Context, id int64) (category.Category, error)
	UpdateCategoryLedger(ctx context.Context, c category.Category) error
	GetAllocationForUpdate(ctx context.Context, categoryID, vehicleID int64) (Allocation, error)
	UpsertAllocation(ctx context.Context, a Allocation) error
	GetCustomerForUpdate(ctx context.Context, id int64) (CustomerBalance, error)
	UpdateCustomerBalance(ctx context.Context, b CustomerBalance) error
	InsertDistribution(ctx context.Context, d Distribution) (int64, error)
	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertReturn(ctx context.Context, ret Return) (int64, error)
	InsertDamage(ctx context.Context, d Damage) (int64, error)
	InsertPush(ctx context.Context, p WarehousePush) (int64, error)
	AppendHistory(ctx context.Context, e history.Entry) error
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

// VehicleExists validates a vehicle reference.
func (r *Repository) VehicleExists(ctx context.Context, vehicleID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM vehicles WHERE id = $1)`, vehicleID).Scan(&exists)
	return exists, err
}

// ListAllocations returns allocation ledger rows matching the filter.
func (r *Repository) ListAllocations(ctx context.Context, filter AllocationFilter) ([]Allocation, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.CategoryID != 0 {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", argPos))
		args = append(args, filter.CategoryID)
		argPos++
	}
	if filter.VehicleID != 0 {
		conditions = append(conditions, fmt.Sprintf("vehicle_id = $%d", argPos))
		args = append(args, filter.VehicleID)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT id, category_id, vehicle_id, distributed, distributed_value, sold, sold_value, updated_at
		FROM allocations
		%s
		ORDER BY category_id, vehicle_id
	`, whereClause)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocations []Allocation
	for rows.Next() {
		var a Allocation
		err := rows.Scan(&a.ID, &a.CategoryID, &a.VehicleID, &a.Distributed, &a.DistributedValue, &a.Sold, &a.SoldValue, &a.UpdatedAt)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

func (t *txRepo) GetCategoryForUpdate(ctx context.Context, id int64) (category.Category, error) {
	return category.GetForUpdateTx(ctx, t.tx, id)
}

func (t *txRepo) UpdateCategoryLedger(ctx context.Context, c category.Category) error {
	return category.UpdateLedgerTx(ctx, t.tx, c)
}

func (t *txRepo) GetAllocationForUpdate(ctx context.Context, categoryID, vehicleID int64) (Allocation, error) {
	var a Allocation
	err := t.tx.QueryRow(ctx, `
		SELECT id, category_id, vehicle_id, distributed, distributed_value, sold, sold_value, updated_at
		FROM allocations
		WHERE category_id = $1 AND vehicle_id = $2
		FOR UPDATE
	`, categoryID, vehicleID).Scan(&a.ID, &a.CategoryID, &a.VehicleID, &a.Distributed, &a.DistributedValue, &a.Sold, &a.SoldValue, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Allocation{CategoryID: categoryID, VehicleID: vehicleID}, ErrAllocationNotFound
		}
		return Allocation{}, err
	}
	return a, nil
}

func (t *txRepo) UpsertAllocation(ctx context.Context, a Allocation) error {
	// The unique constraint on (category_id, vehicle_id) guarantees one ledger
	// row per pair no matter how the lookup raced.
	_, err := t.tx.Exec(ctx, `
		INSERT INTO allocations (category_id, vehicle_id, distributed, distributed_value, sold, sold_value, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (category_id, vehicle_id) DO UPDATE
		SET distributed = EXCLUDED.distributed,
		    distributed_value = EXCLUDED.distributed_value,
		    sold = EXCLUDED.sold,
		    sold_value = EXCLUDED.sold_value,
		    updated_at = EXCLUDED.updated_at
	`, a.CategoryID, a.VehicleID, a.Distributed, a.DistributedValue, a.Sold, a.SoldValue, time.Now())
	return err
}

func (t *txRepo) GetCustomerForUpdate(ctx context.Context, id int64) (CustomerBalance, error) {
	var b CustomerBalance
	err := t.tx.QueryRow(ctx, `SELECT id, debt, total_spent FROM customers WHERE id = $1 FOR UPDATE`, id).
		Scan(&b.ID, &b.Debt, &b.TotalSpent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CustomerBalance{}, ErrCustomerRequired
		}
		return CustomerBalance{}, err
	}
	return b, nil
}

func (t *txRepo) UpdateCustomerBalance(ctx context.Context, b CustomerBalance) error {
	cmdTag, err := t.tx.Exec(ctx, `UPDATE customers SET debt = $1, total_spent = $2, updated_at = $3 WHERE id = $4`,
		b.Debt, b.TotalSpent, time.Now(), b.ID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCustomerRequired
	}
	return nil
}

func (t *txRepo) InsertDistribution(ctx context.Context, d Distribution) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO distributions (category_id, vehicle_id, boxes, total_value, description, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, d.CategoryID, d.VehicleID, d.Boxes, d.TotalValue, d.Description, d.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (category_id, vehicle_id, customer_id, boxes, total_price,
			paid_cash, paid_bank, paid_cheque, paid_momo, payment_status, description, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, o.CategoryID, o.VehicleID, o.CustomerID, o.Boxes, o.TotalPrice,
		o.Payment.Cash, o.Payment.Bank, o.Payment.Cheque, o.Payment.Momo,
		o.PaymentStatus, o.Description, o.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) InsertReturn(ctx context.Context, ret Return) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO returns (category_id, vehicle_id, boxes, description, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, ret.CategoryID, ret.VehicleID, ret.Boxes, ret.Description, ret.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) InsertDamage(ctx context.Context, d Damage) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO damages (category_id, vehicle_id, source, boxes, description, created_by)
		VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6)
		RETURNING id
	`, d.CategoryID, d.VehicleID, d.Source, d.Boxes, d.Description, d.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) InsertPush(ctx context.Context, p WarehousePush) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO warehouse_pushes (category_id, boxes, description, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, p.CategoryID, p.Boxes, p.Description, p.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) AppendHistory(ctx context.Context, e history.Entry) error {
	return history.Append(ctx, t.tx, e)
}
