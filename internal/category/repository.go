package category

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists categories in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const categoryColumns = `id, title, production_stock, warehouse_stock, pending_production,
	pending_warehouse, price_per_box, sales_price, status, warehouse_status,
	created_by, created_at, updated_at`

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(
		&c.ID, &c.Title, &c.ProductionStock, &c.WarehouseStock, &c.PendingProduction,
		&c.PendingWarehouse, &c.PricePerBox, &c.SalesPrice, &c.Status, &c.WarehouseStatus,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, ErrNotFound
		}
		return Category{}, err
	}
	return c, nil
}

// Create inserts a new category with zero stock.
func (r *Repository) Create(ctx context.Context, input CreateInput) (Category, error) {
	query := `
		INSERT INTO categories (title, price_per_box, sales_price, status, warehouse_status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + categoryColumns
	row := r.pool.QueryRow(ctx, query,
		input.Title, input.PricePerBox, input.SalesPrice,
		StatusUnavailable, StatusUnavailable, input.ActorID,
	)
	c, err := scanCategory(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Category{}, ErrDuplicateTitle
		}
		return Category{}, err
	}
	return c, nil
}

// Get fetches a category by id.
func (r *Repository) Get(ctx context.Context, id int64) (Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	return scanCategory(r.pool.QueryRow(ctx, query, id))
}

// Update rewrites title and pricing fields.
func (r *Repository) Update(ctx context.Context, id int64, input UpdateInput) (Category, error) {
	query := `
		UPDATE categories
		SET title = $1, price_per_box = $2, sales_price = $3, updated_at = $4
		WHERE id = $5
		RETURNING ` + categoryColumns
	return scanCategory(r.pool.QueryRow(ctx, query,
		input.Title, input.PricePerBox, input.SalesPrice, time.Now(), id,
	))
}

// List returns categories matching the filter plus a total count.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Category, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(title) LIKE $%d", argPos))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM categories %s`, whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`
		SELECT %s FROM categories
		%s
		ORDER BY title, id
		LIMIT $%d OFFSET $%d
	`, categoryColumns, whereClause, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, 0, err
		}
		categories = append(categories, c)
	}
	return categories, total, rows.Err()
}

// GetForUpdateTx locks and returns the category row inside an open transaction.
// Every stock-moving transaction goes through this lock so that concurrent
// movements against the same category serialize instead of racing.
func GetForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1 FOR UPDATE`
	return scanCategory(tx.QueryRow(ctx, query, id))
}

// UpdateLedgerTx rewrites the stock fields and derived statuses inside an open
// transaction. The caller must hold the row lock from GetForUpdateTx.
func UpdateLedgerTx(ctx context.Context, tx pgx.Tx, c Category) error {
	c.RefreshStatus()
	cmdTag, err := tx.Exec(ctx, `
		UPDATE categories
		SET production_stock = $1, warehouse_stock = $2, pending_production = $3,
		    pending_warehouse = $4, status = $5, warehouse_status = $6, updated_at = $7
		WHERE id = $8
	`, c.ProductionStock, c.WarehouseStock, c.PendingProduction,
		c.PendingWarehouse, c.Status, c.WarehouseStatus, time.Now(), c.ID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
