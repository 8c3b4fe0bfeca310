package requisition

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/category"
	"github.com/meridian-erp/meridian-erp/internal/history"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists requisitions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations a requisition transition needs. The
// requisition row and the category ledger row are both locked before any
// state is changed, and the audit entry lands in the same transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Requisition, error)
	Insert(ctx context.Context, req Requisition) (int64, error)
	SetState(ctx context.Context, id int64, state State, decidedBy int64) error
	GetCategoryForUpdate(ctx context.Context, id int64) (category.Category, error)
	UpdateCategoryLedger(ctx context.Context, c category.Category) error
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

const requisitionColumns = `id, type, state, category_id, category_title, boxes, requisitionist, description, COALESCE(decided_by, 0), decided_at, created_at, updated_at`

func scanRequisition(row pgx.Row) (Requisition, error) {
	var req Requisition
	err := row.Scan(&req.ID, &req.Type, &req.State, &req.CategoryID, &req.CategoryTitle,
		&req.Boxes, &req.Requisitionist, &req.Description, &req.DecidedBy, &req.DecidedAt,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Requisition{}, ErrNotFound
		}
		return Requisition{}, fmt.Errorf("scan requisition: %w", err)
	}
	return req, nil
}

// Get returns one requisition.
func (r *Repository) Get(ctx context.Context, id int64) (Requisition, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requisitionColumns+` FROM requisitions WHERE id = $1`, id)
	return scanRequisition(row)
}

// List returns requisitions matching the filter, newest first, with the
// total count for pagination.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Requisition, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argPos))
		args = append(args, filter.Type)
		argPos++
	}
	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("state = $%d", argPos))
		args = append(args, filter.State)
		argPos++
	}
	if filter.CategoryID != 0 {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", argPos))
		args = append(args, filter.CategoryID)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM requisitions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count requisitions: %w", err)
	}

	query := `SELECT ` + requisitionColumns + ` FROM requisitions` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list requisitions: %w", err)
	}
	defer rows.Close()

	var out []Requisition
	for rows.Next() {
		req, err := scanRequisition(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Requisition, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+requisitionColumns+` FROM requisitions WHERE id = $1 FOR UPDATE`, id)
	return scanRequisition(row)
}

func (t *txRepo) Insert(ctx context.Context, req Requisition) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO requisitions (type, state, category_id, category_title, boxes, requisitionist, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id
	`, req.Type, req.State, req.CategoryID, req.CategoryTitle, req.Boxes, req.Requisitionist, req.Description).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert requisition: %w", err)
	}
	return id, nil
}

func (t *txRepo) SetState(ctx context.Context, id int64, state State, decidedBy int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE requisitions
		SET state = $1, decided_by = $2, decided_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`, state, decidedBy, id)
	if err != nil {
		return fmt.Errorf("update requisition state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) GetCategoryForUpdate(ctx context.Context, id int64) (category.Category, error) {
	return category.GetForUpdateTx(ctx, t.tx, id)
}

func (t *txRepo) UpdateCategoryLedger(ctx context.Context, c category.Category) error {
	return category.UpdateLedgerTx(ctx, t.tx, c)
}

func (t *txRepo) AppendHistory(ctx context.Context, e history.Entry) error {
	return history.Append(ctx, t.tx, e)
}
