package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the requisition history trail. There is no update or delete
// path on this table anywhere in the codebase.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns enriched entries matching the filter, newest first, plus a
// total count. The users join is LEFT so entries survive deleted accounts.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]EnrichedEntry, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Event != "" {
		conditions = append(conditions, fmt.Sprintf("h.requisition_event = $%d", argPos))
		args = append(args, filter.Event)
		argPos++
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("h.requisition_type = $%d", argPos))
		args = append(args, filter.Type)
		argPos++
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("h.occurred_at >= $%d", argPos))
		args = append(args, filter.From)
		argPos++
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("h.occurred_at <= $%d", argPos))
		args = append(args, filter.To)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM requisition_history h %s`, whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(`
		SELECT h.id, h.boxes, h.requisitionist, h.category_title, h.requisition_type,
		       h.requisition_event, h.description, h.occurred_at,
		       COALESCE(u.name, '') AS requisitionist_name,
		       COALESCE(u.role, '') AS requisitionist_role
		FROM requisition_history h
		LEFT JOIN users u ON u.id = h.requisitionist
		%s
		ORDER BY h.occurred_at DESC, h.id DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []EnrichedEntry
	for rows.Next() {
		var e EnrichedEntry
		err := rows.Scan(
			&e.ID, &e.Boxes, &e.Requisitionist, &e.CategoryTitle, &e.Type,
			&e.Event, &e.Description, &e.OccurredAt,
			&e.RequisitionistName, &e.RequisitionistRole,
		)
		if err != nil {
			return nil, 0, err
		}
		if e.RequisitionistName == "" {
			e.RequisitionistName = strconv.FormatInt(e.Requisitionist, 10)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}
