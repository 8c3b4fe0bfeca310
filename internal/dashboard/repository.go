package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository issues the aggregate queries behind the dashboard. All reads are
// plain snapshots; freshness is handled by the cache layer.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SalesByDay returns per-day sales inside the window, keyed by ISO date.
// Days without sales are absent; the service fills the gaps.
func (r *Repository) SalesByDay(ctx context.Context, from, to time.Time) (map[string]SalesPoint, error) {
	return r.salesBuckets(ctx, `TO_CHAR(created_at, 'YYYY-MM-DD')`, from, to)
}

// SalesByWeek returns per-ISO-week sales inside the window, keyed "IYYY-Wnn".
func (r *Repository) SalesByWeek(ctx context.Context, from, to time.Time) (map[string]SalesPoint, error) {
	return r.salesBuckets(ctx, `TO_CHAR(created_at, 'IYYY-"W"IW')`, from, to)
}

// SalesByMonth returns per-month sales inside the window, keyed "YYYY-MM".
func (r *Repository) SalesByMonth(ctx context.Context, from, to time.Time) (map[string]SalesPoint, error) {
	return r.salesBuckets(ctx, `TO_CHAR(created_at, 'YYYY-MM')`, from, to)
}

func (r *Repository) salesBuckets(ctx context.Context, labelExpr string, from, to time.Time) (map[string]SalesPoint, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s AS label,
			COALESCE(SUM(boxes), 0),
			COALESCE(SUM(total_price), 0),
			COALESCE(SUM(paid_cash + paid_bank + paid_cheque + paid_momo), 0)
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY label
		ORDER BY label
	`, labelExpr), from, to)
	if err != nil {
		return nil, fmt.Errorf("sales buckets: %w", err)
	}
	defer rows.Close()

	out := make(map[string]SalesPoint)
	for rows.Next() {
		var p SalesPoint
		if err := rows.Scan(&p.Label, &p.Boxes, &p.Revenue, &p.Received); err != nil {
			return nil, err
		}
		out[p.Label] = p
	}
	return out, rows.Err()
}

// TotalsByCreator aggregates order volume per recording user in the window.
func (r *Repository) TotalsByCreator(ctx context.Context, from, to time.Time) ([]CreatorTotal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT o.created_by, COALESCE(u.name, ''), COALESCE(SUM(o.boxes), 0), COALESCE(SUM(o.total_price), 0)
		FROM orders o
		LEFT JOIN users u ON u.id = o.created_by
		WHERE o.created_at >= $1 AND o.created_at < $2
		GROUP BY o.created_by, u.name
		ORDER BY SUM(o.total_price) DESC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("totals by creator: %w", err)
	}
	defer rows.Close()

	var out []CreatorTotal
	for rows.Next() {
		var t CreatorTotal
		if err := rows.Scan(&t.CreatorID, &t.Name, &t.Boxes, &t.Revenue); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TotalsByCategory aggregates movement per category in the window: sales,
// distributions, returns and damages each from their own table.
func (r *Repository) TotalsByCategory(ctx context.Context, from, to time.Time) ([]CategoryTotal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.title,
			COALESCE(o.boxes, 0), COALESCE(o.revenue, 0),
			COALESCE(d.boxes, 0), COALESCE(ret.boxes, 0), COALESCE(dam.boxes, 0)
		FROM categories c
		LEFT JOIN (
			SELECT category_id, SUM(boxes) AS boxes, SUM(total_price) AS revenue
			FROM orders WHERE created_at >= $1 AND created_at < $2 GROUP BY category_id
		) o ON o.category_id = c.id
		LEFT JOIN (
			SELECT category_id, SUM(boxes) AS boxes
			FROM distributions WHERE created_at >= $1 AND created_at < $2 GROUP BY category_id
		) d ON d.category_id = c.id
		LEFT JOIN (
			SELECT category_id, SUM(boxes) AS boxes
			FROM returns WHERE created_at >= $1 AND created_at < $2 GROUP BY category_id
		) ret ON ret.category_id = c.id
		LEFT JOIN (
			SELECT category_id, SUM(boxes) AS boxes
			FROM damages WHERE created_at >= $1 AND created_at < $2 GROUP BY category_id
		) dam ON dam.category_id = c.id
		ORDER BY c.title
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("totals by category: %w", err)
	}
	defer rows.Close()

	var out []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.CategoryID, &t.Title, &t.BoxesSold, &t.Revenue,
			&t.BoxesDistributed, &t.BoxesReturned, &t.BoxesDamaged); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// OverviewTotals loads the headline aggregates for the window. Debt and
// pending requisition counts are point-in-time, not windowed.
func (r *Repository) OverviewTotals(ctx context.Context, from, to time.Time) (Overview, error) {
	var o Overview
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE((SELECT SUM(total_price) FROM orders WHERE created_at >= $1 AND created_at < $2), 0),
			COALESCE((SELECT SUM(paid_cash + paid_bank + paid_cheque + paid_momo) FROM orders WHERE created_at >= $1 AND created_at < $2), 0),
			COALESCE((SELECT SUM(amount) FROM expenses WHERE spent_at >= $1 AND spent_at < $2), 0),
			COALESCE((SELECT SUM(debt) FROM customers), 0),
			COALESCE((SELECT SUM(boxes) FROM orders WHERE created_at >= $1 AND created_at < $2), 0),
			COALESCE((SELECT SUM(boxes) FROM distributions WHERE created_at >= $1 AND created_at < $2), 0),
			COALESCE((SELECT SUM(boxes) FROM returns WHERE created_at >= $1 AND created_at < $2), 0),
			COALESCE((SELECT SUM(boxes) FROM damages WHERE created_at >= $1 AND created_at < $2), 0),
			(SELECT COUNT(*) FROM requisitions WHERE state = 'pending')
	`, from, to).Scan(&o.Revenue, &o.Received, &o.Expenses, &o.OutstandingDebt,
		&o.BoxesSold, &o.BoxesDistributed, &o.BoxesReturned, &o.BoxesDamaged,
		&o.PendingRequisitions)
	if err != nil {
		return Overview{}, fmt.Errorf("overview totals: %w", err)
	}
	return o, nil
}
