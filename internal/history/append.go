package history

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Append inserts one audit entry inside an open transaction. Stock-moving and
// requisition transactions call this so the trail commits or rolls back with
// the ledger mutation it describes.
func Append(ctx context.Context, tx pgx.Tx, e Entry) error {
	if e.Requisitionist == 0 {
		return ErrRequisitionistRequired
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO requisition_history (boxes, requisitionist, category_title, requisition_type, requisition_event, description, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, e.Boxes, e.Requisitionist, e.CategoryTitle, e.Type, e.Event, e.Description)
	return err
}
