package fleet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists vehicles and trips in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations a trip transition needs.
type TxRepository interface {
	GetTripForUpdate(ctx context.Context, id int64) (Trip, error)
	InsertTrip(ctx context.Context, t Trip) (int64, error)
	SetTripStatus(ctx context.Context, t Trip) error
	InsertManifestLine(ctx context.Context, line ManifestLine) (int64, error)
	GetManifest(ctx context.Context, tripID int64) ([]ManifestLine, error)
	SetDeliveredBoxes(ctx context.Context, lineID, delivered int64) error
	GetVehicle(ctx context.Context, id int64) (Vehicle, error)
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

const vehicleColumns = `id, registration, driver, capacity_boxes, active, created_by, created_at, updated_at`

func scanVehicle(row pgx.Row) (Vehicle, error) {
	var v Vehicle
	err := row.Scan(&v.ID, &v.Registration, &v.Driver, &v.CapacityBoxes, &v.Active,
		&v.CreatedBy, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vehicle{}, ErrVehicleNotFound
		}
		return Vehicle{}, fmt.Errorf("scan vehicle: %w", err)
	}
	return v, nil
}

// CreateVehicle inserts a vehicle.
func (r *Repository) CreateVehicle(ctx context.Context, input VehicleInput) (Vehicle, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO vehicles (registration, driver, capacity_boxes, active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING `+vehicleColumns+`
	`, input.Registration, input.Driver, input.CapacityBoxes, input.Active, input.ActorID)
	v, err := scanVehicle(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Vehicle{}, ErrDuplicateRegistration
		}
		return Vehicle{}, err
	}
	return v, nil
}

// GetVehicle returns one vehicle.
func (r *Repository) GetVehicle(ctx context.Context, id int64) (Vehicle, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
	return scanVehicle(row)
}

// UpdateVehicle rewrites vehicle fields.
func (r *Repository) UpdateVehicle(ctx context.Context, id int64, input VehicleInput) (Vehicle, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE vehicles
		SET registration = $1, driver = $2, capacity_boxes = $3, active = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING `+vehicleColumns+`
	`, input.Registration, input.Driver, input.CapacityBoxes, input.Active, id)
	v, err := scanVehicle(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Vehicle{}, ErrDuplicateRegistration
		}
		return Vehicle{}, err
	}
	return v, nil
}

// ListVehicles returns vehicles matching the filter with the total count.
func (r *Repository) ListVehicles(ctx context.Context, filter VehicleFilter) ([]Vehicle, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(registration ILIKE $%d OR driver ILIKE $%d)", argPos, argPos))
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "active = TRUE")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vehicles`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count vehicles: %w", err)
	}

	query := `SELECT ` + vehicleColumns + ` FROM vehicles` + where +
		fmt.Sprintf(" ORDER BY registration ASC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list vehicles: %w", err)
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

const tripColumns = `id, vehicle_id, status, notes, cancel_reason, dispatched_at, completed_at, created_by, created_at, updated_at`

func scanTrip(row pgx.Row) (Trip, error) {
	var t Trip
	err := row.Scan(&t.ID, &t.VehicleID, &t.Status, &t.Notes, &t.CancelReason,
		&t.DispatchedAt, &t.CompletedAt, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Trip{}, ErrTripNotFound
		}
		return Trip{}, fmt.Errorf("scan trip: %w", err)
	}
	return t, nil
}

// GetTrip returns one trip with its manifest.
func (r *Repository) GetTrip(ctx context.Context, id int64) (Trip, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)
	trip, err := scanTrip(row)
	if err != nil {
		return Trip{}, err
	}
	trip.Manifest, err = r.manifest(ctx, r.pool, id)
	return trip, err
}

// ListTrips returns trips matching the filter, newest first, with the total
// count. Manifests are not loaded on list.
func (r *Repository) ListTrips(ctx context.Context, filter TripFilter) ([]Trip, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.VehicleID != 0 {
		conditions = append(conditions, fmt.Sprintf("vehicle_id = $%d", argPos))
		args = append(args, filter.VehicleID)
		argPos++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trips`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count trips: %w", err)
	}

	query := `SELECT ` + tripColumns + ` FROM trips` + where +
		fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	var out []Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) manifest(ctx context.Context, q queryer, tripID int64) ([]ManifestLine, error) {
	rows, err := q.Query(ctx, `
		SELECT ml.id, ml.trip_id, ml.category_id, c.title, ml.boxes, ml.delivered_boxes
		FROM manifest_lines ml
		JOIN categories c ON c.id = ml.category_id
		WHERE ml.trip_id = $1
		ORDER BY ml.id
	`, tripID)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	defer rows.Close()

	var lines []ManifestLine
	for rows.Next() {
		var line ManifestLine
		if err := rows.Scan(&line.ID, &line.TripID, &line.CategoryID, &line.CategoryTitle,
			&line.Boxes, &line.DeliveredBoxes); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (t *txRepo) GetTripForUpdate(ctx context.Context, id int64) (Trip, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1 FOR UPDATE`, id)
	return scanTrip(row)
}

func (t *txRepo) InsertTrip(ctx context.Context, trip Trip) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO trips (vehicle_id, status, notes, cancel_reason, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, '', $4, NOW(), NOW())
		RETURNING id
	`, trip.VehicleID, trip.Status, trip.Notes, trip.CreatedBy).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert trip: %w", err)
	}
	return id, nil
}

func (t *txRepo) SetTripStatus(ctx context.Context, trip Trip) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE trips
		SET status = $1, cancel_reason = $2, dispatched_at = $3, completed_at = $4, updated_at = NOW()
		WHERE id = $5
	`, trip.Status, trip.CancelReason, trip.DispatchedAt, trip.CompletedAt, trip.ID)
	if err != nil {
		return fmt.Errorf("update trip status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTripNotFound
	}
	return nil
}

func (t *txRepo) InsertManifestLine(ctx context.Context, line ManifestLine) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `
		INSERT INTO manifest_lines (trip_id, category_id, boxes, delivered_boxes)
		VALUES ($1, $2, $3, 0)
		RETURNING id
	`, line.TripID, line.CategoryID, line.Boxes).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert manifest line: %w", err)
	}
	return id, nil
}

func (t *txRepo) GetManifest(ctx context.Context, tripID int64) ([]ManifestLine, error) {
	r := &Repository{}
	return r.manifest(ctx, t.tx, tripID)
}

func (t *txRepo) SetDeliveredBoxes(ctx context.Context, lineID, delivered int64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE manifest_lines SET delivered_boxes = $1 WHERE id = $2`, delivered, lineID)
	if err != nil {
		return fmt.Errorf("update manifest line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (t *txRepo) GetVehicle(ctx context.Context, id int64) (Vehicle, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`, id)
	return scanVehicle(row)
}
