package fleet

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	vehicles map[int64]Vehicle
	trips    map[int64]Trip
	lines    map[int64]ManifestLine
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		vehicles: make(map[int64]Vehicle),
		trips:    make(map[int64]Trip),
		lines:    make(map[int64]ManifestLine),
	}
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	trips := make(map[int64]Trip, len(r.trips))
	for k, v := range r.trips {
		trips[k] = v
	}
	lines := make(map[int64]ManifestLine, len(r.lines))
	for k, v := range r.lines {
		lines[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.trips = trips
		r.lines = lines
		return err
	}
	return nil
}

func (r *memoryRepo) CreateVehicle(ctx context.Context, input VehicleInput) (Vehicle, error) {
	r.nextID++
	v := Vehicle{
		ID:            r.nextID,
		Registration:  input.Registration,
		Driver:        input.Driver,
		CapacityBoxes: input.CapacityBoxes,
		Active:        input.Active,
		CreatedBy:     input.ActorID,
	}
	r.vehicles[v.ID] = v
	return v, nil
}

func (r *memoryRepo) GetVehicle(ctx context.Context, id int64) (Vehicle, error) {
	if v, ok := r.vehicles[id]; ok {
		return v, nil
	}
	return Vehicle{}, ErrVehicleNotFound
}

func (r *memoryRepo) UpdateVehicle(ctx context.Context, id int64, input VehicleInput) (Vehicle, error) {
	v, ok := r.vehicles[id]
	if !ok {
		return Vehicle{}, ErrVehicleNotFound
	}
	v.Registration, v.Driver, v.Active = input.Registration, input.Driver, input.Active
	r.vehicles[id] = v
	return v, nil
}

func (r *memoryRepo) ListVehicles(ctx context.Context, filter VehicleFilter) ([]Vehicle, int, error) {
	var out []Vehicle
	for _, v := range r.vehicles {
		if filter.ActiveOnly && !v.Active {
			continue
		}
		out = append(out, v)
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetTrip(ctx context.Context, id int64) (Trip, error) {
	trip, ok := r.trips[id]
	if !ok {
		return Trip{}, ErrTripNotFound
	}
	trip.Manifest = nil
	for _, line := range r.lines {
		if line.TripID == id {
			trip.Manifest = append(trip.Manifest, line)
		}
	}
	return trip, nil
}

func (r *memoryRepo) ListTrips(ctx context.Context, filter TripFilter) ([]Trip, int, error) {
	var out []Trip
	for _, trip := range r.trips {
		if filter.Status != "" && trip.Status != filter.Status {
			continue
		}
		out = append(out, trip)
	}
	return out, len(out), nil
}

func (t *memoryTx) GetTripForUpdate(ctx context.Context, id int64) (Trip, error) {
	if trip, ok := t.repo.trips[id]; ok {
		return trip, nil
	}
	return Trip{}, ErrTripNotFound
}

func (t *memoryTx) InsertTrip(ctx context.Context, trip Trip) (int64, error) {
	t.repo.nextID++
	trip.ID = t.repo.nextID
	t.repo.trips[trip.ID] = trip
	return trip.ID, nil
}

func (t *memoryTx) SetTripStatus(ctx context.Context, trip Trip) error {
	if _, ok := t.repo.trips[trip.ID]; !ok {
		return ErrTripNotFound
	}
	stored := trip
	stored.Manifest = nil
	t.repo.trips[trip.ID] = stored
	return nil
}

func (t *memoryTx) InsertManifestLine(ctx context.Context, line ManifestLine) (int64, error) {
	t.repo.nextID++
	line.ID = t.repo.nextID
	t.repo.lines[line.ID] = line
	return line.ID, nil
}

func (t *memoryTx) GetManifest(ctx context.Context, tripID int64) ([]ManifestLine, error) {
	var out []ManifestLine
	for _, line := range t.repo.lines {
		if line.TripID == tripID {
			out = append(out, line)
		}
	}
	return out, nil
}

func (t *memoryTx) SetDeliveredBoxes(ctx context.Context, lineID, delivered int64) error {
	line, ok := t.repo.lines[lineID]
	if !ok {
		return ErrLineNotFound
	}
	line.DeliveredBoxes = delivered
	t.repo.lines[lineID] = line
	return nil
}

func (t *memoryTx) GetVehicle(ctx context.Context, id int64) (Vehicle, error) {
	return t.repo.GetVehicle(ctx, id)
}

func seedTrip(t *testing.T, svc *Service, repo *memoryRepo) Trip {
	t.Helper()
	repo.vehicles[1] = Vehicle{ID: 1, Registration: "GR-1234-22", Active: true}
	trip, err := svc.CreateTrip(context.Background(), TripInput{
		VehicleID: 1,
		Manifest:  []ManifestLineInput{{CategoryID: 1, Boxes: 50}, {CategoryID: 2, Boxes: 30}},
		ActorID:   9,
	})
	require.NoError(t, err)
	return trip
}

func TestCreateTripWithManifest(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	trip := seedTrip(t, svc, repo)
	require.Equal(t, TripPlanned, trip.Status)
	require.Len(t, trip.Manifest, 2)
}

func TestCreateTripValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	repo.vehicles[1] = Vehicle{ID: 1, Registration: "GR-1234-22", Active: true}
	repo.vehicles[2] = Vehicle{ID: 2, Registration: "GR-5678-22", Active: false}

	_, err := svc.CreateTrip(ctx, TripInput{VehicleID: 1, ActorID: 9})
	require.ErrorIs(t, err, ErrEmptyManifest)

	_, err = svc.CreateTrip(ctx, TripInput{
		VehicleID: 1,
		Manifest:  []ManifestLineInput{{CategoryID: 1, Boxes: 0}},
		ActorID:   9,
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.CreateTrip(ctx, TripInput{
		VehicleID: 2,
		Manifest:  []ManifestLineInput{{CategoryID: 1, Boxes: 5}},
		ActorID:   9,
	})
	require.ErrorIs(t, err, ErrVehicleInactive)
}

func TestDispatchThenComplete(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	trip := seedTrip(t, svc, repo)

	dispatched, err := svc.Dispatch(ctx, trip.ID, 9)
	require.NoError(t, err)
	require.Equal(t, TripDispatched, dispatched.Status)
	require.NotNil(t, dispatched.DispatchedAt)

	completed, err := svc.Complete(ctx, trip.ID, 9, []DeliveryInput{
		{LineID: trip.Manifest[0].ID, DeliveredBoxes: 45},
	})
	require.NoError(t, err)
	require.Equal(t, TripCompleted, completed.Status)
	require.Equal(t, int64(45), repo.lines[trip.Manifest[0].ID].DeliveredBoxes)
	require.Equal(t, int64(0), repo.lines[trip.Manifest[1].ID].DeliveredBoxes)
}

func TestDispatchTwiceRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	trip := seedTrip(t, svc, repo)

	_, err := svc.Dispatch(ctx, trip.ID, 9)
	require.NoError(t, err)
	_, err = svc.Dispatch(ctx, trip.ID, 9)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteRequiresDispatch(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	trip := seedTrip(t, svc, repo)

	_, err := svc.Complete(context.Background(), trip.ID, 9, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeliveredCannotExceedLoaded(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	trip := seedTrip(t, svc, repo)

	_, err := svc.Dispatch(ctx, trip.ID, 9)
	require.NoError(t, err)

	_, err = svc.Complete(ctx, trip.ID, 9, []DeliveryInput{
		{LineID: trip.Manifest[0].ID, DeliveredBoxes: 60},
	})
	require.ErrorIs(t, err, ErrDeliveredExceedsLoad)
	// the failed completion rolled back
	require.Equal(t, TripDispatched, repo.trips[trip.ID].Status)
}

func TestCancelNeedsReason(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	trip := seedTrip(t, svc, repo)

	_, err := svc.Cancel(ctx, trip.ID, 9, "  ")
	require.ErrorIs(t, err, ErrReasonRequired)

	cancelled, err := svc.Cancel(ctx, trip.ID, 9, "vehicle breakdown")
	require.NoError(t, err)
	require.Equal(t, TripCancelled, cancelled.Status)
	require.Equal(t, "vehicle breakdown", cancelled.CancelReason)
}

func TestCancelAfterDispatchRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()
	trip := seedTrip(t, svc, repo)

	_, err := svc.Dispatch(ctx, trip.ID, 9)
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, trip.ID, 9, "changed plans")
	require.ErrorIs(t, err, ErrInvalidTransition)
}
