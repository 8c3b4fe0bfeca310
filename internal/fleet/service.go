package fleet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateVehicle(ctx context.Context, input VehicleInput) (Vehicle, error)
	GetVehicle(ctx context.Context, id int64) (Vehicle, error)
	UpdateVehicle(ctx context.Context, id int64, input VehicleInput) (Vehicle, error)
	ListVehicles(ctx context.Context, filter VehicleFilter) ([]Vehicle, int, error)
	GetTrip(ctx context.Context, id int64) (Trip, error)
	ListTrips(ctx context.Context, filter TripFilter) ([]Trip, int, error)
}

// Service manages the fleet and trip lifecycle. Trip transitions load the
// trip row FOR UPDATE and are guarded by the status methods, so a dispatched
// trip can never be dispatched again.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateVehicle registers a vehicle.
func (s *Service) CreateVehicle(ctx context.Context, input VehicleInput) (Vehicle, error) {
	input.Registration = strings.TrimSpace(input.Registration)
	if input.Registration == "" {
		return Vehicle{}, ErrRegistrationRequired
	}
	if input.ActorID == 0 {
		return Vehicle{}, shared.ErrActorRequired
	}
	return s.repo.CreateVehicle(ctx, input)
}

// GetVehicle returns one vehicle.
func (s *Service) GetVehicle(ctx context.Context, id int64) (Vehicle, error) {
	return s.repo.GetVehicle(ctx, id)
}

// UpdateVehicle rewrites vehicle fields.
func (s *Service) UpdateVehicle(ctx context.Context, id int64, input VehicleInput) (Vehicle, error) {
	input.Registration = strings.TrimSpace(input.Registration)
	if input.Registration == "" {
		return Vehicle{}, ErrRegistrationRequired
	}
	return s.repo.UpdateVehicle(ctx, id, input)
}

// ListVehicles returns vehicles matching the filter.
func (s *Service) ListVehicles(ctx context.Context, filter VehicleFilter) ([]Vehicle, int, error) {
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	return s.repo.ListVehicles(ctx, filter)
}

// CreateTrip opens a planned trip with its manifest.
func (s *Service) CreateTrip(ctx context.Context, input TripInput) (Trip, error) {
	if input.ActorID == 0 {
		return Trip{}, shared.ErrActorRequired
	}
	if len(input.Manifest) == 0 {
		return Trip{}, ErrEmptyManifest
	}
	for _, line := range input.Manifest {
		if line.Boxes <= 0 {
			return Trip{}, ErrInvalidQuantity
		}
	}

	var trip Trip
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		vehicle, err := tx.GetVehicle(ctx, input.VehicleID)
		if err != nil {
			return err
		}
		if !vehicle.Active {
			return ErrVehicleInactive
		}

		trip = Trip{
			VehicleID: input.VehicleID,
			Status:    TripPlanned,
			Notes:     input.Notes,
			CreatedBy: input.ActorID,
		}
		id, err := tx.InsertTrip(ctx, trip)
		if err != nil {
			return err
		}
		trip.ID = id

		for _, line := range input.Manifest {
			lineID, err := tx.InsertManifestLine(ctx, ManifestLine{
				TripID:     id,
				CategoryID: line.CategoryID,
				Boxes:      line.Boxes,
			})
			if err != nil {
				return err
			}
			trip.Manifest = append(trip.Manifest, ManifestLine{
				ID:         lineID,
				TripID:     id,
				CategoryID: line.CategoryID,
				Boxes:      line.Boxes,
			})
		}
		return nil
	})
	if err != nil {
		return Trip{}, err
	}
	trip.CreatedAt = time.Now()
	trip.UpdatedAt = trip.CreatedAt
	return trip, nil
}

// Dispatch marks a planned trip as on the road and freezes its manifest.
func (s *Service) Dispatch(ctx context.Context, id, actorID int64) (Trip, error) {
	return s.transition(ctx, id, actorID, "dispatch", func(trip *Trip) error {
		if !trip.Status.CanDispatch() {
			return fmt.Errorf("%w: cannot dispatch a %s trip", ErrInvalidTransition, trip.Status)
		}
		now := time.Now()
		trip.Status = TripDispatched
		trip.DispatchedAt = &now
		return nil
	}, nil)
}

// Complete closes a dispatched trip and records delivered quantities per
// manifest line. Lines omitted from deliveries keep zero delivered boxes.
func (s *Service) Complete(ctx context.Context, id, actorID int64, deliveries []DeliveryInput) (Trip, error) {
	return s.transition(ctx, id, actorID, "complete", func(trip *Trip) error {
		if !trip.Status.CanComplete() {
			return fmt.Errorf("%w: cannot complete a %s trip", ErrInvalidTransition, trip.Status)
		}
		now := time.Now()
		trip.Status = TripCompleted
		trip.CompletedAt = &now
		return nil
	}, func(ctx context.Context, tx TxRepository, trip *Trip) error {
		lines, err := tx.GetManifest(ctx, trip.ID)
		if err != nil {
			return err
		}
		byID := make(map[int64]ManifestLine, len(lines))
		for _, line := range lines {
			byID[line.ID] = line
		}
		for _, d := range deliveries {
			line, ok := byID[d.LineID]
			if !ok {
				return ErrLineNotFound
			}
			if d.DeliveredBoxes < 0 || d.DeliveredBoxes > line.Boxes {
				return ErrDeliveredExceedsLoad
			}
			if err := tx.SetDeliveredBoxes(ctx, d.LineID, d.DeliveredBoxes); err != nil {
				return err
			}
			line.DeliveredBoxes = d.DeliveredBoxes
			byID[d.LineID] = line
		}
		trip.Manifest = trip.Manifest[:0]
		for _, line := range lines {
			trip.Manifest = append(trip.Manifest, byID[line.ID])
		}
		return nil
	})
}

// Cancel abandons a planned trip with a reason.
func (s *Service) Cancel(ctx context.Context, id, actorID int64, reason string) (Trip, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Trip{}, ErrReasonRequired
	}
	return s.transition(ctx, id, actorID, "cancel", func(trip *Trip) error {
		if !trip.Status.CanCancel() {
			return fmt.Errorf("%w: cannot cancel a %s trip", ErrInvalidTransition, trip.Status)
		}
		trip.Status = TripCancelled
		trip.CancelReason = reason
		return nil
	}, nil)
}

// GetTrip returns one trip with its manifest.
func (s *Service) GetTrip(ctx context.Context, id int64) (Trip, error) {
	return s.repo.GetTrip(ctx, id)
}

// ListTrips returns trips matching the filter.
func (s *Service) ListTrips(ctx context.Context, filter TripFilter) ([]Trip, int, error) {
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	return s.repo.ListTrips(ctx, filter)
}

func (s *Service) transition(ctx context.Context, id, actorID int64, action string,
	apply func(*Trip) error,
	after func(context.Context, TxRepository, *Trip) error) (Trip, error) {
	if actorID == 0 {
		return Trip{}, shared.ErrActorRequired
	}
	var trip Trip
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		trip, err = tx.GetTripForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(&trip); err != nil {
			return err
		}
		if err := tx.SetTripStatus(ctx, trip); err != nil {
			return err
		}
		if after != nil {
			return after(ctx, tx, &trip)
		}
		return nil
	})
	if err != nil {
		return Trip{}, fmt.Errorf("%s trip %d: %w", action, id, err)
	}
	return trip, nil
}
