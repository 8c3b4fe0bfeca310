package fleet

import (
	"errors"
	"time"
)

// TripStatus represents the lifecycle of a distribution trip
type TripStatus string

const (
	TripPlanned    TripStatus = "planned"    // Created, manifest still editable
	TripDispatched TripStatus = "dispatched" // Vehicle left the yard
	TripCompleted  TripStatus = "completed"  // Vehicle returned, deliveries recorded
	TripCancelled  TripStatus = "cancelled"  // Cancelled before dispatch
)

// IsValid checks if the status is a valid trip status
func (s TripStatus) IsValid() bool {
	switch s {
	case TripPlanned, TripDispatched, TripCompleted, TripCancelled:
		return true
	}
	return false
}

// CanEdit returns true if the manifest can still be modified
func (s TripStatus) CanEdit() bool {
	return s == TripPlanned
}

// CanDispatch returns true if the trip can be dispatched
func (s TripStatus) CanDispatch() bool {
	return s == TripPlanned
}

// CanComplete returns true if the trip can be completed
func (s TripStatus) CanComplete() bool {
	return s == TripDispatched
}

// CanCancel returns true if the trip can be cancelled
func (s TripStatus) CanCancel() bool {
	return s == TripPlanned
}

// Vehicle is a delivery truck in the fleet.
type Vehicle struct {
	ID           int64     `json:"id"`
	Registration string    `json:"registration"`
	Driver       string    `json:"driver,omitempty"`
	CapacityBoxes int64    `json:"capacity_boxes,omitempty"`
	Active       bool      `json:"active"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VehicleInput carries create/update fields.
type VehicleInput struct {
	Registration  string
	Driver        string
	CapacityBoxes int64
	Active        bool
	ActorID       int64
}

// VehicleFilter narrows vehicle listings.
type VehicleFilter struct {
	Search     string
	ActiveOnly bool
	Page       int
	Limit      int
}

// Trip is one loaded run of a vehicle. The manifest is captured while the
// trip is planned and frozen at dispatch; delivered quantities are recorded
// at completion.
type Trip struct {
	ID           int64          `json:"id"`
	VehicleID    int64          `json:"vehicle_id"`
	Status       TripStatus     `json:"status"`
	Notes        string         `json:"notes,omitempty"`
	CancelReason string         `json:"cancel_reason,omitempty"`
	Manifest     []ManifestLine `json:"manifest,omitempty"`
	DispatchedAt *time.Time     `json:"dispatched_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CreatedBy    int64          `json:"created_by"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ManifestLine is one category's load on a trip.
type ManifestLine struct {
	ID             int64  `json:"id"`
	TripID         int64  `json:"trip_id"`
	CategoryID     int64  `json:"category_id"`
	CategoryTitle  string `json:"category_title"`
	Boxes          int64  `json:"boxes"`
	DeliveredBoxes int64  `json:"delivered_boxes"`
}

// TripInput carries a new trip with its initial manifest.
type TripInput struct {
	VehicleID int64
	Notes     string
	Manifest  []ManifestLineInput
	ActorID   int64
}

// ManifestLineInput carries one manifest line.
type ManifestLineInput struct {
	CategoryID int64
	Boxes      int64
}

// DeliveryInput records delivered quantities at completion, keyed by
// manifest line id.
type DeliveryInput struct {
	LineID         int64
	DeliveredBoxes int64
}

// TripFilter narrows trip listings.
type TripFilter struct {
	VehicleID int64
	Status    TripStatus
	Page      int
	Limit     int
}

var (
	ErrVehicleNotFound       = errors.New("vehicle not found")
	ErrTripNotFound          = errors.New("trip not found")
	ErrLineNotFound          = errors.New("manifest line not found")
	ErrRegistrationRequired  = errors.New("vehicle registration is required")
	ErrDuplicateRegistration = errors.New("vehicle registration already exists")
	ErrEmptyManifest         = errors.New("trip manifest must not be empty")
	ErrInvalidQuantity       = errors.New("boxes must be positive")
	ErrDeliveredExceedsLoad  = errors.New("delivered boxes exceed loaded boxes")
	ErrReasonRequired        = errors.New("cancellation reason is required")
	ErrInvalidTransition     = errors.New("invalid trip transition")
	ErrVehicleInactive       = errors.New("vehicle is inactive")
)
