package requisition

import (
	"errors"
	"fmt"
	"time"
)

// Type distinguishes the two requisition paths: production requisitions are
// issued directly from production stock, warehouse requisitions move stock
// into the warehouse ledger on approval.
type Type string

const (
	TypeProduction Type = "production"
	TypeWarehouse  Type = "warehouse"
)

// Valid reports whether t is a known requisition type.
func (t Type) Valid() bool {
	return t == TypeProduction || t == TypeWarehouse
}

// State is the requisition lifecycle state. Production requisitions follow
// pending → approved → issued; warehouse requisitions pending → approved →
// pushed. Deny is terminal from pending on either path.
type State string

const (
	StatePending  State = "pending"
	StateApproved State = "approved"
	StateDenied   State = "denied"
	StateIssued   State = "issued"
	StatePushed   State = "pushed"
)

// Requisition is one approval-workflow record. Boxes are reserved against the
// category ledger at creation and released or committed by the transitions.
type Requisition struct {
	ID             int64      `json:"id"`
	Type           Type       `json:"type"`
	State          State      `json:"state"`
	CategoryID     int64      `json:"category_id"`
	CategoryTitle  string     `json:"category_title"`
	Boxes          int64      `json:"boxes"`
	Requisitionist int64      `json:"requisitionist"`
	Description    string     `json:"description,omitempty"`
	DecidedBy      int64      `json:"decided_by,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateInput carries a new requisition request.
type CreateInput struct {
	RequestID   string
	Type        Type
	CategoryID  int64
	Boxes       int64
	Description string
	ActorID     int64
}

// ListFilter narrows requisition listings.
type ListFilter struct {
	Type       Type
	State      State
	CategoryID int64
	Page       int
	Limit      int
}

var (
	ErrNotFound        = errors.New("requisition not found")
	ErrInvalidType     = errors.New("unknown requisition type")
	ErrInvalidQuantity = errors.New("boxes must be positive")
	ErrInvalidRequestID = errors.New("request id must be a valid UUID")

	// ErrInvalidTransition rejects a lifecycle action applied to a
	// requisition whose current state does not permit it.
	ErrInvalidTransition = errors.New("invalid requisition transition")

	// ErrInsufficientStock rejects a requisition exceeding production stock.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError reports how far a requisition overshot the
// production ledger.
type InsufficientStockError struct {
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient production stock: requested %d boxes, %d available", e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

func invalidTransition(state State, action string) error {
	return fmt.Errorf("%w: cannot %s a %s requisition", ErrInvalidTransition, action, state)
}
