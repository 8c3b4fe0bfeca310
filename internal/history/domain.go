package history

import (
	"errors"
	"time"
)

// Event enumerates stock-affecting events recorded in the trail.
type Event string

const (
	// EventPending marks a requisition entering the approval workflow.
	EventPending Event = "pending"
	// EventApproved marks an approved requisition.
	EventApproved Event = "approved"
	// EventDenied marks a denied requisition with restored stock.
	EventDenied Event = "denied"
	// EventIssued marks production stock issued to the requisitionist.
	EventIssued Event = "issued"
	// EventPushed marks stock pushed from production into the warehouse.
	EventPushed Event = "pushed"
	// EventDistributed marks warehouse stock loaded onto a vehicle.
	EventDistributed Event = "distributed"
	// EventSold marks a sale off a vehicle.
	EventSold Event = "sold"
	// EventReturned marks stock returned from a vehicle to the warehouse.
	EventReturned Event = "returned"
	// EventDamaged marks a damage write-off.
	EventDamaged Event = "damaged"
)

// Entry is one immutable audit record. The category title is denormalized on
// purpose: the trail must stay readable even after a category is renamed.
type Entry struct {
	ID             int64     `json:"id"`
	Boxes          int64     `json:"boxes"`
	Requisitionist int64     `json:"requisitionist"`
	CategoryTitle  string    `json:"category_title"`
	Type           string    `json:"type"`
	Event          Event     `json:"event"`
	Description    string    `json:"description"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// EnrichedEntry joins the actor's name and role onto an entry. When the user
// record is missing the name falls back to the raw identifier.
type EnrichedEntry struct {
	Entry
	RequisitionistName string `json:"requisitionist_name"`
	RequisitionistRole string `json:"requisitionist_role"`
}

// ListFilter narrows history listings.
type ListFilter struct {
	Event Event
	Type  string
	From  time.Time
	To    time.Time
	Page  int
	Limit int
}

// ErrRequisitionistRequired rejects entries with no actor identity.
var ErrRequisitionistRequired = errors.New("history: requisitionist required")
