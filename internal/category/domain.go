package category

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Availability is the derived stock status of a category at one stage.
type Availability string

const (
	// StatusAvailable indicates remaining stock above zero.
	StatusAvailable Availability = "available"
	// StatusUnavailable indicates the stock field is exactly zero.
	StatusUnavailable Availability = "unavailable"
)

// AvailabilityFor derives the status for a stock quantity.
func AvailabilityFor(qty int64) Availability {
	if qty == 0 {
		return StatusUnavailable
	}
	return StatusAvailable
}

// Category is a product/material type with running stock counts per stage.
type Category struct {
	ID                int64           `json:"id"`
	Title             string          `json:"title"`
	ProductionStock   int64           `json:"production_stock"`
	WarehouseStock    int64           `json:"warehouse_stock"`
	PendingProduction int64           `json:"pending_production"`
	PendingWarehouse  int64           `json:"pending_warehouse"`
	PricePerBox       decimal.Decimal `json:"price_per_box"`
	SalesPrice        decimal.Decimal `json:"sales_price"`
	Status            Availability    `json:"status"`
	WarehouseStatus   Availability    `json:"warehouse_status"`
	CreatedBy         int64           `json:"created_by"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// RefreshStatus recomputes both derived availability fields.
func (c *Category) RefreshStatus() {
	c.Status = AvailabilityFor(c.ProductionStock)
	c.WarehouseStatus = AvailabilityFor(c.WarehouseStock)
}

// CreateInput describes a new category.
type CreateInput struct {
	Title       string
	PricePerBox decimal.Decimal
	SalesPrice  decimal.Decimal
	ActorID     int64
}

// UpdateInput carries mutable pricing/title fields.
type UpdateInput struct {
	Title       string
	PricePerBox decimal.Decimal
	SalesPrice  decimal.Decimal
}

// ListFilter filters category listings.
type ListFilter struct {
	Search string
	Page   int
	Limit  int
}

var (
	// ErrNotFound indicates a missing category.
	ErrNotFound = errors.New("category not found")
	// ErrTitleRequired indicates an empty title.
	ErrTitleRequired = errors.New("category title required")
	// ErrNegativePrice indicates a negative price input.
	ErrNegativePrice = errors.New("category price must be >= 0")
	// ErrDuplicateTitle indicates a title collision.
	ErrDuplicateTitle = errors.New("category title already exists")
)
