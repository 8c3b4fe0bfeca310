package stock

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks how much of an order has been settled.
type PaymentStatus string

const (
	// PaymentUnpaid means nothing has been received.
	PaymentUnpaid PaymentStatus = "unpaid"
	// PaymentPartial means a part of the total has been received.
	PaymentPartial PaymentStatus = "partial"
	// PaymentPaid means the order is fully settled.
	PaymentPaid PaymentStatus = "paid"
)

// PaymentSplit carries the amounts received per channel at sale time.
type PaymentSplit struct {
	Cash   decimal.Decimal `json:"cash"`
	Bank   decimal.Decimal `json:"bank"`
	Cheque decimal.Decimal `json:"cheque"`
	Momo   decimal.Decimal `json:"momo"`
}

// Total sums all channels.
func (p PaymentSplit) Total() decimal.Decimal {
	return p.Cash.Add(p.Bank).Add(p.Cheque).Add(p.Momo)
}

// Negative reports whether any channel is negative.
func (p PaymentSplit) Negative() bool {
	return p.Cash.IsNegative() || p.Bank.IsNegative() || p.Cheque.IsNegative() || p.Momo.IsNegative()
}

// Allocation is the per-(category, vehicle) ledger of boxes distributed onto
// and sold off a vehicle. One row per pair, accumulated in place.
type Allocation struct {
	ID               int64           `json:"id"`
	CategoryID       int64           `json:"category_id"`
	VehicleID        int64           `json:"vehicle_id"`
	Distributed      int64           `json:"distributed"`
	DistributedValue decimal.Decimal `json:"distributed_value"`
	Sold             int64           `json:"sold"`
	SoldValue        decimal.Decimal `json:"sold_value"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// CustomerBalance is the slice of a customer row the sale transaction mutates.
type CustomerBalance struct {
	ID         int64
	Debt       decimal.Decimal
	TotalSpent decimal.Decimal
}

// Distribution records warehouse stock loaded onto a vehicle.
type Distribution struct {
	ID          int64           `json:"id"`
	CategoryID  int64           `json:"category_id"`
	VehicleID   int64           `json:"vehicle_id"`
	Boxes       int64           `json:"boxes"`
	TotalValue  decimal.Decimal `json:"total_value"`
	Description string          `json:"description"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Order records a sale off a vehicle to a customer.
type Order struct {
	ID            int64           `json:"id"`
	CategoryID    int64           `json:"category_id"`
	VehicleID     int64           `json:"vehicle_id"`
	CustomerID    int64           `json:"customer_id"`
	Boxes         int64           `json:"boxes"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Payment       PaymentSplit    `json:"payment"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Description   string          `json:"description"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Return records boxes moved back from a vehicle into the warehouse.
type Return struct {
	ID          int64     `json:"id"`
	CategoryID  int64     `json:"category_id"`
	VehicleID   int64     `json:"vehicle_id"`
	Boxes       int64     `json:"boxes"`
	Description string    `json:"description"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// DamageSource identifies where damaged stock is written off from.
type DamageSource string

const (
	// DamageWarehouse writes off warehouse stock.
	DamageWarehouse DamageSource = "warehouse"
	// DamageVehicle writes off stock distributed to a vehicle.
	DamageVehicle DamageSource = "vehicle"
)

// Damage records a write-off.
type Damage struct {
	ID          int64        `json:"id"`
	CategoryID  int64        `json:"category_id"`
	VehicleID   int64        `json:"vehicle_id,omitempty"`
	Source      DamageSource `json:"source"`
	Boxes       int64        `json:"boxes"`
	Description string       `json:"description"`
	CreatedBy   int64        `json:"created_by"`
	CreatedAt   time.Time    `json:"created_at"`
}

// WarehousePush records production stock moved into the warehouse.
type WarehousePush struct {
	ID          int64     `json:"id"`
	CategoryID  int64     `json:"category_id"`
	Boxes       int64     `json:"boxes"`
	Description string    `json:"description"`
	CreatedBy   int64     `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// DistributeInput describes one distribution line item.
type DistributeInput struct {
	RequestID   string
	CategoryID  int64
	VehicleID   int64
	Boxes       int64
	Description string
	ActorID     int64
}

// SellInput describes one sale line item.
type SellInput struct {
	RequestID   string
	CategoryID  int64
	VehicleID   int64
	CustomerID  int64
	Boxes       int64
	Payment     PaymentSplit
	Description string
	ActorID     int64
}

// ReturnInput describes one return line item.
type ReturnInput struct {
	RequestID   string
	CategoryID  int64
	VehicleID   int64
	Boxes       int64
	Description string
	ActorID     int64
}

// DamageInput describes one damage write-off.
type DamageInput struct {
	RequestID   string
	CategoryID  int64
	VehicleID   int64
	Source      DamageSource
	Boxes       int64
	Description string
	ActorID     int64
}

// PushInput describes one production-to-warehouse push.
type PushInput struct {
	RequestID   string
	CategoryID  int64
	Boxes       int64
	Description string
	ActorID     int64
}

// AllocationFilter narrows allocation listings.
type AllocationFilter struct {
	CategoryID int64
	VehicleID  int64
}

// ErrInsufficientStock is matched by errors.Is against *InsufficientStockError.
var ErrInsufficientStock = errors.New("stock: insufficient stock")

// InsufficientStockError identifies the ledger field, the requested amount and
// what was actually available when the validation ran.
type InsufficientStockError struct {
	Field     string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock: %s has %d boxes, requested %d", e.Field, e.Available, e.Requested)
}

// Is makes errors.Is(err, ErrInsufficientStock) succeed.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

var (
	// ErrInvalidQuantity indicates a non-positive box count.
	ErrInvalidQuantity = errors.New("stock: boxes must be greater than zero")
	// ErrVehicleRequired indicates a missing vehicle reference.
	ErrVehicleRequired = errors.New("stock: vehicle required")
	// ErrVehicleNotFound indicates an unknown vehicle reference.
	ErrVehicleNotFound = errors.New("stock: vehicle not found")
	// ErrCustomerRequired indicates a missing customer reference.
	ErrCustomerRequired = errors.New("stock: customer required")
	// ErrAllocationNotFound indicates no ledger row for the (category, vehicle) pair.
	ErrAllocationNotFound = errors.New("stock: allocation not found")
	// ErrNegativePayment indicates a negative payment channel.
	ErrNegativePayment = errors.New("stock: payment amounts must be >= 0")
	// ErrOverpayment indicates payment exceeding the order total.
	ErrOverpayment = errors.New("stock: payment exceeds order total")
	// ErrUnknownDamageSource indicates an unsupported damage source.
	ErrUnknownDamageSource = errors.New("stock: unknown damage source")
	// ErrInvalidRequestID indicates a malformed idempotency request id.
	ErrInvalidRequestID = errors.New("stock: request id must be a UUID")
)
