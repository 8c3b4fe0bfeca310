package sales

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/stock"
)

// Customer is a buyer with running balance fields. Debt accumulates from
// unpaid order balances and is reduced by payments; TotalSpent is lifetime
// order value.
type Customer struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Phone      string          `json:"phone,omitempty"`
	Address    string          `json:"address,omitempty"`
	Debt       decimal.Decimal `json:"debt"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	CreatedBy  int64           `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CustomerInput carries create/update fields.
type CustomerInput struct {
	Name    string
	Phone   string
	Address string
	ActorID int64
}

// CustomerFilter narrows customer listings.
type CustomerFilter struct {
	Search string
	Page   int
	Limit  int
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	CustomerID int64
	VehicleID  int64
	Status     stock.PaymentStatus
	From       time.Time
	To         time.Time
	Page       int
	Limit      int
}

// PaymentInput settles part or all of an order's outstanding balance.
type PaymentInput struct {
	RequestID string
	OrderID   int64
	Amounts   stock.PaymentSplit
	ActorID   int64
}

// Expense is an operating cost attributed to a vehicle or the yard.
type Expense struct {
	ID          int64           `json:"id"`
	VehicleID   int64           `json:"vehicle_id,omitempty"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	SpentAt     time.Time       `json:"spent_at"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ExpenseInput carries a new expense record.
type ExpenseInput struct {
	VehicleID   int64
	Kind        string
	Amount      decimal.Decimal
	Description string
	SpentAt     time.Time
	ActorID     int64
}

// ExpenseFilter narrows expense listings.
type ExpenseFilter struct {
	VehicleID int64
	From      time.Time
	To        time.Time
	Page      int
	Limit     int
}

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrExpenseNotFound  = errors.New("expense not found")
	ErrNameRequired     = errors.New("customer name is required")
	ErrKindRequired     = errors.New("expense kind is required")
	ErrNegativeAmount   = errors.New("amount must not be negative")
	ErrZeroPayment      = errors.New("payment must be positive")
	ErrOverpayment      = errors.New("payment exceeds outstanding balance")
	ErrAlreadyPaid      = errors.New("order is already fully paid")
	ErrInvalidRequestID = errors.New("request id must be a valid UUID")
)
