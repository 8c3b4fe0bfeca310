package dashboard

import (
	"errors"

	"github.com/shopspring/decimal"
)

// SalesPoint is one bucket of a sales series. Label is the bucket key: an
// ISO date for daily series, "Wnn" for weekly, "YYYY-MM" for monthly.
type SalesPoint struct {
	Label    string          `json:"label"`
	Boxes    int64           `json:"boxes"`
	Revenue  decimal.Decimal `json:"revenue"`
	Received decimal.Decimal `json:"received"`
}

// CreatorTotal aggregates sales recorded by one user.
type CreatorTotal struct {
	CreatorID int64           `json:"creator_id"`
	Name      string          `json:"name"`
	Boxes     int64           `json:"boxes"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// CategoryTotal aggregates stock movement per category.
type CategoryTotal struct {
	CategoryID       int64           `json:"category_id"`
	Title            string          `json:"title"`
	BoxesSold        int64           `json:"boxes_sold"`
	Revenue          decimal.Decimal `json:"revenue"`
	BoxesDistributed int64           `json:"boxes_distributed"`
	BoxesReturned    int64           `json:"boxes_returned"`
	BoxesDamaged     int64           `json:"boxes_damaged"`
}

// Overview is the headline card set for one calendar month.
type Overview struct {
	Month               string          `json:"month"`
	Revenue             decimal.Decimal `json:"revenue"`
	Received            decimal.Decimal `json:"received"`
	Expenses            decimal.Decimal `json:"expenses"`
	OutstandingDebt     decimal.Decimal `json:"outstanding_debt"`
	BoxesSold           int64           `json:"boxes_sold"`
	BoxesDistributed    int64           `json:"boxes_distributed"`
	BoxesReturned       int64           `json:"boxes_returned"`
	BoxesDamaged        int64           `json:"boxes_damaged"`
	PendingRequisitions int64           `json:"pending_requisitions"`
}

// ErrInvalidPeriod rejects malformed year/month arguments.
var ErrInvalidPeriod = errors.New("invalid reporting period")
