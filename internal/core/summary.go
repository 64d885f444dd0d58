package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ObligationStatus is one active fixed expense or debt installment as seen
// for a given month.
type ObligationStatus struct {
	Key     RecurringKey
	Name    string
	Amount  decimal.Decimal
	DueDate time.Time
	Due     bool // due date has arrived
	Paid    bool // a recurring transaction exists for the month
}

// MonthStatus is a compact summary of recurring obligations for one month.
type MonthStatus struct {
	Month       MonthKey
	Obligations []ObligationStatus
	TotalAmount decimal.Decimal
	TotalPaid   decimal.Decimal
}
