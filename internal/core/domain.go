package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SourceFixedExpense SourceType = "fixed_expense"
	SourceDebtEMI      SourceType = "debt_emi"
)

const maxDescriptionLen = 200

type (
	// SourceType tags a transaction with the kind of obligation that produced it.
	SourceType string

	FixedExpense struct {
		ID         string
		Name       string
		Category   string
		Amount     decimal.Decimal
		DayOfMonth int
		IsActive   bool
		CreatedAt  time.Time
	}

	Debt struct {
		ID              string
		Name            string
		Type            string
		Principal       decimal.Decimal
		Remaining       decimal.Decimal
		InterestRate    decimal.Decimal // annual percentage
		EMIAmount       decimal.Decimal
		TenureMonths    int
		RemainingMonths int
		DayOfMonth      int
		IsActive        bool
		CreatedAt       time.Time
	}

	// Transaction is a dated outflow. Source fields are nil for user-entered expenses.
	Transaction struct {
		ID          string
		Amount      decimal.Decimal
		Date        time.Time
		Description string
		SourceType  *SourceType
		SourceID    *string
		SourceMonth *MonthKey
		CreatedAt   time.Time
	}

	// RecurringExpense carries the fields of a transaction materialized by the
	// recurring engine.
	RecurringExpense struct {
		Amount      decimal.Decimal
		Date        time.Time
		Description string
		SourceType  SourceType
		SourceID    string
		SourceMonth MonthKey
	}

	// ManualExpense is a user-entered expense.
	ManualExpense struct {
		Amount      decimal.Decimal
		Date        time.Time
		Description string
	}

	SavingsGoal struct {
		ID            string
		Name          string
		MonthlyTarget decimal.Decimal
		IsActive      bool
	}
)

func (s SourceType) Valid() bool {
	return s == SourceFixedExpense || s == SourceDebtEMI
}

// IsRecurring reports whether the transaction was materialized by the engine.
func (t Transaction) IsRecurring() bool {
	return t.SourceType != nil
}

// RecurringKey returns the dedup key of a recurring-sourced transaction.
func (t Transaction) RecurringKey() (RecurringKey, bool) {
	if t.SourceType == nil || t.SourceID == nil {
		return RecurringKey{}, false
	}
	return RecurringKey{SourceType: *t.SourceType, SourceID: *t.SourceID}, true
}

func (f FixedExpense) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return invalid("name", f.Name, "must not be empty")
	}
	if len(f.Name) > maxDescriptionLen {
		return invalid("name", f.Name, "too long (max 200 characters)")
	}
	if !f.Amount.IsPositive() {
		return invalid("amount", f.Amount.String(), "must be positive")
	}
	if err := ValidateDayOfMonth(f.DayOfMonth); err != nil {
		return err
	}
	return nil
}

func (d Debt) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return invalid("name", d.Name, "must not be empty")
	}
	if !d.Principal.IsPositive() {
		return invalid("principal", d.Principal.String(), "must be positive")
	}
	if d.Remaining.IsNegative() {
		return invalid("remaining", d.Remaining.String(), "must not be negative")
	}
	if d.InterestRate.IsNegative() {
		return invalid("interest_rate", d.InterestRate.String(), "must not be negative")
	}
	if !d.EMIAmount.IsPositive() {
		return invalid("emi_amount", d.EMIAmount.String(), "must be positive")
	}
	if d.TenureMonths <= 0 {
		return invalid("tenure_months", d.TenureMonths, "must be positive")
	}
	if d.RemainingMonths < 0 {
		return invalid("remaining_months", d.RemainingMonths, "must not be negative")
	}
	return ValidateDayOfMonth(d.DayOfMonth)
}

func (e ManualExpense) Validate() error {
	if e.Date.IsZero() {
		return invalid("date", "", "must not be zero")
	}
	if strings.TrimSpace(e.Description) == "" {
		return invalid("description", e.Description, "must not be empty")
	}
	if len(e.Description) > maxDescriptionLen {
		return invalid("description", e.Description, "too long (max 200 characters)")
	}
	if !e.Amount.IsPositive() {
		return invalid("amount", e.Amount.String(), "must be positive")
	}
	return nil
}

func (r RecurringExpense) Validate() error {
	if !r.SourceType.Valid() {
		return invalid("source_type", string(r.SourceType), "unknown source type")
	}
	if r.SourceID == "" {
		return invalid("source_id", r.SourceID, "must not be empty")
	}
	if _, err := ParseMonthKey(string(r.SourceMonth)); err != nil {
		return err
	}
	if !r.Amount.IsPositive() {
		return invalid("amount", r.Amount.String(), "must be positive")
	}
	return nil
}
