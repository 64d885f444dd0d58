package storage

import (
	"database/sql"
)

type FixedExpenseRow struct {
	ID         string
	Name       string
	Category   string
	Amount     string
	DayOfMonth int64
	IsActive   bool
	CreatedAt  string
}

type DebtRow struct {
	ID              string
	Name            string
	DebtType        string
	Principal       string
	Remaining       string
	InterestRate    string
	EmiAmount       string
	TenureMonths    int64
	RemainingMonths int64
	DayOfMonth      int64
	IsActive        bool
	CreatedAt       string
	UpdatedAt       string
}

type TransactionRow struct {
	ID          string
	Amount      string
	Date        string
	Description string
	SourceType  sql.NullString
	SourceID    sql.NullString
	SourceMonth sql.NullString
	CreatedAt   string
	DeletedAt   sql.NullString
}
