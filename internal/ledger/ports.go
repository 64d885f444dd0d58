// Package ledger defines the storage ports consumed by the recurring engine
// and the surrounding services. Implementations live in internal/storage
// (SQLite) and internal/storage/memory.
package ledger

import (
	"context"

	"budget/internal/core"

	"github.com/shopspring/decimal"
)

type (
	// Reader is the read side used by one recurring processing run.
	Reader interface {
		// ActiveFixedExpenses returns fixed expenses with IsActive = true.
		ActiveFixedExpenses(ctx context.Context) ([]core.FixedExpense, error)
		// ActiveDebts returns debts with IsActive = true.
		ActiveDebts(ctx context.Context) ([]core.Debt, error)
		// ProcessedRecurringKeys returns every dedup key recorded for month,
		// including keys of transactions the user has since deleted.
		ProcessedRecurringKeys(ctx context.Context, month core.MonthKey) ([]core.RecurringKey, error)
		// LastProcessedRecurringMonth returns the greatest source month among
		// recurring-sourced transactions; ok is false when none exist.
		LastProcessedRecurringMonth(ctx context.Context) (month core.MonthKey, ok bool, err error)
	}

	// Writer holds the writes that must be able to share a transaction.
	Writer interface {
		// InsertRecurringExpense appends a recurring-sourced transaction. A
		// second insert for the same key fails with core.ErrDuplicateRecurring.
		InsertRecurringExpense(ctx context.Context, e core.RecurringExpense) (core.Transaction, error)
		// ApplyEMIPayment stores the new balance and remaining months and sets
		// IsActive = newRemaining > 0.
		ApplyEMIPayment(ctx context.Context, debtID string, newRemaining decimal.Decimal, newRemainingMonths int) error
	}

	// Catalog is the thin CRUD surface used by seeding, the HTTP API and the
	// export worker.
	Catalog interface {
		CreateFixedExpense(ctx context.Context, f core.FixedExpense) (core.FixedExpense, error)
		SetFixedExpenseActive(ctx context.Context, id string, active bool) error
		CreateDebt(ctx context.Context, d core.Debt) (core.Debt, error)
		GetDebt(ctx context.Context, id string) (core.Debt, error)
		CreateExpense(ctx context.Context, e core.ManualExpense) (core.Transaction, error)
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		// DeleteTransaction tombstones the transaction. It disappears from
		// reads but its recurring key stays recorded.
		DeleteTransaction(ctx context.Context, id string) error
		ListTransactions(ctx context.Context, month core.MonthKey) ([]core.Transaction, error)
	}

	// Store is the full ledger. WithTx runs fn atomically: if fn returns an
	// error every write made through the Writer is rolled back.
	Store interface {
		Reader
		Writer
		Catalog
		WithTx(ctx context.Context, fn func(Writer) error) error
		Close() error
	}
)
