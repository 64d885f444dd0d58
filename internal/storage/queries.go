package storage

import (
	"context"
	"database/sql"
)

const listActiveFixedExpenses = `
SELECT id, name, category, amount, day_of_month, is_active, created_at
FROM fixed_expenses
WHERE is_active = 1
ORDER BY created_at, id
`

func (q *Queries) ListActiveFixedExpenses(ctx context.Context) ([]FixedExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listActiveFixedExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FixedExpenseRow
	for rows.Next() {
		var i FixedExpenseRow
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Category,
			&i.Amount,
			&i.DayOfMonth,
			&i.IsActive,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createFixedExpense = `
INSERT INTO fixed_expenses (id, name, category, amount, day_of_month, is_active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateFixedExpense(ctx context.Context, arg FixedExpenseRow) error {
	_, err := q.db.ExecContext(ctx, createFixedExpense,
		arg.ID,
		arg.Name,
		arg.Category,
		arg.Amount,
		arg.DayOfMonth,
		arg.IsActive,
		arg.CreatedAt,
	)
	return err
}

const setFixedExpenseActive = `
UPDATE fixed_expenses SET is_active = ? WHERE id = ?
`

func (q *Queries) SetFixedExpenseActive(ctx context.Context, id string, active bool) (int64, error) {
	result, err := q.db.ExecContext(ctx, setFixedExpenseActive, active, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const debtColumns = `id, name, debt_type, principal, remaining, interest_rate, emi_amount,
       tenure_months, remaining_months, day_of_month, is_active, created_at, updated_at`

const listActiveDebts = `
SELECT ` + debtColumns + `
FROM debts
WHERE is_active = 1
ORDER BY created_at, id
`

func (q *Queries) ListActiveDebts(ctx context.Context) ([]DebtRow, error) {
	rows, err := q.db.QueryContext(ctx, listActiveDebts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DebtRow
	for rows.Next() {
		i, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getDebt = `
SELECT ` + debtColumns + `
FROM debts
WHERE id = ?
`

func (q *Queries) GetDebt(ctx context.Context, id string) (DebtRow, error) {
	return scanDebt(q.db.QueryRowContext(ctx, getDebt, id))
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDebt(row rowScanner) (DebtRow, error) {
	var i DebtRow
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.DebtType,
		&i.Principal,
		&i.Remaining,
		&i.InterestRate,
		&i.EmiAmount,
		&i.TenureMonths,
		&i.RemainingMonths,
		&i.DayOfMonth,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createDebt = `
INSERT INTO debts (` + debtColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

func (q *Queries) CreateDebt(ctx context.Context, arg DebtRow) error {
	_, err := q.db.ExecContext(ctx, createDebt,
		arg.ID,
		arg.Name,
		arg.DebtType,
		arg.Principal,
		arg.Remaining,
		arg.InterestRate,
		arg.EmiAmount,
		arg.TenureMonths,
		arg.RemainingMonths,
		arg.DayOfMonth,
		arg.IsActive,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const updateDebtBalance = `
UPDATE debts
SET remaining = ?, remaining_months = ?, is_active = ?, updated_at = ?
WHERE id = ?
`

type UpdateDebtBalanceParams struct {
	Remaining       string
	RemainingMonths int64
	IsActive        bool
	UpdatedAt       string
	ID              string
}

func (q *Queries) UpdateDebtBalance(ctx context.Context, arg UpdateDebtBalanceParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateDebtBalance,
		arg.Remaining,
		arg.RemainingMonths,
		arg.IsActive,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const transactionColumns = `id, amount, date, description, source_type, source_id, source_month, created_at, deleted_at`

const createTransaction = `
INSERT INTO transactions (` + transactionColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
`

func (q *Queries) CreateTransaction(ctx context.Context, arg TransactionRow) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID,
		arg.Amount,
		arg.Date,
		arg.Description,
		arg.SourceType,
		arg.SourceID,
		arg.SourceMonth,
		arg.CreatedAt,
	)
	return err
}

const getTransaction = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE id = ? AND deleted_at IS NULL
`

func (q *Queries) GetTransaction(ctx context.Context, id string) (TransactionRow, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, getTransaction, id))
}

const listTransactionsByMonth = `
SELECT ` + transactionColumns + `
FROM transactions
WHERE substr(date, 1, 7) = ? AND deleted_at IS NULL
ORDER BY date, created_at, id
`

func (q *Queries) ListTransactionsByMonth(ctx context.Context, month string) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByMonth, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TransactionRow
	for rows.Next() {
		i, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanTransaction(row rowScanner) (TransactionRow, error) {
	var i TransactionRow
	err := row.Scan(
		&i.ID,
		&i.Amount,
		&i.Date,
		&i.Description,
		&i.SourceType,
		&i.SourceID,
		&i.SourceMonth,
		&i.CreatedAt,
		&i.DeletedAt,
	)
	return i, err
}

const softDeleteTransaction = `
UPDATE transactions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
`

func (q *Queries) SoftDeleteTransaction(ctx context.Context, id string, deletedAt string) (int64, error) {
	result, err := q.db.ExecContext(ctx, softDeleteTransaction, deletedAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listRecurringKeysByMonth = `
SELECT source_type, source_id
FROM transactions
WHERE source_month = ? AND source_type IS NOT NULL
`

type RecurringKeyRow struct {
	SourceType string
	SourceID   string
}

func (q *Queries) ListRecurringKeysByMonth(ctx context.Context, month string) ([]RecurringKeyRow, error) {
	rows, err := q.db.QueryContext(ctx, listRecurringKeysByMonth, month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []RecurringKeyRow
	for rows.Next() {
		var i RecurringKeyRow
		if err := rows.Scan(&i.SourceType, &i.SourceID); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getLastRecurringMonth = `
SELECT MAX(source_month) FROM transactions WHERE source_type IS NOT NULL
`

func (q *Queries) GetLastRecurringMonth(ctx context.Context) (sql.NullString, error) {
	row := q.db.QueryRowContext(ctx, getLastRecurringMonth)
	var month sql.NullString
	err := row.Scan(&month)
	return month, err
}
