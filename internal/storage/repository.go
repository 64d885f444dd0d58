package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

// SQLiteRepository is the SQLite-backed ledger.Store.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations before the pool opens so WAL mode is set on a migrated file.
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection serializes the engine's
	// concurrent per-item writes instead of failing them with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) ActiveFixedExpenses(ctx context.Context) ([]core.FixedExpense, error) {
	rows, err := r.queries.ListActiveFixedExpenses(ctx)
	if err != nil {
		return nil, core.NewStorageError("list active fixed expenses", err)
	}
	out := make([]core.FixedExpense, 0, len(rows))
	for _, row := range rows {
		f, err := fixedExpenseFromRow(row)
		if err != nil {
			return nil, core.NewStorageError("decode fixed expense", err)
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *SQLiteRepository) ActiveDebts(ctx context.Context) ([]core.Debt, error) {
	rows, err := r.queries.ListActiveDebts(ctx)
	if err != nil {
		return nil, core.NewStorageError("list active debts", err)
	}
	out := make([]core.Debt, 0, len(rows))
	for _, row := range rows {
		d, err := debtFromRow(row)
		if err != nil {
			return nil, core.NewStorageError("decode debt", err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *SQLiteRepository) ProcessedRecurringKeys(ctx context.Context, month core.MonthKey) ([]core.RecurringKey, error) {
	rows, err := r.queries.ListRecurringKeysByMonth(ctx, string(month))
	if err != nil {
		return nil, core.NewStorageError("list recurring keys", err)
	}
	keys := make([]core.RecurringKey, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, core.RecurringKey{SourceType: core.SourceType(row.SourceType), SourceID: row.SourceID})
	}
	return keys, nil
}

func (r *SQLiteRepository) LastProcessedRecurringMonth(ctx context.Context) (core.MonthKey, bool, error) {
	month, err := r.queries.GetLastRecurringMonth(ctx)
	if err != nil {
		return "", false, core.NewStorageError("get last recurring month", err)
	}
	if !month.Valid {
		return "", false, nil
	}
	return core.MonthKey(month.String), true, nil
}

func (r *SQLiteRepository) InsertRecurringExpense(ctx context.Context, e core.RecurringExpense) (core.Transaction, error) {
	return insertRecurringExpense(ctx, r.queries, r.now(), e)
}

func (r *SQLiteRepository) ApplyEMIPayment(ctx context.Context, debtID string, newRemaining decimal.Decimal, newRemainingMonths int) error {
	return applyEMIPayment(ctx, r.queries, r.now(), debtID, newRemaining, newRemainingMonths)
}

// WithTx runs fn inside one SQLite transaction.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(ledger.Writer) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStorageError("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txWriter{queries: r.queries.WithTx(sqlTx), now: r.now()}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return core.NewStorageError("commit transaction", err)
	}
	return nil
}

type txWriter struct {
	queries *Queries
	now     time.Time
}

func (w *txWriter) InsertRecurringExpense(ctx context.Context, e core.RecurringExpense) (core.Transaction, error) {
	return insertRecurringExpense(ctx, w.queries, w.now, e)
}

func (w *txWriter) ApplyEMIPayment(ctx context.Context, debtID string, newRemaining decimal.Decimal, newRemainingMonths int) error {
	return applyEMIPayment(ctx, w.queries, w.now, debtID, newRemaining, newRemainingMonths)
}

func insertRecurringExpense(ctx context.Context, q *Queries, now time.Time, e core.RecurringExpense) (core.Transaction, error) {
	if err := e.Validate(); err != nil {
		return core.Transaction{}, err
	}

	row := TransactionRow{
		ID:          uuid.NewString(),
		Amount:      core.FormatAmount(e.Amount),
		Date:        e.Date.Format(dateLayout),
		Description: e.Description,
		SourceType:  sql.NullString{String: string(e.SourceType), Valid: true},
		SourceID:    sql.NullString{String: e.SourceID, Valid: true},
		SourceMonth: sql.NullString{String: string(e.SourceMonth), Valid: true},
		CreatedAt:   now.Format(time.RFC3339Nano),
	}
	if err := q.CreateTransaction(ctx, row); err != nil {
		if isRecurringUniqueError(err) {
			return core.Transaction{}, core.NewStorageError("insert recurring expense", core.ErrDuplicateRecurring)
		}
		return core.Transaction{}, core.NewStorageError("insert recurring expense", err)
	}

	slog.DebugContext(ctx, "Recurring transaction saved to SQLite",
		"id", row.ID,
		"source_type", e.SourceType,
		"source_id", e.SourceID,
		"month", e.SourceMonth,
		"amount", row.Amount)

	return transactionFromRow(row)
}

func applyEMIPayment(ctx context.Context, q *Queries, now time.Time, debtID string, newRemaining decimal.Decimal, newRemainingMonths int) error {
	if newRemaining.IsNegative() {
		return &core.InvalidInputError{Field: "remaining", Value: newRemaining.String(), Reason: "must not be negative"}
	}
	if newRemainingMonths < 0 {
		return &core.InvalidInputError{Field: "remaining_months", Value: newRemainingMonths, Reason: "must not be negative"}
	}

	n, err := q.UpdateDebtBalance(ctx, UpdateDebtBalanceParams{
		Remaining:       core.FormatAmount(newRemaining),
		RemainingMonths: int64(newRemainingMonths),
		IsActive:        newRemaining.IsPositive(),
		UpdatedAt:       now.Format(time.RFC3339Nano),
		ID:              debtID,
	})
	if err != nil {
		return core.NewStorageError("apply emi payment", err)
	}
	if n == 0 {
		return core.NewStorageError("apply emi payment", fmt.Errorf("debt %s: %w", debtID, core.ErrNotFound))
	}
	return nil
}

func (r *SQLiteRepository) CreateFixedExpense(ctx context.Context, f core.FixedExpense) (core.FixedExpense, error) {
	if err := f.Validate(); err != nil {
		return core.FixedExpense{}, err
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = r.now()
	}

	err := r.queries.CreateFixedExpense(ctx, FixedExpenseRow{
		ID:         f.ID,
		Name:       f.Name,
		Category:   f.Category,
		Amount:     core.FormatAmount(f.Amount),
		DayOfMonth: int64(f.DayOfMonth),
		IsActive:   f.IsActive,
		CreatedAt:  f.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return core.FixedExpense{}, core.NewStorageError("create fixed expense", err)
	}

	slog.InfoContext(ctx, "Fixed expense saved to SQLite",
		"id", f.ID,
		"name", f.Name,
		"amount", core.FormatAmount(f.Amount),
		"day_of_month", f.DayOfMonth)

	return f, nil
}

func (r *SQLiteRepository) SetFixedExpenseActive(ctx context.Context, id string, active bool) error {
	n, err := r.queries.SetFixedExpenseActive(ctx, id, active)
	if err != nil {
		return core.NewStorageError("set fixed expense active", err)
	}
	if n == 0 {
		return core.NewStorageError("set fixed expense active", fmt.Errorf("fixed expense %s: %w", id, core.ErrNotFound))
	}
	return nil
}

func (r *SQLiteRepository) CreateDebt(ctx context.Context, d core.Debt) (core.Debt, error) {
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now()
	}
	ts := d.CreatedAt.UTC().Format(time.RFC3339Nano)

	err := r.queries.CreateDebt(ctx, DebtRow{
		ID:              d.ID,
		Name:            d.Name,
		DebtType:        d.Type,
		Principal:       core.FormatAmount(d.Principal),
		Remaining:       core.FormatAmount(d.Remaining),
		InterestRate:    d.InterestRate.String(),
		EmiAmount:       core.FormatAmount(d.EMIAmount),
		TenureMonths:    int64(d.TenureMonths),
		RemainingMonths: int64(d.RemainingMonths),
		DayOfMonth:      int64(d.DayOfMonth),
		IsActive:        d.IsActive,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	})
	if err != nil {
		return core.Debt{}, core.NewStorageError("create debt", err)
	}

	slog.InfoContext(ctx, "Debt saved to SQLite",
		"id", d.ID,
		"name", d.Name,
		"principal", core.FormatAmount(d.Principal),
		"emi_amount", core.FormatAmount(d.EMIAmount))

	return d, nil
}

func (r *SQLiteRepository) GetDebt(ctx context.Context, id string) (core.Debt, error) {
	row, err := r.queries.GetDebt(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Debt{}, core.NewStorageError("get debt", fmt.Errorf("debt %s: %w", id, core.ErrNotFound))
	}
	if err != nil {
		return core.Debt{}, core.NewStorageError("get debt", err)
	}
	d, err := debtFromRow(row)
	if err != nil {
		return core.Debt{}, core.NewStorageError("decode debt", err)
	}
	return d, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.ManualExpense) (core.Transaction, error) {
	if err := e.Validate(); err != nil {
		return core.Transaction{}, err
	}

	row := TransactionRow{
		ID:          uuid.NewString(),
		Amount:      core.FormatAmount(e.Amount),
		Date:        e.Date.Format(dateLayout),
		Description: e.Description,
		CreatedAt:   r.now().Format(time.RFC3339Nano),
	}
	if err := r.queries.CreateTransaction(ctx, row); err != nil {
		return core.Transaction{}, core.NewStorageError("create expense", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", row.ID,
		"description", row.Description,
		"amount", row.Amount,
		"date", row.Date)

	return transactionFromRow(row)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NewStorageError("get transaction", fmt.Errorf("transaction %s: %w", id, core.ErrNotFound))
	}
	if err != nil {
		return core.Transaction{}, core.NewStorageError("get transaction", err)
	}
	return transactionFromRow(row)
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	n, err := r.queries.SoftDeleteTransaction(ctx, id, r.now().Format(time.RFC3339Nano))
	if err != nil {
		return core.NewStorageError("delete transaction", err)
	}
	if n == 0 {
		return core.NewStorageError("delete transaction", fmt.Errorf("transaction %s: %w", id, core.ErrNotFound))
	}
	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	return nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, month core.MonthKey) ([]core.Transaction, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	rows, err := r.queries.ListTransactionsByMonth(ctx, string(month))
	if err != nil {
		return nil, core.NewStorageError("list transactions", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := transactionFromRow(row)
		if err != nil {
			return nil, core.NewStorageError("decode transaction", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func fixedExpenseFromRow(row FixedExpenseRow) (core.FixedExpense, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.FixedExpense{}, fmt.Errorf("fixed expense %s amount: %w", row.ID, err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	return core.FixedExpense{
		ID:         row.ID,
		Name:       row.Name,
		Category:   row.Category,
		Amount:     amount,
		DayOfMonth: int(row.DayOfMonth),
		IsActive:   row.IsActive,
		CreatedAt:  createdAt,
	}, nil
}

func debtFromRow(row DebtRow) (core.Debt, error) {
	fields := map[string]string{
		"principal":     row.Principal,
		"remaining":     row.Remaining,
		"interest_rate": row.InterestRate,
		"emi_amount":    row.EmiAmount,
	}
	parsed := make(map[string]decimal.Decimal, len(fields))
	for name, raw := range fields {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return core.Debt{}, fmt.Errorf("debt %s %s: %w", row.ID, name, err)
		}
		parsed[name] = v
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)
	return core.Debt{
		ID:              row.ID,
		Name:            row.Name,
		Type:            row.DebtType,
		Principal:       parsed["principal"],
		Remaining:       parsed["remaining"],
		InterestRate:    parsed["interest_rate"],
		EMIAmount:       parsed["emi_amount"],
		TenureMonths:    int(row.TenureMonths),
		RemainingMonths: int(row.RemainingMonths),
		DayOfMonth:      int(row.DayOfMonth),
		IsActive:        row.IsActive,
		CreatedAt:       createdAt,
	}, nil
}

func transactionFromRow(row TransactionRow) (core.Transaction, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s amount: %w", row.ID, err)
	}
	date, err := time.Parse(dateLayout, row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s date: %w", row.ID, err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, row.CreatedAt)

	t := core.Transaction{
		ID:          row.ID,
		Amount:      amount,
		Date:        date,
		Description: row.Description,
		CreatedAt:   createdAt,
	}
	if row.SourceType.Valid {
		st := core.SourceType(row.SourceType.String)
		id := row.SourceID.String
		month := core.MonthKey(row.SourceMonth.String)
		t.SourceType, t.SourceID, t.SourceMonth = &st, &id, &month
	}
	return t, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isRecurringUniqueError matches violations of idx_transactions_recurring_unique,
// reported by SQLite as "UNIQUE constraint failed: transactions.source_type, ...".
func isRecurringUniqueError(err error) bool {
	return isUniqueConstraintError(err) && strings.Contains(err.Error(), "transactions.source_type")
}
