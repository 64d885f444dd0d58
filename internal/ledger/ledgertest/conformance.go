// Package ledgertest holds behaviour checks shared by every ledger.Store
// implementation.
package ledgertest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store; the caller's cleanup is registered on t.
type Factory func(t *testing.T) ledger.Store

// Run exercises the ledger contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("FixedExpensesActiveOnly", func(t *testing.T) { testFixedExpensesActiveOnly(t, newStore(t)) })
	t.Run("RecurringKeysAndLastMonth", func(t *testing.T) { testRecurringKeysAndLastMonth(t, newStore(t)) })
	t.Run("UniquenessBackstop", func(t *testing.T) { testUniquenessBackstop(t, newStore(t)) })
	t.Run("ConcurrentDuplicateInserts", func(t *testing.T) { testConcurrentDuplicateInserts(t, newStore(t)) })
	t.Run("WithTxCommits", func(t *testing.T) { testWithTxCommits(t, newStore(t)) })
	t.Run("WithTxRollsBack", func(t *testing.T) { testWithTxRollsBack(t, newStore(t)) })
	t.Run("ApplyEMIPaymentClosesDebt", func(t *testing.T) { testApplyEMIPaymentClosesDebt(t, newStore(t)) })
	t.Run("DeleteKeepsRecurringKey", func(t *testing.T) { testDeleteKeepsRecurringKey(t, newStore(t)) })
	t.Run("ManualExpenses", func(t *testing.T) { testManualExpenses(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func recurring(st core.SourceType, id string, month core.MonthKey, day int) core.RecurringExpense {
	date, err := core.ResolveDueDate(month, day)
	if err != nil {
		panic(err)
	}
	return core.RecurringExpense{
		Amount:      dec("42.50"),
		Date:        date,
		Description: "Obligation " + id,
		SourceType:  st,
		SourceID:    id,
		SourceMonth: month,
	}
}

func seedDebt(t *testing.T, s ledger.Store) core.Debt {
	t.Helper()
	d, err := core.NewDebt("Car loan", "auto", dec("120000"), dec("12"), 12, 5)
	require.NoError(t, err)
	d, err = s.CreateDebt(context.Background(), d)
	require.NoError(t, err)
	require.NotEmpty(t, d.ID)
	return d
}

func testFixedExpensesActiveOnly(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	rent, err := s.CreateFixedExpense(ctx, core.FixedExpense{Name: "Rent", Category: "housing", Amount: dec("900"), DayOfMonth: 1, IsActive: true})
	require.NoError(t, err)
	gym, err := s.CreateFixedExpense(ctx, core.FixedExpense{Name: "Gym", Amount: dec("35.90"), DayOfMonth: 31, IsActive: true})
	require.NoError(t, err)
	require.NoError(t, s.SetFixedExpenseActive(ctx, gym.ID, false))

	active, err := s.ActiveFixedExpenses(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, rent.ID, active[0].ID)
	assert.True(t, active[0].Amount.Equal(dec("900")))
	assert.Equal(t, "housing", active[0].Category)

	_, err = s.CreateFixedExpense(ctx, core.FixedExpense{Name: "Bad", Amount: dec("1"), DayOfMonth: 40, IsActive: true})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func testRecurringKeysAndLastMonth(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	_, ok, err := s.LastProcessedRecurringMonth(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty ledger has no last month")

	_, err = s.CreateExpense(ctx, core.ManualExpense{Amount: dec("5"), Date: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), Description: "Coffee"})
	require.NoError(t, err)
	_, ok, err = s.LastProcessedRecurringMonth(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "manual expenses do not count")

	for _, e := range []core.RecurringExpense{
		recurring(core.SourceFixedExpense, "fe-1", "2024-02", 31),
		recurring(core.SourceDebtEMI, "debt-1", "2024-02", 5),
		recurring(core.SourceFixedExpense, "fe-1", "2024-03", 31),
	} {
		tx, err := s.InsertRecurringExpense(ctx, e)
		require.NoError(t, err)
		assert.True(t, tx.IsRecurring())
	}

	keys, err := s.ProcessedRecurringKeys(ctx, "2024-02")
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.RecurringKey{
		{SourceType: core.SourceFixedExpense, SourceID: "fe-1"},
		{SourceType: core.SourceDebtEMI, SourceID: "debt-1"},
	}, keys)

	last, ok, err := s.LastProcessedRecurringMonth(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, core.MonthKey("2024-03"), last)

	txs, err := s.ListTransactions(ctx, "2024-02")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		if *tx.SourceType == core.SourceFixedExpense {
			assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), tx.Date)
			assert.True(t, tx.Amount.Equal(dec("42.50")))
		}
	}
}

func testUniquenessBackstop(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	e := recurring(core.SourceFixedExpense, "fe-1", "2024-03", 10)

	_, err := s.InsertRecurringExpense(ctx, e)
	require.NoError(t, err)

	_, err = s.InsertRecurringExpense(ctx, e)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDuplicateRecurring)
	assert.ErrorIs(t, err, core.ErrStorage)

	// Same id under the other source type, or another month, is a different slot.
	_, err = s.InsertRecurringExpense(ctx, recurring(core.SourceDebtEMI, "fe-1", "2024-03", 10))
	require.NoError(t, err)
	_, err = s.InsertRecurringExpense(ctx, recurring(core.SourceFixedExpense, "fe-1", "2024-04", 10))
	require.NoError(t, err)
}

func testConcurrentDuplicateInserts(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	e := recurring(core.SourceFixedExpense, "fe-race", "2024-05", 1)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		dupes     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.InsertRecurringExpense(ctx, e)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, core.ErrDuplicateRecurring):
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, dupes)
}

func testWithTxCommits(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	d := seedDebt(t, s)

	err := s.WithTx(ctx, func(w ledger.Writer) error {
		if _, err := w.InsertRecurringExpense(ctx, recurring(core.SourceDebtEMI, d.ID, "2024-03", d.DayOfMonth)); err != nil {
			return err
		}
		return w.ApplyEMIPayment(ctx, d.ID, dec("110538.15"), 11)
	})
	require.NoError(t, err)

	got, err := s.GetDebt(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.Remaining.Equal(dec("110538.15")), "remaining = %s", got.Remaining)
	assert.Equal(t, 11, got.RemainingMonths)
	assert.True(t, got.IsActive)

	keys, err := s.ProcessedRecurringKeys(ctx, "2024-03")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func testWithTxRollsBack(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	d := seedDebt(t, s)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(w ledger.Writer) error {
		if _, err := w.InsertRecurringExpense(ctx, recurring(core.SourceDebtEMI, d.ID, "2024-03", d.DayOfMonth)); err != nil {
			return err
		}
		if err := w.ApplyEMIPayment(ctx, d.ID, dec("1"), 0); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetDebt(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.Remaining.Equal(d.Remaining), "balance must be untouched, got %s", got.Remaining)
	assert.Equal(t, d.RemainingMonths, got.RemainingMonths)

	keys, err := s.ProcessedRecurringKeys(ctx, "2024-03")
	require.NoError(t, err)
	assert.Empty(t, keys, "insert must be rolled back with the balance update")

	_, ok, err := s.LastProcessedRecurringMonth(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func testApplyEMIPaymentClosesDebt(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	d := seedDebt(t, s)

	require.NoError(t, s.ApplyEMIPayment(ctx, d.ID, decimal.Zero, 0))

	got, err := s.GetDebt(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.Remaining.IsZero())
	assert.False(t, got.IsActive)

	active, err := s.ActiveDebts(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	err = s.ApplyEMIPayment(ctx, d.ID, dec("-1"), 0)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func testDeleteKeepsRecurringKey(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	tx, err := s.InsertRecurringExpense(ctx, recurring(core.SourceFixedExpense, "fe-1", "2024-06", 3))
	require.NoError(t, err)

	require.NoError(t, s.DeleteTransaction(ctx, tx.ID))

	_, err = s.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	txs, err := s.ListTransactions(ctx, "2024-06")
	require.NoError(t, err)
	assert.Empty(t, txs)

	keys, err := s.ProcessedRecurringKeys(ctx, "2024-06")
	require.NoError(t, err)
	assert.Len(t, keys, 1, "deleted recurring transaction still occupies its slot")

	assert.ErrorIs(t, s.DeleteTransaction(ctx, tx.ID), core.ErrNotFound)
}

func testManualExpenses(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	tx, err := s.CreateExpense(ctx, core.ManualExpense{
		Amount:      dec("12.345"),
		Date:        time.Date(2024, 7, 14, 0, 0, 0, 0, time.UTC),
		Description: "Groceries",
	})
	require.NoError(t, err)
	assert.False(t, tx.IsRecurring())

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Description)
	assert.True(t, got.Amount.Equal(dec("12.35")), "amount = %s", got.Amount)
	assert.Nil(t, got.SourceType)

	_, err = s.CreateExpense(ctx, core.ManualExpense{Amount: dec("1"), Description: "no date"})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = s.ListTransactions(ctx, "2024-7")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func testNotFound(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	_, err := s.GetDebt(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, s.SetFixedExpenseActive(ctx, "missing", false), core.ErrNotFound)
	assert.ErrorIs(t, s.ApplyEMIPayment(ctx, "missing", dec("1"), 1), core.ErrNotFound)
}
