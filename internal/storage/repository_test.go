package storage

import (
	"context"
	"path/filepath"
	"testing"

	"budget/internal/core"
	"budget/internal/ledger"
	"budget/internal/ledger/ledgertest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepositoryConformance(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store {
		return newTestRepository(t)
	})
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")

	first, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	_, err = first.CreateFixedExpense(context.Background(), core.FixedExpense{
		Name: "Rent", Amount: decimal.NewFromInt(900), DayOfMonth: 1, IsActive: true,
	})
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	defer second.Close()

	active, err := second.ActiveFixedExpenses(context.Background())
	require.NoError(t, err)
	assert.Len(t, active, 1, "data survives reopening")
}

func TestDebtRoundTripPreservesDecimals(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	d, err := core.NewDebt("Mortgage", "home", decimal.RequireFromString("250000"), decimal.RequireFromString("3.75"), 360, 28)
	require.NoError(t, err)
	d, err = repo.CreateDebt(ctx, d)
	require.NoError(t, err)

	got, err := repo.GetDebt(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, got.InterestRate.Equal(decimal.RequireFromString("3.75")))
	assert.True(t, got.EMIAmount.Equal(d.EMIAmount), "emi %s != %s", got.EMIAmount, d.EMIAmount)
	assert.Equal(t, 360, got.RemainingMonths)
	assert.Equal(t, 28, got.DayOfMonth)
	assert.True(t, got.IsActive)
}

func TestIsRecurringUniqueError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"constraint failed: UNIQUE constraint failed: transactions.source_type, transactions.source_id, transactions.source_month (2067)", true},
		{"constraint failed: UNIQUE constraint failed: transactions.id (1555)", false},
		{"database is locked", false},
	}
	for _, tt := range tests {
		if got := isRecurringUniqueError(errString(tt.msg)); got != tt.want {
			t.Errorf("isRecurringUniqueError(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
	assert.False(t, isRecurringUniqueError(nil))
}

type errString string

func (e errString) Error() string { return string(e) }
