package services

import (
	"context"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecurringStatusService_MonthStatus(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rent := addFixedExpense(t, store, "Rent", "900", 1)
	gym := addFixedExpense(t, store, "Gym", "35.50", 20)
	loan := addLoan(t, store, 31)
	now := at(2024, 2, 10)

	n, err := NewRecurringProcessor(store).ProcessMonth(ctx, "2024-02", now)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	status, err := NewRecurringStatusService(store).MonthStatus(ctx, "2024-02", now)
	require.NoError(t, err)
	assert.Equal(t, core.MonthKey("2024-02"), status.Month)
	require.Len(t, status.Obligations, 3)

	byID := make(map[string]core.ObligationStatus)
	for _, o := range status.Obligations {
		byID[o.Key.SourceID] = o
	}

	assert.True(t, byID[rent.ID].Due)
	assert.True(t, byID[rent.ID].Paid)

	assert.False(t, byID[gym.ID].Due)
	assert.False(t, byID[gym.ID].Paid)
	assert.Equal(t, time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), byID[gym.ID].DueDate)

	emi := byID[loan.ID]
	assert.Equal(t, core.SourceDebtEMI, emi.Key.SourceType)
	assert.Equal(t, "Car loan EMI", emi.Name)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), emi.DueDate)
	assert.False(t, emi.Paid)

	wantTotal := dec("935.50").Add(loan.EMIAmount)
	assert.True(t, status.TotalAmount.Equal(wantTotal), "total = %s", status.TotalAmount)
	assert.True(t, status.TotalPaid.Equal(dec("900")), "paid = %s", status.TotalPaid)
}

func TestRecurringStatusService_DoesNotWrite(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	addFixedExpense(t, store, "Rent", "900", 1)

	_, err := NewRecurringStatusService(store).MonthStatus(ctx, "2024-02", at(2024, 3, 1))
	require.NoError(t, err)

	_, ok, err := store.LastProcessedRecurringMonth(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecurringStatusService_InvalidMonth(t *testing.T) {
	_, err := NewRecurringStatusService(memory.New()).MonthStatus(context.Background(), "24-02", at(2024, 3, 1))
	require.Error(t, err)
	assert.True(t, core.IsClientError(err))
}
