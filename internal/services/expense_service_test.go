package services

import (
	"context"
	"errors"
	"testing"

	"budget/internal/core"
	"budget/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewExpenseService(t *testing.T) {
	service := NewExpenseService(nil, nil)

	if service == nil {
		t.Fatal("NewExpenseService should return a non-nil service")
	}
	if service.storage != nil {
		t.Error("NewExpenseService should set storage to nil when passed nil")
	}
}

func TestExpenseService_NotInitialized(t *testing.T) {
	service := NewExpenseService(nil, nil)
	ctx := context.Background()

	_, err := service.CreateExpense(ctx, core.ManualExpense{})
	assert.Error(t, err)
	assert.Error(t, service.DeleteExpense(ctx, "id"))
	_, err = service.Transactions(ctx, "2024-03")
	assert.Error(t, err)
}

func TestExpenseService_CreateExpense(t *testing.T) {
	tests := []struct {
		name       string
		publishErr error
	}{
		{name: "published"},
		{name: "publish failure is not fatal", publishErr: errors.New("broker down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := memory.New()
			publisher := new(mockPublisher)
			publisher.On("PublishTransactionRecorded", mock.Anything, mock.MatchedBy(func(tx core.Transaction) bool {
				return tx.Description == "Groceries" && !tx.IsRecurring()
			})).Return(tt.publishErr).Once()

			service := NewExpenseService(store, publisher)
			tx, err := service.CreateExpense(ctx, core.ManualExpense{
				Date:        at(2024, 3, 12),
				Description: "Groceries",
				Amount:      dec("42.10"),
			})
			require.NoError(t, err)
			assert.NotEmpty(t, tx.ID)
			publisher.AssertExpectations(t)

			txs, err := service.Transactions(ctx, "2024-03")
			require.NoError(t, err)
			require.Len(t, txs, 1)
			assert.Equal(t, tx.ID, txs[0].ID)
		})
	}
}

func TestExpenseService_CreateExpenseValidation(t *testing.T) {
	publisher := new(mockPublisher)
	service := NewExpenseService(memory.New(), publisher)

	_, err := service.CreateExpense(context.Background(), core.ManualExpense{
		Date:        at(2024, 3, 12),
		Description: "  ",
		Amount:      dec("10"),
	})
	require.Error(t, err)
	assert.True(t, core.IsClientError(err))
	publisher.AssertNotCalled(t, "PublishTransactionRecorded", mock.Anything, mock.Anything)
}

func TestExpenseService_DeleteExpense(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	service := NewExpenseService(store, nil)

	tx, err := service.CreateExpense(ctx, core.ManualExpense{
		Date: at(2024, 3, 12), Description: "Coffee", Amount: dec("3.20"),
	})
	require.NoError(t, err)

	require.NoError(t, service.DeleteExpense(ctx, tx.ID))

	txs, err := service.Transactions(ctx, "2024-03")
	require.NoError(t, err)
	assert.Empty(t, txs)

	err = service.DeleteExpense(ctx, tx.ID)
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
}
