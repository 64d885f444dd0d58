package services

import (
	"context"
	"fmt"
	"log/slog"

	"budget/internal/core"
	"budget/internal/ledger"
)

// ExpenseService orchestrates user-entered expense operations across the
// ledger and the event publisher.
type ExpenseService struct {
	storage   ledger.Catalog
	publisher TransactionPublisher
}

func NewExpenseService(storage ledger.Catalog, publisher TransactionPublisher) *ExpenseService {
	return &ExpenseService{
		storage:   storage,
		publisher: publisher,
	}
}

// CreateExpense saves a manual expense and publishes a recorded event.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.ManualExpense) (core.Transaction, error) {
	if s.storage == nil {
		return core.Transaction{}, fmt.Errorf("expense service not properly initialized")
	}

	tx, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save expense: %w", err)
	}

	if s.publisher == nil {
		slog.DebugContext(ctx, "Publisher not available, skipping recorded event", "id", tx.ID)
		return tx, nil
	}
	if err := s.publisher.PublishTransactionRecorded(ctx, tx); err != nil {
		// Don't fail the request - expense is saved locally
		slog.ErrorContext(ctx, "Failed to publish recorded event",
			"id", tx.ID, "error", err)
	}

	return tx, nil
}

// DeleteExpense removes a transaction from listings. Deleting a recurring
// transaction does not make its obligation due again for that month.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	if s.storage == nil {
		return fmt.Errorf("expense service not properly initialized")
	}

	tx, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	if err := s.storage.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	if key, ok := tx.RecurringKey(); ok {
		slog.InfoContext(ctx, "Recurring transaction deleted; obligation stays settled for its month",
			"id", id,
			"recurring_key", key.String(),
			"month", *tx.SourceMonth)
	}
	return nil
}

// Transactions lists the transactions dated in month.
func (s *ExpenseService) Transactions(ctx context.Context, month core.MonthKey) ([]core.Transaction, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("expense service not properly initialized")
	}
	return s.storage.ListTransactions(ctx, month)
}
