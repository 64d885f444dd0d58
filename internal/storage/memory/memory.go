// Package memory provides an in-process ledger.Store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type storedTransaction struct {
	core.Transaction
	deleted bool
}

type Store struct {
	mu            sync.RWMutex
	fixedExpenses map[string]core.FixedExpense
	debts         map[string]core.Debt
	transactions  []storedTransaction
	recurring     map[string]string // source_type:source_id:source_month -> transaction id
	now           func() time.Time
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		fixedExpenses: make(map[string]core.FixedExpense),
		debts:         make(map[string]core.Debt),
		recurring:     make(map[string]string),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) ActiveFixedExpenses(_ context.Context) ([]core.FixedExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.FixedExpense
	for _, f := range s.fixedExpenses {
		if f.IsActive {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ActiveDebts(_ context.Context) ([]core.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Debt
	for _, d := range s.debts {
		if d.IsActive {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) ProcessedRecurringKeys(_ context.Context, month core.MonthKey) ([]core.RecurringKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []core.RecurringKey
	for _, t := range s.transactions {
		if t.SourceMonth == nil || *t.SourceMonth != month {
			continue
		}
		if key, ok := t.RecurringKey(); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *Store) LastProcessedRecurringMonth(_ context.Context) (core.MonthKey, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last core.MonthKey
	found := false
	for _, t := range s.transactions {
		if t.SourceType == nil || t.SourceMonth == nil {
			continue
		}
		if !found || t.SourceMonth.After(last) {
			last = *t.SourceMonth
			found = true
		}
	}
	return last, found, nil
}

func (s *Store) InsertRecurringExpense(_ context.Context, e core.RecurringExpense) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertRecurringLocked(e)
}

func (s *Store) ApplyEMIPayment(_ context.Context, debtID string, newRemaining decimal.Decimal, newRemainingMonths int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyEMILocked(debtID, newRemaining, newRemainingMonths)
}

// WithTx executes fn within a transaction, simulated with a snapshot that is
// restored when fn fails. Other callers are blocked until fn returns.
func (s *Store) WithTx(_ context.Context, fn func(ledger.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(&txView{parent: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	debts        map[string]core.Debt
	transactions []storedTransaction
	recurring    map[string]string
}

func (s *Store) snapshot() snapshot {
	debts := make(map[string]core.Debt, len(s.debts))
	for k, v := range s.debts {
		debts[k] = v
	}
	recurring := make(map[string]string, len(s.recurring))
	for k, v := range s.recurring {
		recurring[k] = v
	}
	return snapshot{
		debts:        debts,
		transactions: append([]storedTransaction(nil), s.transactions...),
		recurring:    recurring,
	}
}

func (s *Store) restore(snap snapshot) {
	s.debts = snap.debts
	s.transactions = snap.transactions
	s.recurring = snap.recurring
}

type txView struct {
	parent *Store
}

func (v *txView) InsertRecurringExpense(_ context.Context, e core.RecurringExpense) (core.Transaction, error) {
	return v.parent.insertRecurringLocked(e)
}

func (v *txView) ApplyEMIPayment(_ context.Context, debtID string, newRemaining decimal.Decimal, newRemainingMonths int) error {
	return v.parent.applyEMILocked(debtID, newRemaining, newRemainingMonths)
}

func recurringSlot(e core.RecurringExpense) string {
	return fmt.Sprintf("%s:%s:%s", e.SourceType, e.SourceID, e.SourceMonth)
}

func (s *Store) insertRecurringLocked(e core.RecurringExpense) (core.Transaction, error) {
	if err := e.Validate(); err != nil {
		return core.Transaction{}, err
	}
	slot := recurringSlot(e)
	if _, exists := s.recurring[slot]; exists {
		return core.Transaction{}, core.NewStorageError("insert recurring expense", core.ErrDuplicateRecurring)
	}

	st, id, month := e.SourceType, e.SourceID, e.SourceMonth
	t := core.Transaction{
		ID:          uuid.NewString(),
		Amount:      e.Amount.Round(2),
		Date:        e.Date,
		Description: e.Description,
		SourceType:  &st,
		SourceID:    &id,
		SourceMonth: &month,
		CreatedAt:   s.now(),
	}
	s.transactions = append(s.transactions, storedTransaction{Transaction: t})
	s.recurring[slot] = t.ID
	return t, nil
}

func (s *Store) applyEMILocked(debtID string, newRemaining decimal.Decimal, newRemainingMonths int) error {
	if newRemaining.IsNegative() {
		return &core.InvalidInputError{Field: "remaining", Value: newRemaining.String(), Reason: "must not be negative"}
	}
	if newRemainingMonths < 0 {
		return &core.InvalidInputError{Field: "remaining_months", Value: newRemainingMonths, Reason: "must not be negative"}
	}
	d, ok := s.debts[debtID]
	if !ok {
		return core.NewStorageError("apply emi payment", fmt.Errorf("debt %s: %w", debtID, core.ErrNotFound))
	}
	d.Remaining = newRemaining.Round(2)
	d.RemainingMonths = newRemainingMonths
	d.IsActive = newRemaining.IsPositive()
	s.debts[debtID] = d
	return nil
}

func (s *Store) CreateFixedExpense(_ context.Context, f core.FixedExpense) (core.FixedExpense, error) {
	if err := f.Validate(); err != nil {
		return core.FixedExpense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = s.now()
	}
	s.fixedExpenses[f.ID] = f
	return f, nil
}

func (s *Store) SetFixedExpenseActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fixedExpenses[id]
	if !ok {
		return core.NewStorageError("set fixed expense active", fmt.Errorf("fixed expense %s: %w", id, core.ErrNotFound))
	}
	f.IsActive = active
	s.fixedExpenses[id] = f
	return nil
}

func (s *Store) CreateDebt(_ context.Context, d core.Debt) (core.Debt, error) {
	if err := d.Validate(); err != nil {
		return core.Debt{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now()
	}
	s.debts[d.ID] = d
	return d, nil
}

func (s *Store) GetDebt(_ context.Context, id string) (core.Debt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.debts[id]
	if !ok {
		return core.Debt{}, core.NewStorageError("get debt", fmt.Errorf("debt %s: %w", id, core.ErrNotFound))
	}
	return d, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.ManualExpense) (core.Transaction, error) {
	if err := e.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := core.Transaction{
		ID:          uuid.NewString(),
		Amount:      e.Amount.Round(2),
		Date:        e.Date,
		Description: e.Description,
		CreatedAt:   s.now(),
	}
	s.transactions = append(s.transactions, storedTransaction{Transaction: t})
	return t, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transactions {
		if t.ID == id && !t.deleted {
			return t.Transaction, nil
		}
	}
	return core.Transaction{}, core.NewStorageError("get transaction", fmt.Errorf("transaction %s: %w", id, core.ErrNotFound))
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.transactions {
		if s.transactions[i].ID == id && !s.transactions[i].deleted {
			s.transactions[i].deleted = true
			return nil
		}
	}
	return core.NewStorageError("delete transaction", fmt.Errorf("transaction %s: %w", id, core.ErrNotFound))
}

func (s *Store) ListTransactions(_ context.Context, month core.MonthKey) ([]core.Transaction, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if !t.deleted && core.MonthKeyOf(t.Date) == month {
			out = append(out, t.Transaction)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}
