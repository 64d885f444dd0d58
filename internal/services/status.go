package services

import (
	"context"
	"fmt"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"

	"github.com/shopspring/decimal"
)

// RecurringStatusService answers "which obligations are paid this month" for
// dashboards. It never writes.
type RecurringStatusService struct {
	reader  ledger.Reader
	dueness DuenessChecker
}

func NewRecurringStatusService(reader ledger.Reader) *RecurringStatusService {
	return &RecurringStatusService{reader: reader, dueness: MonthlyChecker{}}
}

// MonthStatus lists every active obligation for month with its due date and
// whether a recurring transaction has been recorded for it.
func (s *RecurringStatusService) MonthStatus(ctx context.Context, month core.MonthKey, now time.Time) (core.MonthStatus, error) {
	if err := month.Validate(); err != nil {
		return core.MonthStatus{}, err
	}

	keys, err := s.reader.ProcessedRecurringKeys(ctx, month)
	if err != nil {
		return core.MonthStatus{}, fmt.Errorf("load processed keys: %w", err)
	}
	paid := NewDedupIndex(keys)

	fixedExpenses, err := s.reader.ActiveFixedExpenses(ctx)
	if err != nil {
		return core.MonthStatus{}, fmt.Errorf("load fixed expenses: %w", err)
	}
	debts, err := s.reader.ActiveDebts(ctx)
	if err != nil {
		return core.MonthStatus{}, fmt.Errorf("load debts: %w", err)
	}

	status := core.MonthStatus{
		Month:       month,
		Obligations: make([]core.ObligationStatus, 0, len(fixedExpenses)+len(debts)),
		TotalAmount: decimal.Zero,
		TotalPaid:   decimal.Zero,
	}

	add := func(key core.RecurringKey, name string, amount decimal.Decimal, day int) error {
		due, err := core.ResolveDueDate(month, day)
		if err != nil {
			return err
		}
		o := core.ObligationStatus{
			Key:     key,
			Name:    name,
			Amount:  amount,
			DueDate: due,
			Due:     s.dueness.IsDue(month, day, now),
			Paid:    paid.Contains(key.SourceType, key.SourceID),
		}
		status.Obligations = append(status.Obligations, o)
		status.TotalAmount = status.TotalAmount.Add(amount)
		if o.Paid {
			status.TotalPaid = status.TotalPaid.Add(amount)
		}
		return nil
	}

	for _, fe := range fixedExpenses {
		key := core.RecurringKey{SourceType: core.SourceFixedExpense, SourceID: fe.ID}
		if err := add(key, fe.Name, fe.Amount, fe.DayOfMonth); err != nil {
			return core.MonthStatus{}, err
		}
	}
	for _, d := range debts {
		key := core.RecurringKey{SourceType: core.SourceDebtEMI, SourceID: d.ID}
		if err := add(key, d.Name+" EMI", d.EMIAmount, d.DayOfMonth); err != nil {
			return core.MonthStatus{}, err
		}
	}

	return status, nil
}
