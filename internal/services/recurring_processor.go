package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"budget/internal/core"
	"budget/internal/ledger"
	applog "budget/internal/log"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxCatchupMonths is the backlog size above which a run needs
	// explicit confirmation.
	DefaultMaxCatchupMonths = 6
	// DefaultMaxMonthIterations bounds month generation against a corrupt or
	// cyclic month sequence.
	DefaultMaxMonthIterations = 24
	DefaultConcurrency        = 4
)

type (
	// TransactionPublisher is notified after a transaction is committed.
	TransactionPublisher interface {
		PublishTransactionRecorded(ctx context.Context, t core.Transaction) error
	}

	// ErrorReporter receives failures that are logged and swallowed.
	ErrorReporter interface {
		CaptureError(ctx context.Context, err error, tags map[string]string)
	}

	ProcessOptions struct {
		// AllowExtendedCatchup lets a run process a backlog larger than the
		// configured catch-up limit.
		AllowExtendedCatchup bool
	}

	// RunResult summarizes one orchestration run.
	RunResult struct {
		Months              []core.MonthKey // months that were pending
		Processed           []core.MonthKey // months processed to completion
		Created             int
		PendingConfirmation bool
	}

	ProcessorOption func(*RecurringProcessor)
)

// RecurringProcessor materializes fixed expenses and debt installments as
// dated transactions, one per obligation per month.
type RecurringProcessor struct {
	store              ledger.Store
	dueness            DuenessChecker
	publisher          TransactionPublisher
	reporter           ErrorReporter
	maxCatchupMonths   int
	maxMonthIterations int
	concurrency        int
}

func WithLimits(maxCatchupMonths, maxMonthIterations int) ProcessorOption {
	return func(p *RecurringProcessor) {
		if maxCatchupMonths > 0 {
			p.maxCatchupMonths = maxCatchupMonths
		}
		if maxMonthIterations > 0 {
			p.maxMonthIterations = maxMonthIterations
		}
	}
}

func WithConcurrency(n int) ProcessorOption {
	return func(p *RecurringProcessor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithDueness(checker DuenessChecker) ProcessorOption {
	return func(p *RecurringProcessor) {
		if checker != nil {
			p.dueness = checker
		}
	}
}

func WithPublisher(publisher TransactionPublisher) ProcessorOption {
	return func(p *RecurringProcessor) { p.publisher = publisher }
}

func WithErrorReporter(reporter ErrorReporter) ProcessorOption {
	return func(p *RecurringProcessor) { p.reporter = reporter }
}

// NewRecurringProcessor creates a new recurring transaction processor
func NewRecurringProcessor(store ledger.Store, opts ...ProcessorOption) *RecurringProcessor {
	p := &RecurringProcessor{
		store:              store,
		dueness:            MonthlyChecker{},
		maxCatchupMonths:   DefaultMaxCatchupMonths,
		maxMonthIterations: DefaultMaxMonthIterations,
		concurrency:        DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// MaxCatchupMonths is the backlog size above which a run needs confirmation.
func (p *RecurringProcessor) MaxCatchupMonths() int {
	return p.maxCatchupMonths
}

// MonthsToProcess returns the months that still need processing, oldest
// first, always ending with (or capped before) now's month.
func (p *RecurringProcessor) MonthsToProcess(ctx context.Context, now time.Time) ([]core.MonthKey, error) {
	current := core.MonthKeyOf(now)

	last, ok, err := p.store.LastProcessedRecurringMonth(ctx)
	if err != nil {
		return nil, fmt.Errorf("get last processed month: %w", err)
	}
	// First run: never backfill months before the user existed.
	if !ok {
		return []core.MonthKey{current}, nil
	}
	if err := last.Validate(); err != nil {
		slog.WarnContext(ctx, "Ignoring malformed last processed month",
			"last_month", last,
			"error", err)
		return []core.MonthKey{current}, nil
	}
	// Caught up, or the clock moved backwards.
	if !last.Before(current) {
		return []core.MonthKey{current}, nil
	}

	months := make([]core.MonthKey, 0, 4)
	month := last
	for i := 0; i < p.maxMonthIterations; i++ {
		month, err = month.Next()
		if err != nil {
			return months, nil
		}
		months = append(months, month)
		if month == current {
			return months, nil
		}
	}

	slog.WarnContext(ctx, "Month iteration cap reached",
		"last_month", last,
		"current_month", current,
		"cap", p.maxMonthIterations)

	return months, nil
}

// ProcessMonth creates the transactions due in month that have not been
// recorded yet and returns how many were created. Items are processed
// concurrently and independently: a failing item does not stop its siblings,
// and the first failure is returned alongside the count.
func (p *RecurringProcessor) ProcessMonth(ctx context.Context, month core.MonthKey, now time.Time) (int, error) {
	if err := month.Validate(); err != nil {
		return 0, err
	}

	keys, err := p.store.ProcessedRecurringKeys(ctx, month)
	if err != nil {
		return 0, fmt.Errorf("load processed keys for %s: %w", month, err)
	}
	processed := NewDedupIndex(keys)

	var (
		fixedExpenses []core.FixedExpense
		debts         []core.Debt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		fixedExpenses, err = p.store.ActiveFixedExpenses(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		debts, err = p.store.ActiveDebts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("load active obligations: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring obligations",
		applog.FieldMonth, month,
		"fixed_expenses", len(fixedExpenses),
		"debts", len(debts),
		"already_processed", processed.Len(),
		"processing_date", now.Format("2006-01-02"))

	var created atomic.Int64
	work := new(errgroup.Group)
	work.SetLimit(p.concurrency)

	for _, fe := range fixedExpenses {
		if !p.dueness.IsDue(month, fe.DayOfMonth, now) {
			continue
		}
		if processed.Contains(core.SourceFixedExpense, fe.ID) {
			continue
		}
		fe := fe
		work.Go(func() error {
			ok, err := p.processFixedExpense(ctx, month, fe)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to create recurring fixed expense",
					applog.FieldMonth, month,
					applog.FieldSourceID, fe.ID,
					"name", fe.Name,
					"error", err)
				return err
			}
			if ok {
				created.Add(1)
			}
			return nil
		})
	}

	for _, debt := range debts {
		if !p.dueness.IsDue(month, debt.DayOfMonth, now) {
			continue
		}
		if processed.Contains(core.SourceDebtEMI, debt.ID) {
			continue
		}
		debt := debt
		work.Go(func() error {
			ok, err := p.processDebtEMI(ctx, month, debt)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to apply debt EMI",
					applog.FieldMonth, month,
					applog.FieldSourceID, debt.ID,
					"name", debt.Name,
					"error", err)
				return err
			}
			if ok {
				created.Add(1)
			}
			return nil
		})
	}

	err = work.Wait()
	count := int(created.Load())

	slog.InfoContext(ctx, "Recurring month processing complete",
		applog.FieldMonth, month,
		"created", count,
		"failed", err != nil)

	return count, err
}

// processFixedExpense returns false when the storage backstop reports the
// obligation as already recorded.
func (p *RecurringProcessor) processFixedExpense(ctx context.Context, month core.MonthKey, fe core.FixedExpense) (bool, error) {
	date, err := core.ResolveDueDate(month, fe.DayOfMonth)
	if err != nil {
		return false, err
	}

	tx, err := p.store.InsertRecurringExpense(ctx, core.RecurringExpense{
		Amount:      fe.Amount,
		Date:        date,
		Description: fe.Name,
		SourceType:  core.SourceFixedExpense,
		SourceID:    fe.ID,
		SourceMonth: month,
	})
	if errors.Is(err, core.ErrDuplicateRecurring) {
		slog.WarnContext(ctx, "Recurring transaction already recorded, skipping",
			applog.FieldMonth, month,
			applog.FieldSourceType, core.SourceFixedExpense,
			applog.FieldSourceID, fe.ID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert fixed expense %s: %w", fe.ID, err)
	}

	slog.InfoContext(ctx, "Created transaction from fixed expense",
		applog.FieldMonth, month,
		applog.FieldSourceID, fe.ID,
		"description", fe.Name,
		"amount", core.FormatAmount(fe.Amount),
		"date", date.Format("2006-01-02"))

	p.publish(ctx, tx)
	return true, nil
}

// processDebtEMI records the installment and advances the amortization state
// in one atomic unit, so a debt never shows a paid EMI without its balance
// decreasing or the other way round.
func (p *RecurringProcessor) processDebtEMI(ctx context.Context, month core.MonthKey, debt core.Debt) (bool, error) {
	date, err := core.ResolveDueDate(month, debt.DayOfMonth)
	if err != nil {
		return false, err
	}

	step := core.ApplyEMI(debt)

	var tx core.Transaction
	err = p.store.WithTx(ctx, func(w ledger.Writer) error {
		var err error
		tx, err = w.InsertRecurringExpense(ctx, core.RecurringExpense{
			Amount:      step.Payment,
			Date:        date,
			Description: debt.Name + " EMI",
			SourceType:  core.SourceDebtEMI,
			SourceID:    debt.ID,
			SourceMonth: month,
		})
		if err != nil {
			return err
		}
		return w.ApplyEMIPayment(ctx, debt.ID, step.NewRemaining, step.NewRemainingMonths)
	})
	if errors.Is(err, core.ErrDuplicateRecurring) {
		slog.WarnContext(ctx, "Recurring transaction already recorded, skipping",
			applog.FieldMonth, month,
			applog.FieldSourceType, core.SourceDebtEMI,
			applog.FieldSourceID, debt.ID)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("apply emi for debt %s: %w", debt.ID, err)
	}

	slog.InfoContext(ctx, "Applied debt EMI",
		applog.FieldMonth, month,
		applog.FieldSourceID, debt.ID,
		"emi_amount", core.FormatAmount(debt.EMIAmount),
		"payment", core.FormatAmount(step.Payment),
		"interest", core.FormatAmount(step.MonthlyInterest),
		"principal_paid", core.FormatAmount(step.PrincipalPaid),
		"remaining", core.FormatAmount(step.NewRemaining),
		"remaining_months", step.NewRemainingMonths,
		"closed", step.Closed)

	p.publish(ctx, tx)
	return true, nil
}

func (p *RecurringProcessor) publish(ctx context.Context, tx core.Transaction) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishTransactionRecorded(ctx, tx); err != nil {
		// The transaction is committed; the export will miss this event.
		slog.WarnContext(ctx, "Failed to publish transaction event",
			applog.FieldOperation, applog.OpPublish,
			applog.FieldTransactionID, tx.ID,
			applog.FieldError, err)
	}
}

// Run determines the pending months, applies the catch-up gate and processes
// months strictly oldest first, since each month's EMI reads the balance left
// by the previous one. It stops at the first month that fails.
func (p *RecurringProcessor) Run(ctx context.Context, now time.Time, opts ProcessOptions) (RunResult, error) {
	months, err := p.MonthsToProcess(ctx, now)
	if err != nil {
		return RunResult{}, err
	}

	result := RunResult{Months: months}
	if len(months) > p.maxCatchupMonths && !opts.AllowExtendedCatchup {
		slog.WarnContext(ctx, "Recurring catch-up needs confirmation",
			"pending_months", len(months),
			"limit", p.maxCatchupMonths,
			"from", months[0],
			"to", months[len(months)-1])
		result.PendingConfirmation = true
		return result, nil
	}

	for _, month := range months {
		n, err := p.ProcessMonth(ctx, month, now)
		result.Created += n
		if err != nil {
			return result, fmt.Errorf("process month %s: %w", month, err)
		}
		result.Processed = append(result.Processed, month)
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"months", len(result.Processed),
		"created", result.Created)

	return result, nil
}

// ProcessRecurringTransactions is the startup entry point. It returns false
// only when the backlog needs user confirmation; re-invoke with
// AllowExtendedCatchup set once confirmed. Processing failures are logged and
// reported but never block the caller: nothing is recorded unless committed,
// so the next run retries whatever is still missing.
func (p *RecurringProcessor) ProcessRecurringTransactions(ctx context.Context, now time.Time, opts ProcessOptions) bool {
	result, err := p.Run(ctx, now, opts)
	if err != nil {
		applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, "Recurring processing failed", err,
			applog.ComponentRecurring, applog.OpProcess, applog.LogFields{
				"created":          result.Created,
				"processed_months": len(result.Processed),
			})
		if p.reporter != nil {
			p.reporter.CaptureError(ctx, err, map[string]string{
				"component":  applog.ComponentRecurring,
				"retryable":  fmt.Sprint(core.IsRetryable(err)),
				"months_due": fmt.Sprint(len(result.Months)),
			})
		}
		return true
	}
	return !result.PendingConfirmation
}
