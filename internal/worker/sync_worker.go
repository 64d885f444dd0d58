package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/sheets"
)

const (
	recentExportsSize = 10000
	recentExportsTTL  = 24 * time.Hour
)

// TransactionGetter re-reads a transaction so deleted ones are not exported.
type TransactionGetter interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
}

type ErrorReporter interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
}

// SyncWorker appends recorded transactions to the spreadsheet export.
type SyncWorker struct {
	ledger   TransactionGetter
	sheets   sheets.TransactionWriter
	reporter ErrorReporter
	recent   *recentExports
	log      *applog.StructuredLogger
}

// NewSyncWorker creates a worker. ledger may be nil, in which case the
// message payload is exported as is.
func NewSyncWorker(ledger TransactionGetter, writer sheets.TransactionWriter, reporter ErrorReporter) *SyncWorker {
	return &SyncWorker{
		ledger:   ledger,
		sheets:   writer,
		reporter: reporter,
		recent:   newRecentExports(recentExportsSize, recentExportsTTL),
		log:      applog.NewStructuredLogger(applog.New(applog.Config{Handler: slog.Default().Handler()})),
	}
}

// HandleTransactionRecorded exports one message. Returning an error wrapping
// amqp.ErrDrop discards the message; any other error requeues it.
func (w *SyncWorker) HandleTransactionRecorded(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	if w.recent.Seen(msg.ID) {
		slog.DebugContext(ctx, "Transaction already exported, skipping redelivery", "id", msg.ID)
		return nil
	}

	tx, err := w.resolve(ctx, msg)
	if err != nil {
		return err
	}

	ref, err := w.sheets.Append(ctx, tx)
	if errors.Is(err, sheets.ErrRejected) {
		w.report(ctx, err, msg.ID)
		return fmt.Errorf("append transaction %s: %w: %w", msg.ID, err, amqp.ErrDrop)
	}
	if err != nil {
		return fmt.Errorf("append transaction %s: %w", msg.ID, err)
	}

	w.recent.Add(msg.ID)

	var sourceType, sourceID string
	if key, ok := tx.RecurringKey(); ok {
		sourceType, sourceID = string(key.SourceType), key.SourceID
	}
	w.log.LogTransactionRecorded(ctx, applog.ComponentSheets, tx.ID, tx.Description, core.FormatAmount(tx.Amount), sourceType, sourceID)
	slog.DebugContext(ctx, "Transaction exported", "id", tx.ID, applog.FieldSheetsRef, ref)
	return nil
}

func (w *SyncWorker) resolve(ctx context.Context, msg *amqp.TransactionRecordedMessage) (core.Transaction, error) {
	if w.ledger == nil {
		tx, err := msg.Transaction()
		if err != nil {
			return core.Transaction{}, fmt.Errorf("decode transaction %s: %w: %w", msg.ID, err, amqp.ErrDrop)
		}
		return tx, nil
	}

	tx, err := w.ledger.GetTransaction(ctx, msg.ID)
	if core.IsNotFound(err) {
		slog.InfoContext(ctx, "Transaction deleted before export, skipping", "id", msg.ID)
		return core.Transaction{}, fmt.Errorf("transaction %s: %w: %w", msg.ID, err, amqp.ErrDrop)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", msg.ID, err)
	}
	return tx, nil
}

func (w *SyncWorker) report(ctx context.Context, err error, id string) {
	w.log.LogError(ctx, "Spreadsheet rejected transaction, dropping", err,
		applog.ComponentSheets, applog.OpAppend, applog.LogFields{applog.FieldTransactionID: id})
	if w.reporter != nil {
		w.reporter.CaptureError(ctx, err, map[string]string{
			"component":      applog.ComponentSheets,
			"transaction_id": id,
		})
	}
}
