package sheets

import (
	"context"
	"errors"

	"budget/internal/core"
)

// ErrRejected marks an append the sheet will never accept, such as a missing
// tab or revoked access. Retrying does not help.
var ErrRejected = errors.New("rejected by spreadsheet")

// Ports for outbound adapters.
type (
	TransactionWriter interface {
		// Append adds t as one row and returns the written range.
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}
)

// Row renders t in the export column order:
// Date, Description, Amount, Kind, Source month, Transaction ID.
func Row(t core.Transaction) []any {
	kind, month := "manual", ""
	if key, ok := t.RecurringKey(); ok {
		kind = string(key.SourceType)
		month = string(*t.SourceMonth)
	}
	return []any{
		t.Date.Format("2006-01-02"),
		t.Description,
		core.FormatAmount(t.Amount),
		kind,
		month,
		t.ID,
	}
}

// Header is the first row of an export sheet.
var Header = []any{"Date", "Description", "Amount", "Kind", "Source month", "Transaction ID"}
