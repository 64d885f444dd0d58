package http

import (
	"bytes"
	"fmt"
	"net/http"

	"budget/internal/core"
	"budget/internal/export"
	applog "budget/internal/log"
	"budget/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePendingMonths(w http.ResponseWriter, r *http.Request) {
	months, err := s.recurring.MonthsToProcess(r.Context(), s.clock())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PendingMonthsResponse{
		Months:               monthStrings(months),
		RequiresConfirmation: len(months) > s.recurring.MaxCatchupMonths(),
	})
}

// handleProcessRecurring runs the engine synchronously. A backlog over the
// catch-up limit without confirmation answers 409 and writes nothing.
func (s *Server) handleProcessRecurring(w http.ResponseWriter, r *http.Request) {
	var req ProcessRecurringRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	result, err := s.recurring.Run(r.Context(), s.clock(), services.ProcessOptions{
		AllowExtendedCatchup: req.AllowExtendedCatchup,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if result.PendingConfirmation {
		writeJSON(w, http.StatusConflict, toRunResultDTO(result))
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Recurring run requested",
		"months", len(result.Processed),
		"created", result.Created,
		"allow_extended_catchup", req.AllowExtendedCatchup)
	writeJSON(w, http.StatusOK, toRunResultDTO(result))
}

func (s *Server) handleMonthStatus(w http.ResponseWriter, r *http.Request) {
	now := s.clock()
	month, err := ParseMonthParam(r.URL.Query(), now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status, err := s.status.MonthStatus(r.Context(), month, now)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthStatusDTO(status))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	month, txs, ok := s.monthTransactions(w, r)
	if !ok {
		return
	}

	resp := TransactionListResponse{
		Month:        month.String(),
		Transactions: make([]TransactionDTO, 0, len(txs)),
	}
	total := decimal.Zero
	for _, t := range txs {
		resp.Transactions = append(resp.Transactions, toTransactionDTO(t))
		total = total.Add(t.Amount)
	}
	resp.Total = core.FormatAmount(total)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	month, txs, ok := s.monthTransactions(w, r)
	if !ok {
		return
	}

	// Render fully before writing so a failure can still become a 500.
	var buf bytes.Buffer
	if err := export.WriteMonthXLSX(&buf, month, txs); err != nil {
		writeError(w, r, fmt.Errorf("render xlsx: %w", err))
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentExport).InfoContext(r.Context(), "Transactions exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldMonth, month,
		"count", len(txs))
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transactions-%s.xlsx"`, month))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) monthTransactions(w http.ResponseWriter, r *http.Request) (core.MonthKey, []core.Transaction, bool) {
	month, err := ParseMonthParam(r.URL.Query(), s.clock())
	if err != nil {
		writeError(w, r, err)
		return "", nil, false
	}
	txs, err := s.expenses.Transactions(r.Context(), month)
	if err != nil {
		writeError(w, r, err)
		return "", nil, false
	}
	return month, txs, true
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req CreateExpenseRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.toManualExpense(s.clock())
	if err != nil {
		writeError(w, r, err)
		return
	}

	tx, err := s.expenses.CreateExpense(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogTransactionRecorded(r.Context(),
		applog.ComponentExpense, tx.ID, tx.Description, core.FormatAmount(tx.Amount), "manual", "")
	writeJSON(w, http.StatusCreated, toTransactionDTO(tx))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.expenses.DeleteExpense(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).WithComponent(applog.ComponentExpense).InfoContext(r.Context(), "Expense deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldTransactionID, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCreateFixedExpense(w http.ResponseWriter, r *http.Request) {
	var req CreateFixedExpenseRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := req.toFixedExpense()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.catalog.CreateFixedExpense(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFixedExpenseDTO(created))
}

func (s *Server) handleCreateDebt(w http.ResponseWriter, r *http.Request) {
	var req CreateDebtRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := req.toDebt()
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.catalog.CreateDebt(r.Context(), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDebtDTO(created))
}
