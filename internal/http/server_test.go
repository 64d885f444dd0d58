package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, writesPerMinute int) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	srv := NewServer(":0", Deps{
		Recurring:       services.NewRecurringProcessor(store),
		Status:          services.NewRecurringStatusService(store),
		Expenses:        services.NewExpenseService(store, nil),
		Catalog:         store,
		Logger:          applog.New(applog.Config{Level: slog.LevelError, Output: io.Discard}),
		WritesPerMinute: writesPerMinute,
		Clock:           func() time.Time { return testNow },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rr := do(t, srv, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
}

func TestCreateAndListExpenses(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rr := do(t, srv, http.MethodPost, "/api/expenses", `{"amount":"12,50","date":"2024-03-10","description":"Groceries"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[TransactionDTO](t, rr)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "12.50", created.Amount)
	assert.Equal(t, "2024-03-10", created.Date)
	assert.Empty(t, created.SourceType)

	rr = do(t, srv, http.MethodPost, "/api/expenses", `{"amount":"7.5","description":"Coffee"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, "2024-03-15", decode[TransactionDTO](t, rr).Date, "date defaults to today")

	rr = do(t, srv, http.MethodGet, "/api/transactions?month=2024-03", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[TransactionListResponse](t, rr)
	assert.Equal(t, "2024-03", list.Month)
	assert.Len(t, list.Transactions, 2)
	assert.Equal(t, "20.00", list.Total)

	rr = do(t, srv, http.MethodGet, "/api/transactions?month=2024-02", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[TransactionListResponse](t, rr).Transactions)
}

func TestCreateExpense_Validation(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"malformed json", `{"amount":`, "body"},
		{"bad amount", `{"amount":"abc","description":"x"}`, "amount"},
		{"negative amount", `{"amount":"-3","description":"x"}`, "amount"},
		{"missing description", `{"amount":"3"}`, "description"},
		{"bad date", `{"amount":"3","description":"x","date":"15/03/2024"}`, "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/expenses", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, decode[ErrorResponse](t, rr).Error, tt.wantField)
		})
	}
}

func TestDeleteExpense(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rr := do(t, srv, http.MethodPost, "/api/expenses", `{"amount":"5","description":"Lunch"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[TransactionDTO](t, rr).ID

	rr = do(t, srv, http.MethodDelete, "/api/expenses/"+id, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = do(t, srv, http.MethodDelete, "/api/expenses/"+id, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSeedingEndpoints(t *testing.T) {
	srv, store := newTestServer(t, 0)

	rr := do(t, srv, http.MethodPost, "/api/fixed-expenses", `{"name":"Rent","category":"Home","amount":"800","day_of_month":1}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	fe := decode[FixedExpenseDTO](t, rr)
	assert.Equal(t, "800.00", fe.Amount)
	assert.True(t, fe.IsActive)

	rr = do(t, srv, http.MethodPost, "/api/fixed-expenses", `{"name":"Rent","amount":"800","day_of_month":32}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, srv, http.MethodPost, "/api/debts", `{"name":"Car loan","type":"auto","principal":"120000","interest_rate":"12","tenure_months":12,"day_of_month":5}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	debt := decode[DebtDTO](t, rr)
	assert.Equal(t, "10661.85", debt.EMIAmount)
	assert.Equal(t, "120000.00", debt.Remaining)
	assert.Equal(t, 12, debt.RemainingMonths)

	stored, err := store.GetDebt(context.Background(), debt.ID)
	require.NoError(t, err)
	assert.True(t, stored.EMIAmount.Equal(decimal.RequireFromString("10661.85")))

	rr = do(t, srv, http.MethodPost, "/api/debts", `{"name":"Bad","principal":"1000","interest_rate":"x","tenure_months":12,"day_of_month":5}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = do(t, srv, http.MethodPost, "/api/debts", `{"name":"Bad","principal":"1000","interest_rate":"5","tenure_months":0,"day_of_month":5}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestProcessRecurring(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rr := do(t, srv, http.MethodPost, "/api/fixed-expenses", `{"name":"Rent","amount":"800","day_of_month":1}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	rr = do(t, srv, http.MethodPost, "/api/fixed-expenses", `{"name":"Gym","amount":"40","day_of_month":20}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, srv, http.MethodPost, "/api/recurring/process", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	result := decode[RunResultDTO](t, rr)
	assert.Equal(t, []string{"2024-03"}, result.Processed)
	assert.Equal(t, 1, result.Created, "gym is not due until the 20th")

	rr = do(t, srv, http.MethodPost, "/api/recurring/process", `{}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decode[RunResultDTO](t, rr).Created)

	rr = do(t, srv, http.MethodGet, "/api/recurring/status?month=2024-03", "")
	require.Equal(t, http.StatusOK, rr.Code)
	status := decode[MonthStatusDTO](t, rr)
	require.Len(t, status.Obligations, 2)
	assert.Equal(t, "840.00", status.TotalAmount)
	assert.Equal(t, "800.00", status.TotalPaid)
	for _, o := range status.Obligations {
		assert.Equal(t, o.Name == "Rent", o.Paid, o.Name)
		assert.Equal(t, o.Name == "Rent", o.Due, o.Name)
	}

	rr = do(t, srv, http.MethodGet, "/api/transactions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[TransactionListResponse](t, rr)
	require.Len(t, list.Transactions, 1)
	assert.Equal(t, string(core.SourceFixedExpense), list.Transactions[0].SourceType)
	assert.Equal(t, "2024-03", list.Transactions[0].SourceMonth)
}

func TestProcessRecurring_ExtendedCatchupNeedsConfirmation(t *testing.T) {
	srv, store := newTestServer(t, 0)
	ctx := context.Background()

	_, err := store.CreateFixedExpense(ctx, core.FixedExpense{Name: "Rent", Amount: decimal.NewFromInt(800), DayOfMonth: 1, IsActive: true})
	require.NoError(t, err)
	_, err = store.InsertRecurringExpense(ctx, core.RecurringExpense{
		Amount: decimal.NewFromInt(1), Date: time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC), Description: "seed",
		SourceType: core.SourceFixedExpense, SourceID: "seed", SourceMonth: "2023-08",
	})
	require.NoError(t, err)

	rr := do(t, srv, http.MethodGet, "/api/recurring/pending", "")
	require.Equal(t, http.StatusOK, rr.Code)
	pending := decode[PendingMonthsResponse](t, rr)
	assert.Len(t, pending.Months, 7)
	assert.Equal(t, "2023-09", pending.Months[0])
	assert.True(t, pending.RequiresConfirmation)

	rr = do(t, srv, http.MethodPost, "/api/recurring/process", `{"allow_extended_catchup":false}`)
	require.Equal(t, http.StatusConflict, rr.Code)
	gated := decode[RunResultDTO](t, rr)
	assert.True(t, gated.PendingConfirmation)
	assert.Equal(t, 0, gated.Created)

	rr = do(t, srv, http.MethodPost, "/api/recurring/process", `{"allow_extended_catchup":true}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 7, decode[RunResultDTO](t, rr).Created)

	rr = do(t, srv, http.MethodGet, "/api/recurring/pending", "")
	require.Equal(t, http.StatusOK, rr.Code)
	pending = decode[PendingMonthsResponse](t, rr)
	assert.Equal(t, []string{"2024-03"}, pending.Months)
	assert.False(t, pending.RequiresConfirmation)
}

func TestInvalidMonthParam(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	for _, path := range []string{
		"/api/recurring/status?month=2024-13",
		"/api/transactions?month=march",
		"/api/transactions/export.xlsx?month=2024-3",
	} {
		rr := do(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, path)
	}
}

func TestExportTransactions(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rr := do(t, srv, http.MethodPost, "/api/expenses", `{"amount":"9.99","description":"Book"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = do(t, srv, http.MethodGet, "/api/transactions/export.xlsx?month=2024-03", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "transactions-2024-03.xlsx")
	assert.True(t, bytes.HasPrefix(rr.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestWriteRateLimit(t *testing.T) {
	srv, _ := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		rr := do(t, srv, http.MethodPost, "/api/expenses", `{"amount":"1","description":"x"}`)
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr := do(t, srv, http.MethodPost, "/api/expenses", `{"amount":"1","description":"x"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))

	rr = do(t, srv, http.MethodGet, "/api/transactions", "")
	assert.Equal(t, http.StatusOK, rr.Code, "reads are not limited")
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	req := httptest.NewRequest(http.MethodOptions, "/api/expenses", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsEchoedInLogs(t *testing.T) {
	var buf bytes.Buffer
	store := memory.New()
	srv := NewServer(":0", Deps{
		Expenses: services.NewExpenseService(store, nil),
		Logger:   applog.New(applog.Config{Level: slog.LevelInfo, JSON: true, Output: &buf}),
		Clock:    func() time.Time { return testNow },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set("X-Request-Id", "req-123")
	srv.Handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Contains(t, buf.String(), `"status_code":200`)
}

func TestDeleteExpense_LogsOperationWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	store := memory.New()
	srv := NewServer(":0", Deps{
		Expenses: services.NewExpenseService(store, nil),
		Logger:   applog.New(applog.Config{Level: slog.LevelInfo, JSON: true, Output: &buf}),
		Clock:    func() time.Time { return testNow },
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rr := do(t, srv, http.MethodPost, "/api/expenses", `{"amount":"5","description":"Lunch"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[TransactionDTO](t, rr).ID
	buf.Reset()

	req := httptest.NewRequest(http.MethodDelete, "/api/expenses/"+id, nil)
	req.Header.Set("X-Request-Id", "req-del")
	rr = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)

	var deleted map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "Expense deleted" {
			deleted = entry
		}
	}
	require.NotNil(t, deleted, buf.String())
	assert.Equal(t, applog.OpDelete, deleted[applog.FieldOperation])
	assert.Equal(t, applog.ComponentExpense, deleted[applog.FieldComponent])
	assert.Equal(t, "req-del", deleted[applog.FieldRequestID])
	assert.Equal(t, id, deleted[applog.FieldTransactionID])
}
