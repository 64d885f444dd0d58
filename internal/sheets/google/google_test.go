package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"budget/internal/core"
	ports "budget/internal/sheets"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return NewWithService(svc, "sheet-id", "Transactions")
}

func testTransaction() core.Transaction {
	st, id, month := core.SourceFixedExpense, "fe-1", core.MonthKey("2024-03")
	return core.Transaction{
		ID:          "tx-1",
		Date:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Description: "Internet",
		Amount:      decimal.RequireFromString("29.99"),
		SourceType:  &st,
		SourceID:    &id,
		SourceMonth: &month,
	}
}

func TestClient_Append(t *testing.T) {
	var (
		gotPath  string
		gotQuery string
		gotBody  gsheet.ValueRange
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"'2024 Transactions'!A7:F7"}}`))
	})

	ref, err := c.Append(context.Background(), testTransaction())
	require.NoError(t, err)
	assert.Equal(t, "'2024 Transactions'!A7:F7", ref)

	assert.True(t, strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-id/values/"), gotPath)
	assert.True(t, strings.HasSuffix(gotPath, ":append"), gotPath)
	assert.Contains(t, gotPath, "2024 Transactions!A:F")
	assert.Contains(t, gotQuery, "valueInputOption=USER_ENTERED")
	assert.Contains(t, gotQuery, "insertDataOption=INSERT_ROWS")

	require.Len(t, gotBody.Values, 1)
	assert.Equal(t, []any{"2024-03-15", "Internet", "29.99", "fixed_expense", "2024-03", "tx-1"}, gotBody.Values[0])
}

func TestClient_AppendClassifiesErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantRejected bool
	}{
		{"missing sheet", http.StatusBadRequest, true},
		{"no access", http.StatusForbidden, true},
		{"server error", http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"nope"}}`, tt.status)
			})

			_, err := c.Append(context.Background(), testTransaction())
			require.Error(t, err)
			assert.Equal(t, tt.wantRejected, errors.Is(err, ports.ErrRejected), "err = %v", err)
		})
	}
}

func TestClient_AppendWithoutService(t *testing.T) {
	_, err := (&Client{}).Append(context.Background(), testTransaction())
	assert.Error(t, err)
}

func TestClient_AppendRejectsMissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	tx := testTransaction()
	tx.ID = ""

	_, err := c.Append(context.Background(), tx)
	assert.ErrorIs(t, err, ports.ErrRejected)
}

func TestNew_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Options{CredentialsJSON: []byte(`{}`)})
	assert.Error(t, err)

	_, err = New(ctx, Options{SpreadsheetID: "id"})
	assert.Error(t, err)

	_, err = New(ctx, Options{SpreadsheetID: "id", CredentialsJSON: []byte(`invalid-json`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse service account credentials")
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Transactions", 2024, "2024 Transactions"},
		{"  Transactions ", 2025, "2025 Transactions"},
		{"2023 Transactions", 2024, "2023 Transactions"},
		{"", 2024, ""},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}
