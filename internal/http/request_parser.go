package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"budget/internal/core"

	"github.com/shopspring/decimal"
)

const (
	dateLayout   = "2006-01-02"
	maxBodyBytes = 1 << 20
)

// ParseMonthParam reads the "month" query parameter, defaulting to the month
// of now when it is absent.
func ParseMonthParam(query url.Values, now time.Time) (core.MonthKey, error) {
	v := strings.TrimSpace(query.Get("month"))
	if v == "" {
		return core.MonthKeyOf(now), nil
	}
	return core.ParseMonthKey(v)
}

// DecodeJSON decodes a size-limited JSON body into dst. An empty body leaves
// dst untouched.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return &core.InvalidInputError{Field: "body", Value: "", Reason: err.Error()}
}

func (req CreateExpenseRequest) toManualExpense(now time.Time) (core.ManualExpense, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.ManualExpense{}, err
	}
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if v := strings.TrimSpace(req.Date); v != "" {
		date, err = parseDate(v)
		if err != nil {
			return core.ManualExpense{}, err
		}
	}
	e := core.ManualExpense{
		Amount:      amount,
		Date:        date,
		Description: sanitizeInput(req.Description),
	}
	return e, e.Validate()
}

func (req CreateFixedExpenseRequest) toFixedExpense() (core.FixedExpense, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.FixedExpense{}, err
	}
	f := core.FixedExpense{
		Name:       sanitizeInput(req.Name),
		Category:   sanitizeInput(req.Category),
		Amount:     amount,
		DayOfMonth: req.DayOfMonth,
		IsActive:   true,
	}
	return f, f.Validate()
}

func (req CreateDebtRequest) toDebt() (core.Debt, error) {
	principal, err := core.ParseAmount(req.Principal)
	if err != nil {
		return core.Debt{}, err
	}
	rate := decimal.Zero
	if v := strings.TrimSpace(req.InterestRate); v != "" {
		rate, err = decimal.NewFromString(strings.ReplaceAll(v, ",", "."))
		if err != nil {
			return core.Debt{}, &core.InvalidInputError{Field: "interest_rate", Value: v, Reason: "malformed decimal"}
		}
	}
	return core.NewDebt(sanitizeInput(req.Name), sanitizeInput(req.Type), principal, rate, req.TenureMonths, req.DayOfMonth)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &core.InvalidInputError{Field: "date", Value: s, Reason: "expected YYYY-MM-DD"}
	}
	return t, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
