package http

import (
	"time"

	"budget/internal/core"
	"budget/internal/services"
)

// Amounts cross the wire as decimal strings with two fractional digits.

type (
	ErrorResponse struct {
		Error string `json:"error"`
	}

	TransactionDTO struct {
		ID          string `json:"id"`
		Date        string `json:"date"`
		Description string `json:"description"`
		Amount      string `json:"amount"`
		SourceType  string `json:"source_type,omitempty"`
		SourceID    string `json:"source_id,omitempty"`
		SourceMonth string `json:"source_month,omitempty"`
		CreatedAt   string `json:"created_at"`
	}

	TransactionListResponse struct {
		Month        string           `json:"month"`
		Transactions []TransactionDTO `json:"transactions"`
		Total        string           `json:"total"`
	}

	CreateExpenseRequest struct {
		Amount      string `json:"amount"`
		Date        string `json:"date"` // YYYY-MM-DD, defaults to today
		Description string `json:"description"`
	}

	CreateFixedExpenseRequest struct {
		Name       string `json:"name"`
		Category   string `json:"category"`
		Amount     string `json:"amount"`
		DayOfMonth int    `json:"day_of_month"`
	}

	FixedExpenseDTO struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Category   string `json:"category,omitempty"`
		Amount     string `json:"amount"`
		DayOfMonth int    `json:"day_of_month"`
		IsActive   bool   `json:"is_active"`
	}

	CreateDebtRequest struct {
		Name         string `json:"name"`
		Type         string `json:"type"`
		Principal    string `json:"principal"`
		InterestRate string `json:"interest_rate"` // annual percentage
		TenureMonths int    `json:"tenure_months"`
		DayOfMonth   int    `json:"day_of_month"`
	}

	DebtDTO struct {
		ID              string `json:"id"`
		Name            string `json:"name"`
		Type            string `json:"type,omitempty"`
		Principal       string `json:"principal"`
		Remaining       string `json:"remaining"`
		InterestRate    string `json:"interest_rate"`
		EMIAmount       string `json:"emi_amount"`
		TenureMonths    int    `json:"tenure_months"`
		RemainingMonths int    `json:"remaining_months"`
		DayOfMonth      int    `json:"day_of_month"`
		IsActive        bool   `json:"is_active"`
	}

	PendingMonthsResponse struct {
		Months               []string `json:"months"`
		RequiresConfirmation bool     `json:"requires_confirmation"`
	}

	ProcessRecurringRequest struct {
		AllowExtendedCatchup bool `json:"allow_extended_catchup"`
	}

	RunResultDTO struct {
		Months              []string `json:"months"`
		Processed           []string `json:"processed"`
		Created             int      `json:"created"`
		PendingConfirmation bool     `json:"pending_confirmation"`
	}

	ObligationDTO struct {
		SourceType string `json:"source_type"`
		SourceID   string `json:"source_id"`
		Name       string `json:"name"`
		Amount     string `json:"amount"`
		DueDate    string `json:"due_date"`
		Due        bool   `json:"due"`
		Paid       bool   `json:"paid"`
	}

	MonthStatusDTO struct {
		Month       string          `json:"month"`
		Obligations []ObligationDTO `json:"obligations"`
		TotalAmount string          `json:"total_amount"`
		TotalPaid   string          `json:"total_paid"`
	}
)

func toTransactionDTO(t core.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:          t.ID,
		Date:        t.Date.Format(dateLayout),
		Description: t.Description,
		Amount:      core.FormatAmount(t.Amount),
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.SourceType != nil {
		dto.SourceType = string(*t.SourceType)
	}
	if t.SourceID != nil {
		dto.SourceID = *t.SourceID
	}
	if t.SourceMonth != nil {
		dto.SourceMonth = t.SourceMonth.String()
	}
	return dto
}

func toFixedExpenseDTO(f core.FixedExpense) FixedExpenseDTO {
	return FixedExpenseDTO{
		ID:         f.ID,
		Name:       f.Name,
		Category:   f.Category,
		Amount:     core.FormatAmount(f.Amount),
		DayOfMonth: f.DayOfMonth,
		IsActive:   f.IsActive,
	}
}

func toDebtDTO(d core.Debt) DebtDTO {
	return DebtDTO{
		ID:              d.ID,
		Name:            d.Name,
		Type:            d.Type,
		Principal:       core.FormatAmount(d.Principal),
		Remaining:       core.FormatAmount(d.Remaining),
		InterestRate:    d.InterestRate.String(),
		EMIAmount:       core.FormatAmount(d.EMIAmount),
		TenureMonths:    d.TenureMonths,
		RemainingMonths: d.RemainingMonths,
		DayOfMonth:      d.DayOfMonth,
		IsActive:        d.IsActive,
	}
}

func toRunResultDTO(r services.RunResult) RunResultDTO {
	return RunResultDTO{
		Months:              monthStrings(r.Months),
		Processed:           monthStrings(r.Processed),
		Created:             r.Created,
		PendingConfirmation: r.PendingConfirmation,
	}
}

func toMonthStatusDTO(s core.MonthStatus) MonthStatusDTO {
	dto := MonthStatusDTO{
		Month:       s.Month.String(),
		Obligations: make([]ObligationDTO, 0, len(s.Obligations)),
		TotalAmount: core.FormatAmount(s.TotalAmount),
		TotalPaid:   core.FormatAmount(s.TotalPaid),
	}
	for _, o := range s.Obligations {
		dto.Obligations = append(dto.Obligations, ObligationDTO{
			SourceType: string(o.Key.SourceType),
			SourceID:   o.Key.SourceID,
			Name:       o.Name,
			Amount:     core.FormatAmount(o.Amount),
			DueDate:    o.DueDate.Format(dateLayout),
			Due:        o.Due,
			Paid:       o.Paid,
		})
	}
	return dto
}

func monthStrings(months []core.MonthKey) []string {
	out := make([]string, 0, len(months))
	for _, m := range months {
		out = append(out, m.String())
	}
	return out
}
