package services

import (
	"testing"
	"time"

	"budget/internal/core"
)

func TestMonthlyChecker_IsDue(t *testing.T) {
	checker := MonthlyChecker{}
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		month      core.MonthKey
		dayOfMonth int
		want       bool
	}{
		{
			name:       "current month - day not reached",
			month:      "2024-03",
			dayOfMonth: 15,
			want:       false,
		},
		{
			name:       "current month - due today",
			month:      "2024-03",
			dayOfMonth: 10,
			want:       true,
		},
		{
			name:       "current month - day passed",
			month:      "2024-03",
			dayOfMonth: 1,
			want:       true,
		},
		{
			name:       "past month - late day still due",
			month:      "2024-02",
			dayOfMonth: 31,
			want:       true,
		},
		{
			name:       "past year",
			month:      "2023-12",
			dayOfMonth: 28,
			want:       true,
		},
		{
			name:       "future month - never due",
			month:      "2024-04",
			dayOfMonth: 1,
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checker.IsDue(tt.month, tt.dayOfMonth, now)
			if got != tt.want {
				t.Errorf("MonthlyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMonthlyChecker_ClampsToMonthEnd(t *testing.T) {
	checker := MonthlyChecker{}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"leap february last day", time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), true},
		{"leap february day before", time.Date(2024, 2, 28, 8, 0, 0, 0, time.UTC), false},
		{"common february last day", time.Date(2023, 2, 28, 8, 0, 0, 0, time.UTC), true},
		{"april 30th", time.Date(2024, 4, 30, 8, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := checker.IsDue(core.MonthKeyOf(tt.now), 31, tt.now)
			if got != tt.want {
				t.Errorf("MonthlyChecker.IsDue() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDedupIndex(t *testing.T) {
	idx := NewDedupIndex([]core.RecurringKey{
		{SourceType: core.SourceFixedExpense, SourceID: "a"},
		{SourceType: core.SourceDebtEMI, SourceID: "b"},
		{SourceType: core.SourceDebtEMI, SourceID: "b"},
	})

	if idx.Len() != 2 {
		t.Errorf("Len() = %d, want 2", idx.Len())
	}
	if !idx.Contains(core.SourceFixedExpense, "a") {
		t.Error("expected fixed_expense:a")
	}
	if idx.Contains(core.SourceDebtEMI, "a") {
		t.Error("source type is part of the key")
	}
	if !idx.Contains(core.SourceDebtEMI, "b") {
		t.Error("expected debt_emi:b")
	}
	if NewDedupIndex(nil).Contains(core.SourceFixedExpense, "a") {
		t.Error("empty index should contain nothing")
	}
}
