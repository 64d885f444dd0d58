package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateEMI(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		rate      string
		tenure    int
		want      string
	}{
		{"twelve percent one year", "120000", "12", 12, "10661.85"},
		{"zero rate", "1200", "0", 12, "100.00"},
		{"zero rate uneven", "1000", "0", 3, "333.33"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateEMI(dec(tt.principal), dec(tt.rate), tt.tenure)
			if err != nil {
				t.Fatalf("CalculateEMI() error = %v", err)
			}
			if !got.Equal(dec(tt.want)) {
				t.Errorf("CalculateEMI() = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := CalculateEMI(dec("1000"), dec("5"), 0); err == nil {
		t.Error("expected error for zero tenure")
	}
	if _, err := CalculateEMI(decimal.Zero, dec("5"), 12); err == nil {
		t.Error("expected error for zero principal")
	}
}

func TestApplyEMI(t *testing.T) {
	d, err := NewDebt("Car loan", "auto", dec("120000"), dec("12"), 12, 5)
	if err != nil {
		t.Fatalf("NewDebt() error = %v", err)
	}

	step := ApplyEMI(d)
	if !step.Payment.Equal(d.EMIAmount) {
		t.Errorf("Payment = %s, want %s", step.Payment, d.EMIAmount)
	}
	if !step.MonthlyInterest.Equal(dec("1200")) {
		t.Errorf("MonthlyInterest = %s, want 1200", step.MonthlyInterest)
	}
	wantRemaining := d.Remaining.Sub(d.EMIAmount.Sub(dec("1200")))
	if !step.NewRemaining.Equal(wantRemaining) {
		t.Errorf("NewRemaining = %s, want %s", step.NewRemaining, wantRemaining)
	}
	if step.NewRemainingMonths != 11 {
		t.Errorf("NewRemainingMonths = %d, want 11", step.NewRemainingMonths)
	}
	if step.Closed {
		t.Error("debt should stay open after first installment")
	}
}

func TestApplyEMIClampsAtZero(t *testing.T) {
	d := Debt{
		Remaining:       dec("50"),
		InterestRate:    dec("12"),
		EMIAmount:       dec("100"),
		RemainingMonths: 0,
	}
	step := ApplyEMI(d)
	if !step.Payment.Equal(dec("50.50")) {
		t.Errorf("Payment = %s, want 50.50", step.Payment)
	}
	if !step.NewRemaining.IsZero() {
		t.Errorf("NewRemaining = %s, want 0", step.NewRemaining)
	}
	if step.NewRemainingMonths != 0 {
		t.Errorf("NewRemainingMonths = %d, want 0", step.NewRemainingMonths)
	}
	if !step.Closed {
		t.Error("expected debt to close")
	}
}

func TestFullAmortizationClosesDebt(t *testing.T) {
	d, err := NewDebt("Loan", "personal", dec("120000"), dec("12"), 12, 1)
	if err != nil {
		t.Fatalf("NewDebt() error = %v", err)
	}
	for i := 0; i < 12 && d.IsActive; i++ {
		step := ApplyEMI(d)
		if step.NewRemaining.GreaterThan(d.Remaining) {
			t.Fatalf("installment %d increased the balance", i+1)
		}
		d.Remaining = step.NewRemaining
		d.RemainingMonths = step.NewRemainingMonths
		d.IsActive = !step.Closed
	}
	if !d.Remaining.IsZero() {
		t.Errorf("remaining after tenure = %s, want 0", d.Remaining)
	}
	if d.IsActive {
		t.Error("debt should close on its last scheduled installment")
	}
	if d.RemainingMonths != 0 {
		t.Errorf("RemainingMonths = %d, want 0", d.RemainingMonths)
	}
}
