package core

import (
	"github.com/shopspring/decimal"
)

var (
	hundred      = decimal.NewFromInt(100)
	monthsInYear = decimal.NewFromInt(12)
)

// EMIStep is the outcome of applying one monthly installment to a debt.
type EMIStep struct {
	// Payment is the amount charged this month: the EMI, or the settling
	// amount on the last installment.
	Payment            decimal.Decimal
	MonthlyInterest    decimal.Decimal
	PrincipalPaid      decimal.Decimal
	NewRemaining       decimal.Decimal
	NewRemainingMonths int
	Closed             bool
}

// MonthlyRate converts an annual percentage into a monthly fraction.
func MonthlyRate(annualPercent decimal.Decimal) decimal.Decimal {
	return annualPercent.Div(hundred).Div(monthsInYear)
}

// CalculateEMI returns the fixed monthly installment that amortizes principal
// over tenureMonths at the given annual percentage rate, rounded to cents.
//
//	EMI = P * r * (1+r)^n / ((1+r)^n - 1), r = rate/100/12
//
// A zero rate degenerates to P/n.
func CalculateEMI(principal, annualPercent decimal.Decimal, tenureMonths int) (decimal.Decimal, error) {
	if !principal.IsPositive() {
		return decimal.Zero, invalid("principal", principal.String(), "must be positive")
	}
	if annualPercent.IsNegative() {
		return decimal.Zero, invalid("interest_rate", annualPercent.String(), "must not be negative")
	}
	if tenureMonths <= 0 {
		return decimal.Zero, invalid("tenure_months", tenureMonths, "must be positive")
	}

	n := decimal.NewFromInt(int64(tenureMonths))
	r := MonthlyRate(annualPercent)
	if r.IsZero() {
		return principal.Div(n).Round(2), nil
	}

	factor := decimal.NewFromInt(1).Add(r).Pow(n)
	emi := principal.Mul(r).Mul(factor).Div(factor.Sub(decimal.NewFromInt(1)))
	return emi.Round(2), nil
}

// NewDebt builds an active debt with its installment derived from
// principal, rate and tenure.
func NewDebt(name, debtType string, principal, annualPercent decimal.Decimal, tenureMonths, dayOfMonth int) (Debt, error) {
	emi, err := CalculateEMI(principal, annualPercent, tenureMonths)
	if err != nil {
		return Debt{}, err
	}
	d := Debt{
		Name:            name,
		Type:            debtType,
		Principal:       principal,
		Remaining:       principal,
		InterestRate:    annualPercent,
		EMIAmount:       emi,
		TenureMonths:    tenureMonths,
		RemainingMonths: tenureMonths,
		DayOfMonth:      dayOfMonth,
		IsActive:        true,
	}
	if err := d.Validate(); err != nil {
		return Debt{}, err
	}
	return d, nil
}

// ApplyEMI computes the amortization state after one installment. It does
// not mutate d.
//
// The last scheduled installment, or any installment that would overpay,
// settles remaining plus interest instead of the EMI, so cent rounding never
// leaves a residue that keeps the debt open past its tenure.
func ApplyEMI(d Debt) EMIStep {
	interest := d.Remaining.Mul(MonthlyRate(d.InterestRate)).Round(2)
	payment := d.EMIAmount
	if settle := d.Remaining.Add(interest); d.RemainingMonths <= 1 || settle.LessThanOrEqual(payment) {
		payment = settle
	}
	principalPaid := payment.Sub(interest)

	remaining := d.Remaining.Sub(principalPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	months := d.RemainingMonths - 1
	if months < 0 {
		months = 0
	}

	return EMIStep{
		Payment:            payment,
		MonthlyInterest:    interest,
		PrincipalPaid:      principalPaid,
		NewRemaining:       remaining,
		NewRemainingMonths: months,
		Closed:             !remaining.IsPositive(),
	}
}
