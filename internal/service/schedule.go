package service

import (
	"time"

	"github.com/microfinlabs/microfin-server/internal/models"
	"github.com/shopspring/decimal"
)

var (
	hundred      = decimal.NewFromInt(100)
	monthsInYear = decimal.NewFromInt(12)
)

// buildSchedule computes a flat-interest repayment schedule for a loan:
// interest accrues once on the full principal for the whole tenure and
// the total repayment divides evenly across the monthly installments.
// Installment i falls due i calendar months after asOf.
//
// Per-installment figures are rounded down to two decimal places and
// the final installment absorbs the rounding drift. Rounding down keeps
// the drift non-negative, so the final components never underflow and
// the schedule sums to principal plus interest exactly.
func buildSchedule(loan *models.Loan, product *models.LoanProduct, asOf time.Time) ([]models.RepaymentSchedule, error) {
	if product == nil {
		return nil, errValidation("loan has no resolved product")
	}
	if loan.TenureMonths < 1 {
		return nil, errValidation("loan tenure must be at least one month")
	}

	principal := loan.AmountRequested.Round(2)
	tenure := decimal.NewFromInt(int64(loan.TenureMonths))

	totalInterest := principal.
		Mul(product.InterestRate.Div(hundred)).
		Mul(tenure).
		Div(monthsInYear).
		Round(2)

	monthlyPrincipal := principal.Div(tenure).RoundDown(2)
	monthlyInterest := totalInterest.Div(tenure).RoundDown(2)

	entries := make([]models.RepaymentSchedule, 0, loan.TenureMonths)
	remainingPrincipal := principal
	remainingInterest := totalInterest

	for i := 1; i <= loan.TenureMonths; i++ {
		principalDue := monthlyPrincipal
		interestDue := monthlyInterest
		if i == loan.TenureMonths {
			principalDue = remainingPrincipal
			interestDue = remainingInterest
		}
		remainingPrincipal = remainingPrincipal.Sub(principalDue)
		remainingInterest = remainingInterest.Sub(interestDue)

		entries = append(entries, models.RepaymentSchedule{
			TenantID:     loan.TenantID,
			LoanID:       loan.ID,
			DueDate:      asOf.AddDate(0, i, 0),
			AmountDue:    principalDue.Add(interestDue),
			PrincipalDue: principalDue,
			InterestDue:  interestDue,
			Status:       models.RepaymentStatusPending,
		})
	}

	return entries, nil
}
