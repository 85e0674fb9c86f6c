package service

import (
	"context"
	"fmt"

	"github.com/microfinlabs/microfin-server/internal/models"
	"github.com/microfinlabs/microfin-server/internal/repository"
	"go.uber.org/zap"
)

// RecordRepayment records a client payment against a loan. The payment
// row, the ledger posting (debit cash, credit loans receivable), and the
// schedule status change commit as one unit. A payment referencing a
// schedule line marks it fully paid; partial balances are not tracked.
func (s *DefaultService) RecordRepayment(ctx context.Context, actorID string, req models.RecordRepaymentRequest) (*models.RepaymentTransaction, error) {
	user, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !req.AmountPaid.IsPositive() {
		return nil, errValidation("payment amount must be positive")
	}

	var txn *models.RepaymentTransaction
	paidOff := false

	err = s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		loan, err := tx.GetLoanForUpdate(ctx, user.TenantID, req.LoanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return errNotFound("loan")
		}
		if loan.Status != models.LoanStatusDisbursed {
			return &ConflictError{
				Resource:     "loan",
				CurrentState: string(loan.Status),
				Message:      fmt.Sprintf("cannot record a payment against a loan with status %q", loan.Status),
			}
		}

		var scheduleID *string
		if req.ScheduleID != "" {
			entry, err := tx.GetScheduleEntry(ctx, user.TenantID, req.ScheduleID)
			if err != nil {
				return err
			}
			if entry == nil {
				return errNotFound("schedule installment")
			}
			if entry.LoanID != loan.ID {
				return errValidation("schedule installment does not belong to this loan")
			}
			if entry.Status == models.RepaymentStatusPaid {
				return &ConflictError{
					Resource:     "schedule installment",
					CurrentState: string(entry.Status),
					Message:      "installment is already paid",
				}
			}
			scheduleID = &entry.ID
		}

		txn = &models.RepaymentTransaction{
			TenantID:         user.TenantID,
			LoanID:           loan.ID,
			ScheduleID:       scheduleID,
			AmountPaid:       req.AmountPaid.Round(2),
			TransactionDate:  s.now().UTC(),
			RecordedByUserID: user.ID,
		}
		if err := tx.CreateRepaymentTransaction(ctx, txn); err != nil {
			return err
		}

		_, err = s.postTransaction(ctx, tx, user.TenantID,
			fmt.Sprintf("Repayment for loan %s", loan.ID),
			cashAccountCode, loansReceivableAccountCode, txn.AmountPaid)
		if err != nil {
			return err
		}

		if scheduleID == nil {
			return nil
		}
		if err := tx.UpdateScheduleStatus(ctx, user.TenantID, *scheduleID, models.RepaymentStatusPaid); err != nil {
			return err
		}

		// Once every installment is settled, the loan is paid off.
		remaining, err := tx.CountUnpaidSchedule(ctx, user.TenantID, loan.ID)
		if err != nil {
			return err
		}
		if remaining == 0 && loan.Status.CanTransitionTo(models.LoanStatusPaidOff) {
			loan.Status = models.LoanStatusPaidOff
			if err := tx.UpdateLoan(ctx, loan); err != nil {
				return err
			}
			paidOff = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if paidOff {
		s.notifier.LoanStatusChanged(ctx, req.LoanID, models.LoanStatusPaidOff)
	}
	s.logger.Info("repayment recorded",
		zap.String("loanId", req.LoanID),
		zap.String("amount", txn.AmountPaid.StringFixed(2)))
	return txn, nil
}

// ApplyLatePenalties flags pending installments past their due date as
// late. When the loan product defines a flat penalty, each newly late
// installment posts the penalty to the ledger (debit loans receivable,
// credit penalty revenue); installment amounts themselves never change.
// Intended to be driven by an external periodic trigger.
func (s *DefaultService) ApplyLatePenalties(ctx context.Context, actorID, loanID string) (int, error) {
	user, err := s.actor(ctx, actorID)
	if err != nil {
		return 0, err
	}

	flagged := 0
	err = s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		// Lock the loan row so the sweep serializes against concurrent
		// repayments and other sweeps of the same loan.
		loan, err := tx.GetLoanForUpdate(ctx, user.TenantID, loanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return errNotFound("loan")
		}
		product, err := tx.GetLoanProduct(ctx, user.TenantID, loan.LoanProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return errNotFound("loan product")
		}

		assessPenalty := product.PenaltyType != nil &&
			*product.PenaltyType == models.PenaltyTypeFlat &&
			product.PenaltyValue.IsPositive()

		overdue, err := tx.ListOverdueSchedule(ctx, user.TenantID, loan.ID, s.now().UTC())
		if err != nil {
			return err
		}

		for _, installment := range overdue {
			marked, err := tx.MarkScheduleLate(ctx, user.TenantID, installment.ID)
			if err != nil {
				return err
			}
			// A payment that landed between the snapshot read and this
			// update settles the line; no penalty applies.
			if !marked {
				continue
			}
			if assessPenalty {
				_, err := s.postTransaction(ctx, tx, user.TenantID,
					fmt.Sprintf("Late penalty for installment %s", installment.ID),
					loansReceivableAccountCode, penaltyRevenueAccountCode, product.PenaltyValue)
				if err != nil {
					return err
				}
			}
			flagged++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if flagged > 0 {
		s.logger.Info("late installments flagged",
			zap.String("loanId", loanID),
			zap.Int("count", flagged))
	}
	return flagged, nil
}
