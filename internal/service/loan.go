package service

import (
	"context"
	"fmt"

	"github.com/microfinlabs/microfin-server/internal/models"
	"github.com/microfinlabs/microfin-server/internal/repository"
	"go.uber.org/zap"
)

// ApplyForLoan creates a pending loan application for the client linked
// to the acting user.
func (s *DefaultService) ApplyForLoan(ctx context.Context, actorID string, req models.LoanApplyRequest) (*models.Loan, error) {
	user, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if user.ClientID == nil {
		return nil, errValidation("user is not linked to a client profile")
	}
	if !req.AmountRequested.IsPositive() {
		return nil, errValidation("requested amount must be positive")
	}
	if req.TenureMonths < 1 {
		return nil, errValidation("loan tenure must be at least one month")
	}

	var loan *models.Loan
	err = s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		product, err := tx.GetLoanProduct(ctx, user.TenantID, req.LoanProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return errNotFound("loan product")
		}
		if req.TenureMonths > product.MaxTenureMonths {
			return errValidation("loan tenure exceeds the product maximum of %d months", product.MaxTenureMonths)
		}

		loan = &models.Loan{
			TenantID:        user.TenantID,
			ClientID:        *user.ClientID,
			LoanProductID:   product.ID,
			AmountRequested: req.AmountRequested.Round(2),
			TenureMonths:    req.TenureMonths,
			Status:          models.LoanStatusPending,
			AppliedAt:       s.now().UTC(),
		}
		return tx.CreateLoan(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.LoanApplicationReceived(ctx, user.Email, loan.ID)
	s.logger.Info("loan application created",
		zap.String("loanId", loan.ID),
		zap.String("tenantId", loan.TenantID))
	return loan, nil
}

// ApproveLoan moves a pending loan to approved and assigns the approving
// officer.
func (s *DefaultService) ApproveLoan(ctx context.Context, actorID, loanID string) (*models.Loan, error) {
	return s.transition(ctx, actorID, loanID, models.LoanStatusApproved)
}

// RejectLoan moves a pending loan to the terminal rejected state.
func (s *DefaultService) RejectLoan(ctx context.Context, actorID, loanID string) (*models.Loan, error) {
	return s.transition(ctx, actorID, loanID, models.LoanStatusRejected)
}

// transition performs a plain status change. The loan row is locked for
// the duration of the transaction so concurrent transitions serialize.
func (s *DefaultService) transition(ctx context.Context, actorID, loanID string, next models.LoanStatus) (*models.Loan, error) {
	user, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var loan *models.Loan
	err = s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		loan, err = tx.GetLoanForUpdate(ctx, user.TenantID, loanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return errNotFound("loan")
		}
		if !loan.Status.CanTransitionTo(next) {
			return &ConflictError{
				Resource:     "loan",
				CurrentState: string(loan.Status),
				Message:      fmt.Sprintf("cannot move loan with status %q to %q", loan.Status, next),
			}
		}

		now := s.now().UTC()
		loan.Status = next
		if next == models.LoanStatusApproved {
			loan.ApprovedAt = &now
			loan.AssignedOfficerID = &user.ID
		}
		return tx.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.LoanStatusChanged(ctx, loan.ID, loan.Status)
	return loan, nil
}

// DisburseLoan releases an approved loan: the status change, the full
// repayment schedule, and the ledger posting (debit loans receivable,
// credit cash) commit as one unit. If any step fails nothing persists.
func (s *DefaultService) DisburseLoan(ctx context.Context, actorID, loanID string) (*models.Loan, error) {
	user, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var loan *models.Loan
	err = s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		loan, err = tx.GetLoanForUpdate(ctx, user.TenantID, loanID)
		if err != nil {
			return err
		}
		if loan == nil {
			return errNotFound("loan")
		}
		if !loan.Status.CanTransitionTo(models.LoanStatusDisbursed) {
			return &ConflictError{
				Resource:     "loan",
				CurrentState: string(loan.Status),
				Message:      fmt.Sprintf("cannot disburse loan with status %q", loan.Status),
			}
		}

		product, err := tx.GetLoanProduct(ctx, user.TenantID, loan.LoanProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return errNotFound("loan product")
		}

		now := s.now().UTC()
		loan.Status = models.LoanStatusDisbursed
		loan.DisbursedAt = &now

		schedule, err := buildSchedule(loan, product, now)
		if err != nil {
			return err
		}
		if err := tx.CreateScheduleEntries(ctx, schedule); err != nil {
			return err
		}

		_, err = s.postTransaction(ctx, tx, loan.TenantID,
			fmt.Sprintf("Loan disbursement for client %s", loan.ClientID),
			loansReceivableAccountCode, cashAccountCode, loan.AmountRequested)
		if err != nil {
			return err
		}

		return tx.UpdateLoan(ctx, loan)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.LoanStatusChanged(ctx, loan.ID, loan.Status)
	s.logger.Info("loan disbursed",
		zap.String("loanId", loan.ID),
		zap.String("amount", loan.AmountRequested.StringFixed(2)))
	return loan, nil
}

// GetLoan returns a loan scoped to the actor's tenant.
func (s *DefaultService) GetLoan(ctx context.Context, actorID, loanID string) (*models.Loan, error) {
	user, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	loan, err := s.repo.GetLoan(ctx, user.TenantID, loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, errNotFound("loan")
	}
	return loan, nil
}

// ListLoans returns every loan in the actor's tenant.
func (s *DefaultService) ListLoans(ctx context.Context, actorID string) ([]models.Loan, error) {
	user, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLoans(ctx, user.TenantID)
}

// GetLoanSchedule returns a loan's installments in due-date order.
func (s *DefaultService) GetLoanSchedule(ctx context.Context, actorID, loanID string) ([]models.RepaymentSchedule, error) {
	user, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	loan, err := s.repo.GetLoan(ctx, user.TenantID, loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, errNotFound("loan")
	}
	return s.repo.ListSchedule(ctx, user.TenantID, loan.ID)
}
