package service

import (
	"context"
	"errors"
	"testing"

	"github.com/microfinlabs/microfin-server/internal/models"
	"github.com/microfinlabs/microfin-server/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestApplyForLoanCreatesPendingLoan(t *testing.T) {
	f := newFixture(t)

	loan := f.applyLoan(t, 1000, 3)

	assert.Equal(t, models.LoanStatusPending, loan.Status)
	assert.Equal(t, f.tenantID, loan.TenantID)
	assert.Equal(t, f.clientID, loan.ClientID)
	assert.False(t, loan.AppliedAt.IsZero())
	assert.Nil(t, loan.ApprovedAt)

	// No schedule exists before disbursement
	schedule, err := f.repo.ListSchedule(f.ctx, f.tenantID, loan.ID)
	require.NoError(t, err)
	assert.Empty(t, schedule)
}

func TestApplyForLoanRequiresClientProfile(t *testing.T) {
	f := newFixture(t)

	// The admin user has no linked client profile
	_, err := f.svc.ApplyForLoan(f.ctx, f.adminID, models.LoanApplyRequest{
		LoanProductID:   f.productID,
		AmountRequested: decimal.NewFromInt(1000),
		TenureMonths:    3,
	})

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestApplyForLoanUnknownProduct(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ApplyForLoan(f.ctx, f.clientUserID, models.LoanApplyRequest{
		LoanProductID:   "no-such-product",
		AmountRequested: decimal.NewFromInt(1000),
		TenureMonths:    3,
	})

	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestApproveLoanIsMonotonic(t *testing.T) {
	f := newFixture(t)
	loan := f.applyLoan(t, 1000, 3)

	approved, err := f.svc.ApproveLoan(f.ctx, f.adminID, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusApproved, approved.Status)
	assert.NotNil(t, approved.ApprovedAt)
	require.NotNil(t, approved.AssignedOfficerID)
	assert.Equal(t, f.adminID, *approved.AssignedOfficerID)

	// A second approval conflicts instead of silently succeeding
	_, err = f.svc.ApproveLoan(f.ctx, f.adminID, loan.ID)
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, string(models.LoanStatusApproved), conflictErr.CurrentState)
}

func TestRejectLoanIsTerminal(t *testing.T) {
	f := newFixture(t)
	loan := f.applyLoan(t, 1000, 3)

	rejected, err := f.svc.RejectLoan(f.ctx, f.adminID, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusRejected, rejected.Status)

	_, err = f.svc.ApproveLoan(f.ctx, f.adminID, loan.ID)
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)

	_, err = f.svc.DisburseLoan(f.ctx, f.adminID, loan.ID)
	require.ErrorAs(t, err, &conflictErr)
}

func TestApproveUnknownLoan(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ApproveLoan(f.ctx, f.adminID, "no-such-loan")
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestDisburseLoanMaterializesScheduleAndPosting(t *testing.T) {
	f := newFixture(t)
	loan := f.disbursedLoan(t, 1000, 3)

	assert.Equal(t, models.LoanStatusDisbursed, loan.Status)
	assert.NotNil(t, loan.DisbursedAt)

	schedule, err := f.repo.ListSchedule(f.ctx, f.tenantID, loan.ID)
	require.NoError(t, err)
	assert.Len(t, schedule, 3)

	// One transaction group: debit 1000 to Loans Receivable (1100),
	// credit 1000 to Cash on Hand (1010)
	entries, err := f.repo.ListLedgerEntries(f.ctx, f.tenantID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].TransactionID, entries[1].TransactionID)

	receivable, err := f.repo.GetAccountByCode(f.ctx, f.tenantID, loansReceivableAccountCode)
	require.NoError(t, err)
	cash, err := f.repo.GetAccountByCode(f.ctx, f.tenantID, cashAccountCode)
	require.NoError(t, err)

	byAccount := map[string]models.GeneralLedgerEntry{}
	for _, e := range entries {
		byAccount[e.AccountID] = e
	}
	assert.True(t, byAccount[receivable.ID].Debit.Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, byAccount[receivable.ID].Credit.IsZero())
	assert.True(t, byAccount[cash.ID].Credit.Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, byAccount[cash.ID].Debit.IsZero())
}

func TestDisburseRequiresApprovedState(t *testing.T) {
	f := newFixture(t)
	loan := f.applyLoan(t, 1000, 3)

	_, err := f.svc.DisburseLoan(f.ctx, f.adminID, loan.ID)
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, string(models.LoanStatusPending), conflictErr.CurrentState)
}

// failingRepo wraps a Repository and fails schedule creation, to force
// a disbursement to abort mid-transaction.
type failingRepo struct {
	repository.Repository
}

func (f *failingRepo) CreateScheduleEntries(ctx context.Context, entries []models.RepaymentSchedule) error {
	return errors.New("simulated storage failure")
}

func (f *failingRepo) WithinTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	return f.Repository.WithinTx(ctx, func(tx repository.Repository) error {
		return fn(&failingRepo{Repository: tx})
	})
}

func TestDisburseIsAtomicWhenScheduleFails(t *testing.T) {
	f := newFixture(t)
	loan := f.applyLoan(t, 1000, 3)
	_, err := f.svc.ApproveLoan(f.ctx, f.adminID, loan.ID)
	require.NoError(t, err)

	broken := NewDefaultService(&failingRepo{Repository: f.repo}, "test-secret", zap.NewNop())
	broken.now = f.svc.now

	_, err = broken.DisburseLoan(f.ctx, f.adminID, loan.ID)
	require.Error(t, err)

	// Nothing persisted: status unchanged, no schedule rows, no ledger legs
	after, err := f.repo.GetLoan(f.ctx, f.tenantID, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusApproved, after.Status)
	assert.Nil(t, after.DisbursedAt)

	schedule, err := f.repo.ListSchedule(f.ctx, f.tenantID, loan.ID)
	require.NoError(t, err)
	assert.Empty(t, schedule)

	entries, err := f.repo.ListLedgerEntries(f.ctx, f.tenantID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoanLookupsAreTenantIsolated(t *testing.T) {
	f := newFixture(t)
	loan := f.disbursedLoan(t, 1000, 3)

	other, err := f.svc.RegisterOrganization(f.ctx, models.RegisterOrganizationRequest{
		OrganizationName: "Upesi Credit",
		Subdomain:        "upesi",
		AdminEmail:       "admin@upesi.test",
		AdminPassword:    "supersecret",
	})
	require.NoError(t, err)

	// Tenant B's admin cannot see tenant A's loan
	_, err = f.svc.GetLoan(f.ctx, other.AdminID, loan.ID)
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)

	_, err = f.svc.ApproveLoan(f.ctx, other.AdminID, loan.ID)
	require.ErrorAs(t, err, &notFoundErr)

	entries, err := f.svc.ListLedgerEntries(f.ctx, other.AdminID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
