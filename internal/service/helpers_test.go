package service

import (
	"context"
	"testing"
	"time"

	"github.com/microfinlabs/microfin-server/internal/models"
	"github.com/microfinlabs/microfin-server/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fixture wires a service over the in-memory repository with one
// onboarded organization, a loan product, and a client portal user.
type fixture struct {
	ctx  context.Context
	repo *repository.MemoryRepository
	svc  *DefaultService

	tenantID     string
	adminID      string
	productID    string
	clientUserID string
	clientID     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:  context.Background(),
		repo: repository.NewMemoryRepository(),
	}
	f.svc = NewDefaultService(f.repo, "test-secret", zap.NewNop())

	org, err := f.svc.RegisterOrganization(f.ctx, models.RegisterOrganizationRequest{
		OrganizationName: "Acme Microfinance",
		Subdomain:        "acme",
		AdminEmail:       "admin@acme.test",
		AdminPassword:    "supersecret",
	})
	require.NoError(t, err)
	f.tenantID = org.TenantID
	f.adminID = org.AdminID

	product, err := f.svc.CreateLoanProduct(f.ctx, f.adminID, models.CreateLoanProductRequest{
		Name:            "Standard Loan",
		InterestRate:    decimal.NewFromInt(10),
		MaxTenureMonths: 24,
		PenaltyType:     "flat",
		PenaltyValue:    decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	f.productID = product.ID

	signup, err := f.svc.SignUpClient(f.ctx, models.ClientSignUpRequest{
		Subdomain: "acme",
		FirstName: "Wanja",
		LastName:  "Kimani",
		Email:     "wanja@example.test",
		Password:  "clientpass1",
	})
	require.NoError(t, err)
	f.clientUserID = signup.UserID

	user, err := f.repo.GetUserByID(f.ctx, f.clientUserID)
	require.NoError(t, err)
	require.NotNil(t, user.ClientID)
	f.clientID = *user.ClientID

	return f
}

// applyLoan creates a pending loan for the fixture's client.
func (f *fixture) applyLoan(t *testing.T, amount int64, tenure int) *models.Loan {
	t.Helper()
	loan, err := f.svc.ApplyForLoan(f.ctx, f.clientUserID, models.LoanApplyRequest{
		LoanProductID:   f.productID,
		AmountRequested: decimal.NewFromInt(amount),
		TenureMonths:    tenure,
	})
	require.NoError(t, err)
	return loan
}

// disbursedLoan runs a loan through apply, approve, and disburse.
func (f *fixture) disbursedLoan(t *testing.T, amount int64, tenure int) *models.Loan {
	t.Helper()
	loan := f.applyLoan(t, amount, tenure)
	_, err := f.svc.ApproveLoan(f.ctx, f.adminID, loan.ID)
	require.NoError(t, err)
	loan, err = f.svc.DisburseLoan(f.ctx, f.adminID, loan.ID)
	require.NoError(t, err)
	return loan
}

// setNow pins the service clock.
func (f *fixture) setNow(at time.Time) {
	f.svc.now = func() time.Time { return at }
}
