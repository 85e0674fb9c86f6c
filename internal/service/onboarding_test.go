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

func TestRegisterOrganizationSeedsTenant(t *testing.T) {
	f := newFixture(t)

	tenant, err := f.repo.GetTenantBySubdomain(f.ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, "Acme Microfinance", tenant.Name)

	// The default chart of accounts is in place and active
	for _, code := range []string{"1010", "1100", "2010", "4010", "4020"} {
		account, err := f.repo.GetAccountByCode(f.ctx, tenant.ID, code)
		require.NoError(t, err)
		require.NotNil(t, account, "account %s missing", code)
		assert.True(t, account.IsActive)
	}

	// The first admin can log in
	resp, err := f.svc.Login(f.ctx, models.LoginRequest{
		Email:    "admin@acme.test",
		Password: "supersecret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, string(models.RoleAdmin), resp.Role)
	assert.Equal(t, tenant.ID, resp.TenantID)
}

func TestRegisterOrganizationRejectsDuplicates(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RegisterOrganization(f.ctx, models.RegisterOrganizationRequest{
		OrganizationName: "Other Org",
		Subdomain:        "other",
		AdminEmail:       "admin@acme.test", // taken
		AdminPassword:    "supersecret",
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = f.svc.RegisterOrganization(f.ctx, models.RegisterOrganizationRequest{
		OrganizationName: "Other Org",
		Subdomain:        "acme", // taken
		AdminEmail:       "admin@other.test",
		AdminPassword:    "supersecret",
	})
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
}

func TestRegisterOrganizationRejectsReservedSubdomain(t *testing.T) {
	f := newFixture(t)

	for _, sub := range []string{"www", "api", "app", "admin"} {
		_, err := f.svc.RegisterOrganization(f.ctx, models.RegisterOrganizationRequest{
			OrganizationName: "Reserved Org",
			Subdomain:        sub,
			AdminEmail:       "admin@reserved.test",
			AdminPassword:    "supersecret",
		})
		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr, "subdomain %q must be rejected", sub)
	}
}

// userCreateFailingRepo fails admin creation so onboarding aborts after
// the tenant rows are staged.
type userCreateFailingRepo struct {
	repository.Repository
}

func (r *userCreateFailingRepo) CreateUser(ctx context.Context, user *models.User) error {
	return errors.New("simulated storage failure")
}

func (r *userCreateFailingRepo) WithinTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	return r.Repository.WithinTx(ctx, func(tx repository.Repository) error {
		return fn(&userCreateFailingRepo{Repository: tx})
	})
}

func TestRegisterOrganizationRollsBackOnFailure(t *testing.T) {
	repo := repository.NewMemoryRepository()
	svc := NewDefaultService(&userCreateFailingRepo{Repository: repo}, "test-secret", zap.NewNop())

	_, err := svc.RegisterOrganization(context.Background(), models.RegisterOrganizationRequest{
		OrganizationName: "Doomed Org",
		Subdomain:        "doomed",
		AdminEmail:       "admin@doomed.test",
		AdminPassword:    "supersecret",
	})
	require.Error(t, err)

	// No orphan tenant or accounts survive the failed onboarding
	tenant, err := repo.GetTenantBySubdomain(context.Background(), "doomed")
	require.NoError(t, err)
	assert.Nil(t, tenant)
}

func TestSignUpClientLinksProfileAndUser(t *testing.T) {
	f := newFixture(t)

	user, err := f.repo.GetUserByID(f.ctx, f.clientUserID)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, models.RoleClient, user.Role)
	require.NotNil(t, user.ClientID)

	client, err := f.repo.GetClient(f.ctx, f.tenantID, *user.ClientID)
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "Wanja", client.FirstName)
}

func TestSignUpClientUnknownSubdomain(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SignUpClient(f.ctx, models.ClientSignUpRequest{
		Subdomain: "nowhere",
		FirstName: "A",
		LastName:  "B",
		Email:     "ab@example.test",
		Password:  "password123",
	})
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestCreateLoanProductValidatesPenaltyType(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateLoanProduct(f.ctx, f.adminID, models.CreateLoanProductRequest{
		Name:            "Weird Product",
		InterestRate:    decimal.NewFromInt(5),
		MaxTenureMonths: 6,
		PenaltyType:     "compound",
	})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
}
