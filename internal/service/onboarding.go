package service

import (
	"context"
	"fmt"

	"github.com/microfinlabs/microfin-server/internal/models"
	"github.com/microfinlabs/microfin-server/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const defaultCurrency = "KES"

// Subdomains that can never belong to a tenant.
var reservedSubdomains = map[string]bool{
	"www":   true,
	"api":   true,
	"app":   true,
	"admin": true,
}

// RegisterOrganization onboards a new microfinance institution: the
// tenant, its default settings, its default chart of accounts, and the
// first admin user are created in one transaction. A failure at any
// step leaves nothing behind.
func (s *DefaultService) RegisterOrganization(ctx context.Context, req models.RegisterOrganizationRequest) (*models.RegisterOrganizationResponse, error) {
	if reservedSubdomains[req.Subdomain] {
		return nil, errValidation("subdomain %q is reserved", req.Subdomain)
	}

	existingUser, err := s.repo.GetUserByEmail(ctx, req.AdminEmail)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}
	if existingUser != nil {
		return nil, errValidation("an account with this email already exists")
	}

	existingTenant, err := s.repo.GetTenantBySubdomain(ctx, req.Subdomain)
	if err != nil {
		return nil, fmt.Errorf("error checking subdomain: %w", err)
	}
	if existingTenant != nil {
		return nil, &ConflictError{
			Resource: "subdomain",
			Message:  fmt.Sprintf("subdomain %q is already taken", req.Subdomain),
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	var tenant *models.Tenant
	var admin *models.User

	err = s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		tenant = &models.Tenant{
			Name:      req.OrganizationName,
			Subdomain: req.Subdomain,
		}
		if err := tx.CreateTenant(ctx, tenant); err != nil {
			return err
		}

		settings := &models.TenantSettings{
			TenantID: tenant.ID,
			Currency: defaultCurrency,
		}
		if err := tx.CreateTenantSettings(ctx, settings); err != nil {
			return err
		}

		for _, acc := range models.DefaultChartOfAccounts {
			account := acc
			account.TenantID = tenant.ID
			account.IsActive = true
			if err := tx.CreateAccount(ctx, &account); err != nil {
				return err
			}
		}

		admin = &models.User{
			TenantID: tenant.ID,
			Email:    req.AdminEmail,
			Password: string(hashedPassword),
			Role:     models.RoleAdmin,
			IsActive: true,
		}
		return tx.CreateUser(ctx, admin)
	})
	if err != nil {
		return nil, fmt.Errorf("error registering organization: %w", err)
	}

	s.logger.Info("organization registered",
		zap.String("tenantId", tenant.ID),
		zap.String("subdomain", tenant.Subdomain))

	return &models.RegisterOrganizationResponse{
		Status:    "success",
		TenantID:  tenant.ID,
		Subdomain: tenant.Subdomain,
		AdminID:   admin.ID,
	}, nil
}

// SignUpClient is the client-portal signup: it creates a Client profile
// and a linked login User in one transaction and returns a session
// token for the new account.
func (s *DefaultService) SignUpClient(ctx context.Context, req models.ClientSignUpRequest) (*models.AuthResponse, error) {
	tenant, err := s.repo.GetTenantBySubdomain(ctx, req.Subdomain)
	if err != nil {
		return nil, fmt.Errorf("error resolving organization: %w", err)
	}
	if tenant == nil {
		return nil, errNotFound("organization")
	}

	existingUser, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error checking user existence: %w", err)
	}
	if existingUser != nil {
		return nil, errValidation("a user with this email already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	var user *models.User
	err = s.repo.WithinTx(ctx, func(tx repository.Repository) error {
		client := &models.Client{
			TenantID:  tenant.ID,
			FirstName: req.FirstName,
			LastName:  req.LastName,
		}
		// CreateClient assigns the id the user row links to.
		if err := tx.CreateClient(ctx, client); err != nil {
			return err
		}

		user = &models.User{
			TenantID: tenant.ID,
			Email:    req.Email,
			Password: string(hashedPassword),
			Role:     models.RoleClient,
			IsActive: true,
			ClientID: &client.ID,
		}
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("error signing up client: %w", err)
	}

	token, err := s.generateJWT(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		UserID:    user.ID,
		TenantID:  user.TenantID,
		Email:     user.Email,
		Role:      string(user.Role),
		Token:     token,
		ExpiresIn: int(s.tokenDuration.Seconds()),
	}, nil
}

// CreateClient creates a borrower profile without a login, used by MFI
// staff. The acting user's tenant is used.
func (s *DefaultService) CreateClient(ctx context.Context, actorID string, req models.CreateClientRequest) (*models.Client, error) {
	user, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	client := &models.Client{
		TenantID:  user.TenantID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if req.PhoneNumber != "" {
		client.PhoneNumber = &req.PhoneNumber
	}
	if err := s.repo.CreateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("error creating client: %w", err)
	}
	return client, nil
}

// CreateLoanProduct defines a loan template for the acting user's tenant.
func (s *DefaultService) CreateLoanProduct(ctx context.Context, actorID string, req models.CreateLoanProductRequest) (*models.LoanProduct, error) {
	user, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if req.InterestRate.IsNegative() {
		return nil, errValidation("interest rate must not be negative")
	}
	if req.MaxTenureMonths < 1 {
		return nil, errValidation("maximum tenure must be at least one month")
	}

	product := &models.LoanProduct{
		TenantID:        user.TenantID,
		Name:            req.Name,
		InterestRate:    req.InterestRate,
		MaxTenureMonths: req.MaxTenureMonths,
		GracePeriodDays: req.GracePeriodDays,
		PenaltyValue:    req.PenaltyValue.Round(2),
	}
	if req.PenaltyType != "" {
		pt := models.PenaltyType(req.PenaltyType)
		if pt != models.PenaltyTypeFlat {
			return nil, errValidation("unsupported penalty type %q", req.PenaltyType)
		}
		product.PenaltyType = &pt
	}

	if err := s.repo.CreateLoanProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("error creating loan product: %w", err)
	}
	return product, nil
}
