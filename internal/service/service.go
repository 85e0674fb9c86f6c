package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/microfinlabs/microfin-server/internal/models"
	"github.com/microfinlabs/microfin-server/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service defines all the business logic operations
type Service interface {
	// Onboarding & authentication
	RegisterOrganization(ctx context.Context, req models.RegisterOrganizationRequest) (*models.RegisterOrganizationResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	SignUpClient(ctx context.Context, req models.ClientSignUpRequest) (*models.AuthResponse, error)

	// Staff-side management
	CreateClient(ctx context.Context, actorID string, req models.CreateClientRequest) (*models.Client, error)
	CreateLoanProduct(ctx context.Context, actorID string, req models.CreateLoanProductRequest) (*models.LoanProduct, error)
	CreateTeamMember(ctx context.Context, actorID string, req models.CreateTeamMemberRequest) (*models.User, error)
	ListTeamMembers(ctx context.Context, actorID string) ([]models.User, error)
	GetTenantSettings(ctx context.Context, actorID string) (*models.TenantSettings, error)
	UpdateTenantSettings(ctx context.Context, actorID string, req models.UpdateTenantSettingsRequest) (*models.TenantSettings, error)

	// Loan lifecycle
	ApplyForLoan(ctx context.Context, actorID string, req models.LoanApplyRequest) (*models.Loan, error)
	ApproveLoan(ctx context.Context, actorID, loanID string) (*models.Loan, error)
	RejectLoan(ctx context.Context, actorID, loanID string) (*models.Loan, error)
	DisburseLoan(ctx context.Context, actorID, loanID string) (*models.Loan, error)
	GetLoan(ctx context.Context, actorID, loanID string) (*models.Loan, error)
	ListLoans(ctx context.Context, actorID string) ([]models.Loan, error)
	GetLoanSchedule(ctx context.Context, actorID, loanID string) ([]models.RepaymentSchedule, error)

	// Repayments
	RecordRepayment(ctx context.Context, actorID string, req models.RecordRepaymentRequest) (*models.RepaymentTransaction, error)
	ApplyLatePenalties(ctx context.Context, actorID, loanID string) (int, error)

	// Accounting reads
	ListLedgerEntries(ctx context.Context, actorID string) ([]models.GeneralLedgerEntry, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo          repository.Repository
	jwtSecret     []byte
	tokenDuration time.Duration
	logger        *zap.Logger
	notifier      Notifier
	now           func() time.Time
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, jwtSecret string, logger *zap.Logger) *DefaultService {
	return &DefaultService{
		repo:          repo,
		jwtSecret:     []byte(jwtSecret),
		tokenDuration: 24 * time.Hour, // 24 hours token validity
		logger:        logger,
		notifier:      NewLogNotifier(logger),
		now:           time.Now,
	}
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil || !user.IsActive {
		return nil, errValidation("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errValidation("invalid email or password")
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

// actor loads the authenticated user behind an operation. The identity
// provider has already verified credentials; this only resolves the row.
func (s *DefaultService) actor(ctx context.Context, actorID string) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}
	if user == nil {
		return nil, errNotFound("user")
	}
	return user, nil
}

func (s *DefaultService) generateJWT(user *models.User) (string, error) {
	expirationTime := s.now().Add(s.tokenDuration)

	claims := jwt.MapClaims{
		"sub":  user.ID,
		"role": string(user.Role),
		"exp":  expirationTime.Unix(),
		"iat":  s.now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
