package models

import (
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// Request models
type RegisterOrganizationRequest struct {
	OrganizationName string `json:"organizationName" binding:"required"`
	Subdomain        string `json:"subdomain" binding:"required,min=3,alphanum,lowercase"`
	AdminEmail       string `json:"adminEmail" binding:"required,email"`
	AdminPassword    string `json:"adminPassword" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ClientSignUpRequest struct {
	Subdomain string `json:"subdomain" binding:"required"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
}

type CreateTeamMemberRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required,oneof=admin loan_officer teller"`
}

type UpdateTenantSettingsRequest struct {
	Currency       string         `json:"currency" binding:"omitempty,len=3,uppercase"`
	Configurations types.JSONText `json:"configurations"`
}

type CreateClientRequest struct {
	FirstName   string `json:"firstName" binding:"required"`
	LastName    string `json:"lastName" binding:"required"`
	PhoneNumber string `json:"phoneNumber"`
}

type CreateLoanProductRequest struct {
	Name            string          `json:"name" binding:"required"`
	InterestRate    decimal.Decimal `json:"interestRate" binding:"required"`
	MaxTenureMonths int             `json:"maxTenureMonths" binding:"required,min=1"`
	GracePeriodDays int             `json:"gracePeriodDays"`
	PenaltyType     string          `json:"penaltyType" binding:"omitempty,oneof=flat"`
	PenaltyValue    decimal.Decimal `json:"penaltyValue"`
}

type LoanApplyRequest struct {
	LoanProductID   string          `json:"loanProductId" binding:"required"`
	AmountRequested decimal.Decimal `json:"amountRequested" binding:"required"`
	TenureMonths    int             `json:"tenureMonths" binding:"required,min=1"`
}

type RecordRepaymentRequest struct {
	LoanID     string          `json:"loanId" binding:"required"`
	ScheduleID string          `json:"scheduleId"`
	AmountPaid decimal.Decimal `json:"amountPaid" binding:"required"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	UserID    string `json:"userId,omitempty"`
	TenantID  string `json:"tenantId,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type RegisterOrganizationResponse struct {
	Status    string `json:"status"`
	TenantID  string `json:"tenantId"`
	Subdomain string `json:"subdomain"`
	AdminID   string `json:"adminId"`
}

type LoanResponse struct {
	Status string `json:"status"`
	Loan   *Loan  `json:"loan,omitempty"`
}

type LoanListResponse struct {
	Status string `json:"status"`
	Loans  []Loan `json:"loans"`
}

type ScheduleResponse struct {
	Status   string              `json:"status"`
	LoanID   string              `json:"loanId"`
	Schedule []RepaymentSchedule `json:"schedule"`
}

type RepaymentResponse struct {
	Status      string                `json:"status"`
	Transaction *RepaymentTransaction `json:"transaction,omitempty"`
}

type PenaltySweepResponse struct {
	Status       string `json:"status"`
	LoanID       string `json:"loanId"`
	LinesFlagged int    `json:"linesFlagged"`
}

type TeamMembersResponse struct {
	Status  string `json:"status"`
	Members []User `json:"members"`
}

type TenantSettingsResponse struct {
	Status   string          `json:"status"`
	Settings *TenantSettings `json:"settings,omitempty"`
}

type LedgerEntriesResponse struct {
	Status  string               `json:"status"`
	Entries []GeneralLedgerEntry `json:"entries"`
}

type ErrorResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	CurrentState string `json:"currentState,omitempty"`
}
