package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
)

// AccountType classifies a chart-of-accounts entry.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// LoanStatus is the state of a loan in its lifecycle.
type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusApproved  LoanStatus = "approved"
	LoanStatusRejected  LoanStatus = "rejected"
	LoanStatusDisbursed LoanStatus = "disbursed"
	LoanStatusPaidOff   LoanStatus = "paid_off"
)

// loanTransitions is the closed set of legal status transitions.
// rejected and paid_off are terminal.
var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusPending:   {LoanStatusApproved, LoanStatusRejected},
	LoanStatusApproved:  {LoanStatusDisbursed},
	LoanStatusDisbursed: {LoanStatusPaidOff},
}

// CanTransitionTo reports whether a loan may move from s to next.
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	for _, allowed := range loanTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RepaymentStatus is the state of one schedule installment.
type RepaymentStatus string

const (
	RepaymentStatusPending RepaymentStatus = "pending"
	RepaymentStatusPaid    RepaymentStatus = "paid"
	RepaymentStatusLate    RepaymentStatus = "late"
)

// UserRole identifies what kind of actor a user is.
type UserRole string

const (
	RoleAdmin       UserRole = "admin"
	RoleLoanOfficer UserRole = "loan_officer"
	RoleTeller      UserRole = "teller"
	RoleClient      UserRole = "client"
)

// PenaltyType names how a loan product penalizes late installments.
type PenaltyType string

const (
	PenaltyTypeFlat PenaltyType = "flat"
)

// Tenant is one onboarded microfinance organization, the isolation
// boundary every other entity is scoped to.
type Tenant struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Subdomain string    `db:"subdomain" json:"subdomain"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// TenantSettings holds tenant-specific configuration.
type TenantSettings struct {
	ID             string         `db:"id" json:"id"`
	TenantID       string         `db:"tenant_id" json:"tenantId"`
	Currency       string         `db:"currency" json:"currency"`
	Configurations types.JSONText `db:"configurations" json:"configurations"`
	CreatedAt      time.Time      `db:"created_at" json:"createdAt"`
}

// ChartOfAccount is one ledger account in a tenant's chart of accounts.
// Postings reference accounts by code, never by name.
type ChartOfAccount struct {
	ID          string      `db:"id" json:"id"`
	TenantID    string      `db:"tenant_id" json:"tenantId"`
	Name        string      `db:"name" json:"name"`
	AccountCode string      `db:"account_code" json:"accountCode"`
	AccountType AccountType `db:"account_type" json:"accountType"`
	IsActive    bool        `db:"is_active" json:"isActive"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
}

// GeneralLedgerEntry is a single debit or credit leg in the General
// Ledger. Entries are append-only; corrections post reversing entries.
type GeneralLedgerEntry struct {
	ID              string          `db:"id" json:"id"`
	TenantID        string          `db:"tenant_id" json:"tenantId"`
	TransactionID   string          `db:"transaction_id" json:"transactionId"`
	TransactionDate time.Time       `db:"transaction_date" json:"transactionDate"`
	Description     string          `db:"description" json:"description"`
	AccountID       string          `db:"account_id" json:"accountId"`
	Debit           decimal.Decimal `db:"debit" json:"debit"`
	Credit          decimal.Decimal `db:"credit" json:"credit"`
}

// LoanProduct is a tenant-scoped loan template.
type LoanProduct struct {
	ID              string          `db:"id" json:"id"`
	TenantID        string          `db:"tenant_id" json:"tenantId"`
	Name            string          `db:"name" json:"name"`
	InterestRate    decimal.Decimal `db:"interest_rate" json:"interestRate"` // annual, percent
	MaxTenureMonths int             `db:"max_tenure_months" json:"maxTenureMonths"`
	GracePeriodDays int             `db:"grace_period_days" json:"gracePeriodDays"`
	PenaltyType     *PenaltyType    `db:"penalty_type" json:"penaltyType,omitempty"`
	PenaltyValue    decimal.Decimal `db:"penalty_value" json:"penaltyValue"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
}

// Loan is a client's loan, from application through repayment.
type Loan struct {
	ID                string          `db:"id" json:"id"`
	TenantID          string          `db:"tenant_id" json:"tenantId"`
	ClientID          string          `db:"client_id" json:"clientId"`
	LoanProductID     string          `db:"loan_product_id" json:"loanProductId"`
	AssignedOfficerID *string         `db:"assigned_officer_id" json:"assignedOfficerId,omitempty"`
	AmountRequested   decimal.Decimal `db:"amount_requested" json:"amountRequested"`
	TenureMonths      int             `db:"tenure_months" json:"tenureMonths"`
	Status            LoanStatus      `db:"status" json:"status"`
	AppliedAt         time.Time       `db:"applied_at" json:"appliedAt"`
	ApprovedAt        *time.Time      `db:"approved_at" json:"approvedAt,omitempty"`
	DisbursedAt       *time.Time      `db:"disbursed_at" json:"disbursedAt,omitempty"`
}

// RepaymentSchedule is one installment due for a loan. Amounts are
// immutable once generated; penalties post to the ledger instead.
type RepaymentSchedule struct {
	ID           string          `db:"id" json:"id"`
	TenantID     string          `db:"tenant_id" json:"tenantId"`
	LoanID       string          `db:"loan_id" json:"loanId"`
	DueDate      time.Time       `db:"due_date" json:"dueDate"`
	AmountDue    decimal.Decimal `db:"amount_due" json:"amountDue"`
	PrincipalDue decimal.Decimal `db:"principal_due" json:"principalDue"`
	InterestDue  decimal.Decimal `db:"interest_due" json:"interestDue"`
	Status       RepaymentStatus `db:"status" json:"status"`
}

// RepaymentTransaction records an actual payment made by a client.
// ScheduleID is nil for unmatched or overpayment cases.
type RepaymentTransaction struct {
	ID               string          `db:"id" json:"id"`
	TenantID         string          `db:"tenant_id" json:"tenantId"`
	LoanID           string          `db:"loan_id" json:"loanId"`
	ScheduleID       *string         `db:"schedule_id" json:"scheduleId,omitempty"`
	AmountPaid       decimal.Decimal `db:"amount_paid" json:"amountPaid"`
	TransactionDate  time.Time       `db:"transaction_date" json:"transactionDate"`
	RecordedByUserID string          `db:"recorded_by_user_id" json:"recordedByUserId"`
}

// Client is a borrower profile.
type Client struct {
	ID          string    `db:"id" json:"id"`
	TenantID    string    `db:"tenant_id" json:"tenantId"`
	FirstName   string    `db:"first_name" json:"firstName"`
	LastName    string    `db:"last_name" json:"lastName"`
	PhoneNumber *string   `db:"phone_number" json:"phoneNumber,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// User is a login identity. ClientID links a portal user to exactly one
// client profile; staff users leave it nil.
type User struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenantId"`
	Email     string    `db:"email" json:"email"`
	Password  string    `db:"password" json:"-"` // bcrypt hash, never serialized
	Role      UserRole  `db:"role" json:"role"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	ClientID  *string   `db:"client_id" json:"clientId,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// DefaultChartOfAccounts is the account set seeded for every new tenant.
var DefaultChartOfAccounts = []ChartOfAccount{
	{Name: "Cash on Hand", AccountCode: "1010", AccountType: AccountTypeAsset},
	{Name: "Loans Receivable", AccountCode: "1100", AccountType: AccountTypeAsset},
	{Name: "Client Savings", AccountCode: "2010", AccountType: AccountTypeLiability},
	{Name: "Interest Revenue", AccountCode: "4010", AccountType: AccountTypeRevenue},
	{Name: "Penalty Revenue", AccountCode: "4020", AccountType: AccountTypeRevenue},
}
