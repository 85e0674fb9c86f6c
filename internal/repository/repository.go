package repository

import (
	"context"
	"time"

	"github.com/microfinlabs/microfin-server/internal/models"
)

// Repository defines the persistence operations the service layer needs.
// Lookups scoped by tenant never return rows belonging to another tenant;
// a miss is reported as (nil, nil) so callers can distinguish absence
// from infrastructure failure.
type Repository interface {
	// WithinTx runs fn against a transaction-scoped repository. fn's
	// writes commit together when it returns nil and are all rolled
	// back when it returns an error.
	WithinTx(ctx context.Context, fn func(tx Repository) error) error

	// Tenant operations
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenantBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	CreateTenantSettings(ctx context.Context, settings *models.TenantSettings) error
	GetTenantSettings(ctx context.Context, tenantID string) (*models.TenantSettings, error)
	UpdateTenantSettings(ctx context.Context, settings *models.TenantSettings) error

	// Chart of accounts operations
	CreateAccount(ctx context.Context, account *models.ChartOfAccount) error
	GetAccountByCode(ctx context.Context, tenantID, code string) (*models.ChartOfAccount, error)

	// General ledger operations. Entries are append-only: there is no
	// update or delete.
	CreateLedgerEntries(ctx context.Context, entries []models.GeneralLedgerEntry) error
	GetLedgerEntriesByTransaction(ctx context.Context, tenantID, transactionID string) ([]models.GeneralLedgerEntry, error)
	ListLedgerEntries(ctx context.Context, tenantID string) ([]models.GeneralLedgerEntry, error)

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsersByTenant(ctx context.Context, tenantID string) ([]models.User, error)

	// Client operations
	CreateClient(ctx context.Context, client *models.Client) error
	GetClient(ctx context.Context, tenantID, id string) (*models.Client, error)

	// Loan product operations
	CreateLoanProduct(ctx context.Context, product *models.LoanProduct) error
	GetLoanProduct(ctx context.Context, tenantID, id string) (*models.LoanProduct, error)

	// Loan operations
	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, tenantID, id string) (*models.Loan, error)
	// GetLoanForUpdate locks the loan row for the rest of the enclosing
	// transaction so concurrent status transitions serialize.
	GetLoanForUpdate(ctx context.Context, tenantID, id string) (*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
	ListLoans(ctx context.Context, tenantID string) ([]models.Loan, error)

	// Repayment schedule operations
	CreateScheduleEntries(ctx context.Context, entries []models.RepaymentSchedule) error
	GetScheduleEntry(ctx context.Context, tenantID, id string) (*models.RepaymentSchedule, error)
	ListSchedule(ctx context.Context, tenantID, loanID string) ([]models.RepaymentSchedule, error)
	ListOverdueSchedule(ctx context.Context, tenantID, loanID string, asOf time.Time) ([]models.RepaymentSchedule, error)
	UpdateScheduleStatus(ctx context.Context, tenantID, id string, status models.RepaymentStatus) error
	// MarkScheduleLate flips a pending installment to late and reports
	// whether the row actually changed. An installment paid by a
	// concurrent transaction is left untouched.
	MarkScheduleLate(ctx context.Context, tenantID, id string) (bool, error)
	CountUnpaidSchedule(ctx context.Context, tenantID, loanID string) (int, error)

	// Repayment transaction operations
	CreateRepaymentTransaction(ctx context.Context, txn *models.RepaymentTransaction) error
}
