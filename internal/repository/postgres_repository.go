package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/microfinlabs/microfin-server/internal/models"
)

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
	// ext is the db outside a transaction and the tx inside one, so the
	// same queries run in either scope.
	ext sqlx.ExtContext
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db, ext: db}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// WithinTx runs fn inside a database transaction. A repository already
// scoped to a transaction reuses it, so nested calls share one commit.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	if _, inTx := r.ext.(*sqlx.Tx); inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &PostgresRepository{db: r.db, ext: tx}
	if err := fn(txRepo); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Tenant repository methods
func (r *PostgresRepository) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tenants (id, name, subdomain, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.ext.ExecContext(ctx, query,
		tenant.ID, tenant.Name, tenant.Subdomain, tenant.CreatedAt)
	return err
}

func (r *PostgresRepository) GetTenantBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	query := `SELECT * FROM tenants WHERE subdomain = $1`

	var tenant models.Tenant
	err := sqlx.GetContext(ctx, r.ext, &tenant, query, subdomain)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &tenant, nil
}

func (r *PostgresRepository) CreateTenantSettings(ctx context.Context, settings *models.TenantSettings) error {
	if settings.ID == "" {
		settings.ID = uuid.New().String()
	}
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = time.Now().UTC()
	}
	if settings.Configurations == nil {
		settings.Configurations = []byte("{}")
	}

	query := `
		INSERT INTO tenant_settings (id, tenant_id, currency, configurations, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.ext.ExecContext(ctx, query,
		settings.ID, settings.TenantID, settings.Currency, settings.Configurations, settings.CreatedAt)
	return err
}

func (r *PostgresRepository) GetTenantSettings(ctx context.Context, tenantID string) (*models.TenantSettings, error) {
	query := `SELECT * FROM tenant_settings WHERE tenant_id = $1`

	var settings models.TenantSettings
	err := sqlx.GetContext(ctx, r.ext, &settings, query, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &settings, nil
}

func (r *PostgresRepository) UpdateTenantSettings(ctx context.Context, settings *models.TenantSettings) error {
	query := `
		UPDATE tenant_settings
		SET currency = $1, configurations = $2
		WHERE tenant_id = $3
	`
	_, err := r.ext.ExecContext(ctx, query,
		settings.Currency, settings.Configurations, settings.TenantID)
	return err
}

// Chart of accounts repository methods
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *models.ChartOfAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO chart_of_accounts (id, tenant_id, name, account_code, account_type, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.ext.ExecContext(ctx, query,
		account.ID, account.TenantID, account.Name, account.AccountCode,
		account.AccountType, account.IsActive, account.CreatedAt)
	return err
}

func (r *PostgresRepository) GetAccountByCode(ctx context.Context, tenantID, code string) (*models.ChartOfAccount, error) {
	query := `SELECT * FROM chart_of_accounts WHERE tenant_id = $1 AND account_code = $2`

	var account models.ChartOfAccount
	err := sqlx.GetContext(ctx, r.ext, &account, query, tenantID, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// General ledger repository methods
func (r *PostgresRepository) CreateLedgerEntries(ctx context.Context, entries []models.GeneralLedgerEntry) error {
	query := `
		INSERT INTO general_ledger_entries
			(id, tenant_id, transaction_id, transaction_date, description, account_id, debit, credit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.TransactionDate.IsZero() {
			e.TransactionDate = time.Now().UTC()
		}
		_, err := r.ext.ExecContext(ctx, query,
			e.ID, e.TenantID, e.TransactionID, e.TransactionDate,
			e.Description, e.AccountID, e.Debit, e.Credit)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) GetLedgerEntriesByTransaction(ctx context.Context, tenantID, transactionID string) ([]models.GeneralLedgerEntry, error) {
	query := `
		SELECT * FROM general_ledger_entries
		WHERE tenant_id = $1 AND transaction_id = $2
		ORDER BY debit DESC
	`
	var entries []models.GeneralLedgerEntry
	if err := sqlx.SelectContext(ctx, r.ext, &entries, query, tenantID, transactionID); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *PostgresRepository) ListLedgerEntries(ctx context.Context, tenantID string) ([]models.GeneralLedgerEntry, error) {
	query := `
		SELECT * FROM general_ledger_entries
		WHERE tenant_id = $1
		ORDER BY transaction_date ASC, transaction_id ASC
	`
	var entries []models.GeneralLedgerEntry
	if err := sqlx.SelectContext(ctx, r.ext, &entries, query, tenantID); err != nil {
		return nil, err
	}
	return entries, nil
}

// User repository methods
func (r *PostgresRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, tenant_id, email, password, role, is_active, client_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.ext.ExecContext(ctx, query,
		user.ID, user.TenantID, user.Email, user.Password, user.Role,
		user.IsActive, user.ClientID, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT * FROM users WHERE email = $1`

	var user models.User
	err := sqlx.GetContext(ctx, r.ext, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT * FROM users WHERE id = $1`

	var user models.User
	err := sqlx.GetContext(ctx, r.ext, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *PostgresRepository) ListUsersByTenant(ctx context.Context, tenantID string) ([]models.User, error) {
	query := `SELECT * FROM users WHERE tenant_id = $1 ORDER BY created_at ASC`

	var users []models.User
	if err := sqlx.SelectContext(ctx, r.ext, &users, query, tenantID); err != nil {
		return nil, err
	}
	return users, nil
}

// Client repository methods
func (r *PostgresRepository) CreateClient(ctx context.Context, client *models.Client) error {
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO clients (id, tenant_id, first_name, last_name, phone_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.ext.ExecContext(ctx, query,
		client.ID, client.TenantID, client.FirstName, client.LastName,
		client.PhoneNumber, client.CreatedAt)
	return err
}

func (r *PostgresRepository) GetClient(ctx context.Context, tenantID, id string) (*models.Client, error) {
	query := `SELECT * FROM clients WHERE tenant_id = $1 AND id = $2`

	var client models.Client
	err := sqlx.GetContext(ctx, r.ext, &client, query, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

// Loan product repository methods
func (r *PostgresRepository) CreateLoanProduct(ctx context.Context, product *models.LoanProduct) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO loan_products
			(id, tenant_id, name, interest_rate, max_tenure_months, grace_period_days, penalty_type, penalty_value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.ext.ExecContext(ctx, query,
		product.ID, product.TenantID, product.Name, product.InterestRate,
		product.MaxTenureMonths, product.GracePeriodDays, product.PenaltyType,
		product.PenaltyValue, product.CreatedAt)
	return err
}

func (r *PostgresRepository) GetLoanProduct(ctx context.Context, tenantID, id string) (*models.LoanProduct, error) {
	query := `SELECT * FROM loan_products WHERE tenant_id = $1 AND id = $2`

	var product models.LoanProduct
	err := sqlx.GetContext(ctx, r.ext, &product, query, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// Loan repository methods
func (r *PostgresRepository) CreateLoan(ctx context.Context, loan *models.Loan) error {
	if loan.ID == "" {
		loan.ID = uuid.New().String()
	}
	if loan.AppliedAt.IsZero() {
		loan.AppliedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO loans
			(id, tenant_id, client_id, loan_product_id, assigned_officer_id, amount_requested,
			 tenure_months, status, applied_at, approved_at, disbursed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.ext.ExecContext(ctx, query,
		loan.ID, loan.TenantID, loan.ClientID, loan.LoanProductID,
		loan.AssignedOfficerID, loan.AmountRequested, loan.TenureMonths,
		loan.Status, loan.AppliedAt, loan.ApprovedAt, loan.DisbursedAt)
	return err
}

func (r *PostgresRepository) GetLoan(ctx context.Context, tenantID, id string) (*models.Loan, error) {
	return r.getLoan(ctx, tenantID, id, false)
}

func (r *PostgresRepository) GetLoanForUpdate(ctx context.Context, tenantID, id string) (*models.Loan, error) {
	return r.getLoan(ctx, tenantID, id, true)
}

func (r *PostgresRepository) getLoan(ctx context.Context, tenantID, id string, forUpdate bool) (*models.Loan, error) {
	query := `SELECT * FROM loans WHERE tenant_id = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var loan models.Loan
	err := sqlx.GetContext(ctx, r.ext, &loan, query, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &loan, nil
}

func (r *PostgresRepository) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	query := `
		UPDATE loans
		SET status = $1, assigned_officer_id = $2, approved_at = $3, disbursed_at = $4
		WHERE tenant_id = $5 AND id = $6
	`
	_, err := r.ext.ExecContext(ctx, query,
		loan.Status, loan.AssignedOfficerID, loan.ApprovedAt, loan.DisbursedAt,
		loan.TenantID, loan.ID)
	return err
}

func (r *PostgresRepository) ListLoans(ctx context.Context, tenantID string) ([]models.Loan, error) {
	query := `SELECT * FROM loans WHERE tenant_id = $1 ORDER BY applied_at ASC`

	var loans []models.Loan
	if err := sqlx.SelectContext(ctx, r.ext, &loans, query, tenantID); err != nil {
		return nil, err
	}
	return loans, nil
}

// Repayment schedule repository methods
func (r *PostgresRepository) CreateScheduleEntries(ctx context.Context, entries []models.RepaymentSchedule) error {
	query := `
		INSERT INTO repayment_schedules
			(id, tenant_id, loan_id, due_date, amount_due, principal_due, interest_due, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		_, err := r.ext.ExecContext(ctx, query,
			e.ID, e.TenantID, e.LoanID, e.DueDate, e.AmountDue,
			e.PrincipalDue, e.InterestDue, e.Status)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) GetScheduleEntry(ctx context.Context, tenantID, id string) (*models.RepaymentSchedule, error) {
	query := `SELECT * FROM repayment_schedules WHERE tenant_id = $1 AND id = $2`

	var entry models.RepaymentSchedule
	err := sqlx.GetContext(ctx, r.ext, &entry, query, tenantID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *PostgresRepository) ListSchedule(ctx context.Context, tenantID, loanID string) ([]models.RepaymentSchedule, error) {
	query := `
		SELECT * FROM repayment_schedules
		WHERE tenant_id = $1 AND loan_id = $2
		ORDER BY due_date ASC
	`
	var entries []models.RepaymentSchedule
	if err := sqlx.SelectContext(ctx, r.ext, &entries, query, tenantID, loanID); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *PostgresRepository) ListOverdueSchedule(ctx context.Context, tenantID, loanID string, asOf time.Time) ([]models.RepaymentSchedule, error) {
	query := `
		SELECT * FROM repayment_schedules
		WHERE tenant_id = $1 AND loan_id = $2 AND status = $3 AND due_date < $4
		ORDER BY due_date ASC
	`
	var entries []models.RepaymentSchedule
	err := sqlx.SelectContext(ctx, r.ext, &entries, query,
		tenantID, loanID, models.RepaymentStatusPending, asOf)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *PostgresRepository) UpdateScheduleStatus(ctx context.Context, tenantID, id string, status models.RepaymentStatus) error {
	query := `UPDATE repayment_schedules SET status = $1 WHERE tenant_id = $2 AND id = $3`
	_, err := r.ext.ExecContext(ctx, query, status, tenantID, id)
	return err
}

func (r *PostgresRepository) MarkScheduleLate(ctx context.Context, tenantID, id string) (bool, error) {
	query := `
		UPDATE repayment_schedules SET status = $1
		WHERE tenant_id = $2 AND id = $3 AND status = $4
	`
	res, err := r.ext.ExecContext(ctx, query,
		models.RepaymentStatusLate, tenantID, id, models.RepaymentStatusPending)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *PostgresRepository) CountUnpaidSchedule(ctx context.Context, tenantID, loanID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM repayment_schedules
		WHERE tenant_id = $1 AND loan_id = $2 AND status != $3
	`
	var count int
	err := sqlx.GetContext(ctx, r.ext, &count, query, tenantID, loanID, models.RepaymentStatusPaid)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Repayment transaction repository methods
func (r *PostgresRepository) CreateRepaymentTransaction(ctx context.Context, txn *models.RepaymentTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.TransactionDate.IsZero() {
		txn.TransactionDate = time.Now().UTC()
	}

	query := `
		INSERT INTO repayment_transactions
			(id, tenant_id, loan_id, schedule_id, amount_paid, transaction_date, recorded_by_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.ext.ExecContext(ctx, query,
		txn.ID, txn.TenantID, txn.LoanID, txn.ScheduleID, txn.AmountPaid,
		txn.TransactionDate, txn.RecordedByUserID)
	return err
}
