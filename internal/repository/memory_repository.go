package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microfinlabs/microfin-server/internal/models"
)

// MemoryRepository is an in-memory Repository used by unit tests and
// local development. WithinTx snapshots all state before running the
// closure and restores it on error, so rollback behaves like the
// Postgres implementation.
type MemoryRepository struct {
	mu   sync.Mutex // guards the data maps
	txMu sync.Mutex // serializes transactions

	tenants   map[string]models.Tenant
	settings  map[string]models.TenantSettings
	accounts  map[string]models.ChartOfAccount
	ledger    []models.GeneralLedgerEntry
	users     map[string]models.User
	clients   map[string]models.Client
	products  map[string]models.LoanProduct
	loans     map[string]models.Loan
	schedules map[string]models.RepaymentSchedule
	payments  map[string]models.RepaymentTransaction
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tenants:   make(map[string]models.Tenant),
		settings:  make(map[string]models.TenantSettings),
		accounts:  make(map[string]models.ChartOfAccount),
		users:     make(map[string]models.User),
		clients:   make(map[string]models.Client),
		products:  make(map[string]models.LoanProduct),
		loans:     make(map[string]models.Loan),
		schedules: make(map[string]models.RepaymentSchedule),
		payments:  make(map[string]models.RepaymentTransaction),
	}
}

type memorySnapshot struct {
	tenants   map[string]models.Tenant
	settings  map[string]models.TenantSettings
	accounts  map[string]models.ChartOfAccount
	ledger    []models.GeneralLedgerEntry
	users     map[string]models.User
	clients   map[string]models.Client
	products  map[string]models.LoanProduct
	loans     map[string]models.Loan
	schedules map[string]models.RepaymentSchedule
	payments  map[string]models.RepaymentTransaction
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (r *MemoryRepository) snapshot() *memorySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &memorySnapshot{
		tenants:   cloneMap(r.tenants),
		settings:  cloneMap(r.settings),
		accounts:  cloneMap(r.accounts),
		ledger:    append([]models.GeneralLedgerEntry(nil), r.ledger...),
		users:     cloneMap(r.users),
		clients:   cloneMap(r.clients),
		products:  cloneMap(r.products),
		loans:     cloneMap(r.loans),
		schedules: cloneMap(r.schedules),
		payments:  cloneMap(r.payments),
	}
}

func (r *MemoryRepository) restore(s *memorySnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants = s.tenants
	r.settings = s.settings
	r.accounts = s.accounts
	r.ledger = s.ledger
	r.users = s.users
	r.clients = s.clients
	r.products = s.products
	r.loans = s.loans
	r.schedules = s.schedules
	r.payments = s.payments
}

// WithinTx serializes transactions and rolls state back when fn fails.
func (r *MemoryRepository) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	snap := r.snapshot()
	if err := fn(r); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

// Tenant operations
func (r *MemoryRepository) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = time.Now().UTC()
	}
	r.tenants[tenant.ID] = *tenant
	return nil
}

func (r *MemoryRepository) GetTenantBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tenants {
		if t.Subdomain == subdomain {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) CreateTenantSettings(ctx context.Context, settings *models.TenantSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if settings.ID == "" {
		settings.ID = uuid.New().String()
	}
	if settings.CreatedAt.IsZero() {
		settings.CreatedAt = time.Now().UTC()
	}
	r.settings[settings.ID] = *settings
	return nil
}

func (r *MemoryRepository) GetTenantSettings(ctx context.Context, tenantID string) (*models.TenantSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.settings {
		if s.TenantID == tenantID {
			s := s
			return &s, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) UpdateTenantSettings(ctx context.Context, settings *models.TenantSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.settings {
		if s.TenantID == settings.TenantID {
			settings.ID = s.ID
			settings.CreatedAt = s.CreatedAt
			r.settings[id] = *settings
			return nil
		}
	}
	return nil
}

// Chart of accounts operations
func (r *MemoryRepository) CreateAccount(ctx context.Context, account *models.ChartOfAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	r.accounts[account.ID] = *account
	return nil
}

func (r *MemoryRepository) GetAccountByCode(ctx context.Context, tenantID, code string) (*models.ChartOfAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.TenantID == tenantID && a.AccountCode == code {
			a := a
			return &a, nil
		}
	}
	return nil, nil
}

// General ledger operations
func (r *MemoryRepository) CreateLedgerEntries(ctx context.Context, entries []models.GeneralLedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range entries {
		e := entries[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.TransactionDate.IsZero() {
			e.TransactionDate = time.Now().UTC()
		}
		r.ledger = append(r.ledger, e)
	}
	return nil
}

func (r *MemoryRepository) GetLedgerEntriesByTransaction(ctx context.Context, tenantID, transactionID string) ([]models.GeneralLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.GeneralLedgerEntry
	for _, e := range r.ledger {
		if e.TenantID == tenantID && e.TransactionID == transactionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListLedgerEntries(ctx context.Context, tenantID string) ([]models.GeneralLedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.GeneralLedgerEntry
	for _, e := range r.ledger {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	return out, nil
}

// User operations
func (r *MemoryRepository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (r *MemoryRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r *MemoryRepository) ListUsersByTenant(ctx context.Context, tenantID string) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.User
	for _, u := range r.users {
		if u.TenantID == tenantID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Client operations
func (r *MemoryRepository) CreateClient(ctx context.Context, client *models.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client.ID == "" {
		client.ID = uuid.New().String()
	}
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now().UTC()
	}
	r.clients[client.ID] = *client
	return nil
}

func (r *MemoryRepository) GetClient(ctx context.Context, tenantID, id string) (*models.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[id]; ok && c.TenantID == tenantID {
		return &c, nil
	}
	return nil, nil
}

// Loan product operations
func (r *MemoryRepository) CreateLoanProduct(ctx context.Context, product *models.LoanProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	r.products[product.ID] = *product
	return nil
}

func (r *MemoryRepository) GetLoanProduct(ctx context.Context, tenantID, id string) (*models.LoanProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok && p.TenantID == tenantID {
		return &p, nil
	}
	return nil, nil
}

// Loan operations
func (r *MemoryRepository) CreateLoan(ctx context.Context, loan *models.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if loan.ID == "" {
		loan.ID = uuid.New().String()
	}
	if loan.AppliedAt.IsZero() {
		loan.AppliedAt = time.Now().UTC()
	}
	r.loans[loan.ID] = *loan
	return nil
}

func (r *MemoryRepository) GetLoan(ctx context.Context, tenantID, id string) (*models.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.loans[id]; ok && l.TenantID == tenantID {
		return &l, nil
	}
	return nil, nil
}

// GetLoanForUpdate has the same semantics as GetLoan here: single-writer
// transactions are already enforced by txMu.
func (r *MemoryRepository) GetLoanForUpdate(ctx context.Context, tenantID, id string) (*models.Loan, error) {
	return r.GetLoan(ctx, tenantID, id)
}

func (r *MemoryRepository) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.loans[loan.ID]; ok && existing.TenantID == loan.TenantID {
		r.loans[loan.ID] = *loan
	}
	return nil
}

func (r *MemoryRepository) ListLoans(ctx context.Context, tenantID string) ([]models.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Loan
	for _, l := range r.loans {
		if l.TenantID == tenantID {
			out = append(out, l)
		}
	}
	return out, nil
}

// Repayment schedule operations
func (r *MemoryRepository) CreateScheduleEntries(ctx context.Context, entries []models.RepaymentSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range entries {
		e := entries[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		r.schedules[e.ID] = e
	}
	return nil
}

func (r *MemoryRepository) GetScheduleEntry(ctx context.Context, tenantID, id string) (*models.RepaymentSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.schedules[id]; ok && s.TenantID == tenantID {
		return &s, nil
	}
	return nil, nil
}

func (r *MemoryRepository) ListSchedule(ctx context.Context, tenantID, loanID string) ([]models.RepaymentSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RepaymentSchedule
	for _, s := range r.schedules {
		if s.TenantID == tenantID && s.LoanID == loanID {
			out = append(out, s)
		}
	}
	sortSchedulesByDueDate(out)
	return out, nil
}

func (r *MemoryRepository) ListOverdueSchedule(ctx context.Context, tenantID, loanID string, asOf time.Time) ([]models.RepaymentSchedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.RepaymentSchedule
	for _, s := range r.schedules {
		if s.TenantID == tenantID && s.LoanID == loanID &&
			s.Status == models.RepaymentStatusPending && s.DueDate.Before(asOf) {
			out = append(out, s)
		}
	}
	sortSchedulesByDueDate(out)
	return out, nil
}

func (r *MemoryRepository) UpdateScheduleStatus(ctx context.Context, tenantID, id string, status models.RepaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.schedules[id]; ok && s.TenantID == tenantID {
		s.Status = status
		r.schedules[id] = s
	}
	return nil
}

func (r *MemoryRepository) MarkScheduleLate(ctx context.Context, tenantID, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.schedules[id]
	if !ok || s.TenantID != tenantID || s.Status != models.RepaymentStatusPending {
		return false, nil
	}
	s.Status = models.RepaymentStatusLate
	r.schedules[id] = s
	return true, nil
}

func (r *MemoryRepository) CountUnpaidSchedule(ctx context.Context, tenantID, loanID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.schedules {
		if s.TenantID == tenantID && s.LoanID == loanID && s.Status != models.RepaymentStatusPaid {
			count++
		}
	}
	return count, nil
}

// Repayment transaction operations
func (r *MemoryRepository) CreateRepaymentTransaction(ctx context.Context, txn *models.RepaymentTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	if txn.TransactionDate.IsZero() {
		txn.TransactionDate = time.Now().UTC()
	}
	r.payments[txn.ID] = *txn
	return nil
}

func sortSchedulesByDueDate(entries []models.RepaymentSchedule) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].DueDate.Before(entries[j].DueDate)
	})
}
