package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tenants (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) UNIQUE NOT NULL,
			subdomain VARCHAR(63) UNIQUE NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tenant_settings (
			id VARCHAR(36) PRIMARY KEY,
			tenant_id VARCHAR(36) UNIQUE NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			currency VARCHAR(3) NOT NULL,
			configurations JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chart_of_accounts (
			id VARCHAR(36) PRIMARY KEY,
			tenant_id VARCHAR(36) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			account_code VARCHAR(10) NOT NULL,
			account_type VARCHAR(20) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (tenant_id, account_code)
		)`,
		`CREATE TABLE IF NOT EXISTS general_ledger_entries (
			id VARCHAR(36) PRIMARY KEY,
			tenant_id VARCHAR(36) NOT NULL REFERENCES tenants(id),
			transaction_id VARCHAR(36) NOT NULL,
			transaction_date TIMESTAMP NOT NULL,
			description TEXT NOT NULL,
			account_id VARCHAR(36) NOT NULL REFERENCES chart_of_accounts(id),
			debit NUMERIC(12,2) NOT NULL DEFAULT 0,
			credit NUMERIC(12,2) NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id VARCHAR(36) PRIMARY KEY,
			tenant_id VARCHAR(36) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			first_name VARCHAR(255) NOT NULL,
			last_name VARCHAR(255) NOT NULL,
			phone_number VARCHAR(32),
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			tenant_id VARCHAR(36) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			email VARCHAR(255) UNIQUE NOT NULL,
			password VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			client_id VARCHAR(36) UNIQUE REFERENCES clients(id),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS loan_products (
			id VARCHAR(36) PRIMARY KEY,
			tenant_id VARCHAR(36) NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			interest_rate NUMERIC(5,2) NOT NULL,
			max_tenure_months INTEGER NOT NULL,
			grace_period_days INTEGER NOT NULL DEFAULT 0,
			penalty_type VARCHAR(10),
			penalty_value NUMERIC(10,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS loans (
			id VARCHAR(36) PRIMARY KEY,
			tenant_id VARCHAR(36) NOT NULL REFERENCES tenants(id),
			client_id VARCHAR(36) NOT NULL REFERENCES clients(id),
			loan_product_id VARCHAR(36) NOT NULL REFERENCES loan_products(id),
			assigned_officer_id VARCHAR(36) REFERENCES users(id),
			amount_requested NUMERIC(12,2) NOT NULL,
			tenure_months INTEGER NOT NULL,
			status VARCHAR(20) NOT NULL,
			applied_at TIMESTAMP NOT NULL,
			approved_at TIMESTAMP,
			disbursed_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS repayment_schedules (
			id VARCHAR(36) PRIMARY KEY,
			tenant_id VARCHAR(36) NOT NULL REFERENCES tenants(id),
			loan_id VARCHAR(36) NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
			due_date TIMESTAMP NOT NULL,
			amount_due NUMERIC(12,2) NOT NULL,
			principal_due NUMERIC(12,2) NOT NULL,
			interest_due NUMERIC(12,2) NOT NULL,
			status VARCHAR(10) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS repayment_transactions (
			id VARCHAR(36) PRIMARY KEY,
			tenant_id VARCHAR(36) NOT NULL REFERENCES tenants(id),
			loan_id VARCHAR(36) NOT NULL REFERENCES loans(id),
			schedule_id VARCHAR(36) REFERENCES repayment_schedules(id),
			amount_paid NUMERIC(12,2) NOT NULL,
			transaction_date TIMESTAMP NOT NULL,
			recorded_by_user_id VARCHAR(36) NOT NULL REFERENCES users(id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_gl_entries_tenant_txn ON general_ledger_entries(tenant_id, transaction_id)",
		"CREATE INDEX IF NOT EXISTS idx_loans_tenant ON loans(tenant_id)",
		"CREATE INDEX IF NOT EXISTS idx_schedules_loan ON repayment_schedules(tenant_id, loan_id)",
		"CREATE INDEX IF NOT EXISTS idx_schedules_due ON repayment_schedules(tenant_id, loan_id, status, due_date)",
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
