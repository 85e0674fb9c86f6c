package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/microfinlabs/microfin-server/internal/models"
	"github.com/microfinlabs/microfin-server/internal/repository"
	"github.com/shopspring/decimal"
)

// Well-known account codes seeded into every tenant's chart of accounts.
const (
	cashAccountCode            = "1010"
	loansReceivableAccountCode = "1100"
	clientSavingsAccountCode   = "2010"
	interestRevenueAccountCode = "4010"
	penaltyRevenueAccountCode  = "4020"
)

// postTransaction stages a balanced, two-legged posting to the General
// Ledger through the caller's transaction-scoped repository. Both legs
// share one freshly generated transaction-group id and are staged
// together or not at all; the commit belongs to the caller.
func (s *DefaultService) postTransaction(
	ctx context.Context,
	tx repository.Repository,
	tenantID string,
	description string,
	debitAccountCode string,
	creditAccountCode string,
	amount decimal.Decimal,
) (string, error) {
	if amount.IsNegative() {
		return "", errValidation("posting amount must not be negative")
	}

	debitAccount, err := s.resolveAccount(ctx, tx, tenantID, debitAccountCode)
	if err != nil {
		return "", err
	}
	creditAccount, err := s.resolveAccount(ctx, tx, tenantID, creditAccountCode)
	if err != nil {
		return "", err
	}

	transactionID := uuid.New().String()
	transactionDate := s.now().UTC()
	amount = amount.Round(2)

	entries := []models.GeneralLedgerEntry{
		{
			TenantID:        tenantID,
			TransactionID:   transactionID,
			TransactionDate: transactionDate,
			Description:     description,
			AccountID:       debitAccount.ID,
			Debit:           amount,
			Credit:          decimal.Zero,
		},
		{
			TenantID:        tenantID,
			TransactionID:   transactionID,
			TransactionDate: transactionDate,
			Description:     description,
			AccountID:       creditAccount.ID,
			Debit:           decimal.Zero,
			Credit:          amount,
		},
	}

	if err := tx.CreateLedgerEntries(ctx, entries); err != nil {
		return "", err
	}
	return transactionID, nil
}

// resolveAccount looks up an active account by code for the tenant. A
// missing or inactive account is an accounting misconfiguration, never
// auto-created.
func (s *DefaultService) resolveAccount(ctx context.Context, tx repository.Repository, tenantID, code string) (*models.ChartOfAccount, error) {
	account, err := tx.GetAccountByCode(ctx, tenantID, code)
	if err != nil {
		return nil, err
	}
	if account == nil || !account.IsActive {
		return nil, errConfig("accounting misconfiguration: account %q not found for tenant", code)
	}
	return account, nil
}

// ListLedgerEntries returns every General Ledger entry for the actor's
// tenant, in posting order.
func (s *DefaultService) ListLedgerEntries(ctx context.Context, actorID string) ([]models.GeneralLedgerEntry, error) {
	user, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLedgerEntries(ctx, user.TenantID)
}
