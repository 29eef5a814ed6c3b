package persistence

import (
	"context"

	"github.com/metering/backend/internal/domain/metering"
	"gorm.io/gorm"
)

// GormUnitOfWork implements metering.UnitOfWork on a database transaction.
// Every repository handed to fn is bound to the same transaction, so the
// wallet debit, the counter increment and the audit record commit or roll
// back together.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork creates a new unit of work bound to the given database
func NewUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Execute runs fn inside a transaction. fn returning an error rolls back.
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(repos metering.UnitOfWorkRepos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(metering.UnitOfWorkRepos{
			Wallets:      NewWalletRepository(tx),
			Ledgers:      NewUsageLedgerRepository(tx),
			Transactions: NewWalletTransactionRepository(tx),
		})
	})
}

// Ensure GormUnitOfWork implements the interface
var _ metering.UnitOfWork = (*GormUnitOfWork)(nil)
