package metering

import (
	"context"

	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/shared"
)

// WalletRepository defines persistence operations for wallets
type WalletRepository interface {
	// FindByAccount retrieves the wallet for an account
	FindByAccount(ctx context.Context, accountID uuid.UUID) (*Wallet, error)

	// Save persists a new wallet
	Save(ctx context.Context, wallet *Wallet) error

	// Update persists changes using optimistic locking; returns
	// shared.ErrConcurrencyConflict on a version mismatch
	Update(ctx context.Context, wallet *Wallet) error
}

// UsageLedgerRepository defines persistence operations for usage ledger entries
type UsageLedgerRepository interface {
	// FindByAccount retrieves the ledger entry for an account
	FindByAccount(ctx context.Context, accountID uuid.UUID) (*UsageLedgerEntry, error)

	// Save persists a new ledger entry
	Save(ctx context.Context, entry *UsageLedgerEntry) error

	// Update persists changes using optimistic locking; returns
	// shared.ErrConcurrencyConflict on a version mismatch
	Update(ctx context.Context, entry *UsageLedgerEntry) error
}

// WalletTransactionRepository defines persistence for the wallet audit trail
type WalletTransactionRepository interface {
	// Save appends an immutable transaction record
	Save(ctx context.Context, tx *WalletTransaction) error

	// FindByAccount lists transactions for an account, newest first
	FindByAccount(ctx context.Context, accountID uuid.UUID, filter shared.Filter) ([]*WalletTransaction, int64, error)
}

// UnitOfWork runs fn with repositories bound to a single atomic unit of work:
// either every write inside fn is made durable, or none are. Implementations
// back this with a database transaction.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(repos UnitOfWorkRepos) error) error
}

// UnitOfWorkRepos are the repositories participating in one unit of work
type UnitOfWorkRepos struct {
	Wallets      WalletRepository
	Ledgers      UsageLedgerRepository
	Transactions WalletTransactionRepository
}
