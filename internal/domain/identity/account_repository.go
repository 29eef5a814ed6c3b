package identity

import (
	"context"

	"github.com/google/uuid"
)

// AccountRepository defines persistence operations for accounts
type AccountRepository interface {
	// FindByID retrieves an account by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// Save persists a new account
	Save(ctx context.Context, account *Account) error

	// Update persists changes to an existing account using optimistic
	// locking; returns shared.ErrConcurrencyConflict on a version mismatch
	Update(ctx context.Context, account *Account) error
}
