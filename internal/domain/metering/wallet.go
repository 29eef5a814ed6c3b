package metering

import (
	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/shared"
	"github.com/metering/backend/internal/domain/shared/valueobject"
)

// Wallet is the durable per-account monetary balance used to pay for usage
// beyond plan quotas. Balance is held in integer minor currency units and
// never goes negative: Debit pre-checks before mutating.
type Wallet struct {
	shared.BaseAggregateRoot
	AccountID uuid.UUID
	Balance   valueobject.Money
}

// NewWallet creates a wallet with a zero starting balance
func NewWallet(accountID uuid.UUID) (*Wallet, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	return &Wallet{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		AccountID:         accountID,
		Balance:           valueobject.ZeroDefault(),
	}, nil
}

// Credit adds funds to the wallet. Fails with INVALID_QUANTITY if the amount
// is zero or negative.
func (w *Wallet) Credit(amount valueobject.Money) error {
	if !amount.IsPositive() {
		return shared.ErrInvalidQuantity
	}
	balance, err := w.Balance.Add(amount)
	if err != nil {
		return shared.NewDomainError("CURRENCY_MISMATCH", err.Error())
	}
	w.Balance = balance
	return nil
}

// Debit subtracts funds only if the balance covers the amount; otherwise it
// fails with INSUFFICIENT_FUNDS and performs no mutation.
func (w *Wallet) Debit(amount valueobject.Money) error {
	if amount.IsNegative() {
		return shared.ErrInvalidQuantity
	}
	covered, err := w.Balance.GreaterThanOrEqual(amount)
	if err != nil {
		return shared.NewDomainError("CURRENCY_MISMATCH", err.Error())
	}
	if !covered {
		return shared.ErrInsufficientFunds
	}
	w.Balance = w.Balance.MustSubtract(amount)
	return nil
}

// CanCover returns true if the balance is at least the given amount
func (w *Wallet) CanCover(amount valueobject.Money) bool {
	covered, err := w.Balance.GreaterThanOrEqual(amount)
	return err == nil && covered
}
