package metering

import (
	"time"

	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/shared"
	"github.com/metering/backend/internal/domain/shared/valueobject"
)

// WalletTransactionType represents the type of wallet transaction
type WalletTransactionType string

const (
	// WalletTransactionTypeTopUp represents a deposit recorded after the
	// external payment gateway confirms a charge (balance increase)
	WalletTransactionTypeTopUp WalletTransactionType = "TOPUP"
	// WalletTransactionTypeCharge represents paying for metered usage (balance decrease)
	WalletTransactionTypeCharge WalletTransactionType = "CHARGE"
	// WalletTransactionTypeBonus represents a signup/welcome credit (balance increase)
	WalletTransactionTypeBonus WalletTransactionType = "BONUS"
	// WalletTransactionTypeAdjustment represents a manual correction
	WalletTransactionTypeAdjustment WalletTransactionType = "ADJUSTMENT"
)

// String returns the string representation of WalletTransactionType
func (t WalletTransactionType) String() string {
	return string(t)
}

// IsValid returns true if the transaction type is valid
func (t WalletTransactionType) IsValid() bool {
	switch t {
	case WalletTransactionTypeTopUp,
		WalletTransactionTypeCharge,
		WalletTransactionTypeBonus,
		WalletTransactionTypeAdjustment:
		return true
	}
	return false
}

// IsIncrease returns true if this transaction type increases balance
func (t WalletTransactionType) IsIncrease() bool {
	switch t {
	case WalletTransactionTypeTopUp, WalletTransactionTypeBonus:
		return true
	}
	return false
}

// WalletTransaction is an immutable record of a wallet balance change.
// Once created, transactions cannot be modified - corrections are made with
// new transactions. It is written in the same unit of work as the balance
// mutation it records.
type WalletTransaction struct {
	shared.BaseEntity
	AccountID       uuid.UUID
	TransactionType WalletTransactionType
	Amount          valueobject.Money // always positive, direction from type
	BalanceBefore   valueobject.Money
	BalanceAfter    valueobject.Money
	Reference       string // idempotency key or gateway reference
	TransactionDate time.Time
}

// NewWalletTransaction creates a new wallet transaction record
func NewWalletTransaction(
	accountID uuid.UUID,
	txType WalletTransactionType,
	amount valueobject.Money,
	balanceBefore valueobject.Money,
	balanceAfter valueobject.Money,
) (*WalletTransaction, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if !txType.IsValid() {
		return nil, shared.NewDomainError("INVALID_TRANSACTION_TYPE", "Invalid wallet transaction type")
	}
	if !amount.IsPositive() {
		return nil, shared.ErrInvalidQuantity
	}
	if balanceBefore.IsNegative() || balanceAfter.IsNegative() {
		return nil, shared.NewDomainError("INVALID_BALANCE", "Balance cannot be negative")
	}

	return &WalletTransaction{
		BaseEntity:      shared.NewBaseEntity(),
		AccountID:       accountID,
		TransactionType: txType,
		Amount:          amount,
		BalanceBefore:   balanceBefore,
		BalanceAfter:    balanceAfter,
		TransactionDate: time.Now(),
	}, nil
}

// WithReference sets the reference for the transaction
func (t *WalletTransaction) WithReference(reference string) *WalletTransaction {
	t.Reference = reference
	return t
}

// SignedAmount returns the amount with sign based on transaction type
func (t *WalletTransaction) SignedAmount() valueobject.Money {
	if t.TransactionType.IsIncrease() {
		return t.Amount
	}
	if t.TransactionType == WalletTransactionTypeAdjustment {
		return t.BalanceAfter.MustSubtract(t.BalanceBefore)
	}
	return t.Amount.Negate()
}
