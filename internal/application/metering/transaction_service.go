package metering

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/metering"
	"github.com/metering/backend/internal/domain/shared"
	"github.com/metering/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// AccountLocker serializes in-process mutations per account. Different keys
// never contend on the same lock.
type AccountLocker interface {
	Lock(key string)
	Unlock(key string)
}

// TransactionManagerConfig contains configuration for the transaction manager
type TransactionManagerConfig struct {
	MaxAttempts    int           // attempts per apply before surfacing a conflict
	RetryBackoff   time.Duration // base backoff between attempts, doubled each retry
	IdempotencyTTL time.Duration // how long idempotency keys are remembered
}

// DefaultTransactionManagerConfig returns the default configuration
func DefaultTransactionManagerConfig() TransactionManagerConfig {
	return TransactionManagerConfig{
		MaxAttempts:    5,
		RetryBackoff:   10 * time.Millisecond,
		IdempotencyTTL: 24 * time.Hour,
	}
}

// TransactionManager is the single mutation entry point for wallets and usage
// ledgers. A call either applies all of its effects - wallet debit, counter
// increments, audit record - or none of them. Calls against the same account
// are linearizable: in-process callers serialize on a per-account lock, and
// cross-process races are caught by optimistic version checks and retried
// with bounded backoff.
type TransactionManager struct {
	uow         metering.UnitOfWork
	idempotency shared.IdempotencyStore
	locker      AccountLocker
	logger      *zap.Logger
	config      TransactionManagerConfig
	now         func() time.Time
}

// NewTransactionManager creates a new TransactionManager
func NewTransactionManager(
	uow metering.UnitOfWork,
	idempotency shared.IdempotencyStore,
	locker AccountLocker,
	logger *zap.Logger,
	config TransactionManagerConfig,
) *TransactionManager {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultTransactionManagerConfig().MaxAttempts
	}
	if config.IdempotencyTTL <= 0 {
		config.IdempotencyTTL = DefaultTransactionManagerConfig().IdempotencyTTL
	}
	return &TransactionManager{
		uow:         uow,
		idempotency: idempotency,
		locker:      locker,
		logger:      logger,
		config:      config,
		now:         time.Now,
	}
}

// WithClock overrides the manager's time source (used in tests)
func (m *TransactionManager) WithClock(now func() time.Time) *TransactionManager {
	m.now = now
	return m
}

// Apply atomically debits the wallet by charge.TotalCost (when positive) and
// increments the usage counters by deltas. A repeated call with the same
// idempotency key replays the original receipt instead of mutating again.
func (m *TransactionManager) Apply(
	ctx context.Context,
	accountID uuid.UUID,
	charge metering.CostQuote,
	deltas metering.UsageDeltas,
	idempotencyKey string,
) (*metering.Receipt, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if deltas.Pages < 0 || deltas.Translations < 0 {
		return nil, shared.ErrInvalidQuantity
	}
	if charge.TotalCost.IsNegative() {
		return nil, shared.ErrInvalidQuantity
	}

	if idempotencyKey != "" {
		if receipt, ok, err := m.lookupReceipt(ctx, accountID, idempotencyKey); err != nil {
			return nil, err
		} else if ok {
			return receipt, nil
		}

		claimed, err := m.idempotency.Begin(ctx, m.idempotencyStoreKey(accountID, idempotencyKey), m.config.IdempotencyTTL)
		if err != nil {
			return nil, shared.ErrStorageUnavailable
		}
		if !claimed {
			// Another call with this key is in flight or already done.
			if receipt, ok, err := m.lookupReceipt(ctx, accountID, idempotencyKey); err != nil {
				return nil, err
			} else if ok {
				return receipt, nil
			}
			return nil, shared.ErrConcurrencyConflict
		}
	}

	receipt, err := m.applyLocked(ctx, accountID, charge, deltas, idempotencyKey)

	if idempotencyKey != "" {
		storeKey := m.idempotencyStoreKey(accountID, idempotencyKey)
		if err != nil {
			// Free the key so the caller may retry the whole sequence.
			if relErr := m.idempotency.Release(ctx, storeKey); relErr != nil {
				m.logger.Warn("failed to release idempotency key",
					zap.String("account_id", accountID.String()), zap.Error(relErr))
			}
		} else if payload, marshalErr := json.Marshal(receipt); marshalErr == nil {
			if cmpErr := m.idempotency.Complete(ctx, storeKey, payload, m.config.IdempotencyTTL); cmpErr != nil {
				m.logger.Warn("failed to store receipt for idempotency key",
					zap.String("account_id", accountID.String()), zap.Error(cmpErr))
			}
		}
	}

	return receipt, err
}

// TopUp credits the wallet after the external payment gateway confirms a
// successful charge. The core does not initiate or verify payments; it only
// records the resulting balance credit together with its audit record.
func (m *TransactionManager) TopUp(ctx context.Context, accountID uuid.UUID, amount valueobject.Money, reference string) (valueobject.Money, error) {
	return m.creditWallet(ctx, accountID, amount, metering.WalletTransactionTypeTopUp, reference)
}

// GrantBonus credits a signup/welcome bonus to the wallet
func (m *TransactionManager) GrantBonus(ctx context.Context, accountID uuid.UUID, amount valueobject.Money, reference string) (valueobject.Money, error) {
	return m.creditWallet(ctx, accountID, amount, metering.WalletTransactionTypeBonus, reference)
}

// ConsumeDailyFreeTranslation records one unpaid translation against the daily
// free allotment. No money moves and no monthly counter changes. The caller is
// expected to have authorized the consumption first; this method still rolls
// the window over before incrementing.
func (m *TransactionManager) ConsumeDailyFreeTranslation(ctx context.Context, accountID uuid.UUID) (metering.UsageSnapshot, error) {
	if accountID == uuid.Nil {
		return metering.UsageSnapshot{}, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}

	m.locker.Lock(accountID.String())
	defer m.locker.Unlock(accountID.String())

	var snapshot metering.UsageSnapshot
	err := m.withRetry(ctx, accountID, func() error {
		return m.uow.Execute(ctx, func(repos metering.UnitOfWorkRepos) error {
			entry, err := repos.Ledgers.FindByAccount(ctx, accountID)
			if err != nil {
				return err
			}
			entry.IncrementDailyFree(m.now())
			if err := repos.Ledgers.Update(ctx, entry); err != nil {
				return err
			}
			snapshot = metering.SnapshotOf(entry)
			return nil
		})
	})
	if err != nil {
		return metering.UsageSnapshot{}, err
	}

	m.logger.Info("daily free translation consumed",
		zap.String("account_id", accountID.String()),
		zap.Int64("used_today", snapshot.DailyFreeTranslationsUsed))
	return snapshot, nil
}

func (m *TransactionManager) creditWallet(
	ctx context.Context,
	accountID uuid.UUID,
	amount valueobject.Money,
	txType metering.WalletTransactionType,
	reference string,
) (valueobject.Money, error) {
	if accountID == uuid.Nil {
		return valueobject.Money{}, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if !amount.IsPositive() {
		return valueobject.Money{}, shared.ErrInvalidQuantity
	}

	m.locker.Lock(accountID.String())
	defer m.locker.Unlock(accountID.String())

	var newBalance valueobject.Money
	err := m.withRetry(ctx, accountID, func() error {
		return m.uow.Execute(ctx, func(repos metering.UnitOfWorkRepos) error {
			wallet, err := repos.Wallets.FindByAccount(ctx, accountID)
			if err != nil {
				return err
			}

			before := wallet.Balance
			if err := wallet.Credit(amount); err != nil {
				return err
			}

			tx, err := metering.NewWalletTransaction(accountID, txType, amount, before, wallet.Balance)
			if err != nil {
				return err
			}
			tx.WithReference(reference)

			if err := repos.Transactions.Save(ctx, tx); err != nil {
				return err
			}
			if err := repos.Wallets.Update(ctx, wallet); err != nil {
				return err
			}
			newBalance = wallet.Balance
			return nil
		})
	})
	if err != nil {
		return valueobject.Money{}, err
	}

	m.logger.Info("wallet credited",
		zap.String("account_id", accountID.String()),
		zap.String("type", txType.String()),
		zap.Int64("amount_minor_units", amount.MinorUnits()),
		zap.Int64("balance_minor_units", newBalance.MinorUnits()))
	return newBalance, nil
}

// applyLocked runs the debit-and-increment under the per-account lock
func (m *TransactionManager) applyLocked(
	ctx context.Context,
	accountID uuid.UUID,
	charge metering.CostQuote,
	deltas metering.UsageDeltas,
	idempotencyKey string,
) (*metering.Receipt, error) {
	m.locker.Lock(accountID.String())
	defer m.locker.Unlock(accountID.String())

	var receipt *metering.Receipt
	err := m.withRetry(ctx, accountID, func() error {
		return m.uow.Execute(ctx, func(repos metering.UnitOfWorkRepos) error {
			now := m.now()

			wallet, err := repos.Wallets.FindByAccount(ctx, accountID)
			if err != nil {
				return err
			}
			entry, err := repos.Ledgers.FindByAccount(ctx, accountID)
			if err != nil {
				return err
			}
			entry.RolloverIfNeeded(now)

			var debited bool
			before := wallet.Balance
			if charge.TotalCost.IsPositive() {
				if err := wallet.Debit(charge.TotalCost); err != nil {
					return err
				}
				debited = true
			}

			if deltas.Pages > 0 {
				if err := entry.Increment(metering.OperationPages, deltas.Pages, now); err != nil {
					return err
				}
			}
			if deltas.Translations > 0 {
				if err := entry.Increment(metering.OperationTranslations, deltas.Translations, now); err != nil {
					return err
				}
			}

			if debited {
				tx, err := metering.NewWalletTransaction(
					accountID, metering.WalletTransactionTypeCharge,
					charge.TotalCost, before, wallet.Balance,
				)
				if err != nil {
					return err
				}
				tx.WithReference(idempotencyKey)
				if err := repos.Transactions.Save(ctx, tx); err != nil {
					return err
				}
				if err := repos.Wallets.Update(ctx, wallet); err != nil {
					return err
				}
			}
			if err := repos.Ledgers.Update(ctx, entry); err != nil {
				return err
			}

			receipt = &metering.Receipt{
				AccountID:      accountID,
				IdempotencyKey: idempotencyKey,
				Charge:         charge,
				NewBalance:     wallet.Balance,
				Usage:          metering.SnapshotOf(entry),
				AppliedAt:      now,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	m.logger.Info("charge applied",
		zap.String("account_id", accountID.String()),
		zap.Int64("charged_minor_units", charge.TotalCost.MinorUnits()),
		zap.Int64("pages_delta", deltas.Pages),
		zap.Int64("translations_delta", deltas.Translations))
	return receipt, nil
}

// withRetry retries fn with bounded exponential backoff while it fails with a
// retryable error. Business denials and caller bugs surface immediately.
func (m *TransactionManager) withRetry(ctx context.Context, accountID uuid.UUID, fn func() error) error {
	backoff := m.config.RetryBackoff

	var err error
	for attempt := 1; attempt <= m.config.MaxAttempts; attempt++ {
		err = fn()
		if err == nil || !shared.IsRetryable(err) {
			return err
		}

		m.logger.Debug("retrying metering mutation",
			zap.String("account_id", accountID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == m.config.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func (m *TransactionManager) idempotencyStoreKey(accountID uuid.UUID, key string) string {
	return accountID.String() + ":" + key
}

func (m *TransactionManager) lookupReceipt(ctx context.Context, accountID uuid.UUID, key string) (*metering.Receipt, bool, error) {
	payload, ok, err := m.idempotency.Lookup(ctx, m.idempotencyStoreKey(accountID, key))
	if err != nil {
		return nil, false, shared.ErrStorageUnavailable
	}
	if !ok {
		return nil, false, nil
	}

	var receipt metering.Receipt
	if err := json.Unmarshal(payload, &receipt); err != nil {
		return nil, false, errors.New("stored receipt is corrupt")
	}
	receipt.Replayed = true
	return &receipt, true, nil
}
