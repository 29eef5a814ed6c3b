package metering

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/identity"
	"github.com/metering/backend/internal/domain/metering"
	"github.com/metering/backend/internal/domain/shared"
	"github.com/metering/backend/internal/domain/shared/valueobject"
	"go.uber.org/zap"
)

// AccountServiceConfig contains configuration for account provisioning
type AccountServiceConfig struct {
	// SignupBonusMinorUnits is credited to a new account's wallet at
	// creation. Zero disables the bonus.
	SignupBonusMinorUnits int64
}

// DefaultAccountServiceConfig returns the default configuration
func DefaultAccountServiceConfig() AccountServiceConfig {
	return AccountServiceConfig{
		SignupBonusMinorUnits: 100, // 1.00 welcome credit
	}
}

// AccountService provisions the metering records for an account: the account
// row itself, a zeroed usage ledger, and a wallet with the optional signup
// bonus. It also serves the read side of the wallet surface.
type AccountService struct {
	accountRepo identity.AccountRepository
	walletRepo  metering.WalletRepository
	ledgerRepo  metering.UsageLedgerRepository
	txRepo      metering.WalletTransactionRepository
	txManager   *TransactionManager
	logger      *zap.Logger
	config      AccountServiceConfig
	now         func() time.Time
}

// NewAccountService creates a new AccountService
func NewAccountService(
	accountRepo identity.AccountRepository,
	walletRepo metering.WalletRepository,
	ledgerRepo metering.UsageLedgerRepository,
	txRepo metering.WalletTransactionRepository,
	txManager *TransactionManager,
	logger *zap.Logger,
	config AccountServiceConfig,
) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		walletRepo:  walletRepo,
		ledgerRepo:  ledgerRepo,
		txRepo:      txRepo,
		txManager:   txManager,
		logger:      logger,
		config:      config,
		now:         time.Now,
	}
}

// CreateAccount provisions a new account on the given plan with a zeroed
// ledger and wallet. The signup bonus, when configured, is granted through
// the transaction manager so it lands in the audit trail.
func (s *AccountService) CreateAccount(ctx context.Context, plan identity.AccountPlan) (*identity.Account, error) {
	account, err := identity.NewAccountWithPlan(plan)
	if err != nil {
		return nil, err
	}
	if err := s.accountRepo.Save(ctx, account); err != nil {
		return nil, err
	}

	wallet, err := metering.NewWallet(account.ID)
	if err != nil {
		return nil, err
	}
	if err := s.walletRepo.Save(ctx, wallet); err != nil {
		return nil, err
	}

	entry, err := metering.NewUsageLedgerEntry(account.ID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.ledgerRepo.Save(ctx, entry); err != nil {
		return nil, err
	}

	if s.config.SignupBonusMinorUnits > 0 {
		bonus := valueobject.NewMoneyFromMinorUnits(s.config.SignupBonusMinorUnits)
		if _, err := s.txManager.GrantBonus(ctx, account.ID, bonus, "signup-bonus"); err != nil {
			// The account is usable without the bonus; report and move on.
			s.logger.Warn("failed to grant signup bonus",
				zap.String("account_id", account.ID.String()), zap.Error(err))
		}
	}

	s.logger.Info("account provisioned",
		zap.String("account_id", account.ID.String()),
		zap.String("plan", plan.String()))
	return account, nil
}

// GetAccount retrieves an account
func (s *AccountService) GetAccount(ctx context.Context, accountID uuid.UUID) (*identity.Account, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	return s.accountRepo.FindByID(ctx, accountID)
}

// BalanceOf returns the wallet balance for an account
func (s *AccountService) BalanceOf(ctx context.Context, accountID uuid.UUID) (valueobject.Money, error) {
	if accountID == uuid.Nil {
		return valueobject.Money{}, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	wallet, err := s.walletRepo.FindByAccount(ctx, accountID)
	if err != nil {
		return valueobject.Money{}, err
	}
	return wallet.Balance, nil
}

// ListWalletTransactions lists the wallet audit trail for an account
func (s *AccountService) ListWalletTransactions(ctx context.Context, accountID uuid.UUID, filter shared.Filter) ([]*metering.WalletTransaction, int64, error) {
	if accountID == uuid.Nil {
		return nil, 0, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	return s.txRepo.FindByAccount(ctx, accountID, filter)
}
