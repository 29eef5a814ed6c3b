package metering

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/identity"
	"github.com/metering/backend/internal/domain/metering"
	"github.com/metering/backend/internal/domain/shared/valueobject"
	"github.com/metering/backend/internal/infrastructure/cache"
	"github.com/metering/backend/internal/infrastructure/lock"
	"github.com/metering/backend/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testEnv wires the services against an in-memory database and real
// repositories, so the optimistic-locking and transaction semantics under
// test match production behavior.
type testEnv struct {
	accountRepo *persistence.GormAccountRepository
	walletRepo  *persistence.GormWalletRepository
	ledgerRepo  *persistence.GormUsageLedgerRepository
	txRepo      *persistence.GormWalletTransactionRepository

	txManager *TransactionManager
	enforcer  *QuotaEnforcer
	accounts  *AccountService
	planAdmin *PlanAdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&persistence.AccountModel{},
		&persistence.WalletModel{},
		&persistence.UsageLedgerModel{},
		&persistence.WalletTransactionModel{},
	))

	logger := zap.NewNop()
	accountRepo := persistence.NewAccountRepository(db)
	walletRepo := persistence.NewWalletRepository(db)
	ledgerRepo := persistence.NewUsageLedgerRepository(db)
	txRepo := persistence.NewWalletTransactionRepository(db)
	uow := persistence.NewUnitOfWork(db)

	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	catalog := metering.DefaultPlanCatalog()

	txManager := NewTransactionManager(uow, store, lock.NewKeyedMutex(), logger, DefaultTransactionManagerConfig())
	enforcer := NewQuotaEnforcer(accountRepo, ledgerRepo, catalog, logger, DefaultEnforcerConfig())
	accounts := NewAccountService(accountRepo, walletRepo, ledgerRepo, txRepo, txManager, logger, AccountServiceConfig{})
	planAdmin := NewPlanAdminService(accountRepo, ledgerRepo, catalog, logger)

	return &testEnv{
		accountRepo: accountRepo,
		walletRepo:  walletRepo,
		ledgerRepo:  ledgerRepo,
		txRepo:      txRepo,
		txManager:   txManager,
		enforcer:    enforcer,
		accounts:    accounts,
		planAdmin:   planAdmin,
	}
}

// provision creates an account with its wallet and ledger, no signup bonus
func (e *testEnv) provision(t *testing.T, plan identity.AccountPlan) uuid.UUID {
	t.Helper()
	ctx := context.Background()

	account, err := identity.NewAccountWithPlan(plan)
	require.NoError(t, err)
	require.NoError(t, e.accountRepo.Save(ctx, account))

	wallet, err := metering.NewWallet(account.ID)
	require.NoError(t, err)
	require.NoError(t, e.walletRepo.Save(ctx, wallet))

	entry, err := metering.NewUsageLedgerEntry(account.ID, time.Now())
	require.NoError(t, err)
	require.NoError(t, e.ledgerRepo.Save(ctx, entry))

	return account.ID
}

// fund credits the wallet through the transaction manager
func (e *testEnv) fund(t *testing.T, accountID uuid.UUID, minorUnits int64) {
	t.Helper()
	_, err := e.txManager.TopUp(context.Background(), accountID, valueobject.NewMoneyFromMinorUnits(minorUnits), "test-funding")
	require.NoError(t, err)
}

// pagesCharge builds a cost quote for pageCount pages at default prices
func pagesCharge(t *testing.T, pageCount int64) metering.CostQuote {
	t.Helper()
	quote, err := metering.DefaultPriceList().QuotePages(pageCount)
	require.NoError(t, err)
	return quote
}
