package metering

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/identity"
	"github.com/metering/backend/internal/domain/metering"
	"github.com/metering/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// BulkUpgradeResult reports per-account outcomes of a bulk plan change.
// One account's failure does not block the others.
type BulkUpgradeResult struct {
	Succeeded []uuid.UUID          `json:"succeeded"`
	Failed    map[uuid.UUID]string `json:"failed"`
}

// PlanAdminService applies plan changes to accounts. It operates outside the
// metering hot path; only the explicit ResetUsage action touches counters.
type PlanAdminService struct {
	accountRepo identity.AccountRepository
	ledgerRepo  metering.UsageLedgerRepository
	catalog     *metering.PlanCatalog
	logger      *zap.Logger
	now         func() time.Time
}

// NewPlanAdminService creates a new PlanAdminService
func NewPlanAdminService(
	accountRepo identity.AccountRepository,
	ledgerRepo metering.UsageLedgerRepository,
	catalog *metering.PlanCatalog,
	logger *zap.Logger,
) *PlanAdminService {
	return &PlanAdminService{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		catalog:     catalog,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the service's time source (used in tests)
func (s *PlanAdminService) WithClock(now func() time.Time) *PlanAdminService {
	s.now = now
	return s
}

// Upgrade validates newPlan against the catalog and moves the account to it.
// Usage counters are not reset; that is a distinct administrative action.
func (s *PlanAdminService) Upgrade(ctx context.Context, accountID uuid.UUID, newPlan identity.AccountPlan) error {
	if accountID == uuid.Nil {
		return shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if _, err := s.catalog.LimitsFor(newPlan); err != nil {
		return err
	}

	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if err := account.ChangePlan(newPlan); err != nil {
		return err
	}
	if err := s.accountRepo.Update(ctx, account); err != nil {
		return err
	}

	s.logger.Info("plan upgraded",
		zap.String("account_id", accountID.String()),
		zap.String("plan", newPlan.String()))
	return nil
}

// BulkUpgrade applies Upgrade independently per account and reports
// per-account outcomes rather than failing the whole batch.
func (s *PlanAdminService) BulkUpgrade(ctx context.Context, accountIDs []uuid.UUID, newPlan identity.AccountPlan) BulkUpgradeResult {
	result := BulkUpgradeResult{
		Succeeded: make([]uuid.UUID, 0, len(accountIDs)),
		Failed:    make(map[uuid.UUID]string),
	}

	for _, accountID := range accountIDs {
		if err := s.Upgrade(ctx, accountID, newPlan); err != nil {
			result.Failed[accountID] = err.Error()
			continue
		}
		result.Succeeded = append(result.Succeeded, accountID)
	}

	if len(result.Failed) > 0 {
		s.logger.Warn("bulk plan upgrade completed with failures",
			zap.String("plan", newPlan.String()),
			zap.Int("succeeded", len(result.Succeeded)),
			zap.Int("failed", len(result.Failed)))
	}
	return result
}

// ResetUsage zeroes both monthly counters immediately, bypassing rollover
// logic. The daily free counter is untouched.
func (s *PlanAdminService) ResetUsage(ctx context.Context, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}

	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		entry, err := s.ledgerRepo.FindByAccount(ctx, accountID)
		if err != nil {
			return err
		}
		entry.ResetMonthlyCounters(s.now())

		err = s.ledgerRepo.Update(ctx, entry)
		if err == nil {
			s.logger.Info("usage counters reset", zap.String("account_id", accountID.String()))
			return nil
		}
		if !shared.IsRetryable(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}
