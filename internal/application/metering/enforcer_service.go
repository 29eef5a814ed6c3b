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

// DefaultDailyFreeTranslations is the fixed daily free-translation allotment,
// independent of plan.
const DefaultDailyFreeTranslations int64 = 3

// EnforcerConfig contains configuration for the quota enforcer
type EnforcerConfig struct {
	DailyFreeTranslations int64
}

// DefaultEnforcerConfig returns the default enforcer configuration
func DefaultEnforcerConfig() EnforcerConfig {
	return EnforcerConfig{
		DailyFreeTranslations: DefaultDailyFreeTranslations,
	}
}

// QuotaEnforcer answers "can this account perform N more units of operation X"
// before any state mutation. It is a read-only pre-check: the caller composes
// the decision with a cost quote and submits both to the transaction manager.
type QuotaEnforcer struct {
	accountRepo identity.AccountRepository
	ledgerRepo  metering.UsageLedgerRepository
	catalog     *metering.PlanCatalog
	logger      *zap.Logger

	dailyFreeAllotment int64
	now                func() time.Time
}

// NewQuotaEnforcer creates a new QuotaEnforcer
func NewQuotaEnforcer(
	accountRepo identity.AccountRepository,
	ledgerRepo metering.UsageLedgerRepository,
	catalog *metering.PlanCatalog,
	logger *zap.Logger,
	config EnforcerConfig,
) *QuotaEnforcer {
	allotment := config.DailyFreeTranslations
	if allotment <= 0 {
		allotment = DefaultDailyFreeTranslations
	}
	return &QuotaEnforcer{
		accountRepo:        accountRepo,
		ledgerRepo:         ledgerRepo,
		catalog:            catalog,
		logger:             logger,
		dailyFreeAllotment: allotment,
		now:                time.Now,
	}
}

// WithClock overrides the enforcer's time source (used in tests)
func (s *QuotaEnforcer) WithClock(now func() time.Time) *QuotaEnforcer {
	s.now = now
	return s
}

// Authorize checks whether the account may perform requestedUnits more units
// of the given operation under its plan quota. It performs no mutation beyond
// lazily persisting a period rollover.
func (s *QuotaEnforcer) Authorize(ctx context.Context, accountID uuid.UUID, op metering.MeteredOperation, requestedUnits int64) (metering.Decision, error) {
	if accountID == uuid.Nil {
		return metering.Decision{}, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if !op.IsValid() {
		return metering.Decision{}, shared.NewDomainError("INVALID_OPERATION", "Unknown metered operation")
	}
	if requestedUnits < 0 {
		return metering.Decision{}, shared.ErrInvalidQuantity
	}

	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return metering.Decision{}, err
	}

	limits, err := s.catalog.LimitsFor(account.Plan)
	if err != nil {
		return metering.Decision{}, err
	}

	ceiling := limits.QuotaFor(op)
	if ceiling == metering.UnlimitedQuota {
		return metering.AllowUnlimited(op), nil
	}

	entry, err := s.currentUsage(ctx, accountID)
	if err != nil {
		return metering.Decision{}, err
	}

	used := entry.UsedFor(op)
	remaining := ceiling - used
	if remaining < 0 {
		remaining = 0
	}
	if remaining < requestedUnits {
		s.logger.Debug("quota check denied",
			zap.String("account_id", accountID.String()),
			zap.String("operation", op.String()),
			zap.Int64("requested", requestedUnits),
			zap.Int64("remaining", remaining))
		return metering.Deny(op, metering.DenialReasonQuotaExceeded), nil
	}

	return metering.Allow(op, remaining-requestedUnits), nil
}

// AuthorizeDailyFreeTranslation checks the daily free-translation allotment,
// independent of plan. Denial here does not imply denial of paid translation:
// callers fall through to wallet-funded authorization.
func (s *QuotaEnforcer) AuthorizeDailyFreeTranslation(ctx context.Context, accountID uuid.UUID) (metering.Decision, error) {
	if accountID == uuid.Nil {
		return metering.Decision{}, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}

	entry, err := s.currentUsage(ctx, accountID)
	if err != nil {
		return metering.Decision{}, err
	}

	remaining := s.dailyFreeAllotment - entry.DailyFreeTranslationsUsed
	if remaining <= 0 {
		return metering.Deny(metering.OperationTranslations, metering.DenialReasonDailyFreeExhausted), nil
	}
	return metering.Allow(metering.OperationTranslations, remaining-1), nil
}

// CurrentUsage returns the account's usage snapshot after lazy rollover
func (s *QuotaEnforcer) CurrentUsage(ctx context.Context, accountID uuid.UUID) (metering.UsageSnapshot, error) {
	if accountID == uuid.Nil {
		return metering.UsageSnapshot{}, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	entry, err := s.currentUsage(ctx, accountID)
	if err != nil {
		return metering.UsageSnapshot{}, err
	}
	return metering.SnapshotOf(entry), nil
}

// currentUsage loads the ledger entry, applying lazy rollover. A rollover is
// persisted with the entry's version check so concurrent readers observe
// rollover-plus-read as one atomic unit; a conflict means another process
// already rolled over, so the entry is simply re-read.
func (s *QuotaEnforcer) currentUsage(ctx context.Context, accountID uuid.UUID) (*metering.UsageLedgerEntry, error) {
	const maxAttempts = 3

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		entry, err := s.ledgerRepo.FindByAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}

		if !entry.RolloverIfNeeded(s.now()) {
			return entry, nil
		}

		err = s.ledgerRepo.Update(ctx, entry)
		if err == nil {
			return entry, nil
		}
		if !shared.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
