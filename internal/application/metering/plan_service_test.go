package metering

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/identity"
	"github.com/metering/backend/internal/domain/metering"
	"github.com/metering/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanAdminUpgrade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	accountID := env.provision(t, identity.AccountPlanFree)

	require.NoError(t, env.planAdmin.Upgrade(ctx, accountID, identity.AccountPlanPro))

	account, err := env.accountRepo.FindByID(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, identity.AccountPlanPro, account.Plan)
	require.NotNil(t, account.PlanUpgradedAt)

	// the new plan's quotas take effect immediately
	decision, err := env.enforcer.Authorize(ctx, accountID, metering.OperationPages, 500)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestPlanAdminUpgradeErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	accountID := env.provision(t, identity.AccountPlanFree)

	err := env.planAdmin.Upgrade(ctx, accountID, identity.AccountPlan("platinum"))
	assert.ErrorIs(t, err, shared.ErrUnknownPlan)

	err = env.planAdmin.Upgrade(ctx, uuid.New(), identity.AccountPlanBasic)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestPlanAdminBulkUpgrade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.provision(t, identity.AccountPlanFree)
	second := env.provision(t, identity.AccountPlanBasic)
	missing := uuid.New()

	result := env.planAdmin.BulkUpgrade(ctx, []uuid.UUID{first, second, missing}, identity.AccountPlanPro)

	assert.ElementsMatch(t, []uuid.UUID{first, second}, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Contains(t, result.Failed, missing)

	for _, id := range []uuid.UUID{first, second} {
		account, err := env.accountRepo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, identity.AccountPlanPro, account.Plan)
	}
}

func TestPlanAdminResetUsage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	accountID := env.provision(t, identity.AccountPlanFree)
	env.fund(t, accountID, 1000)

	_, err := env.txManager.Apply(ctx, accountID, pagesCharge(t, 4), metering.UsageDeltas{Pages: 4, Translations: 2}, "usage")
	require.NoError(t, err)
	_, err = env.txManager.ConsumeDailyFreeTranslation(ctx, accountID)
	require.NoError(t, err)

	require.NoError(t, env.planAdmin.ResetUsage(ctx, accountID))

	// monthly counters are zeroed, the daily free counter survives
	entry, err := env.ledgerRepo.FindByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), entry.PagesUsedThisPeriod)
	assert.Equal(t, int64(0), entry.TranslationsUsedThisPeriod)
	assert.Equal(t, int64(1), entry.DailyFreeTranslationsUsed)

	assert.ErrorIs(t, env.planAdmin.ResetUsage(ctx, uuid.New()), shared.ErrNotFound)
}
