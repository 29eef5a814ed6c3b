package metering

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUsageLedgerEntry(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	t.Run("starts zeroed at the current windows", func(t *testing.T) {
		entry, err := NewUsageLedgerEntry(uuid.New(), now)

		require.NoError(t, err)
		assert.Zero(t, entry.PagesUsedThisPeriod)
		assert.Zero(t, entry.TranslationsUsedThisPeriod)
		assert.Zero(t, entry.DailyFreeTranslationsUsed)
		assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), entry.PeriodStart)
		assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), entry.DayStart)
	})

	t.Run("fails with nil account", func(t *testing.T) {
		_, err := NewUsageLedgerEntry(uuid.Nil, now)

		assert.Error(t, err)
	})
}

func TestUsageLedgerIncrement(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	t.Run("accumulates within a period", func(t *testing.T) {
		entry, _ := NewUsageLedgerEntry(uuid.New(), now)

		for i := 0; i < 7; i++ {
			require.NoError(t, entry.Increment(OperationPages, 1, now))
		}

		assert.Equal(t, int64(7), entry.PagesUsedThisPeriod)
		assert.Zero(t, entry.TranslationsUsedThisPeriod)
	})

	t.Run("fails with negative amount", func(t *testing.T) {
		entry, _ := NewUsageLedgerEntry(uuid.New(), now)

		err := entry.Increment(OperationPages, -1, now)

		assert.Error(t, err)
		assert.Zero(t, entry.PagesUsedThisPeriod)
	})

	t.Run("fails with unknown operation", func(t *testing.T) {
		entry, _ := NewUsageLedgerEntry(uuid.New(), now)

		err := entry.Increment(MeteredOperation("gpu_seconds"), 1, now)

		assert.Error(t, err)
	})
}

func TestUsageLedgerRollover(t *testing.T) {
	march := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	t.Run("monthly rollover resets monthly counters exactly once", func(t *testing.T) {
		entry, _ := NewUsageLedgerEntry(uuid.New(), march)
		require.NoError(t, entry.Increment(OperationPages, 5, march))
		require.NoError(t, entry.Increment(OperationTranslations, 3, march))

		april := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
		changed := entry.RolloverIfNeeded(april)

		assert.True(t, changed)
		assert.Zero(t, entry.PagesUsedThisPeriod)
		assert.Zero(t, entry.TranslationsUsedThisPeriod)
		assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), entry.PeriodStart)

		// A second call in the same period is a no-op.
		assert.False(t, entry.RolloverIfNeeded(april.Add(time.Hour)))
	})

	t.Run("day rollover resets only the daily counter", func(t *testing.T) {
		entry, _ := NewUsageLedgerEntry(uuid.New(), march)
		require.NoError(t, entry.Increment(OperationTranslations, 4, march))
		entry.IncrementDailyFree(march)
		entry.IncrementDailyFree(march)

		nextDay := march.AddDate(0, 0, 1)
		changed := entry.RolloverIfNeeded(nextDay)

		assert.True(t, changed)
		assert.Zero(t, entry.DailyFreeTranslationsUsed)
		assert.Equal(t, int64(4), entry.TranslationsUsedThisPeriod)
	})

	t.Run("increment applies rollover first", func(t *testing.T) {
		entry, _ := NewUsageLedgerEntry(uuid.New(), march)
		require.NoError(t, entry.Increment(OperationPages, 5, march))

		april := time.Date(2026, 4, 1, 0, 0, 1, 0, time.UTC)
		require.NoError(t, entry.Increment(OperationPages, 2, april))

		assert.Equal(t, int64(2), entry.PagesUsedThisPeriod)
	})

	t.Run("day boundary is UTC", func(t *testing.T) {
		entry, _ := NewUsageLedgerEntry(uuid.New(), march)
		entry.IncrementDailyFree(march)

		// 10:00 UTC-5 on Mar 15 is 15:00 UTC, still the same UTC day.
		sameDay := time.Date(2026, 3, 15, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))
		assert.False(t, entry.RolloverIfNeeded(sameDay))

		// 23:30 UTC-5 on Mar 15 is 04:30 UTC on Mar 16.
		nextDay := time.Date(2026, 3, 15, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
		assert.True(t, entry.RolloverIfNeeded(nextDay))
	})
}

func TestResetMonthlyCounters(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	entry, _ := NewUsageLedgerEntry(uuid.New(), now)
	require.NoError(t, entry.Increment(OperationPages, 9, now))
	entry.IncrementDailyFree(now)

	entry.ResetMonthlyCounters(now)

	assert.Zero(t, entry.PagesUsedThisPeriod)
	assert.Zero(t, entry.TranslationsUsedThisPeriod)
	// Explicit reset leaves the daily counter alone.
	assert.Equal(t, int64(1), entry.DailyFreeTranslationsUsed)
}
