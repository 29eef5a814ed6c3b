package metering

import (
	"time"

	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/shared"
)

// UsageLedgerEntry holds the durable per-account usage counters for the
// current billing period. Monthly counters reset when the calendar month (UTC)
// rolls over; the daily free-translation counter resets independently when the
// UTC day changes. Counters are monotonically non-decreasing within a period
// and never negative.
type UsageLedgerEntry struct {
	shared.BaseAggregateRoot
	AccountID                  uuid.UUID
	PagesUsedThisPeriod        int64
	TranslationsUsedThisPeriod int64
	DailyFreeTranslationsUsed  int64
	PeriodStart                time.Time // start of the current monthly window (UTC)
	DayStart                   time.Time // start of the current daily window (UTC)
}

// NewUsageLedgerEntry creates a zeroed ledger entry for an account
func NewUsageLedgerEntry(accountID uuid.UUID, now time.Time) (*UsageLedgerEntry, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	return &UsageLedgerEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		AccountID:         accountID,
		PeriodStart:       monthStart(now),
		DayStart:          dayStart(now),
	}, nil
}

// RolloverIfNeeded resets the monthly counters if now has crossed into a new
// monthly window, and the daily counter if now is a new UTC day. Returns true
// if any reset happened. The caller must persist the entry and observe
// rollover-plus-read as one atomic unit.
func (e *UsageLedgerEntry) RolloverIfNeeded(now time.Time) bool {
	changed := false

	if period := monthStart(now); period.After(e.PeriodStart) {
		e.PagesUsedThisPeriod = 0
		e.TranslationsUsedThisPeriod = 0
		e.PeriodStart = period
		changed = true
	}

	if day := dayStart(now); day.After(e.DayStart) {
		e.DailyFreeTranslationsUsed = 0
		e.DayStart = day
		changed = true
	}

	if changed {
		e.UpdatedAt = now
	}
	return changed
}

// Increment applies rollover first, then adds amount to the named counter.
// Fails with INVALID_QUANTITY if amount is negative.
func (e *UsageLedgerEntry) Increment(op MeteredOperation, amount int64, now time.Time) error {
	if amount < 0 {
		return shared.ErrInvalidQuantity
	}
	if !op.IsValid() {
		return shared.NewDomainError("INVALID_OPERATION", "Unknown metered operation")
	}

	e.RolloverIfNeeded(now)

	switch op {
	case OperationPages:
		e.PagesUsedThisPeriod += amount
	case OperationTranslations:
		e.TranslationsUsedThisPeriod += amount
	}
	e.UpdatedAt = now
	return nil
}

// IncrementDailyFree applies rollover first, then records one consumed daily
// free translation.
func (e *UsageLedgerEntry) IncrementDailyFree(now time.Time) {
	e.RolloverIfNeeded(now)
	e.DailyFreeTranslationsUsed++
	e.UpdatedAt = now
}

// ResetMonthlyCounters zeroes both monthly counters immediately, bypassing
// rollover logic. The daily counter is untouched. Used by the plan
// administrator's explicit reset action.
func (e *UsageLedgerEntry) ResetMonthlyCounters(now time.Time) {
	e.PagesUsedThisPeriod = 0
	e.TranslationsUsedThisPeriod = 0
	e.PeriodStart = monthStart(now)
	e.UpdatedAt = now
}

// UsedFor returns the monthly counter for the given operation
func (e *UsageLedgerEntry) UsedFor(op MeteredOperation) int64 {
	switch op {
	case OperationPages:
		return e.PagesUsedThisPeriod
	case OperationTranslations:
		return e.TranslationsUsedThisPeriod
	}
	return 0
}

// monthStart returns the start of t's calendar month in UTC
func monthStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// dayStart returns the start of t's calendar day in UTC
func dayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
