package metering

import (
	"time"

	"github.com/google/uuid"
	"github.com/metering/backend/internal/domain/shared/valueobject"
)

// UsageSnapshot is the caller-visible view of a ledger entry
type UsageSnapshot struct {
	AccountID                  uuid.UUID `json:"account_id"`
	PagesUsedThisPeriod        int64     `json:"pages_used_this_period"`
	TranslationsUsedThisPeriod int64     `json:"translations_used_this_period"`
	DailyFreeTranslationsUsed  int64     `json:"daily_free_translations_used"`
	PeriodStart                time.Time `json:"period_start"`
}

// SnapshotOf captures the current state of a ledger entry
func SnapshotOf(e *UsageLedgerEntry) UsageSnapshot {
	return UsageSnapshot{
		AccountID:                  e.AccountID,
		PagesUsedThisPeriod:        e.PagesUsedThisPeriod,
		TranslationsUsedThisPeriod: e.TranslationsUsedThisPeriod,
		DailyFreeTranslationsUsed:  e.DailyFreeTranslationsUsed,
		PeriodStart:                e.PeriodStart,
	}
}

// Receipt records the effects of one applied charge: the wallet balance after
// the debit and the usage counters after the increments. Receipts are stored
// against the idempotency key so a retried charge replays the same receipt.
type Receipt struct {
	AccountID      uuid.UUID         `json:"account_id"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Charge         CostQuote         `json:"charge"`
	NewBalance     valueobject.Money `json:"new_balance"`
	Usage          UsageSnapshot     `json:"usage"`
	AppliedAt      time.Time         `json:"applied_at"`
	Replayed       bool              `json:"replayed"` // true if served from the idempotency store
}

// UsageDeltas names the counter increments a charge carries
type UsageDeltas struct {
	Pages        int64 `json:"pages"`
	Translations int64 `json:"translations"`
}

// IsZero returns true if no counter would change
func (d UsageDeltas) IsZero() bool {
	return d.Pages == 0 && d.Translations == 0
}
