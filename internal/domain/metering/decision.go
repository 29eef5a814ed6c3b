package metering

// DenialReason explains why an authorization was denied
type DenialReason string

const (
	// DenialReasonQuotaExceeded means the plan quota cannot cover the request
	DenialReasonQuotaExceeded DenialReason = "QUOTA_EXCEEDED"
	// DenialReasonDailyFreeExhausted means the daily free allotment is used up
	DenialReasonDailyFreeExhausted DenialReason = "DAILY_FREE_EXHAUSTED"
)

// UnlimitedRemaining is the sentinel remaining value for unlimited quotas
const UnlimitedRemaining int64 = -1

// Decision is the outcome of a read-only authorization check. It carries no
// state change: the caller composes it with a cost quote and submits both to
// the transaction manager.
type Decision struct {
	Allowed   bool             `json:"allowed"`
	Operation MeteredOperation `json:"operation"`
	Remaining int64            `json:"remaining"` // after the requested units; UnlimitedRemaining if no ceiling
	Reason    DenialReason     `json:"reason,omitempty"`
}

// Allow builds an allowed decision with the remaining quota
func Allow(op MeteredOperation, remaining int64) Decision {
	return Decision{Allowed: true, Operation: op, Remaining: remaining}
}

// AllowUnlimited builds an allowed decision for an unlimited quota
func AllowUnlimited(op MeteredOperation) Decision {
	return Decision{Allowed: true, Operation: op, Remaining: UnlimitedRemaining}
}

// Deny builds a denied decision with the given reason
func Deny(op MeteredOperation, reason DenialReason) Decision {
	return Decision{Allowed: false, Operation: op, Reason: reason}
}

// IsUnlimited returns true if the decision reflects an unlimited quota
func (d Decision) IsUnlimited() bool {
	return d.Allowed && d.Remaining == UnlimitedRemaining
}
