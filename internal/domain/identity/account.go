package identity

import (
	"time"

	"github.com/metering/backend/internal/domain/shared"
)

// AccountPlan represents the subscription plan of an account
type AccountPlan string

const (
	AccountPlanFree       AccountPlan = "free"
	AccountPlanBasic      AccountPlan = "basic"
	AccountPlanPro        AccountPlan = "pro"
	AccountPlanEnterprise AccountPlan = "enterprise"
)

// String returns the string representation of AccountPlan
func (p AccountPlan) String() string {
	return string(p)
}

// IsValid returns true if the plan is one of the closed enumeration
func (p AccountPlan) IsValid() bool {
	switch p {
	case AccountPlanFree, AccountPlanBasic, AccountPlanPro, AccountPlanEnterprise:
		return true
	}
	return false
}

// ParseAccountPlan parses a plan identifier, failing on unknown values
func ParseAccountPlan(s string) (AccountPlan, error) {
	plan := AccountPlan(s)
	if !plan.IsValid() {
		return "", shared.ErrUnknownPlan
	}
	return plan, nil
}

// Account is the metering core's view of an account. Identity management
// (registration, login, credentials) lives elsewhere; this aggregate carries
// only the attributes the metering core reads and the plan it administers.
type Account struct {
	shared.BaseAggregateRoot
	Plan           AccountPlan
	PlanUpgradedAt *time.Time // nil until the first plan change
}

// NewAccount creates a new account on the free plan
func NewAccount() *Account {
	return &Account{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Plan:              AccountPlanFree,
	}
}

// NewAccountWithPlan creates a new account on the given plan
func NewAccountWithPlan(plan AccountPlan) (*Account, error) {
	if !plan.IsValid() {
		return nil, shared.ErrUnknownPlan
	}
	return &Account{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Plan:              plan,
	}, nil
}

// ChangePlan moves the account to a new plan and records the change time.
// Only the plan administrator calls this; usage counters are untouched.
func (a *Account) ChangePlan(newPlan AccountPlan) error {
	if !newPlan.IsValid() {
		return shared.ErrUnknownPlan
	}
	now := time.Now()
	a.Plan = newPlan
	a.PlanUpgradedAt = &now
	a.UpdatedAt = now
	return nil
}
