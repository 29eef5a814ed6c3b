package metering

import (
	"github.com/metering/backend/internal/domain/identity"
	"github.com/metering/backend/internal/domain/shared"
)

// UnlimitedQuota is the sentinel limit meaning "no ceiling"
const UnlimitedQuota int64 = -1

// PlanFeature is a capability flag carried by a plan. Features are exposed
// for other components; the metering core does not enforce them.
type PlanFeature string

const (
	FeatureGlossary       PlanFeature = "glossary"
	FeatureOCR            PlanFeature = "ocr"
	FeatureBatchUpload    PlanFeature = "batch_upload"
	FeatureAPIAccess      PlanFeature = "api_access"
	FeaturePrioritySupport PlanFeature = "priority_support"
)

// PlanLimits defines the entitlements of a subscription plan.
// It is a value type; callers must not mutate the result of a catalog lookup.
type PlanLimits struct {
	Plan             identity.AccountPlan
	PageQuota        int64 // UnlimitedQuota = no ceiling
	TranslationQuota int64 // UnlimitedQuota = no ceiling
	LanguageCount    int   // informational, not enforced here
	Features         []PlanFeature
}

// IsPageQuotaUnlimited returns true if the plan has no page ceiling
func (l PlanLimits) IsPageQuotaUnlimited() bool {
	return l.PageQuota == UnlimitedQuota
}

// IsTranslationQuotaUnlimited returns true if the plan has no translation ceiling
func (l PlanLimits) IsTranslationQuotaUnlimited() bool {
	return l.TranslationQuota == UnlimitedQuota
}

// QuotaFor returns the ceiling for the given operation
func (l PlanLimits) QuotaFor(op MeteredOperation) int64 {
	switch op {
	case OperationPages:
		return l.PageQuota
	case OperationTranslations:
		return l.TranslationQuota
	}
	return 0
}

// HasFeature returns true if the plan carries the capability flag
func (l PlanLimits) HasFeature(f PlanFeature) bool {
	for _, feature := range l.Features {
		if feature == f {
			return true
		}
	}
	return false
}

// PlanCatalog is the static mapping from plan identifier to entitlements.
// It is loaded once at startup and immutable at runtime.
type PlanCatalog struct {
	limits map[identity.AccountPlan]PlanLimits
}

// NewPlanCatalog builds a catalog from the given limit entries
func NewPlanCatalog(entries []PlanLimits) (*PlanCatalog, error) {
	limits := make(map[identity.AccountPlan]PlanLimits, len(entries))
	for _, entry := range entries {
		if !entry.Plan.IsValid() {
			return nil, shared.ErrUnknownPlan
		}
		limits[entry.Plan] = entry
	}
	return &PlanCatalog{limits: limits}, nil
}

// DefaultPlanCatalog returns the built-in plan catalog
func DefaultPlanCatalog() *PlanCatalog {
	catalog, _ := NewPlanCatalog([]PlanLimits{
		{
			Plan:             identity.AccountPlanFree,
			PageQuota:        5,
			TranslationQuota: 10,
			LanguageCount:    2,
			Features:         nil,
		},
		{
			Plan:             identity.AccountPlanBasic,
			PageQuota:        100,
			TranslationQuota: 500,
			LanguageCount:    10,
			Features:         []PlanFeature{FeatureGlossary, FeatureBatchUpload},
		},
		{
			Plan:             identity.AccountPlanPro,
			PageQuota:        1000,
			TranslationQuota: 5000,
			LanguageCount:    30,
			Features:         []PlanFeature{FeatureGlossary, FeatureBatchUpload, FeatureOCR, FeatureAPIAccess},
		},
		{
			Plan:             identity.AccountPlanEnterprise,
			PageQuota:        UnlimitedQuota,
			TranslationQuota: UnlimitedQuota,
			LanguageCount:    100,
			Features: []PlanFeature{
				FeatureGlossary, FeatureBatchUpload, FeatureOCR,
				FeatureAPIAccess, FeaturePrioritySupport,
			},
		},
	})
	return catalog
}

// LimitsFor returns the entitlements for a plan, failing with UNKNOWN_PLAN
// if the identifier is not one of the closed enumeration.
func (c *PlanCatalog) LimitsFor(plan identity.AccountPlan) (PlanLimits, error) {
	limits, ok := c.limits[plan]
	if !ok {
		return PlanLimits{}, shared.ErrUnknownPlan
	}
	return limits, nil
}

// Plans returns the plan identifiers known to the catalog
func (c *PlanCatalog) Plans() []identity.AccountPlan {
	plans := make([]identity.AccountPlan, 0, len(c.limits))
	for plan := range c.limits {
		plans = append(plans, plan)
	}
	return plans
}
