package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	meteringapp "github.com/metering/backend/internal/application/metering"
	"github.com/metering/backend/internal/domain/identity"
)

// AdminHandler handles plan administration endpoints
type AdminHandler struct {
	BaseHandler
	planAdmin *meteringapp.PlanAdminService
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(planAdmin *meteringapp.PlanAdminService) *AdminHandler {
	return &AdminHandler{planAdmin: planAdmin}
}

// ChangePlanRequest moves an account to a new plan
type ChangePlanRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// ChangePlan moves a single account to a new plan
// POST /admin/accounts/:id/plan
func (h *AdminHandler) ChangePlan(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	var req ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	plan, err := identity.ParseAccountPlan(req.Plan)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if err := h.planAdmin.Upgrade(c.Request.Context(), accountID, plan); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"account_id": accountID.String(), "plan": plan.String()})
}

// BulkUpgradeRequest moves a batch of accounts to a new plan
type BulkUpgradeRequest struct {
	AccountIDs []string `json:"account_ids" binding:"required,min=1,max=1000"`
	Plan       string   `json:"plan" binding:"required"`
}

// BulkUpgradeResponse reports the per-account outcome of a bulk plan change
type BulkUpgradeResponse struct {
	Succeeded []string          `json:"succeeded"`
	Failed    map[string]string `json:"failed"`
}

// BulkUpgrade moves a batch of accounts to a new plan. Each account is
// processed independently; failures do not abort the batch.
// POST /admin/plans/bulk-upgrade
func (h *AdminHandler) BulkUpgrade(c *gin.Context) {
	var req BulkUpgradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	plan, err := identity.ParseAccountPlan(req.Plan)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	response := BulkUpgradeResponse{
		Succeeded: make([]string, 0, len(req.AccountIDs)),
		Failed:    make(map[string]string),
	}

	accountIDs := make([]uuid.UUID, 0, len(req.AccountIDs))
	for _, raw := range req.AccountIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Failed[raw] = "invalid account ID format"
			continue
		}
		accountIDs = append(accountIDs, id)
	}

	result := h.planAdmin.BulkUpgrade(c.Request.Context(), accountIDs, plan)
	for _, id := range result.Succeeded {
		response.Succeeded = append(response.Succeeded, id.String())
	}
	for id, reason := range result.Failed {
		response.Failed[id.String()] = reason
	}

	h.Success(c, response)
}

// ResetUsage zeroes the account's usage counters for the current period
// POST /admin/accounts/:id/usage/reset
func (h *AdminHandler) ResetUsage(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	if err := h.planAdmin.ResetUsage(c.Request.Context(), accountID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"account_id": accountID.String(), "reset": true})
}
