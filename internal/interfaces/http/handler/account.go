package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	meteringapp "github.com/metering/backend/internal/application/metering"
	"github.com/metering/backend/internal/domain/identity"
)

// AccountHandler handles account provisioning endpoints
type AccountHandler struct {
	BaseHandler
	accounts *meteringapp.AccountService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accounts *meteringapp.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// CreateAccountRequest provisions a metering account. Plan defaults to free.
type CreateAccountRequest struct {
	Plan string `json:"plan" binding:"omitempty"`
}

// AccountResponse is the wire form of an account
type AccountResponse struct {
	ID             string `json:"id"`
	Plan           string `json:"plan"`
	PlanUpgradedAt string `json:"plan_upgraded_at,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func accountResponseFrom(account *identity.Account) AccountResponse {
	resp := AccountResponse{
		ID:        account.ID.String(),
		Plan:      account.Plan.String(),
		CreatedAt: account.CreatedAt.Format(time.RFC3339),
	}
	if account.PlanUpgradedAt != nil {
		resp.PlanUpgradedAt = account.PlanUpgradedAt.Format(time.RFC3339)
	}
	return resp
}

// CreateAccount provisions an account with its wallet and usage ledger
// POST /metering/accounts
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	plan := identity.AccountPlanFree
	if req.Plan != "" {
		var err error
		plan, err = identity.ParseAccountPlan(req.Plan)
		if err != nil {
			h.HandleError(c, err)
			return
		}
	}

	account, err := h.accounts.CreateAccount(c.Request.Context(), plan)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, accountResponseFrom(account))
}

// GetAccount returns a single account
// GET /metering/accounts/:id
func (h *AccountHandler) GetAccount(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	account, err := h.accounts.GetAccount(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, accountResponseFrom(account))
}
