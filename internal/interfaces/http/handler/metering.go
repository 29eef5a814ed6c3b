package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	meteringapp "github.com/metering/backend/internal/application/metering"
	"github.com/metering/backend/internal/domain/metering"
	"github.com/metering/backend/internal/interfaces/http/dto"
)

// MeteringHandler handles quota and charging API endpoints
type MeteringHandler struct {
	BaseHandler
	enforcer  *meteringapp.QuotaEnforcer
	txManager *meteringapp.TransactionManager
	prices    metering.PriceList
	catalog   *metering.PlanCatalog
}

// NewMeteringHandler creates a new MeteringHandler
func NewMeteringHandler(
	enforcer *meteringapp.QuotaEnforcer,
	txManager *meteringapp.TransactionManager,
	prices metering.PriceList,
	catalog *metering.PlanCatalog,
) *MeteringHandler {
	return &MeteringHandler{
		enforcer:  enforcer,
		txManager: txManager,
		prices:    prices,
		catalog:   catalog,
	}
}

// QuoteRequest asks for the cost of a proposed operation.
// For pages, page_count is required; for translations, target_language_count
// and chunk_count are required.
type QuoteRequest struct {
	Operation           string `json:"operation" binding:"required,oneof=pages translations"`
	PageCount           int64  `json:"page_count" binding:"omitempty,min=0"`
	TargetLanguageCount int64  `json:"target_language_count" binding:"omitempty,min=0"`
	ChunkCount          int64  `json:"chunk_count" binding:"omitempty,min=0"`
}

// QuoteResponse carries the cost breakdown in minor currency units
type QuoteResponse struct {
	Operation        string `json:"operation"`
	Units            int64  `json:"units"`
	PagesCost        int64  `json:"pages_cost"`
	TranslationsCost int64  `json:"translations_cost"`
	TotalCost        int64  `json:"total_cost"`
	Currency         string `json:"currency"`
}

func quoteResponseFrom(op metering.MeteredOperation, units int64, quote metering.CostQuote) QuoteResponse {
	return QuoteResponse{
		Operation:        op.String(),
		Units:            units,
		PagesCost:        quote.PagesCost.MinorUnits(),
		TranslationsCost: quote.TranslationsCost.MinorUnits(),
		TotalCost:        quote.TotalCost.MinorUnits(),
		Currency:         string(quote.TotalCost.Currency()),
	}
}

// quoteFor prices the requested operation and returns the unit count the
// charge would consume.
func (h *MeteringHandler) quoteFor(req QuoteRequest) (metering.MeteredOperation, int64, metering.CostQuote, error) {
	op, err := metering.ParseMeteredOperation(req.Operation)
	if err != nil {
		return "", 0, metering.CostQuote{}, err
	}

	switch op {
	case metering.OperationPages:
		quote, err := h.prices.QuotePages(req.PageCount)
		return op, req.PageCount, quote, err
	default:
		quote, err := h.prices.QuoteTranslations(req.TargetLanguageCount, req.ChunkCount)
		return op, req.TargetLanguageCount * req.ChunkCount, quote, err
	}
}

// GetQuote returns the cost of a proposed operation without any state change
// POST /metering/quotes
func (h *MeteringHandler) GetQuote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	op, units, quote, err := h.quoteFor(req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, quoteResponseFrom(op, units, quote))
}

// AuthorizationResponse is the outcome of a quota check
type AuthorizationResponse struct {
	Allowed   bool   `json:"allowed"`
	Operation string `json:"operation"`
	Remaining int64  `json:"remaining"`
	Unlimited bool   `json:"unlimited"`
	Reason    string `json:"reason,omitempty"`
}

func authorizationResponseFrom(decision metering.Decision) AuthorizationResponse {
	return AuthorizationResponse{
		Allowed:   decision.Allowed,
		Operation: decision.Operation.String(),
		Remaining: decision.Remaining,
		Unlimited: decision.IsUnlimited(),
		Reason:    string(decision.Reason),
	}
}

// Authorize checks whether the account's plan quota covers the requested units
// GET /metering/accounts/:id/authorization?operation=pages&units=3
func (h *MeteringHandler) Authorize(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	op, err := metering.ParseMeteredOperation(c.Query("operation"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	units, err := strconv.ParseInt(c.DefaultQuery("units", "1"), 10, 64)
	if err != nil || units < 0 {
		h.Error(c, 400, dto.ErrCodeInvalidQuantity, "units must be a non-negative integer")
		return
	}

	decision, err := h.enforcer.Authorize(c.Request.Context(), accountID, op, units)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, authorizationResponseFrom(decision))
}

// AuthorizeDailyFree checks the account's daily free-translation allotment
// GET /metering/accounts/:id/authorization/daily-free
func (h *MeteringHandler) AuthorizeDailyFree(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	decision, err := h.enforcer.AuthorizeDailyFreeTranslation(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, authorizationResponseFrom(decision))
}

// ChargeRequest describes a completed operation to bill. The shape matches
// QuoteRequest so a client can charge exactly what it quoted.
type ChargeRequest struct {
	Operation           string `json:"operation" binding:"required,oneof=pages translations"`
	PageCount           int64  `json:"page_count" binding:"omitempty,min=0"`
	TargetLanguageCount int64  `json:"target_language_count" binding:"omitempty,min=0"`
	ChunkCount          int64  `json:"chunk_count" binding:"omitempty,min=0"`
}

// ReceiptResponse reports the applied charge
type ReceiptResponse struct {
	AccountID  string        `json:"account_id"`
	Charge     QuoteResponse `json:"charge"`
	NewBalance int64         `json:"new_balance"`
	Currency   string        `json:"currency"`
	Usage      UsageResponse `json:"usage"`
	AppliedAt  string        `json:"applied_at"`
	Replayed   bool          `json:"replayed"`
}

// UsageResponse is the wire form of a usage snapshot
type UsageResponse struct {
	AccountID                  string `json:"account_id"`
	PagesUsedThisPeriod        int64  `json:"pages_used_this_period"`
	TranslationsUsedThisPeriod int64  `json:"translations_used_this_period"`
	DailyFreeTranslationsUsed  int64  `json:"daily_free_translations_used"`
	PeriodStart                string `json:"period_start"`
}

func usageResponseFrom(snapshot metering.UsageSnapshot) UsageResponse {
	return UsageResponse{
		AccountID:                  snapshot.AccountID.String(),
		PagesUsedThisPeriod:        snapshot.PagesUsedThisPeriod,
		TranslationsUsedThisPeriod: snapshot.TranslationsUsedThisPeriod,
		DailyFreeTranslationsUsed:  snapshot.DailyFreeTranslationsUsed,
		PeriodStart:                snapshot.PeriodStart.Format(time.RFC3339),
	}
}

func receiptResponseFrom(receipt *metering.Receipt, op metering.MeteredOperation, units int64) ReceiptResponse {
	return ReceiptResponse{
		AccountID:  receipt.AccountID.String(),
		Charge:     quoteResponseFrom(op, units, receipt.Charge),
		NewBalance: receipt.NewBalance.MinorUnits(),
		Currency:   string(receipt.NewBalance.Currency()),
		Usage:      usageResponseFrom(receipt.Usage),
		AppliedAt:  receipt.AppliedAt.Format(time.RFC3339),
		Replayed:   receipt.Replayed,
	}
}

// Charge authorizes, debits and meters a completed operation in one call.
// The Idempotency-Key header makes retries safe: a repeated key replays the
// original receipt without charging again.
// POST /metering/accounts/:id/charges
func (h *MeteringHandler) Charge(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	var req ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	op, units, quote, err := h.quoteFor(QuoteRequest(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	decision, err := h.enforcer.Authorize(c.Request.Context(), accountID, op, units)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !decision.Allowed {
		h.ErrorWithCode(c, dto.ErrCodeQuotaExceeded, "Plan quota has been exceeded")
		return
	}

	deltas := metering.UsageDeltas{}
	switch op {
	case metering.OperationPages:
		deltas.Pages = units
	case metering.OperationTranslations:
		deltas.Translations = units
	}

	idempotencyKey := c.GetHeader("Idempotency-Key")
	receipt, err := h.txManager.Apply(c.Request.Context(), accountID, quote, deltas, idempotencyKey)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, receiptResponseFrom(receipt, op, units))
}

// ConsumeDailyFree records one unpaid translation against the daily free
// allotment after checking it is still available.
// POST /metering/accounts/:id/daily-free-translations
func (h *MeteringHandler) ConsumeDailyFree(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	decision, err := h.enforcer.AuthorizeDailyFreeTranslation(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !decision.Allowed {
		h.ErrorWithCode(c, dto.ErrCodeQuotaExceeded, "Daily free translation allotment is exhausted")
		return
	}

	snapshot, err := h.txManager.ConsumeDailyFreeTranslation(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, usageResponseFrom(snapshot))
}

// GetUsage returns the account's usage counters for the current periods
// GET /metering/accounts/:id/usage
func (h *MeteringHandler) GetUsage(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	snapshot, err := h.enforcer.CurrentUsage(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, usageResponseFrom(snapshot))
}

// PlanResponse describes one plan's entitlements
type PlanResponse struct {
	Plan             string   `json:"plan"`
	PageQuota        int64    `json:"page_quota"`
	TranslationQuota int64    `json:"translation_quota"`
	LanguageCount    int      `json:"language_count"`
	Features         []string `json:"features"`
}

// ListPlans returns every plan in the catalog
// GET /metering/plans
func (h *MeteringHandler) ListPlans(c *gin.Context) {
	plans := h.catalog.Plans()
	responses := make([]PlanResponse, 0, len(plans))
	for _, plan := range plans {
		limits, err := h.catalog.LimitsFor(plan)
		if err != nil {
			continue
		}
		features := make([]string, len(limits.Features))
		for i, f := range limits.Features {
			features[i] = string(f)
		}
		responses = append(responses, PlanResponse{
			Plan:             limits.Plan.String(),
			PageQuota:        limits.PageQuota,
			TranslationQuota: limits.TranslationQuota,
			LanguageCount:    limits.LanguageCount,
			Features:         features,
		})
	}

	h.Success(c, responses)
}
