package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	meteringapp "github.com/metering/backend/internal/application/metering"
	"github.com/metering/backend/internal/domain/metering"
	"github.com/metering/backend/internal/domain/shared"
	"github.com/metering/backend/internal/domain/shared/valueobject"
	"github.com/metering/backend/internal/interfaces/http/dto"
)

// WalletHandler handles wallet balance and transaction endpoints
type WalletHandler struct {
	BaseHandler
	accounts  *meteringapp.AccountService
	txManager *meteringapp.TransactionManager
}

// NewWalletHandler creates a new WalletHandler
func NewWalletHandler(accounts *meteringapp.AccountService, txManager *meteringapp.TransactionManager) *WalletHandler {
	return &WalletHandler{accounts: accounts, txManager: txManager}
}

// BalanceResponse is the wire form of a wallet balance
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	Currency  string `json:"currency"`
}

// GetBalance returns the account's current wallet balance
// GET /metering/accounts/:id/wallet
func (h *WalletHandler) GetBalance(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	balance, err := h.accounts.BalanceOf(c.Request.Context(), accountID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, BalanceResponse{
		AccountID: accountID.String(),
		Balance:   balance.MinorUnits(),
		Currency:  string(balance.Currency()),
	})
}

// TopUpRequest deposits funds confirmed by an external payment gateway.
// Amount is in minor currency units and must be positive.
type TopUpRequest struct {
	Amount    int64  `json:"amount" binding:"required,min=1"`
	Currency  string `json:"currency" binding:"omitempty,len=3"`
	Reference string `json:"reference" binding:"omitempty,max=255"`
}

// TopUp credits the wallet after an external payment succeeded
// POST /metering/accounts/:id/wallet/topup
func (h *WalletHandler) TopUp(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	amount := valueobject.NewMoneyFromMinorUnits(req.Amount)
	if req.Currency != "" {
		var err error
		amount, err = valueobject.NewMoney(req.Amount, valueobject.Currency(req.Currency))
		if err != nil {
			h.BadRequest(c, err.Error())
			return
		}
	}

	balance, err := h.txManager.TopUp(c.Request.Context(), accountID, amount, req.Reference)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, BalanceResponse{
		AccountID: accountID.String(),
		Balance:   balance.MinorUnits(),
		Currency:  string(balance.Currency()),
	})
}

// TransactionResponse is the wire form of a wallet transaction record
type TransactionResponse struct {
	ID              string `json:"id"`
	AccountID       string `json:"account_id"`
	TransactionType string `json:"transaction_type"`
	Amount          int64  `json:"amount"`
	SignedAmount    int64  `json:"signed_amount"`
	Currency        string `json:"currency"`
	BalanceBefore   int64  `json:"balance_before"`
	BalanceAfter    int64  `json:"balance_after"`
	Reference       string `json:"reference,omitempty"`
	TransactionDate string `json:"transaction_date"`
}

func transactionResponseFrom(tx *metering.WalletTransaction) TransactionResponse {
	return TransactionResponse{
		ID:              tx.ID.String(),
		AccountID:       tx.AccountID.String(),
		TransactionType: tx.TransactionType.String(),
		Amount:          tx.Amount.MinorUnits(),
		SignedAmount:    tx.SignedAmount().MinorUnits(),
		Currency:        string(tx.Amount.Currency()),
		BalanceBefore:   tx.BalanceBefore.MinorUnits(),
		BalanceAfter:    tx.BalanceAfter.MinorUnits(),
		Reference:       tx.Reference,
		TransactionDate: tx.TransactionDate.Format(time.RFC3339),
	}
}

// ListTransactions returns the account's transaction history, newest first
// GET /metering/accounts/:id/wallet/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	accountID, err := getAccountID(c)
	if err != nil {
		h.BadRequest(c, "Invalid account ID format")
		return
	}

	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := shared.DefaultFilter()
	filter.OrderBy = "transaction_date"
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}

	transactions, total, err := h.accounts.ListWalletTransactions(c.Request.Context(), accountID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]TransactionResponse, len(transactions))
	for i, tx := range transactions {
		responses[i] = transactionResponseFrom(tx)
	}

	h.SuccessWithMeta(c, responses, total, filter.Page, filter.PageSize)
}
