package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	meteringapp "github.com/metering/backend/internal/application/metering"
	"github.com/metering/backend/internal/domain/metering"
	"github.com/metering/backend/internal/infrastructure/cache"
	"github.com/metering/backend/internal/infrastructure/lock"
	"github.com/metering/backend/internal/infrastructure/persistence"
	"github.com/metering/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testEnv wires the full stack against an in-memory database so handler
// tests exercise real services and repositories.
type testEnv struct {
	engine *gin.Engine
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&persistence.AccountModel{},
		&persistence.WalletModel{},
		&persistence.UsageLedgerModel{},
		&persistence.WalletTransactionModel{},
	))

	logger := zap.NewNop()
	accountRepo := persistence.NewAccountRepository(db)
	walletRepo := persistence.NewWalletRepository(db)
	ledgerRepo := persistence.NewUsageLedgerRepository(db)
	txRepo := persistence.NewWalletTransactionRepository(db)
	uow := persistence.NewUnitOfWork(db)

	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	catalog := metering.DefaultPlanCatalog()
	prices := metering.DefaultPriceList()

	txManager := meteringapp.NewTransactionManager(uow, store, lock.NewKeyedMutex(), logger, meteringapp.DefaultTransactionManagerConfig())
	enforcer := meteringapp.NewQuotaEnforcer(accountRepo, ledgerRepo, catalog, logger, meteringapp.DefaultEnforcerConfig())
	accounts := meteringapp.NewAccountService(accountRepo, walletRepo, ledgerRepo, txRepo, txManager, logger, meteringapp.AccountServiceConfig{
		SignupBonusMinorUnits: 100,
	})
	planAdmin := meteringapp.NewPlanAdminService(accountRepo, ledgerRepo, catalog, logger)

	meteringHandler := NewMeteringHandler(enforcer, txManager, prices, catalog)
	walletHandler := NewWalletHandler(accounts, txManager)
	accountHandler := NewAccountHandler(accounts)
	adminHandler := NewAdminHandler(planAdmin)

	engine := gin.New()
	v1 := engine.Group("/api/v1")

	m := v1.Group("/metering")
	m.POST("/accounts", accountHandler.CreateAccount)
	m.GET("/accounts/:id", accountHandler.GetAccount)
	m.POST("/quotes", meteringHandler.GetQuote)
	m.GET("/plans", meteringHandler.ListPlans)
	m.GET("/accounts/:id/authorization", meteringHandler.Authorize)
	m.GET("/accounts/:id/authorization/daily-free", meteringHandler.AuthorizeDailyFree)
	m.POST("/accounts/:id/charges", meteringHandler.Charge)
	m.POST("/accounts/:id/daily-free-translations", meteringHandler.ConsumeDailyFree)
	m.GET("/accounts/:id/usage", meteringHandler.GetUsage)
	m.GET("/accounts/:id/wallet", walletHandler.GetBalance)
	m.POST("/accounts/:id/wallet/topup", walletHandler.TopUp)
	m.GET("/accounts/:id/wallet/transactions", walletHandler.ListTransactions)

	admin := v1.Group("/admin")
	admin.POST("/accounts/:id/plan", adminHandler.ChangePlan)
	admin.POST("/plans/bulk-upgrade", adminHandler.BulkUpgrade)
	admin.POST("/accounts/:id/usage/reset", adminHandler.ResetUsage)

	return &testEnv{engine: engine}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

// createAccount provisions an account through the API and returns its ID
func (e *testEnv) createAccount(t *testing.T) string {
	t.Helper()
	w, resp := e.do(t, http.MethodPost, "/api/v1/metering/accounts", nil, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	data := resp.Data.(map[string]interface{})
	return data["id"].(string)
}

func TestCreateAccount(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("defaults to free plan with signup bonus", func(t *testing.T) {
		w, resp := env.do(t, http.MethodPost, "/api/v1/metering/accounts", nil, nil)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, resp.Success)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "free", data["plan"])

		id := data["id"].(string)
		w, resp = env.do(t, http.MethodGet, "/api/v1/metering/accounts/"+id+"/wallet", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		wallet := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(100), wallet["balance"])
		assert.Equal(t, "USD", wallet["currency"])
	})

	t.Run("accepts an explicit plan", func(t *testing.T) {
		w, resp := env.do(t, http.MethodPost, "/api/v1/metering/accounts", gin.H{"plan": "pro"}, nil)

		require.Equal(t, http.StatusCreated, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "pro", data["plan"])
	})

	t.Run("rejects an unknown plan", func(t *testing.T) {
		w, resp := env.do(t, http.MethodPost, "/api/v1/metering/accounts", gin.H{"plan": "platinum"}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, dto.ErrCodeUnknownPlan, resp.Error.Code)
	})
}

func TestGetAccount(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("returns existing account", func(t *testing.T) {
		id := env.createAccount(t)

		w, resp := env.do(t, http.MethodGet, "/api/v1/metering/accounts/"+id, nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, id, data["id"])
	})

	t.Run("404 for unknown account", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/metering/accounts/11111111-1111-1111-1111-111111111111", nil, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.False(t, resp.Success)
	})

	t.Run("400 for malformed account ID", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, "/api/v1/metering/accounts/not-a-uuid", nil, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestGetQuote(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("prices pages", func(t *testing.T) {
		w, resp := env.do(t, http.MethodPost, "/api/v1/metering/quotes", gin.H{
			"operation":  "pages",
			"page_count": 10,
		}, nil)

		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(100), data["total_cost"])
		assert.Equal(t, float64(100), data["pages_cost"])
		assert.Equal(t, float64(0), data["translations_cost"])
		assert.Equal(t, float64(10), data["units"])
	})

	t.Run("prices translations as languages times chunks", func(t *testing.T) {
		w, resp := env.do(t, http.MethodPost, "/api/v1/metering/quotes", gin.H{
			"operation":             "translations",
			"target_language_count": 3,
			"chunk_count":           4,
		}, nil)

		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(12), data["units"])
		assert.Equal(t, float64(60), data["total_cost"])
	})

	t.Run("rejects unknown operation", func(t *testing.T) {
		w, _ := env.do(t, http.MethodPost, "/api/v1/metering/quotes", gin.H{
			"operation": "storage",
		}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthorize(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t)

	t.Run("allows within free page quota", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/metering/accounts/"+id+"/authorization?operation=pages&units=3", nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, true, data["allowed"])
		assert.Equal(t, float64(2), data["remaining"])
	})

	t.Run("denies beyond free page quota", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/metering/accounts/"+id+"/authorization?operation=pages&units=6", nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, false, data["allowed"])
		assert.NotEmpty(t, data["reason"])
	})

	t.Run("rejects negative units", func(t *testing.T) {
		w, _ := env.do(t, http.MethodGet, "/api/v1/metering/accounts/"+id+"/authorization?operation=pages&units=-1", nil, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("daily free translation allotment", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/metering/accounts/"+id+"/authorization/daily-free", nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, true, data["allowed"])
		assert.Equal(t, float64(2), data["remaining"])
	})
}

func TestCharge(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("debits wallet and meters usage", func(t *testing.T) {
		id := env.createAccount(t)

		w, resp := env.do(t, http.MethodPost, "/api/v1/metering/accounts/"+id+"/charges", gin.H{
			"operation":  "pages",
			"page_count": 3,
		}, map[string]string{"Idempotency-Key": "charge-1"})

		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(70), data["new_balance"])
		assert.Equal(t, false, data["replayed"])
		usage := data["usage"].(map[string]interface{})
		assert.Equal(t, float64(3), usage["pages_used_this_period"])
	})

	t.Run("replays on duplicate idempotency key", func(t *testing.T) {
		id := env.createAccount(t)
		headers := map[string]string{"Idempotency-Key": "charge-dup"}
		body := gin.H{"operation": "pages", "page_count": 2}

		w, first := env.do(t, http.MethodPost, "/api/v1/metering/accounts/"+id+"/charges", body, headers)
		require.Equal(t, http.StatusOK, w.Code)

		w, second := env.do(t, http.MethodPost, "/api/v1/metering/accounts/"+id+"/charges", body, headers)
		require.Equal(t, http.StatusOK, w.Code)

		firstData := first.Data.(map[string]interface{})
		secondData := second.Data.(map[string]interface{})
		assert.Equal(t, firstData["new_balance"], secondData["new_balance"])
		assert.Equal(t, true, secondData["replayed"])

		w, resp := env.do(t, http.MethodGet, "/api/v1/metering/accounts/"+id+"/wallet", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		wallet := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(80), wallet["balance"])
	})

	t.Run("429 when plan quota exceeded", func(t *testing.T) {
		id := env.createAccount(t)

		w, resp := env.do(t, http.MethodPost, "/api/v1/metering/accounts/"+id+"/charges", gin.H{
			"operation":  "pages",
			"page_count": 6,
		}, map[string]string{"Idempotency-Key": "charge-quota"})

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, dto.ErrCodeQuotaExceeded, resp.Error.Code)
	})

	t.Run("402 when wallet cannot cover the charge", func(t *testing.T) {
		id := env.createAccount(t)

		// Move to a plan whose quota exceeds what the signup bonus can pay for.
		w, _ := env.do(t, http.MethodPost, "/api/v1/admin/accounts/"+id+"/plan", gin.H{"plan": "basic"}, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w, resp := env.do(t, http.MethodPost, "/api/v1/metering/accounts/"+id+"/charges", gin.H{
			"operation":  "pages",
			"page_count": 20,
		}, map[string]string{"Idempotency-Key": "charge-poor"})

		assert.Equal(t, http.StatusPaymentRequired, w.Code)
		assert.Equal(t, dto.ErrCodeInsufficientFunds, resp.Error.Code)
	})

	t.Run("404 for unknown account", func(t *testing.T) {
		w, _ := env.do(t, http.MethodPost, "/api/v1/metering/accounts/22222222-2222-2222-2222-222222222222/charges", gin.H{
			"operation":  "pages",
			"page_count": 1,
		}, map[string]string{"Idempotency-Key": "charge-ghost"})

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestTopUpAndTransactions(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t)

	t.Run("top-up credits the wallet", func(t *testing.T) {
		w, resp := env.do(t, http.MethodPost, "/api/v1/metering/accounts/"+id+"/wallet/topup", gin.H{
			"amount":    500,
			"reference": "gw-123",
		}, nil)

		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(600), data["balance"])
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		w, _ := env.do(t, http.MethodPost, "/api/v1/metering/accounts/"+id+"/wallet/topup", gin.H{
			"amount": 0,
		}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("lists transactions newest first with meta", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/metering/accounts/"+id+"/wallet/transactions", nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(2), resp.Meta.Total)

		items := resp.Data.([]interface{})
		require.Len(t, items, 2)
		newest := items[0].(map[string]interface{})
		assert.Equal(t, "TOPUP", newest["transaction_type"])
		assert.Equal(t, float64(500), newest["signed_amount"])
		oldest := items[1].(map[string]interface{})
		assert.Equal(t, "BONUS", oldest["transaction_type"])
	})

	t.Run("paginates", func(t *testing.T) {
		w, resp := env.do(t, http.MethodGet, "/api/v1/metering/accounts/"+id+"/wallet/transactions?page=2&page_size=1", nil, nil)

		require.Equal(t, http.StatusOK, w.Code)
		items := resp.Data.([]interface{})
		require.Len(t, items, 1)
	})
}

func TestConsumeDailyFree(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t)

	// The default allotment is three per UTC day.
	for i := 0; i < 3; i++ {
		w, resp := env.do(t, http.MethodPost, "/api/v1/metering/accounts/"+id+"/daily-free-translations", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, float64(i+1), data["daily_free_translations_used"])
	}

	w, resp := env.do(t, http.MethodPost, "/api/v1/metering/accounts/"+id+"/daily-free-translations", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, dto.ErrCodeQuotaExceeded, resp.Error.Code)
}

func TestGetUsage(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t)

	_, _ = env.do(t, http.MethodPost, "/api/v1/metering/accounts/"+id+"/charges", gin.H{
		"operation":  "pages",
		"page_count": 2,
	}, map[string]string{"Idempotency-Key": "usage-1"})

	w, resp := env.do(t, http.MethodGet, "/api/v1/metering/accounts/"+id+"/usage", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["pages_used_this_period"])
	assert.Equal(t, float64(0), data["translations_used_this_period"])
	assert.NotEmpty(t, data["period_start"])
}

func TestListPlans(t *testing.T) {
	env := setupTestEnv(t)

	w, resp := env.do(t, http.MethodGet, "/api/v1/metering/plans", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	items := resp.Data.([]interface{})
	require.Len(t, items, 4)

	plans := make(map[string]bool, len(items))
	for _, item := range items {
		plan := item.(map[string]interface{})
		plans[plan["plan"].(string)] = true
	}
	for _, name := range []string{"free", "basic", "pro", "enterprise"} {
		assert.True(t, plans[name], "missing plan %s", name)
	}
}

func TestChangePlan(t *testing.T) {
	env := setupTestEnv(t)

	t.Run("upgrades an account", func(t *testing.T) {
		id := env.createAccount(t)

		w, resp := env.do(t, http.MethodPost, "/api/v1/admin/accounts/"+id+"/plan", gin.H{"plan": "pro"}, nil)

		require.Equal(t, http.StatusOK, w.Code)
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "pro", data["plan"])

		w, resp = env.do(t, http.MethodGet, "/api/v1/metering/accounts/"+id, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		account := resp.Data.(map[string]interface{})
		assert.Equal(t, "pro", account["plan"])
		assert.NotEmpty(t, account["plan_upgraded_at"])
	})

	t.Run("rejects unknown plan", func(t *testing.T) {
		id := env.createAccount(t)

		w, resp := env.do(t, http.MethodPost, "/api/v1/admin/accounts/"+id+"/plan", gin.H{"plan": "gold"}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeUnknownPlan, resp.Error.Code)
	})
}

func TestBulkUpgrade(t *testing.T) {
	env := setupTestEnv(t)
	first := env.createAccount(t)
	second := env.createAccount(t)

	w, resp := env.do(t, http.MethodPost, "/api/v1/admin/plans/bulk-upgrade", gin.H{
		"plan":        "basic",
		"account_ids": []string{first, second, "not-a-uuid", "33333333-3333-3333-3333-333333333333"},
	}, nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})

	succeeded := data["succeeded"].([]interface{})
	assert.Len(t, succeeded, 2)

	failed := data["failed"].(map[string]interface{})
	assert.Len(t, failed, 2)
	assert.Contains(t, failed, "not-a-uuid")
	assert.Contains(t, failed, "33333333-3333-3333-3333-333333333333")
}

func TestResetUsage(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createAccount(t)

	_, _ = env.do(t, http.MethodPost, "/api/v1/metering/accounts/"+id+"/charges", gin.H{
		"operation":  "pages",
		"page_count": 4,
	}, map[string]string{"Idempotency-Key": fmt.Sprintf("reset-%s", id)})

	w, _ := env.do(t, http.MethodPost, "/api/v1/admin/accounts/"+id+"/usage/reset", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := env.do(t, http.MethodGet, "/api/v1/metering/accounts/"+id+"/usage", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(0), data["pages_used_this_period"])
}
