package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	meteringapp "github.com/metering/backend/internal/application/metering"
	"github.com/metering/backend/internal/domain/metering"
	"github.com/metering/backend/internal/domain/shared"
	"github.com/metering/backend/internal/domain/shared/valueobject"
	"github.com/metering/backend/internal/infrastructure/cache"
	"github.com/metering/backend/internal/infrastructure/config"
	"github.com/metering/backend/internal/infrastructure/lock"
	"github.com/metering/backend/internal/infrastructure/logger"
	"github.com/metering/backend/internal/infrastructure/persistence"
	"github.com/metering/backend/internal/interfaces/http/handler"
	"github.com/metering/backend/internal/interfaces/http/middleware"
	"github.com/metering/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Metering Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Idempotency store: Redis when enabled, in-memory otherwise. The
	// in-memory store does not survive restarts or span replicas, so
	// production config requires Redis.
	var idempotencyStore shared.IdempotencyStore
	if cfg.Redis.Enabled {
		store, err := cache.NewRedisIdempotencyStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		idempotencyStore = store
		log.Info("Redis idempotency store connected")
	} else {
		idempotencyStore = cache.NewInMemoryIdempotencyStore()
		log.Warn("Using in-memory idempotency store; charge replay protection is per-process only")
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Initialize repositories
	accountRepo := persistence.NewAccountRepository(db.DB)
	walletRepo := persistence.NewWalletRepository(db.DB)
	ledgerRepo := persistence.NewUsageLedgerRepository(db.DB)
	walletTxRepo := persistence.NewWalletTransactionRepository(db.DB)
	unitOfWork := persistence.NewUnitOfWork(db.DB)

	// Pricing and plan policy
	prices := metering.PriceList{
		PageUnitPrice:        valueobject.NewMoneyFromMinorUnits(cfg.Metering.PageUnitPrice),
		TranslationUnitPrice: valueobject.NewMoneyFromMinorUnits(cfg.Metering.TranslationUnitPrice),
	}
	catalog := metering.DefaultPlanCatalog()

	// Initialize application services
	txManager := meteringapp.NewTransactionManager(
		unitOfWork,
		idempotencyStore,
		lock.NewKeyedMutex(),
		log,
		meteringapp.TransactionManagerConfig{
			MaxAttempts:    cfg.Metering.ChargeMaxAttempts,
			RetryBackoff:   cfg.Metering.ChargeRetryBackoff,
			IdempotencyTTL: cfg.Metering.IdempotencyTTL,
		},
	)
	enforcer := meteringapp.NewQuotaEnforcer(accountRepo, ledgerRepo, catalog, log, meteringapp.EnforcerConfig{
		DailyFreeTranslations: cfg.Metering.DailyFreeTranslations,
	})
	accountService := meteringapp.NewAccountService(accountRepo, walletRepo, ledgerRepo, walletTxRepo, txManager, log, meteringapp.AccountServiceConfig{
		SignupBonusMinorUnits: cfg.Metering.SignupBonus,
	})
	planAdmin := meteringapp.NewPlanAdminService(accountRepo, ledgerRepo, catalog, log)

	// Initialize handlers
	meteringHandler := handler.NewMeteringHandler(enforcer, txManager, prices, catalog)
	walletHandler := handler.NewWalletHandler(accountService, txManager)
	accountHandler := handler.NewAccountHandler(accountService)
	adminHandler := handler.NewAdminHandler(planAdmin)
	systemHandler := handler.NewSystemHandler()

	// Set gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Global middleware
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins: cfg.HTTP.CORSAllowOrigins,
		AllowMethods: cfg.HTTP.CORSAllowMethods,
		AllowHeaders: cfg.HTTP.CORSAllowHeaders,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Health check endpoint
	engine.GET("/health", healthHandler(db, log))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Metering domain: accounts, quotes, authorization, charging, wallet
	meteringRoutes := router.NewDomainGroup("metering", "/metering")
	meteringRoutes.POST("/accounts", accountHandler.CreateAccount)
	meteringRoutes.GET("/accounts/:id", accountHandler.GetAccount)
	meteringRoutes.POST("/quotes", meteringHandler.GetQuote)
	meteringRoutes.GET("/plans", meteringHandler.ListPlans)
	meteringRoutes.GET("/accounts/:id/authorization", meteringHandler.Authorize)
	meteringRoutes.GET("/accounts/:id/authorization/daily-free", meteringHandler.AuthorizeDailyFree)
	meteringRoutes.POST("/accounts/:id/charges", meteringHandler.Charge)
	meteringRoutes.POST("/accounts/:id/daily-free-translations", meteringHandler.ConsumeDailyFree)
	meteringRoutes.GET("/accounts/:id/usage", meteringHandler.GetUsage)
	meteringRoutes.GET("/accounts/:id/wallet", walletHandler.GetBalance)
	meteringRoutes.POST("/accounts/:id/wallet/topup", walletHandler.TopUp)
	meteringRoutes.GET("/accounts/:id/wallet/transactions", walletHandler.ListTransactions)

	// Admin domain: plan management and usage resets
	adminRoutes := router.NewDomainGroup("admin", "/admin")
	adminRoutes.POST("/accounts/:id/plan", adminHandler.ChangePlan)
	adminRoutes.POST("/plans/bulk-upgrade", adminHandler.BulkUpgrade)
	adminRoutes.POST("/accounts/:id/usage/reset", adminHandler.ResetUsage)

	// System routes
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	r.Register(meteringRoutes).Register(adminRoutes).Register(systemRoutes)
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
