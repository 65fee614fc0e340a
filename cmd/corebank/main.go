package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/altbank/corebank/internal/config"
	"github.com/altbank/corebank/internal/domain"
	"github.com/altbank/corebank/internal/handler"
	"github.com/altbank/corebank/internal/infra/cache"
	"github.com/altbank/corebank/internal/infra/gateway"
	"github.com/altbank/corebank/internal/infra/locker"
	"github.com/altbank/corebank/internal/infra/memstore"
	"github.com/altbank/corebank/internal/infra/observability"
	"github.com/altbank/corebank/internal/infra/postgres"
	"github.com/altbank/corebank/internal/infra/resilience"
	"github.com/altbank/corebank/internal/port"
	"github.com/altbank/corebank/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_driver", cfg.StoreDriver),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.String("alert_threshold", cfg.AlertThreshold),
		zap.String("auto_approve_ceiling", cfg.AutoApproveCeiling),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
	)

	alertThreshold, err := decimal.NewFromString(cfg.AlertThreshold)
	if err != nil {
		logger.Fatal("invalid ALERT_THRESHOLD", zap.Error(err))
	}
	autoApproveCeiling, err := decimal.NewFromString(cfg.AutoApproveCeiling)
	if err != nil {
		logger.Fatal("invalid AUTO_APPROVE_CEILING", zap.Error(err))
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "corebank-api")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	var store port.Store
	switch cfg.StoreDriver {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		store = postgres.New(db)
		logger.Info("using postgres store")
	default:
		store = memstore.New()
		logger.Info("using in-memory store")
	}

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	railBreaker := resilience.NewCircuitBreaker("payment-rail")

	// --- Gateways ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	kycCache := cache.New[bool](cfg.KYCCacheTTL)
	defer kycCache.Close()

	kycClient := gateway.NewKYCClient(httpClient, cfg.KYCAPIURL, kycCache, logger)
	railClient := gateway.NewRailClient(httpClient, cfg.RailAPIURL, railBreaker, resilienceCfg, logger)

	sender := gateway.NewSimulatedSender(logger)
	senders := map[domain.NotificationChannel]port.ChannelSender{
		domain.ChannelEmail: sender,
		domain.ChannelSMS:   sender,
		domain.ChannelPush:  sender,
		domain.ChannelInApp: sender,
	}

	// --- Services ---
	audit := service.NewAuditService(store, metrics, logger)
	ledger := service.NewLedger(store, locker.New(), audit, metrics, logger)
	notifier := service.NewNotificationService(store, senders, resilienceCfg, audit, metrics, logger)
	engine := service.NewTransactionEngine(store, ledger, notifier, audit, metrics, logger, alertThreshold)
	transfers := service.NewTransferService(store, ledger, engine, railClient, notifier, audit, metrics, logger, autoApproveCeiling)
	accounts := service.NewAccountService(store, kycClient, ledger, notifier, audit, metrics, logger)

	operators := cfg.Operators
	if len(operators) == 0 {
		// Dev fallback so a fresh checkout has a login.
		hash, err := service.HashPassword("admin")
		if err != nil {
			logger.Fatal("failed to seed dev operator", zap.Error(err))
		}
		operators = map[string]string{"admin": hash}
		logger.Warn("no OPERATORS configured, seeded dev operator 'admin'")
	}
	auth := service.NewAuthService(operators, cfg.JWTSecret, cfg.JWTAccessTTL, audit, logger)

	// --- Audit retention ---
	retentionCtx, stopRetention := context.WithCancel(context.Background())
	defer stopRetention()
	audit.StartRetentionLoop(retentionCtx, cfg.AuditSweepInterval, cfg.AuditArchiveAge)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Accounts:     accounts,
		Ledger:       ledger,
		Transactions: engine,
		Transfers:    transfers,
		Notifier:     notifier,
		Audit:        audit,
		Auth:         auth,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
