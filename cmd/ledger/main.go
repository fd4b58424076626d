package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/agent-ledger-go/internal/config"
	"github.com/boddenberg/agent-ledger-go/internal/domain"
	"github.com/boddenberg/agent-ledger-go/internal/handler"
	"github.com/boddenberg/agent-ledger-go/internal/infra/cache"
	"github.com/boddenberg/agent-ledger-go/internal/infra/lock"
	"github.com/boddenberg/agent-ledger-go/internal/infra/memstore"
	"github.com/boddenberg/agent-ledger-go/internal/infra/observability"
	"github.com/boddenberg/agent-ledger-go/internal/infra/postgrest"
	"github.com/boddenberg/agent-ledger-go/internal/infra/resilience"
	"github.com/boddenberg/agent-ledger-go/internal/infra/sqlite"
	"github.com/boddenberg/agent-ledger-go/internal/port"
	"github.com/boddenberg/agent-ledger-go/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
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
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("lock_backend", cfg.LockBackend),
		zap.String("business_timezone", cfg.BusinessTimezone),
		zap.Duration("report_cache_ttl", cfg.ReportCacheTTL),
		zap.Duration("lock_wait", cfg.LockWait),
		zap.Bool("dev_tools", cfg.DevTools),
	)

	// Amounts go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	// --- Tracing ---
	endpoint := ""
	if cfg.TracingEnabled {
		endpoint = cfg.OTLPEndpoint
	}
	shutdown, err := observability.InitTracer(endpoint, "agent-ledger")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	store, closeStore, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	// --- Locker ---
	locker, closeLocker := newLocker(cfg, logger)
	defer closeLocker()

	// --- Cache ---
	reportCache := cache.New[*domain.DashboardKPIs](cfg.ReportCacheTTL)
	defer reportCache.Close()

	// --- Services ---
	ledger := service.NewLedger(service.Deps{
		Store:    store,
		Locker:   locker,
		Cache:    reportCache,
		Metrics:  metrics,
		Logger:   logger,
		Location: cfg.Location(),
	})

	authSvc, err := newAuth(cfg, logger)
	if err != nil {
		logger.Fatal("failed to init auth", zap.Error(err))
	}

	// --- Router ---
	router := handler.NewRouter(ledger, authSvc, metrics, logger, handler.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		DevTools:       cfg.DevTools,
	})

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
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func newStore(cfg *config.Config, logger *zap.Logger) (port.LedgerStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using SQLite store", zap.String("path", cfg.SQLitePath))
		return store, func() { store.Close() }, nil

	case config.StorePostgREST:
		if cfg.PostgRESTURL == "" {
			return nil, nil, fmt.Errorf("STORE_BACKEND=postgrest requires POSTGREST_URL")
		}
		client := postgrest.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.PostgRESTURL,
			cfg.PostgRESTAnonKey,
			cfg.PostgRESTServiceKey,
			resilience.NewCircuitBreaker("postgrest", logger),
			resilience.Config{
				MaxRetries:     cfg.MaxRetries,
				InitialBackoff: cfg.InitialBackoff,
				MaxConcurrency: cfg.MaxConcurrency,
			},
			logger,
		)
		logger.Info("using PostgREST store", zap.String("url", cfg.PostgRESTURL))
		return postgrest.NewStore(client), func() {}, nil

	default:
		logger.Warn("using in-memory store, data is lost on restart")
		return memstore.New(), func() {}, nil
	}
}

func newLocker(cfg *config.Config, logger *zap.Logger) (port.Locker, func()) {
	if cfg.LockBackend != config.LockRedis {
		return lock.NewLocal(cfg.LockWait), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	logger.Info("using Redis lock", zap.String("addr", cfg.RedisAddr))
	return lock.NewRedis(rdb, cfg.LockTTL, cfg.LockWait, logger), func() { rdb.Close() }
}

// newAuth fails closed: sessions are enforced unless AUTH_DISABLED is set.
func newAuth(cfg *config.Config, logger *zap.Logger) (*service.AuthService, error) {
	if cfg.AuthDisabled {
		return service.NewOpenAuthService(cfg.JWTSessionTTL, logger)
	}
	return service.NewAuthService(cfg.AdminPassword, cfg.JWTSecret, cfg.JWTSessionTTL, logger)
}
