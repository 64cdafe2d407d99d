package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/application/categories"
	"github.com/syncbridge/backend/internal/application/ingestion"
	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/domain/unified"
	"github.com/syncbridge/backend/internal/infrastructure/cache"
	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/logger"
	"github.com/syncbridge/backend/internal/infrastructure/persistence"
	"github.com/syncbridge/backend/internal/infrastructure/platforms"
	"github.com/syncbridge/backend/internal/infrastructure/ratelimit"
	"github.com/syncbridge/backend/internal/infrastructure/signature"
	"github.com/syncbridge/backend/internal/infrastructure/telemetry"
	"github.com/syncbridge/backend/internal/infrastructure/workqueue"
	"github.com/syncbridge/backend/internal/interfaces/http/handler"
	"github.com/syncbridge/backend/internal/interfaces/http/middleware"
	"github.com/syncbridge/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log := logger.New(cfg.Log)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting SyncBridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection
	db, err := persistence.NewDatabase(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to migrate database schema", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Initialize repositories
	entityRepo := persistence.NewGormEntityRepository(db.DB)
	conflictRepo := persistence.NewGormPendingConflictRepository(db.DB)
	deadLetterSink := persistence.NewGormDeadLetterSink(db.DB)

	// Rate limit counters and the dedup store share one Redis client when
	// Redis is enabled; otherwise both run in-process and limits are
	// per-instance.
	var rateStore ratelimit.CounterStore
	var digestStore shared.IdempotencyStore
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
		rateStore = ratelimit.NewRedisStore(redisClient, cfg.App.Name)
		digestStore = cache.NewRedisIdempotencyStore(redisClient, "")
		log.Info("Redis connected, rate limits and dedup are shared", zap.String("addr", cfg.Redis.Addr()))
	} else {
		rateStore = ratelimit.NewMemoryStore(ratelimit.SystemClock())
		digestStore = cache.NewInMemoryIdempotencyStore()
		log.Warn("Redis disabled, rate limits and dedup are per-instance")
	}
	defer func() {
		if err := digestStore.Close(); err != nil {
			log.Error("Error closing dedup store", zap.Error(err))
		}
	}()

	// Telemetry
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()
	ingestionMetrics, err := telemetry.NewIngestionMetrics(meterProvider.Meter("ingestion"))
	if err != nil {
		log.Fatal("Failed to create ingestion metrics", zap.Error(err))
	}

	// Platform integration: signature verifier, per-platform limits, adapters
	verifier := signature.NewVerifier(map[unified.Platform]string{
		unified.PlatformShopify: cfg.Platforms.Shopify.Secret,
		unified.PlatformEcwid:   cfg.Platforms.Ecwid.Secret,
		unified.PlatformGumroad: cfg.Platforms.Gumroad.Secret,
	})
	limiter := ratelimit.NewLimiter(rateStore, map[unified.Platform]ratelimit.Limits{
		unified.PlatformShopify: platformLimits(cfg.Platforms.Shopify),
		unified.PlatformEcwid:   platformLimits(cfg.Platforms.Ecwid),
		unified.PlatformGumroad: platformLimits(cfg.Platforms.Gumroad),
	}, log)
	registry := platforms.NewRegistry(
		platforms.NewShopifyAdapter(),
		platforms.NewEcwidAdapter(platforms.NewLocalePicker(cfg.Platforms.PreferredLocales...)),
		platforms.NewGumroadAdapter(),
	)

	// Conflict resolution
	priority := make([]unified.Platform, 0, len(cfg.Conflict.PlatformPriority))
	for _, name := range cfg.Conflict.PlatformPriority {
		platform, err := unified.ParsePlatform(name)
		if err != nil {
			log.Fatal("Invalid platform in conflict.platform_priority", zap.String("platform", name))
		}
		priority = append(priority, platform)
	}
	resolver := unified.NewConflictResolver(priority)

	// Async reconciliation pool; the key lock is shared with the pipeline so
	// inline and pooled updates to the same key never interleave.
	locks := workqueue.NewKeyLock()
	pool := workqueue.NewPool(cfg.Worker.PoolSize, cfg.Worker.QueueDepth, workqueue.RetryPolicy{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  cfg.Retry.BaseDelay,
		Multiplier: cfg.Retry.Multiplier,
		MaxDelay:   cfg.Retry.MaxDelay,
	}, locks, log)
	pool.Start()
	log.Info("Reconciliation pool started",
		zap.Int("pool_size", cfg.Worker.PoolSize),
		zap.Int("queue_depth", cfg.Worker.QueueDepth),
	)

	// Ingestion pipeline
	pipeline := ingestion.NewPipeline(ingestion.Deps{
		Verifier:    verifier,
		Limiter:     limiter,
		Adapters:    registry,
		Resolver:    resolver,
		Entities:    entityRepo,
		Conflicts:   conflictRepo,
		DeadLetters: deadLetterSink,
		Digests:     digestStore,
		Pool:        pool,
		Locks:       locks,
		Metrics:     ingestionMetrics,
		Logger:      log,
	}, ingestion.Options{
		DefaultStrategy: unified.ConflictStrategy(cfg.Conflict.DefaultStrategy),
		Relaxed: map[unified.Platform]bool{
			unified.PlatformShopify: cfg.Platforms.Shopify.RelaxedVerification,
			unified.PlatformEcwid:   cfg.Platforms.Ecwid.RelaxedVerification,
			unified.PlatformGumroad: cfg.Platforms.Gumroad.RelaxedVerification,
		},
		Dedup: shared.IdempotencyConfig{
			Enabled: cfg.Dedup.Enabled,
			TTL:     cfg.Dedup.TTL,
		},
		PersistTimeout: cfg.Worker.PersistTimeout,
	})

	categoryService := categories.NewService(entityRepo, log)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack in order: request ID, panic recovery, request log,
	// CORS, body size limit.
	engine.Use(middleware.RequestID(log))
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(log))
	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.HTTP.CORSAllowOrigins,
		AllowMethods: cfg.HTTP.CORSAllowMethods,
		AllowHeaders: cfg.HTTP.CORSAllowHeaders,
	}))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Webhook receivers and health probes sit at the root; query and admin
	// surfaces are versioned under /api/v1.
	r := router.NewRouter(engine).
		RegisterRoot(handler.NewWebhookHandler(pipeline)).
		RegisterRoot(handler.NewSystemHandler(db)).
		Register(handler.NewSyncHandler(pipeline)).
		Register(handler.NewCategoryHandler(categoryService)).
		Register(handler.NewAdminHandler(conflictRepo, deadLetterSink))
	r.Setup()

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

	// Graceful shutdown: stop accepting requests first, then drain the pool
	// so queued reconciliations finish before the process exits.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := pool.Shutdown(ctx); err != nil {
		log.Error("Reconciliation pool drained with errors", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func platformLimits(p config.PlatformConfig) ratelimit.Limits {
	return ratelimit.Limits{
		PerMinute:  p.RatePerMinute,
		PerHour:    p.RatePerHour,
		Burst:      p.RateBurst,
		RetryAfter: p.RetryAfter,
	}
}
