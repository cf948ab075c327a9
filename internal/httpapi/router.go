package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"flowchart_gateway/internal/config"
	"flowchart_gateway/internal/gateway"
	"flowchart_gateway/internal/middleware"
	"flowchart_gateway/internal/providers"
	"flowchart_gateway/internal/queue"
	"flowchart_gateway/internal/quota"
	"flowchart_gateway/internal/ratelimit"
	"flowchart_gateway/internal/storage"
	"flowchart_gateway/internal/usage"
	"flowchart_gateway/internal/utils"
)

// Dependencies aggregates the services the HTTP layer needs. The caller
// owns their lifecycle and must Close them on shutdown.
type Dependencies struct {
	DB           *storage.DB
	Redis        *redis.Client
	Limiter      ratelimit.Limiter
	Registry     *providers.Registry
	Orchestrator *gateway.Orchestrator
	UsageQueue   queue.Queue
	UsageWorker  *usage.Worker
}

// Close shuts down the dependency graph in reverse start order.
func (d *Dependencies) Close() error {
	var firstErr error

	if d.UsageWorker != nil {
		if err := d.UsageWorker.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.UsageQueue != nil {
		if err := d.UsageQueue.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// NewRouter creates an HTTP router with all dependencies wired up
func NewRouter(cfg *config.Config) (*http.ServeMux, *Dependencies, error) {
	db, err := storage.NewDB(storage.DBConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Redis is optional; without it both the limiter and the usage queue
	// fall back to their in-process backends.
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
	}

	// Repositories
	apiKeyRepo := storage.NewAPIKeyRepository(db)
	modelConfigRepo := storage.NewModelConfigRepository(db)
	usageRepo := storage.NewUsageRepository(db)

	// Rate limiter
	var limiter ratelimit.Limiter
	if cfg.Limiter.Backend == "redis" && redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient)
	} else {
		limiter = ratelimit.NewFixedWindowLimiter()
	}

	// Provider adapters
	registry := providers.NewRegistry()
	registry.Register(providers.NewOpenAIAdapter(cfg.Provider.RequestTimeout))
	registry.Register(providers.NewAnthropicAdapter(cfg.Provider.RequestTimeout))

	// Usage queue and persistence worker
	queueCfg := queue.DefaultConfig("usage")
	queueCfg.BatchSize = cfg.Usage.BatchSize
	queueCfg.BatchTimeout = cfg.Usage.BatchTimeout
	queueCfg.MaxRetries = cfg.Usage.MaxRetries
	queueCfg.RetryBackoff = cfg.Usage.RetryBackoff

	var usageQueue queue.Queue
	var usageDLQ queue.DeadLetterQueue
	if cfg.Usage.QueueBackend == "redis" && cfg.Redis.Address != "" {
		queueCfg.UseRedis = true
		queueCfg.RedisAddr = cfg.Redis.Address
		queueCfg.RedisPassword = cfg.Redis.Password
		queueCfg.RedisDB = cfg.Redis.DB

		usageQueue, err = queue.NewRedisQueue(queueCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create usage queue: %w", err)
		}
		usageDLQ, err = queue.NewRedisDeadLetterQueue(queueCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create usage DLQ: %w", err)
		}
	} else {
		usageQueue = queue.NewMemoryQueue(queueCfg)
		usageDLQ = queue.NewMemoryDeadLetterQueue()
	}

	usageWorker := usage.NewWorker(usageQueue, usageDLQ, usageRepo, queueCfg)
	usageWorker.Start(context.Background())

	// Generation pipeline
	accountant := quota.NewAccountant(apiKeyRepo)
	meter := usage.NewMeter(usageQueue)
	orchestrator := gateway.NewOrchestrator(
		accountant, limiter, registry, modelConfigRepo, meter,
		cfg.Provider.DefaultProviderID,
	)

	deps := &Dependencies{
		DB:           db,
		Redis:        redisClient,
		Limiter:      limiter,
		Registry:     registry,
		Orchestrator: orchestrator,
		UsageQueue:   usageQueue,
		UsageWorker:  usageWorker,
	}

	mux := http.NewServeMux()
	registerRoutes(mux, deps, cfg, apiKeyRepo, modelConfigRepo, usageRepo)

	return mux, deps, nil
}

func registerRoutes(
	mux *http.ServeMux,
	deps *Dependencies,
	cfg *config.Config,
	apiKeyRepo *storage.APIKeyRepository,
	modelConfigRepo *storage.ModelConfigRepository,
	usageRepo *storage.UsageRepository,
) {
	// Generation endpoints - authenticated by API key inside the handler
	generateHandler := NewGenerateHandler(deps.Orchestrator)
	mux.HandleFunc("/api/v1/generate", generateHandler.Generate)

	quotaHandler := NewQuotaHandler(apiKeyRepo)
	mux.HandleFunc("/api/v1/quota", quotaHandler.Quota)

	// Health check endpoint - public
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := deps.DB.Health(r.Context()); err != nil {
			utils.RespondWithError(w, http.StatusServiceUnavailable, "Database unavailable")
			return
		}
		utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Admin authentication - public
	adminAuthHandler := NewAdminAuthHandler(cfg)
	mux.HandleFunc("/admin/auth/login", adminAuthHandler.Login)

	// Admin management - protected by JWT
	adminJWT := middleware.AdminJWT(cfg.JWTSecret)

	keysHandler := NewAdminKeysHandler(apiKeyRepo)
	mux.Handle("/admin/keys", adminJWT(http.HandlerFunc(keysHandler.Handle)))
	mux.Handle("/admin/keys/", adminJWT(http.HandlerFunc(keysHandler.HandleByID)))

	modelsHandler := NewAdminModelsHandler(modelConfigRepo)
	mux.Handle("/admin/models", adminJWT(http.HandlerFunc(modelsHandler.Handle)))
	mux.Handle("/admin/models/", adminJWT(http.HandlerFunc(modelsHandler.HandleByID)))

	usageHandler := NewAdminUsageHandler(usageRepo)
	mux.Handle("/admin/usage", adminJWT(http.HandlerFunc(usageHandler.List)))
}
