package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/agentflow/api/handlers"
	"github.com/BaSui01/agentflow/config"
	"github.com/BaSui01/agentflow/executors"
	"github.com/BaSui01/agentflow/internal/cache"
	"github.com/BaSui01/agentflow/internal/configstore"
	"github.com/BaSui01/agentflow/internal/database"
	"github.com/BaSui01/agentflow/internal/metrics"
	"github.com/BaSui01/agentflow/internal/server"
	"github.com/BaSui01/agentflow/internal/store"
	"github.com/BaSui01/agentflow/internal/telemetry"
	"github.com/BaSui01/agentflow/internal/tlsutil"
	"github.com/BaSui01/agentflow/workflow"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server is AgentFlow's process: it owns the storage backing (durable or
// in-memory, depending on whether a database was reachable at startup),
// the executor registry, the orchestrator, and the HTTP surface.
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	otel       *telemetry.Providers

	db        *gorm.DB
	dbPool    *database.PoolManager
	cacheMgr  *cache.Manager
	workflows handlers.WorkflowRepository
	journal   workflow.Journal

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler    *handlers.HealthHandler
	workflowHandler  *handlers.WorkflowHandler
	executionHandler *handlers.ExecutionHandler
	configHandler    *handlers.ConfigHandler

	metricsCollector *metrics.Collector

	hotReloadManager *config.HotReloadManager
	configAPIHandler *config.ConfigAPIHandler

	wg sync.WaitGroup
}

// NewServer creates a new server instance. db may be nil, in which case
// the journal and workflow store fall back to process-lifetime, in-memory
// implementations instead of the durable GORM-backed ones.
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, otelProviders *telemetry.Providers, db *gorm.DB) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		otel:       otelProviders,
		db:         db,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start starts every subsystem: storage, the executor registry and
// orchestrator, handlers, hot reload, and finally the HTTP/metrics servers.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("agentflow", s.logger)

	if err := s.initStorage(); err != nil {
		return fmt.Errorf("failed to init storage: %w", err)
	}

	if err := s.initHandlers(); err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	if err := s.initHotReloadManager(); err != nil {
		return fmt.Errorf("failed to init hot reload manager: %w", err)
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("hot_reload_enabled", s.configPath != ""),
		zap.Bool("durable_storage", s.db != nil),
	)

	return nil
}

// =============================================================================
// 🗄️ 存储初始化
// =============================================================================

// initStorage wires the journal and workflow store to GORM when a database
// connection was established at startup, or to in-memory implementations
// otherwise. A workflow engine with no database configured still runs: it
// just loses executions and definitions across restarts.
func (s *Server) initStorage() error {
	if s.db == nil {
		s.logger.Warn("no database connection; using in-memory journal and workflow store")
		s.journal = workflow.NewMemoryJournal()
		s.workflows = workflow.NewMemoryWorkflowStore()
		return nil
	}

	pool, err := database.NewPoolManager(s.db, database.DefaultPoolConfig(), s.logger)
	if err != nil {
		return fmt.Errorf("init database pool: %w", err)
	}
	s.dbPool = pool
	s.journal = store.NewGormJournal(pool, s.logger)
	s.workflows = store.NewGormWorkflowStore(pool, s.logger)

	if s.cfg.Redis.Addr != "" {
		cacheMgr, err := cache.NewManager(cache.Config{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
		}, s.logger)
		if err != nil {
			s.logger.Warn("redis not available, config-variable resolution disabled", zap.Error(err))
		} else {
			s.cacheMgr = cacheMgr
		}
	}

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initHandlers wires the executor registry, circuit breakers, orchestrator,
// and HTTP handlers on top of whatever storage initStorage selected.
func (s *Server) initHandlers() error {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	if s.dbPool != nil {
		s.healthHandler.RegisterCheck(handlers.DatabaseHealthCheck(s.dbPool.Ping))
	}
	if s.cacheMgr != nil {
		s.healthHandler.RegisterCheck(handlers.RedisHealthCheck(s.cacheMgr.Ping))
	}

	registry := workflow.NewExecutorRegistry(s.workflows, s.logger)
	registry.RegisterBuiltin(executors.NewTransformExecutor())

	// The http executor dials external hosts the workflow author supplied a
	// URL for; force its outgoing transport through the hardened TLS 1.2+,
	// AEAD-only configuration the rest of the engine's outbound clients use.
	registry.RegisterBuiltin(executors.NewHTTPExecutor(
		executors.WithHTTPClient(tlsutil.SecureHTTPClient(30 * time.Second)),
	))

	if s.db != nil {
		registry.RegisterBuiltin(executors.NewSQLExecutor(s.db))
	}

	// No LLM/embedding provider is wired by default; the executors degrade
	// gracefully (empty completion/embedding) until one is configured.
	registry.RegisterBuiltin(executors.NewLLMExecutor(nil))
	registry.RegisterBuiltin(executors.NewEmbeddingExecutor(nil))
	registry.RegisterBuiltin(executors.NewVectorDBExecutor(executors.NewInMemoryVectorStore()))

	breakers := workflow.NewCircuitBreakerRegistry(workflow.DefaultCircuitBreakerConfig(), s.logger)

	orch := workflow.NewOrchestrator(s.workflows, registry, s.journal, s.metricsCollector, s.logger,
		workflow.WithCircuitBreakers(breakers))

	var configs *configstore.Store
	if s.cacheMgr != nil {
		configs = configstore.NewStore(s.cacheMgr, 0)
	}
	// configs is typed as the concrete *configstore.Store above and only
	// narrowed to the ConfigResolver interface here when non-nil: passing a
	// nil *configstore.Store straight into an interface parameter would
	// produce a non-nil interface wrapping a nil pointer, defeating
	// ExecutionHandler's own `h.configs == nil` check.
	var resolver handlers.ConfigResolver
	if configs != nil {
		resolver = configs
	}

	s.workflowHandler = handlers.NewWorkflowHandler(s.workflows, s.logger)
	s.executionHandler = handlers.NewExecutionHandler(s.workflows, orch, s.journal, resolver, s.logger,
		handlers.WithStreamBufferSize(s.cfg.Workflow.StreamBufferSize))
	if configs != nil {
		s.configHandler = handlers.NewConfigHandler(configs, s.logger)
	}

	s.logger.Info("Handlers initialized")
	return nil
}

// initHotReloadManager 初始化热更新管理器
func (s *Server) initHotReloadManager() error {
	opts := []config.HotReloadOption{
		config.WithHotReloadLogger(s.logger),
	}

	if s.configPath != "" {
		opts = append(opts, config.WithConfigPath(s.configPath))
	}

	s.hotReloadManager = config.NewHotReloadManager(s.cfg, opts...)

	s.hotReloadManager.OnChange(func(change config.ConfigChange) {
		s.logger.Info("Configuration changed",
			zap.String("path", change.Path),
			zap.String("source", change.Source),
			zap.Bool("requires_restart", change.RequiresRestart),
		)
	})

	s.hotReloadManager.OnReload(func(oldConfig, newConfig *config.Config) {
		s.logger.Info("Configuration reloaded")
		s.cfg = newConfig
	})

	ctx := context.Background()
	if err := s.hotReloadManager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hot reload manager: %w", err)
	}

	// No static API key remains configured on ServerConfig; the config API
	// runs unauthenticated behind the same reverse proxy everything else
	// does. RequireAuth treats an empty key as "skip the check".
	s.configAPIHandler = config.NewConfigAPIHandler(s.hotReloadManager)

	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	s.workflowHandler.RegisterRoutes(mux)
	s.executionHandler.RegisterRoutes(mux)
	if s.configHandler != nil {
		s.configHandler.RegisterRoutes(mux)
	}

	if s.configAPIHandler != nil {
		configAuth := config.NewConfigAPIMiddleware(s.configAPIHandler, "")
		mux.HandleFunc("/api/v1/config", configAuth.RequireAuth(s.configAPIHandler.HandleConfig))
		mux.HandleFunc("/api/v1/config/reload", configAuth.RequireAuth(s.configAPIHandler.HandleReload))
		mux.HandleFunc("/api/v1/config/fields", configAuth.RequireAuth(s.configAPIHandler.HandleFields))
		mux.HandleFunc("/api/v1/config/changes", configAuth.RequireAuth(s.configAPIHandler.HandleChanges))
		s.logger.Info("Configuration API registered")
	}

	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
	)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.hotReloadManager != nil {
		if err := s.hotReloadManager.Stop(); err != nil {
			s.logger.Error("Hot reload manager shutdown error", zap.Error(err))
		}
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	if s.dbPool != nil {
		if err := s.dbPool.Close(); err != nil {
			s.logger.Error("database pool close error", zap.Error(err))
		}
	}

	if s.cacheMgr != nil {
		if err := s.cacheMgr.Close(); err != nil {
			s.logger.Error("cache manager close error", zap.Error(err))
		}
	}

	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
