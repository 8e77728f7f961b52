package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appfinance "github.com/erp/allocation/internal/application/finance"
	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/infrastructure/cache"
	"github.com/erp/allocation/internal/infrastructure/config"
	"github.com/erp/allocation/internal/infrastructure/event"
	"github.com/erp/allocation/internal/infrastructure/lock"
	"github.com/erp/allocation/internal/infrastructure/logger"
	"github.com/erp/allocation/internal/infrastructure/payment"
	"github.com/erp/allocation/internal/infrastructure/persistence"
	"github.com/erp/allocation/internal/infrastructure/telemetry"
	"github.com/erp/allocation/internal/interfaces/http/handler"
	"github.com/erp/allocation/internal/interfaces/http/middleware"
	"github.com/erp/allocation/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
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
		_ = log.Sync()
	}()

	log.Info("Starting allocation service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Tracing and metrics
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	allocationMetrics, err := telemetry.NewAllocationMetrics(meterProvider.Meter("allocation"))
	if err != nil {
		log.Fatal("Failed to create allocation metrics", zap.Error(err))
	}

	// Database with zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))
	if cfg.Database.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to create sqlite schema", zap.Error(err))
		}
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		plugin := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        telemetry.DBSystemFor(cfg.Database.Driver),
		}, log)
		if err := plugin.RegisterOtelGorm(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	// Redis backs the rate cache and the order lock; both are optional
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			_ = redisClient.Close()
		}()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	repoOpts := []persistence.RepositoriesOption{
		persistence.WithProcessorOptions(
			persistence.WithDocumentPrefix("allocation", cfg.Allocation.DocumentPrefix),
		),
	}
	if redisClient != nil {
		repoOpts = append(repoOpts, persistence.WithRateDecorator(func(next finance.ConversionRateRepository) finance.ConversionRateRepository {
			return cache.NewRedisRateCache(next, redisClient,
				cache.WithRateTTL(cfg.Redis.RateTTL),
				cache.WithRateCacheLogger(log),
			)
		}))
	}

	var locker appfinance.OrderLocker = lock.NoopOrderLocker{}
	if cfg.Lock.Enabled {
		if redisClient == nil {
			log.Fatal("lock.enabled requires redis.host")
		}
		locker = lock.NewRedisOrderLocker(redisClient, cfg.Lock, log)
	}

	var gateway finance.PaymentGateway
	if cfg.Gateway.URL != "" {
		httpGateway, err := payment.NewHTTPGateway(cfg.Gateway)
		if err != nil {
			log.Fatal("Failed to create payment gateway", zap.Error(err))
		}
		gateway = httpGateway
	}

	// Events are published after commit; the log handler keeps an audit trail
	eventBus := event.NewInMemoryEventBus(log)
	logHandler := event.NewAllocationLogHandler()
	eventBus.Subscribe(logHandler, logHandler.EventTypes()...)

	serviceCfg := appfinance.ServiceConfig{
		Reader:         persistence.NewGormRepositories(db.DB, repoOpts...),
		Transactions:   persistence.NewGormTransactionRunner(db.DB, repoOpts...),
		EventPublisher: eventBus,
		Gateway:        gateway,
		Locker:         locker,
		Metrics:        allocationMetrics,
		Settings: appfinance.EngineSettings{
			ChargeMode:            finance.ChargeAbsorptionMode(cfg.Allocation.ChargeMode),
			StrictBalance:         cfg.Allocation.StrictBalance,
			CollaboratorTimeout:   cfg.Allocation.CollaboratorTimeout,
			DefaultConversionType: cfg.Allocation.DefaultConversionType,
		},
	}
	allocationService := appfinance.NewAllocationService(serviceCfg)
	orderReconcileService := appfinance.NewOrderReconcileService(serviceCfg)

	// HTTP engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}
	engine.Use(
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		logger.GinMiddleware(log),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			Enabled:       cfg.Telemetry.Enabled,
		}),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	checks := map[string]handler.Pinger{
		"database": handler.PingerFunc(func(context.Context) error { return db.Ping() }),
	}
	if redisClient != nil {
		checks["redis"] = handler.PingerFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	healthHandler := handler.NewHealthHandler(telemetry.ServiceVersion, checks)
	allocationHandler := handler.NewAllocationHandler(allocationService, orderReconcileService)

	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithAPIMiddleware(
			middleware.Session(middleware.DefaultSessionConfig()),
			middleware.SessionSpanAttributes(),
		),
	)
	r.RegisterRoot(healthHandler)
	for _, group := range allocationHandler.Routes() {
		r.Register(group)
	}
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	eventBus.Unsubscribe(logHandler)

	log.Info("Server exited gracefully")
}
