package main

import (
	"fmt"

	appfinance "github.com/erp/allocation/internal/application/finance"
	"github.com/erp/allocation/internal/domain/finance"
	"github.com/erp/allocation/internal/infrastructure/cache"
	"github.com/erp/allocation/internal/infrastructure/config"
	"github.com/erp/allocation/internal/infrastructure/event"
	"github.com/erp/allocation/internal/infrastructure/lock"
	"github.com/erp/allocation/internal/infrastructure/logger"
	"github.com/erp/allocation/internal/infrastructure/persistence"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app holds the services a command needs
type app struct {
	cfg         *config.Config
	log         *zap.Logger
	db          *persistence.Database
	redis       *redis.Client
	allocations *appfinance.AllocationService
	orders      *appfinance.OrderReconcileService
}

// newApp wires the allocation services the way the server does, minus HTTP and telemetry
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create sqlite schema: %w", err)
		}
	}

	a := &app{cfg: cfg, log: log, db: db}

	repoOpts := []persistence.RepositoriesOption{
		persistence.WithProcessorOptions(
			persistence.WithDocumentPrefix("allocation", cfg.Allocation.DocumentPrefix),
		),
	}
	var locker appfinance.OrderLocker = lock.NoopOrderLocker{}
	if cfg.Redis.Host != "" {
		a.redis, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		repoOpts = append(repoOpts, persistence.WithRateDecorator(func(next finance.ConversionRateRepository) finance.ConversionRateRepository {
			return cache.NewRedisRateCache(next, a.redis,
				cache.WithRateTTL(cfg.Redis.RateTTL),
				cache.WithRateCacheLogger(log),
			)
		}))
		if cfg.Lock.Enabled {
			locker = lock.NewRedisOrderLocker(a.redis, cfg.Lock, log)
		}
	}

	bus := event.NewInMemoryEventBus(log)
	logHandler := event.NewAllocationLogHandler()
	bus.Subscribe(logHandler, logHandler.EventTypes()...)

	serviceCfg := appfinance.ServiceConfig{
		Reader:         persistence.NewGormRepositories(db.DB, repoOpts...),
		Transactions:   persistence.NewGormTransactionRunner(db.DB, repoOpts...),
		EventPublisher: bus,
		Locker:         locker,
		Settings: appfinance.EngineSettings{
			ChargeMode:            finance.ChargeAbsorptionMode(cfg.Allocation.ChargeMode),
			StrictBalance:         cfg.Allocation.StrictBalance,
			CollaboratorTimeout:   cfg.Allocation.CollaboratorTimeout,
			DefaultConversionType: cfg.Allocation.DefaultConversionType,
		},
	}
	a.allocations = appfinance.NewAllocationService(serviceCfg)
	a.orders = appfinance.NewOrderReconcileService(serviceCfg)
	return a, nil
}

// Close releases the database and redis connections
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("Error closing database", zap.Error(err))
	}
	_ = a.log.Sync()
}
