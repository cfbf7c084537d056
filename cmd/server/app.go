package main

import (
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"printledger/internal/config"
	"printledger/internal/handler"
	"printledger/internal/infrastructure/cache"
	"printledger/internal/infrastructure/database"
	"printledger/internal/infrastructure/lock"
	"printledger/internal/infrastructure/logger"
	"printledger/internal/service"
	"printledger/pkg/idgen"
)

// app 各子命令共用的依赖
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	redis  *redis.Client
	locker lock.Locker
}

func bootstrap(configPath string) (*app, error) {
	// 加载配置
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, err
	}

	// 初始化 ID 生成器
	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		return nil, err
	}

	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: log, db: db}

	// 账户锁：多实例用 redis，单机 sqlite 部署用进程内锁
	switch cfg.Lock.Backend {
	case "redis":
		a.redis, err = cache.NewRedis(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.locker = lock.NewRedisLocker(a.redis, cfg.Lock.TTL, cfg.Lock.RetryInterval, cfg.Lock.MaxRetries)
	case "local":
		a.locker = lock.NewLocalLocker()
	default:
		return nil, fmt.Errorf("不支持的锁实现: %s", cfg.Lock.Backend)
	}
	return a, nil
}

func (a *app) services() *handler.Services {
	topic := a.cfg.Kafka.Topic.LedgerEvents
	return &handler.Services{
		Catalog:     service.NewCatalogService(a.db, a.locker, a.logger),
		Jobs:        service.NewJobService(a.db, a.logger),
		Balances:    service.NewBalanceService(a.db, a.cfg.Business.HistoryPageSize),
		Topups:      service.NewTopupService(a.db, topic, a.logger),
		Subsidy:     service.NewSubsidyService(a.db, topic, a.logger),
		Payments:    service.NewPaymentService(a.db, a.locker, a.cfg, a.logger),
		Refunds:     service.NewRefundService(a.db, a.locker, topic, a.logger),
		Corrections: service.NewCorrectionService(a.db, a.locker, topic, a.logger),
		Currency:    a.cfg.Business.Currency,
	}
}

func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.logger.Sync()
}
