package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"minishop/internal/config"
	"minishop/internal/handler"
	"minishop/internal/infra/db"
	"minishop/internal/infra/kafka"
	"minishop/internal/infra/redisx"
	infraRepo "minishop/internal/infra/repository"
	"minishop/internal/logger"
	"minishop/internal/server"
	"minishop/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	//.envは無くてもよい（本番は環境変数）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.GoEnv)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("service", cfg.ServiceName))

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}
	if cfg.SeedDemo {
		if err := db.SeedDemo(ctx, gormDB); err != nil {
			return err
		}
		log.Info("demo data seeded")
	}

	//Redis（任意）
	var cache usecase.OrderHistoryCache
	if cfg.RedisAddr != "" {
		rdb, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis unavailable, order history cache disabled", zap.Error(err))
		} else {
			defer func() { _ = rdb.Close() }()
			cache = redisx.NewOrderHistoryCache(rdb, cfg.OrderCacheTTL)
		}
	}

	//Kafka（任意）。終了時にinboxを流し切る
	var events usecase.OrderEventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaOrderTopic, 256, log)
		producer.Start(context.Background())
		defer func() {
			producer.Close()
			producer.WaitClosed()
		}()
		events = kafka.NewOrderEventPublisher(producer, cfg.ServiceName)
	}

	//Repository（GORM実装）生成
	txm := infraRepo.NewTxManagerGorm(gormDB)
	userRepo := infraRepo.NewUserGormRepository(gormDB)

	//Usecase生成
	orderUC := usecase.NewOrderUsecase(txm, userRepo, cache, events, log, cfg.OrderTxTimeout)
	cartUC := usecase.NewCartUsecase(txm, userRepo, log)

	//Handler生成
	e := server.New(log, server.Handlers{
		Orders: handler.NewOrderHandler(orderUC, time.Now),
		Cart:   handler.NewCartHandler(cartUC),
		Health: handler.NewHealthHandler(func(ctx context.Context) error {
			return db.Ping(ctx, gormDB)
		}),
	})

	//Server起動
	addr := cfg.Port
	if addr != "" && addr[0] != ':' {
		addr = ":" + addr
	}
	log.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.GoEnv))

	if err := server.Run(ctx, e, addr, 10*time.Second); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
