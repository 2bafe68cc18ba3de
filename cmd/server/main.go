package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/creditchain/config"
	"github.com/d60-Lab/creditchain/internal/api"
	"github.com/d60-Lab/creditchain/internal/api/handler"
	"github.com/d60-Lab/creditchain/internal/ledger"
	"github.com/d60-Lab/creditchain/internal/model"
	"github.com/d60-Lab/creditchain/internal/repository"
	"github.com/d60-Lab/creditchain/internal/service"
	"github.com/d60-Lab/creditchain/pkg/database"
	"github.com/d60-Lab/creditchain/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN}); err != nil {
			logger.Warn("sentry init failed", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}
	if err := db.AutoMigrate(&model.Insight{}); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	var cache *service.CacheService
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		cache = service.NewCacheService(rdb, cfg.Redis.TTL)
	}

	// 账本连通性探测只记日志，账本不可达不阻断启动
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := ledger.Ping(pingCtx, cfg.Ledger); err != nil {
		logger.Warn("ledger node unreachable at startup", zap.Error(err))
	} else {
		logger.Info("ledger node reachable", zap.String("endpoint", cfg.Ledger.Endpoint))
	}
	cancel()
	ledgerClient := ledger.NewClient(cfg.Ledger)

	repo := repository.NewInsightRepository(db)
	insightSvc := service.NewInsightService(repo, ledgerClient, cache, cfg.Ledger)
	querySvc := service.NewQueryService(repo, cache)
	resync := service.NewResyncWorker(repo, ledgerClient, cache, cfg.Ledger, time.Minute, 32)
	stopResync := resync.Start()

	h := handler.NewHandler(insightSvc, querySvc, resync)
	router := api.NewRouter(cfg, h)

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stopResync(shutdownCtx); err != nil {
		logger.Warn("resync worker stop failed", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}
