package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/SlpAus/tinyballot-backend/api"
	"github.com/SlpAus/tinyballot-backend/internal/platform/config"
	"github.com/SlpAus/tinyballot-backend/internal/platform/database"
	"github.com/SlpAus/tinyballot-backend/internal/platform/events"
	"github.com/SlpAus/tinyballot-backend/internal/platform/health"
	"github.com/SlpAus/tinyballot-backend/internal/platform/metrics"
	"github.com/SlpAus/tinyballot-backend/internal/platform/shutdown"
	"github.com/SlpAus/tinyballot-backend/internal/platform/startup"
	"github.com/SlpAus/tinyballot-backend/internal/poll"
	"github.com/SlpAus/tinyballot-backend/internal/voter"
	"github.com/SlpAus/tinyballot-backend/pkg/lifecycle"
	"github.com/SlpAus/tinyballot-backend/pkg/token"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("加载配置失败: %v", err))
	}

	// 2. 连接数据库和Redis
	if err := database.InitDB(cfg.Database); err != nil {
		panic(fmt.Sprintf("数据库初始化失败: %v", err))
	}
	if err := database.InitRedis(cfg.Database.Redis); err != nil {
		// Redis只用于缓存，连接失败时降级运行
		fmt.Printf("警告: %v，投票列表缓存暂不可用。\n", err)
	}
	health.InitializeRunID(ctx)

	// 3. 迁移表结构并重置缓存
	if err := startup.InitializeApplication(ctx, database.DB); err != nil {
		panic(fmt.Sprintf("应用初始化失败，无法启动: %v", err))
	}

	// 4. 组装投票服务的依赖
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.EventsEnabled() {
		kp, err := events.NewKafkaPublisher(cfg.Events.Kafka.Brokers, cfg.Events.Kafka.Topic)
		if err != nil {
			panic(fmt.Sprintf("创建Kafka发布者失败: %v", err))
		}
		publisher = kp
		fmt.Printf("领域事件将发布到Kafka主题 %s。\n", cfg.Events.Kafka.Topic)
	}

	var cache poll.SummaryCache = poll.NopSummaryCache{}
	if database.CurrentCacheState() != database.CacheDisabled {
		cache = poll.NewRedisSummaryCache(database.RDB, cfg.Cache.SummaryTTL, logger)
	}

	signer, err := token.NewSigner(cfg.Server.FormTokens.Secret, cfg.Server.FormTokens.MaxAge)
	if err != nil {
		panic(fmt.Sprintf("创建表单令牌签名器失败: %v", err))
	}

	svc := poll.NewService(poll.NewRepository(database.DB, logger), poll.Options{
		Cache:     cache,
		Publisher: publisher,
		Metrics:   metrics.NewPollMetrics(registry, "tinyballot"),
		Logger:    logger,
	})
	pollHandler := poll.NewHandler(svc, voter.NewFormGuard(signer, cfg.Server.FormTokens.Enabled))

	// 5. 启动后台服务
	gracefulMgr := lifecycle.NewManager()
	forcefulMgr := lifecycle.NewManager()
	if database.CurrentCacheState() != database.CacheDisabled {
		if err := gracefulMgr.Go("redis-health", health.StartRedisHealthCheck); err != nil {
			panic(err)
		}
	}

	// 6. 配置路由
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.Cors.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", voter.FormTokenHeader},
		ExposeHeaders:    []string{"Content-Length", "Location"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	api.SetupRoutes(r, pollHandler, database.DB, registry)

	server := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	coordinator := shutdown.NewCoordinator(gracefulMgr, forcefulMgr)
	coordinator.OnClose("数据库", func() error {
		sqlDB, err := database.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	coordinator.OnClose("Redis", database.CloseRedis)
	coordinator.OnClose("事件发布者", publisher.Close)

	go func() {
		fmt.Printf("服务器已准备就绪，开始监听 %s\n", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic("Failed to start server: " + err.Error())
		}
	}()

	coordinator.ListenForSignalsAndShutdown(server)
}
