package api

import (
	"fmt"
	"time"

	fetchHandlers "gateway/api/handlers/fetch"
	regionsHandlers "gateway/api/handlers/regions"
	usageHandlers "gateway/api/handlers/usagestats"

	"gateway/internal/config"
	"gateway/internal/forward"
	"gateway/internal/infra"
	"gateway/internal/ledger"
	"gateway/internal/logger"
	"gateway/internal/metrics"
	"gateway/internal/middleware"
	"gateway/internal/region"
	"gateway/internal/verify"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// AppContainer 应用容器，集中管理所有服务依赖
type AppContainer struct {
	Config      *config.Config
	Registry    *region.Registry
	Verifier    *verify.Service
	Ledger      *ledger.Service
	Engine      *forward.Engine
	RedisClient redis.UniversalClient
	RateLimiter *middleware.RateLimiter
}

// Close 释放容器持有的资源（账本由 main 单独关停）
func (a *AppContainer) Close() {
	if a.RateLimiter != nil {
		a.RateLimiter.Stop()
	}
	if a.RedisClient != nil {
		if err := infra.CloseRedis(); err != nil {
			logger.Error("Redis 关闭异常", zap.Error(err))
		}
	}
}

// buildContainer 构建服务依赖
func buildContainer(cfg *config.Config) (*AppContainer, error) {
	registry, err := region.NewRegistry(cfg.Region.TablePath)
	if err != nil {
		return nil, fmt.Errorf("初始化地域表失败: %w", err)
	}
	if !registry.Valid(cfg.Region.Name) {
		return nil, fmt.Errorf("当前节点地域 %s 不在地域表中", cfg.Region.Name)
	}

	container := &AppContainer{
		Config:   cfg,
		Registry: registry,
		Verifier: verify.NewService(&cfg.Identity, time.Duration(cfg.Cache.TTLSeconds)*time.Second),
		Ledger:   ledger.NewService(&cfg.Identity, cfg.Region.Name, &cfg.Ledger),
		Engine: forward.NewEngine(
			time.Duration(cfg.Forward.MaxTimeoutMs)*time.Millisecond,
			cfg.Forward.UserAgent,
		),
	}

	// 限流启用且配置了 Redis 计数时才建立 Redis 连接
	if cfg.RateLimit.Enabled && cfg.RateLimit.UseRedis {
		rdb, err := infra.InitRedis(&cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("初始化 Redis 失败: %w", err)
		}
		container.RedisClient = rdb
	}

	return container, nil
}

// SetupRouter 创建路由并完成服务装配
func SetupRouter(cfg *config.Config) (*gin.Engine, *AppContainer, error) {
	container, err := buildContainer(cfg)
	if err != nil {
		return nil, nil, err
	}

	router := gin.New()
	router.Use(Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(CORS())
	if cfg.Metrics.Enabled {
		router.Use(metrics.PrometheusMiddleware())
	}

	router.NoRoute(NotFoundHandler())

	// 处理器
	fetchHandler := fetchHandlers.NewFetchHandler(container.Engine, container.Ledger, container.Registry, cfg.Region.Name)
	usageHandler := usageHandlers.NewUsageHandler(container.Ledger, cfg.Region.Name)
	regionsHandler := regionsHandlers.NewRegionsHandler(container.Registry, cfg.Region.Name)

	// 公开端点
	router.GET("/health", HealthCheck(container.Ledger, cfg.Region.Name))
	router.GET("/v1/regions", regionsHandler.List)
	if cfg.Metrics.Enabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	// 认证端点
	authed := router.Group("/v1")
	authed.Use(verify.Middleware(container.Verifier))

	if cfg.RateLimit.Enabled {
		limiterCfg := &middleware.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   5 * time.Minute,
		}
		var limiter middleware.Limiter
		if container.RedisClient != nil {
			limiter = middleware.NewRedisRateLimiter(container.RedisClient, limiterCfg)
		} else {
			container.RateLimiter = middleware.NewRateLimiter(limiterCfg)
			limiter = container.RateLimiter
		}
		authed.Use(middleware.RateLimitMiddleware(limiter))
	}

	authed.POST("/fetch", fetchHandler.Fetch)
	authed.GET("/usage", usageHandler.Usage)

	return router, container, nil
}
