// Package verify 封装对外部身份服务的令牌验证，并对正向结果做 TTL 缓存
package verify

import (
	"context"
	"sync"
	"time"

	"gateway/internal/config"
	"gateway/internal/logger"
	"gateway/internal/metrics"
	"gateway/pkg/httputil"

	"go.uber.org/zap"
)

// 验证时使用的固定操作描述
const (
	verifyOperation = "fetch"
	verifyQuantity  = 1
)

// 返回给调用方的固定错误文案（对外契约，勿改）
const (
	errNoToken     = "No token provided"
	errUnavailable = "Authentication service unavailable"
)

// Service 令牌验证服务
type Service struct {
	client *httputil.Client
	cfg    *config.IdentityConfig
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewService 创建令牌验证服务
func NewService(cfg *config.IdentityConfig, ttl time.Duration) *Service {
	client := httputil.NewClient(
		httputil.WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second),
		httputil.WithHeaders(map[string]string{
			"X-Shared-Secret": cfg.SharedSecret,
		}),
	)

	return &Service{
		client: client,
		cfg:    cfg,
		ttl:    ttl,
		cache:  make(map[string]cacheEntry),
	}
}

// Verify 验证令牌并返回身份信息
// 空令牌直接短路；命中未过期缓存时不发起后端调用；
// 后端不可用一律按验证失败处理（fail closed），且失败结果永不缓存
func (s *Service) Verify(ctx context.Context, token string) *Result {
	if token == "" {
		return &Result{Valid: false, Error: errNoToken}
	}

	// 查缓存（读锁），过期条目视为未命中，由后续成功验证覆盖
	s.mu.RLock()
	entry, ok := s.cache[token]
	s.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		metrics.VerifyCacheHits.Inc()
		return entry.result
	}
	metrics.VerifyCacheMisses.Inc()

	// 请求身份服务
	req := verifyRequest{
		Token:     token,
		Service:   s.cfg.Service,
		Operation: verifyOperation,
		Quantity:  verifyQuantity,
	}

	var result Result
	if err := s.client.PostJSON(ctx, s.cfg.VerifyURL(), req, &result); err != nil {
		metrics.VerifyBackendFailures.Inc()
		logger.Warn("身份服务调用失败",
			zap.String("url", s.cfg.VerifyURL()),
			zap.Error(err),
		)
		return &Result{Valid: false, Error: errUnavailable}
	}

	// 只缓存正向结果，负向结果每次都重新验证
	if result.Valid {
		s.mu.Lock()
		s.cache[token] = cacheEntry{
			result:    &result,
			expiresAt: time.Now().Add(s.ttl),
		}
		s.mu.Unlock()
	}

	return &result
}

// CacheSize 当前缓存条目数（含未被惰性清理的过期条目）
func (s *Service) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
