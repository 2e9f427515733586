// Package ledger 维护内存中的用量账本：请求路径追加，后台定期批量上报
package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gateway/internal/config"
	"gateway/internal/logger"
	"gateway/internal/metrics"
	"gateway/pkg/httputil"

	"go.uber.org/zap"
)

// Service 用量账本服务
type Service struct {
	client     *httputil.Client
	cfg        *config.IdentityConfig
	region     string
	interval   time.Duration
	maxPending int

	mu      sync.Mutex
	pending []UsageRecord

	// 防止超限触发的强制上报在积压持续超限时堆积 goroutine
	flushing atomic.Bool

	started atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewService 创建用量账本服务
func NewService(cfg *config.IdentityConfig, region string, ledgerCfg *config.LedgerConfig) *Service {
	client := httputil.NewClient(
		httputil.WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second),
		httputil.WithHeaders(map[string]string{
			"X-Shared-Secret": cfg.SharedSecret,
		}),
	)

	return &Service{
		client:     client,
		cfg:        cfg,
		region:     region,
		interval:   time.Duration(ledgerCfg.FlushIntervalSeconds) * time.Second,
		maxPending: ledgerCfg.MaxPending,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Record 追加一条用量记录
// 同步且不会失败；积压超过上限时触发一次不等待的强制上报
func (s *Service) Record(rec UsageRecord) {
	s.mu.Lock()
	s.pending = append(s.pending, rec)
	overflow := len(s.pending) > s.maxPending
	metrics.LedgerPending.Set(float64(len(s.pending)))
	s.mu.Unlock()

	if overflow && s.flushing.CompareAndSwap(false, true) {
		go func() {
			defer s.flushing.Store(false)
			if err := s.Flush(context.Background()); err != nil {
				logger.Warn("超限强制上报失败，记录已回补", zap.Error(err))
			}
		}()
	}
}

// Pending 当前积压的记录数
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush 将当前积压一次性取走并批量上报
// 取走与清空在锁内原子完成，网络调用在锁外进行；
// 上报失败时整批回补，等待下一轮（至少一次送达，批内顺序无要求）
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.pending
	s.pending = nil
	metrics.LedgerPending.Set(0)
	s.mu.Unlock()

	req := submitRequest{
		Service: s.cfg.Service,
		Region:  s.region,
		Records: batch,
	}

	var resp submitResponse
	if err := s.client.PostJSON(ctx, s.cfg.UsageURL(), req, &resp); err != nil {
		// 回补整批记录
		s.mu.Lock()
		s.pending = append(s.pending, batch...)
		metrics.LedgerPending.Set(float64(len(s.pending)))
		s.mu.Unlock()

		metrics.LedgerFlushFailures.Inc()
		logger.Error("用量批量上报失败",
			zap.Int("records", len(batch)),
			zap.Error(err),
		)
		return err
	}

	metrics.LedgerFlushedRecords.Add(float64(len(batch)))
	logger.Info("用量批量上报完成",
		zap.Int("records", len(batch)),
		zap.Int("processed", resp.Processed),
		zap.Float64("credits_deducted", resp.TotalCreditsDeducted),
	)
	return nil
}

// Run 启动后台定时上报循环，直到 Shutdown 被调用
func (s *Service) Run() {
	s.started.Store(true)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	logger.Info("用量上报循环启动", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ticker.C:
			// 失败已回补，这里无需额外处理
			_ = s.Flush(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Shutdown 停止后台循环并执行最后一次上报
// 这是唯一不再重试的路径：进程即将退出，失败的批次随进程丢弃
func (s *Service) Shutdown(ctx context.Context) error {
	close(s.stopCh)

	// 循环未启动时 doneCh 永远不会关闭，直接进入最后一次上报
	if s.started.Load() {
		select {
		case <-s.doneCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return s.Flush(ctx)
}
