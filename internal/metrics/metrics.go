// Package metrics 定义网关的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// API 指标
var (
	// APIRequestsTotal API 请求总数
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_api_requests_total",
			Help: "API 请求总数",
		},
		[]string{"method", "path", "status"},
	)

	// APIRequestDuration API 请求延迟（秒）
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_api_request_duration_seconds",
			Help:    "API 请求延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// 令牌验证指标
var (
	// VerifyCacheHits 验证缓存命中数
	VerifyCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_verify_cache_hits_total",
			Help: "令牌验证缓存命中数",
		},
	)

	// VerifyCacheMisses 验证缓存未命中数
	VerifyCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_verify_cache_misses_total",
			Help: "令牌验证缓存未命中数",
		},
	)

	// VerifyBackendFailures 身份服务调用失败数
	VerifyBackendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_verify_backend_failures_total",
			Help: "身份服务调用失败数",
		},
	)
)

// 转发指标
var (
	// ForwardDuration 上游请求延迟（秒）
	ForwardDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_forward_duration_seconds",
			Help:    "转发请求的上游延迟分布",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "outcome"}, // outcome: success, timeout, upstream_error
	)
)

// 用量账本指标
var (
	// LedgerPending 待上报的用量记录数
	LedgerPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_ledger_pending_records",
			Help: "待上报的用量记录数",
		},
	)

	// LedgerFlushedRecords 已成功上报的用量记录数
	LedgerFlushedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_ledger_flushed_records_total",
			Help: "已成功上报的用量记录数",
		},
	)

	// LedgerFlushFailures 上报失败次数
	LedgerFlushFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_ledger_flush_failures_total",
			Help: "用量批量上报失败次数",
		},
	)
)
