// Package forward 执行对目标地址的出站 HTTP 调用
package forward

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"gateway/internal/metrics"
)

// 转发失败的两类终态，不做自动重试
var (
	// ErrTimeout 上游在限时内未响应（含取消）
	ErrTimeout = errors.New("上游请求超时")
	// ErrUpstream 其他传输层失败
	ErrUpstream = errors.New("上游请求失败")
)

// Request 一次转发请求
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    string
	Timeout time.Duration
}

// Result 转发结果的归一化封装
type Result struct {
	Status    int
	Headers   map[string]string
	Body      string
	Bytes     int
	LatencyMs int64
}

// Engine 转发引擎
type Engine struct {
	client     *http.Client
	maxTimeout time.Duration
	userAgent  string
}

// Option 引擎配置选项
type Option func(*Engine)

// WithClient 指定底层 HTTP 客户端
// 用于注入自定义 Transport，如将固定域名解析到指定监听地址
func WithClient(client *http.Client) Option {
	return func(e *Engine) {
		e.client = client
	}
}

// NewEngine 创建转发引擎
// 超时由每次调用的 context 控制，因此底层 client 不设全局超时
func NewEngine(maxTimeout time.Duration, userAgent string, opts ...Option) *Engine {
	engine := &Engine{
		client:     &http.Client{},
		maxTimeout: maxTimeout,
		userAgent:  userAgent,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// blockedPrefixes 内网地址前缀黑名单
// 按字面前缀匹配，范围有意保持狭窄（不含 172.16.0.0/12、链路本地等），
// 扩大匹配范围属于行为变更，不在此处做
var blockedPrefixes = []string{"127.0.0.1", "localhost", "10.", "192.168."}

// BlockedHost 判断目标主机名是否命中内网黑名单
func BlockedHost(host string) bool {
	h := strings.ToLower(host)
	for _, prefix := range blockedPrefixes {
		if strings.HasPrefix(h, prefix) {
			return true
		}
	}
	return false
}

// ClampTimeout 将调用方请求的超时收敛到上限以内
func (e *Engine) ClampTimeout(d time.Duration) time.Duration {
	if d <= 0 || d > e.maxTimeout {
		return e.maxTimeout
	}
	return d
}

// Forward 执行出站调用
// 前置校验（URL 合法性、黑名单）由调用方完成；
// 失败时返回的 Result 仍携带已消耗的延迟
func (e *Engine) Forward(ctx context.Context, req *Request) (*Result, error) {
	timeout := e.ClampTimeout(req.Timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// GET/HEAD 不携带请求体
	var body io.Reader
	if req.Body != "" && req.Method != http.MethodGet && req.Method != http.MethodHead {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return &Result{}, ErrUpstream
	}

	// 默认标识头，调用方传入同名头时以调用方为准
	httpReq.Header.Set("User-Agent", e.userAgent)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	elapsed := time.Since(start)
	latencyMs := elapsed.Milliseconds()

	if err != nil {
		outcome := "upstream_error"
		ferr := ErrUpstream
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			outcome = "timeout"
			ferr = ErrTimeout
		}
		metrics.ForwardDuration.WithLabelValues(req.Method, outcome).Observe(elapsed.Seconds())
		return &Result{LatencyMs: latencyMs}, ferr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ForwardDuration.WithLabelValues(req.Method, "upstream_error").Observe(elapsed.Seconds())
		return &Result{LatencyMs: latencyMs}, ErrUpstream
	}

	// 响应头压平为单值；同名多值头取首个，此处有意保持有损行为
	headers := make(map[string]string, len(resp.Header))
	for name, values := range resp.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	metrics.ForwardDuration.WithLabelValues(req.Method, "success").Observe(elapsed.Seconds())

	return &Result{
		Status:    resp.StatusCode,
		Headers:   headers,
		Body:      string(respBody),
		Bytes:     len(respBody),
		LatencyMs: latencyMs,
	}, nil
}
