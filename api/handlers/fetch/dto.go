package fetch

// FetchRequest 转发请求体
type FetchRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
	Timeout int               `json:"timeout,omitempty"` // 毫秒，超出上限会被收敛
	Region  string            `json:"region,omitempty"`  // 可选：指定地域名
}

// FetchResponse 转发成功的归一化响应
type FetchResponse struct {
	Status    int               `json:"status"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
	Region    string            `json:"region"`
	LatencyMs int64             `json:"latency_ms"`
}

// FetchErrorResponse 转发失败的错误响应，仍携带地域与延迟
type FetchErrorResponse struct {
	Error     string `json:"error"`
	Region    string `json:"region"`
	LatencyMs int64  `json:"latency_ms"`
}
