package verify

import "time"

// Result 身份验证结果，由外部身份服务返回
// 一旦产生即不可变，缓存时按令牌原文作为键
type Result struct {
	Valid       bool    `json:"valid"`
	AgentID     string  `json:"agent_id,omitempty"`
	Email       string  `json:"email,omitempty"`
	Balance     float64 `json:"balance"`
	CostPerUnit float64 `json:"cost_per_unit"`
	// CanAfford 缺省（后端未返回该字段）与 true 同样放行，仅显式 false 拒绝
	CanAfford *bool  `json:"can_afford,omitempty"`
	Error     string `json:"error,omitempty"`
}

// cacheEntry 缓存条目：验证结果 + 绝对过期时间
// 只有 Valid==true 的结果会进入缓存
type cacheEntry struct {
	result    *Result
	expiresAt time.Time
}

// verifyRequest 发往身份服务验证端点的请求体
type verifyRequest struct {
	Token     string `json:"token"`
	Service   string `json:"service"`
	Operation string `json:"operation"`
	Quantity  int    `json:"quantity"`
}
