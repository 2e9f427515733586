package ledger

// RecordMetadata 单次转发的计量明细
type RecordMetadata struct {
	Region       string `json:"region"`
	TargetDomain string `json:"target_domain"`
	LatencyMs    int64  `json:"latency_ms"`
	Status       int    `json:"status"`
	Bytes        int    `json:"bytes"`
}

// UsageRecord 一条可计费的用量记录
// 从创建到随批次上报（或失败回补）期间由账本独占持有
type UsageRecord struct {
	AgentID   string         `json:"agent_id"`
	Operation string         `json:"operation"`
	Quantity  int            `json:"quantity"`
	Timestamp string         `json:"timestamp"` // RFC3339
	Metadata  RecordMetadata `json:"metadata"`
}

// submitRequest 发往计费服务用量端点的批次
type submitRequest struct {
	Service string        `json:"service"`
	Region  string        `json:"region"`
	Records []UsageRecord `json:"records"`
}

// submitResponse 计费服务的批次回执
type submitResponse struct {
	Processed            int     `json:"processed"`
	TotalCreditsDeducted float64 `json:"total_credits_deducted"`
}
