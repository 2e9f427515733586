package common

// ErrorResponse 统一错误返回结构
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// PaymentRequiredResponse 余额不足返回结构，附带当前余额与单价
type PaymentRequiredResponse struct {
	Error          string  `json:"error"`
	Balance        float64 `json:"balance"`
	CostPerRequest float64 `json:"cost_per_request"`
}
