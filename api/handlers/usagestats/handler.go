// Package usagestats 提供当前代理人的用量概览端点
package usagestats

import (
	"net/http"

	"gateway/api/handlers/common"
	"gateway/internal/ledger"
	"gateway/internal/verify"

	"github.com/gin-gonic/gin"
)

// UsageResponse 用量概览响应
type UsageResponse struct {
	AgentID        string  `json:"agent_id"`
	Email          string  `json:"email,omitempty"`
	Balance        float64 `json:"balance"`
	Region         string  `json:"region"`
	PendingRecords int     `json:"pending_records"`
	CostPerRequest float64 `json:"cost_per_request"`
}

// UsageHandler 用量概览处理器
type UsageHandler struct {
	ledger     *ledger.Service
	regionName string
}

// NewUsageHandler 创建用量概览处理器
func NewUsageHandler(ledgerSvc *ledger.Service, regionName string) *UsageHandler {
	return &UsageHandler{ledger: ledgerSvc, regionName: regionName}
}

// Usage 查询当前代理人的余额与本节点待上报记录数
// @Summary 用量概览
// @Tags Usage
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UsageResponse
// @Failure 401 {object} common.ErrorResponse
// @Router /v1/usage [get]
func (h *UsageHandler) Usage(c *gin.Context) {
	result, ok := verify.FromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, UsageResponse{
		AgentID:        result.AgentID,
		Email:          result.Email,
		Balance:        result.Balance,
		Region:         h.regionName,
		PendingRecords: h.ledger.Pending(),
		CostPerRequest: result.CostPerUnit,
	})
}
