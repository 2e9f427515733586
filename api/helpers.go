package api

import (
	"time"

	"gateway/internal/ledger"
	"gateway/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status              string `json:"status"`
	Region              string `json:"region"`
	Timestamp           string `json:"timestamp"`
	PendingUsageRecords int    `json:"pending_usage_records"`
}

// HealthCheck 健康检查
// @Summary 服务健康检查
// @Description 返回节点地域与待上报用量积压，可供监控探针使用
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func HealthCheck(ledgerSvc *ledger.Service, regionName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, HealthResponse{
			Status:              "healthy",
			Region:              regionName,
			Timestamp:           time.Now().UTC().Format(time.RFC3339),
			PendingUsageRecords: ledgerSvc.Pending(),
		})
	}
}

// NotFoundHandler 未匹配路由统一返回 JSON
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(404, gin.H{"error": "Not found"})
	}
}

// Recovery 请求处理中的未捕获 panic 转为 500，避免节点退出
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("请求处理发生 panic",
			zap.Any("recovered", recovered),
			zap.String("path", c.Request.URL.Path),
		)
		c.AbortWithStatusJSON(500, gin.H{"error": "Internal server error"})
	})
}
