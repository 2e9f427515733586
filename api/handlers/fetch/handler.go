package fetch

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gateway/api/handlers/common"
	"gateway/internal/forward"
	"gateway/internal/ledger"
	"gateway/internal/region"
	"gateway/internal/verify"

	"github.com/gin-gonic/gin"
)

// 每次转发按固定操作计量一个单位
const (
	usageOperation = "fetch"
	usageQuantity  = 1
)

// FetchHandler 转发处理器
type FetchHandler struct {
	engine     *forward.Engine
	ledger     *ledger.Service
	registry   *region.Registry
	regionName string
}

// NewFetchHandler 创建转发处理器
func NewFetchHandler(engine *forward.Engine, ledgerSvc *ledger.Service, registry *region.Registry, regionName string) *FetchHandler {
	return &FetchHandler{
		engine:     engine,
		ledger:     ledgerSvc,
		registry:   registry,
		regionName: regionName,
	}
}

// Fetch 代理转发
// @Summary 代理转发目标 URL
// @Description 校验请求后从当前地域发起出站调用，并记录一条用量
// @Tags Fetch
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body FetchRequest true "转发请求"
// @Success 200 {object} FetchResponse
// @Failure 400 {object} common.ErrorResponse
// @Failure 402 {object} common.PaymentRequiredResponse
// @Failure 403 {object} common.ErrorResponse
// @Router /v1/fetch [post]
func (h *FetchHandler) Fetch(c *gin.Context) {
	result, ok := verify.FromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, common.ErrorResponse{Error: "Internal server error"})
		return
	}

	// 余额检查：仅在明确不可支付时拒绝
	if result.CanAfford != nil && !*result.CanAfford {
		c.JSON(http.StatusPaymentRequired, common.PaymentRequiredResponse{
			Error:          "Insufficient credits",
			Balance:        result.Balance,
			CostPerRequest: result.CostPerUnit,
		})
		return
	}

	var req FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid JSON body"})
		return
	}

	if req.URL == "" {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Missing required field: url"})
		return
	}

	target, err := url.Parse(req.URL)
	if err != nil || target.Host == "" || (target.Scheme != "http" && target.Scheme != "https") {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Invalid URL"})
		return
	}

	// 指定地域时校验是否为已知地域名
	if req.Region != "" && !h.registry.Valid(req.Region) {
		c.JSON(http.StatusBadRequest, common.ErrorResponse{Error: "Unknown region: " + req.Region})
		return
	}

	// 内网黑名单：校验失败不转发、不计量
	if forward.BlockedHost(target.Hostname()) {
		c.JSON(http.StatusForbidden, common.ErrorResponse{Error: "Requests to private networks are not allowed"})
		return
	}

	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	fwdResult, fwdErr := h.engine.Forward(c.Request.Context(), &forward.Request{
		URL:     req.URL,
		Method:  method,
		Headers: req.Headers,
		Body:    req.Body,
		Timeout: time.Duration(req.Timeout) * time.Millisecond,
	})

	// 成功与上游错误都计量；计费对象是代理调用本身，不以上游结果为准
	status := fwdResult.Status
	if fwdErr != nil {
		if errors.Is(fwdErr, forward.ErrTimeout) {
			status = http.StatusGatewayTimeout
		} else {
			status = http.StatusBadGateway
		}
	}

	h.ledger.Record(ledger.UsageRecord{
		AgentID:   result.AgentID,
		Operation: usageOperation,
		Quantity:  usageQuantity,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Metadata: ledger.RecordMetadata{
			Region:       h.regionName,
			TargetDomain: target.Hostname(),
			LatencyMs:    fwdResult.LatencyMs,
			Status:       status,
			Bytes:        fwdResult.Bytes,
		},
	})

	if fwdErr != nil {
		message := "Upstream request failed"
		if errors.Is(fwdErr, forward.ErrTimeout) {
			message = "Upstream request timed out"
		}
		c.JSON(status, FetchErrorResponse{
			Error:     message,
			Region:    h.regionName,
			LatencyMs: fwdResult.LatencyMs,
		})
		return
	}

	c.JSON(http.StatusOK, FetchResponse{
		Status:    fwdResult.Status,
		Headers:   fwdResult.Headers,
		Body:      fwdResult.Body,
		Region:    h.regionName,
		LatencyMs: fwdResult.LatencyMs,
	})
}
