// Package regions 提供地域列表端点
package regions

import (
	"net/http"

	"gateway/internal/region"

	"github.com/gin-gonic/gin"
)

// RegionsResponse 地域列表响应
type RegionsResponse struct {
	Regions  []region.Region `json:"regions"`
	Current  string          `json:"current"`
	Fallback string          `json:"fallback"`
}

// RegionsHandler 地域列表处理器
type RegionsHandler struct {
	registry   *region.Registry
	regionName string
}

// NewRegionsHandler 创建地域列表处理器
func NewRegionsHandler(registry *region.Registry, regionName string) *RegionsHandler {
	return &RegionsHandler{registry: registry, regionName: regionName}
}

// List 返回静态地域列表
// @Summary 地域列表
// @Tags Regions
// @Produce json
// @Success 200 {object} RegionsResponse
// @Router /v1/regions [get]
func (h *RegionsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, RegionsResponse{
		Regions:  h.registry.List(),
		Current:  h.regionName,
		Fallback: h.registry.Fallback(),
	})
}
