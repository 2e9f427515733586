package verify

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ResultContextKey 验证结果在 Gin 上下文中的键
const ResultContextKey = "verify_result"

// ExtractTokenFromBearer 从 Authorization 头提取纯令牌
// 格式不是 Bearer 方案时返回空串
func ExtractTokenFromBearer(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Middleware 令牌验证中间件
// 身份服务不可用与无效令牌同样返回 401，对外契约刻意不区分两者
func Middleware(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "No token provided",
			})
			return
		}

		token := ExtractTokenFromBearer(authHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header",
			})
			return
		}

		result := svc.Verify(c.Request.Context(), token)
		if !result.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": result.Error,
			})
			return
		}

		// 将验证结果存入上下文，供后续处理器使用
		c.Set(ResultContextKey, result)
		c.Set("agent_id", result.AgentID)

		c.Next()
	}
}

// FromContext 从 Gin 上下文取出验证结果
func FromContext(c *gin.Context) (*Result, bool) {
	v, exists := c.Get(ResultContextKey)
	if !exists {
		return nil, false
	}
	result, ok := v.(*Result)
	return result, ok
}
