package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Burst(t *testing.T) {
	limiter := NewRateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 1,
		RequestsPerMinute: 0,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
	})
	defer limiter.Stop()

	// 突发容量内放行
	assert.True(t, limiter.Allow("agent-1"))
	assert.True(t, limiter.Allow("agent-1"))
	assert.True(t, limiter.Allow("agent-1"))
	// 容量耗尽后拒绝
	assert.False(t, limiter.Allow("agent-1"))

	// 不同键互不影响
	assert.True(t, limiter.Allow("agent-2"))
}

func TestRateLimiter_MinuteWindow(t *testing.T) {
	limiter := NewRateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 100,
		RequestsPerMinute: 2,
		BurstSize:         100,
		CleanupInterval:   time.Minute,
	})
	defer limiter.Stop()

	assert.True(t, limiter.Allow("agent-1"))
	assert.True(t, limiter.Allow("agent-1"))
	assert.False(t, limiter.Allow("agent-1"), "超过分钟窗口限制应拒绝")
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limiter := NewRateLimiter(&RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})
	defer limiter.Stop()

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("agent_id", "agent-1")
	})
	router.Use(RateLimitMiddleware(limiter))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
