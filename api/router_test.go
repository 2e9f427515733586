package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"gateway/internal/config"
	"gateway/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := logger.Init("error", "console", "stderr"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// newTestConfig 构建指向假身份服务的最小配置
func newTestConfig(identityURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080, Mode: "test"},
		Region: config.RegionConfig{Name: "us-east", Fallback: "us-east"},
		Identity: config.IdentityConfig{
			BaseURL:        identityURL,
			VerifyPath:     "/api/v1/verify",
			UsagePath:      "/api/v1/usage/batch",
			SharedSecret:   "test-secret",
			Service:        "fetch-gateway",
			TimeoutSeconds: 5,
		},
		Cache:   config.CacheConfig{TTLSeconds: 60},
		Ledger:  config.LedgerConfig{FlushIntervalSeconds: 3600, MaxPending: 10000},
		Forward: config.ForwardConfig{MaxTimeoutMs: 30000, UserAgent: "FetchGateway/1.0"},
		Log:     config.LogConfig{Level: "error", Format: "console", OutputPath: "stderr"},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

func newTestRouter(t *testing.T, identityURL string) *gin.Engine {
	t.Helper()
	router, container, err := SetupRouter(newTestConfig(identityURL))
	assert.NoError(t, err)
	t.Cleanup(container.Close)
	return router
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, "http://localhost:9")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "us-east", resp.Region)
	assert.NotEmpty(t, resp.Timestamp)
	assert.Equal(t, 0, resp.PendingUsageRecords)
}

func TestRegionsEndpoint(t *testing.T) {
	router := newTestRouter(t, "http://localhost:9")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/regions", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp["regions"], 4)
	assert.Equal(t, "us-east", resp["current"])
}

func TestNotFoundRoute(t *testing.T) {
	router := newTestRouter(t, "http://localhost:9")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/nonexistent", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Not found")
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t, "http://localhost:9")

	w := httptest.NewRecorder()
	req := httptest.NewRequest("OPTIONS", "/v1/fetch", nil)
	req.Header.Set("Origin", "https://example.com")
	router.ServeHTTP(w, req)

	assert.Equal(t, 204, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	assert.NotEmpty(t, w.Header().Get("Access-Control-Allow-Methods"))
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, "http://localhost:9")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gateway_")
}

func TestUsageEndpoint(t *testing.T) {
	identity := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"valid":         true,
			"agent_id":      "agent-1",
			"email":         "agent@example.com",
			"balance":       42.5,
			"cost_per_unit": 0.01,
			"can_afford":    true,
		})
	}))
	defer identity.Close()

	router := newTestRouter(t, identity.URL)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/usage", nil)
	req.Header.Set("Authorization", "Bearer tok-1")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "agent-1", resp["agent_id"])
	assert.Equal(t, 42.5, resp["balance"])
	assert.Equal(t, "us-east", resp["region"])
	assert.Equal(t, float64(0), resp["pending_records"])
	assert.Equal(t, 0.01, resp["cost_per_request"])
}

func TestUsageEndpointRequiresAuth(t *testing.T) {
	router := newTestRouter(t, "http://localhost:9")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/usage", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
