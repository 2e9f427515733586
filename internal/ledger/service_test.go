package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"gateway/internal/config"
	"gateway/internal/logger"

	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	if err := logger.Init("error", "console", "stderr"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeBilling 可切换成功/失败的假计费服务，记录收到的批次
type fakeBilling struct {
	mu      sync.Mutex
	fail    bool
	batches [][]UsageRecord
	server  *httptest.Server
}

func newFakeBilling() *fakeBilling {
	f := &fakeBilling{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if f.fail {
			http.Error(w, "billing unavailable", http.StatusServiceUnavailable)
			return
		}

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.batches = append(f.batches, req.Records)

		json.NewEncoder(w).Encode(submitResponse{Processed: len(req.Records)})
	}))
	return f
}

func (f *fakeBilling) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeBilling) received() [][]UsageRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

func newTestService(t *testing.T, backendURL string, maxPending int) *Service {
	t.Helper()
	cfg := &config.IdentityConfig{
		BaseURL:        backendURL,
		VerifyPath:     "/api/v1/verify",
		UsagePath:      "/api/v1/usage/batch",
		SharedSecret:   "test-secret",
		Service:        "fetch-gateway",
		TimeoutSeconds: 5,
	}
	return NewService(cfg, "us-east", &config.LedgerConfig{
		FlushIntervalSeconds: 3600, // 测试中不依赖定时器
		MaxPending:           maxPending,
	})
}

func sampleRecord(agentID string) UsageRecord {
	return UsageRecord{
		AgentID:   agentID,
		Operation: "fetch",
		Quantity:  1,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Metadata: RecordMetadata{
			Region:       "us-east",
			TargetDomain: "example.com",
			LatencyMs:    42,
			Status:       200,
			Bytes:        128,
		},
	}
}

func TestRecordAndFlush(t *testing.T) {
	billing := newFakeBilling()
	defer billing.server.Close()

	svc := newTestService(t, billing.server.URL, 10000)

	svc.Record(sampleRecord("agent-1"))
	svc.Record(sampleRecord("agent-2"))
	assert.Equal(t, 2, svc.Pending())

	assert.NoError(t, svc.Flush(context.Background()))
	assert.Equal(t, 0, svc.Pending())

	batches := billing.received()
	assert.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
}

func TestFlushEmptyIsNoop(t *testing.T) {
	billing := newFakeBilling()
	defer billing.server.Close()

	svc := newTestService(t, billing.server.URL, 10000)

	assert.NoError(t, svc.Flush(context.Background()))
	assert.Empty(t, billing.received(), "空账本不应发起上报")
}

func TestFlushFailureRequeues(t *testing.T) {
	billing := newFakeBilling()
	defer billing.server.Close()

	svc := newTestService(t, billing.server.URL, 10000)

	svc.Record(sampleRecord("agent-1"))
	svc.Record(sampleRecord("agent-2"))

	// 连续两轮失败：记录整批回补，不丢失不重复
	billing.setFail(true)
	assert.Error(t, svc.Flush(context.Background()))
	assert.Equal(t, 2, svc.Pending())
	assert.Error(t, svc.Flush(context.Background()))
	assert.Equal(t, 2, svc.Pending())

	// 恢复后一次成功，提交的正是原始两条
	billing.setFail(false)
	assert.NoError(t, svc.Flush(context.Background()))
	assert.Equal(t, 0, svc.Pending())

	batches := billing.received()
	assert.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
	agents := []string{batches[0][0].AgentID, batches[0][1].AgentID}
	assert.ElementsMatch(t, []string{"agent-1", "agent-2"}, agents)
}

func TestRecordDuringFlushNotLost(t *testing.T) {
	billing := newFakeBilling()
	defer billing.server.Close()

	svc := newTestService(t, billing.server.URL, 10000)

	svc.Record(sampleRecord("agent-1"))
	assert.NoError(t, svc.Flush(context.Background()))

	// 上一轮已取走，落在其后的记录进入下一批
	svc.Record(sampleRecord("agent-2"))
	assert.Equal(t, 1, svc.Pending())
	assert.NoError(t, svc.Flush(context.Background()))

	batches := billing.received()
	assert.Len(t, batches, 2)
	assert.Equal(t, "agent-1", batches[0][0].AgentID)
	assert.Equal(t, "agent-2", batches[1][0].AgentID)
}

func TestOverflowTriggersFlush(t *testing.T) {
	billing := newFakeBilling()
	defer billing.server.Close()

	svc := newTestService(t, billing.server.URL, 5)

	for i := 0; i < 6; i++ {
		svc.Record(sampleRecord("agent-1"))
	}

	// 强制上报是异步派发的，轮询等待结果
	assert.Eventually(t, func() bool {
		return svc.Pending() == 0 && len(billing.received()) == 1
	}, time.Second, 10*time.Millisecond, "超限应在不等待定时器的情况下触发上报")

	batches := billing.received()
	assert.Len(t, batches[0], 6)
}

func TestShutdownWithoutRunStillFlushes(t *testing.T) {
	billing := newFakeBilling()
	defer billing.server.Close()

	svc := newTestService(t, billing.server.URL, 10000)
	svc.Record(sampleRecord("agent-1"))

	// 循环从未启动也不应阻塞到超时
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, svc.Shutdown(ctx))

	assert.Equal(t, 0, svc.Pending())
	assert.Len(t, billing.received(), 1)
}

func TestShutdownFlushes(t *testing.T) {
	billing := newFakeBilling()
	defer billing.server.Close()

	svc := newTestService(t, billing.server.URL, 10000)

	go svc.Run()
	svc.Record(sampleRecord("agent-1"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, svc.Shutdown(ctx))

	assert.Equal(t, 0, svc.Pending())
	assert.Len(t, billing.received(), 1)
}
