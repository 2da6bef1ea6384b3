package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AutoViral-Studio/internal/agent"
	"AutoViral-Studio/internal/task"
)

type stubAgent struct {
	mu      sync.Mutex
	agentID []string
	reply   agent.Result
	panics  bool
}

func (s *stubAgent) Call(_ context.Context, message, agentID string) agent.Result {
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	s.agentID = append(s.agentID, agentID)
	s.mu.Unlock()
	return s.reply
}

func newTestServer(t *testing.T, stub *stubAgent) (*httptest.Server, *task.Service, *task.MemoryStore) {
	t.Helper()
	store := task.NewMemoryStore()
	jobs := task.NewService(store, task.NewMemoryQueue(16))
	srv := httptest.NewServer(NewServer(":0", Dependencies{Agent: stub, Jobs: jobs}).Handler())
	t.Cleanup(srv.Close)
	return srv, jobs, store
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&decoded)
	}
	return resp, decoded
}

func TestAgentCallPassesEnvelopeThrough(t *testing.T) {
	stub := &stubAgent{reply: agent.Succeeded(json.RawMessage(`{"result":{"hook_line":"Stop scrolling"}}`))}
	srv, _, _ := newTestServer(t, stub)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/agent/call", `{"message":"hi","agentId":"script-planner"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, map[string]any{"result": map[string]any{"hook_line": "Stop scrolling"}}, body["response"])
	assert.Equal(t, []string{"69a3270589a7585c80443946"}, stub.agentID)
}

func TestAgentCallFailureIsStill200(t *testing.T) {
	stub := &stubAgent{reply: agent.Failed("agent returned status 500: boom")}
	srv, _, _ := newTestServer(t, stub)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/agent/call", `{"message":"hi","agent_id":"opaque-id"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "agent returned status 500: boom", body["error"])
	assert.Equal(t, []string{"opaque-id"}, stub.agentID)

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/agent/call", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestListAgents(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubAgent{})
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/agents", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	agents := body["agents"].([]any)
	require.Len(t, agents, 4)
	assert.Equal(t, "script-planner", agents[0].(map[string]any)["kind"])
}

func TestStudioTrendsAddsBadges(t *testing.T) {
	stub := &stubAgent{reply: agent.Succeeded(json.RawMessage(`{"result":{"topics":[{"title":"Agents","trend_velocity":"Rising","interest_level":7}]}}`))}
	srv, _, _ := newTestServer(t, stub)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/studio/trends", `{"niche":"AI/Tech"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := body["result"].(map[string]any)
	assert.Equal(t, "AI/Tech", result["niche"])
	topic := result["topics"].([]any)[0].(map[string]any)
	assert.Equal(t, "rising", topic["velocity"])
	assert.Equal(t, float64(70), topic["interest_percent"])

	resp, state := doJSON(t, http.MethodGet, srv.URL+"/api/v1/studio/sections/niches", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, state["busy"])
	assert.NotNil(t, state["result"])

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/v1/studio/sections/niches", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_, state = doJSON(t, http.MethodGet, srv.URL+"/api/v1/studio/sections/niches", "")
	assert.Nil(t, state["result"])
}

func TestStudioErrorsMapToStatus(t *testing.T) {
	stub := &stubAgent{reply: agent.Failed("")}
	srv, _, _ := newTestServer(t, stub)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/studio/script", `{"topic":"coffee"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "agent call failed", body["error"])

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/studio/script", `{"topic":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/studio/captions", `{"topic":"x","tone":"Sarcastic"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/studio/sections/render", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStudioOptions(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubAgent{})
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/studio/options?q=tech", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"AI/Tech"}, body["niches"])
	assert.Equal(t, "Informative", body["default_tone"])
}

func TestJobsLifecycle(t *testing.T) {
	stub := &stubAgent{reply: agent.Succeeded(json.RawMessage(`{"result":{}}`))}
	srv, _, store := newTestServer(t, stub)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/v1/jobs", `{"id":"job-1","message":"hi","agent_id":"hook-optimizer"}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, "69a32706e7d556f541c6d6e5", created["agent_id"])

	processor := task.NewProcessor(stub, store, nil)
	require.NoError(t, processor.Handle(context.Background(), "job-1"))

	resp, detail := doJSON(t, http.MethodGet, srv.URL+"/api/v1/jobs/job-1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "succeeded", detail["status"])
	assert.Equal(t, true, detail["result"].(map[string]any)["success"])

	resp, list := doJSON(t, http.MethodGet, srv.URL+"/api/v1/jobs?status=succeeded&limit=5", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list["jobs"], 1)

	resp, stats := doJSON(t, http.MethodGet, srv.URL+"/api/v1/jobs/stats", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), stats["succeeded"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/v1/jobs?status=exploded", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/jobs", `{"agent_id":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJobsUnavailableWithoutService(t *testing.T) {
	srv := httptest.NewServer(NewServer(":0", Dependencies{Agent: &stubAgent{}}).Handler())
	defer srv.Close()
	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/v1/jobs", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPanicIsContained(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubAgent{panics: true})

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/agent/call", `{"message":"hi","agent_id":"a"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "INTERNAL", body["code"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, &stubAgent{})
	_, _ = doJSON(t, http.MethodGet, srv.URL+"/healthz", "")

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	buf := new(strings.Builder)
	_, _ = io.Copy(buf, resp.Body)
	assert.Contains(t, buf.String(), `studio_http_requests_total{code="200",handler="GET /healthz",method="GET"}`)
}

func TestStartStopsOnCancel(t *testing.T) {
	server := NewServer("127.0.0.1:0", Dependencies{Agent: &stubAgent{}}, WithShutdownTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
