package studio

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCallAgentReturnsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/agent/call" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["agent_id"] != "script-planner" || body["message"] != "hi" {
			t.Errorf("unexpected body: %v", body)
		}
		_, _ = w.Write([]byte(`{"success":true,"response":{"result":{"hook_line":"Stop scrolling"}}}`))
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	env, err := client.CallAgent(context.Background(), "script-planner", "hi")
	if err != nil {
		t.Fatalf("call agent: %v", err)
	}
	if !env.Success || string(env.Response) != `{"result":{"hook_line":"Stop scrolling"}}` {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestCallAgentBadRequestBecomesFailureEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":"请求体解析失败"}`))
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	env, err := client.CallAgent(context.Background(), "x", "y")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if env.Success || env.Error != "请求体解析失败" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestJobsRoundTrip(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		var sub JobSubmission
		_ = json.NewDecoder(r.Body).Decode(&sub)
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(Job{ID: "job-1", AgentID: sub.AgentID, Message: sub.Message, Status: "pending"})
	})
	mux.HandleFunc("GET /api/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "job-1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"job not found","code":"JOB_NOT_FOUND"}`))
			return
		}
		status := "running"
		var result *Envelope
		if polls.Add(1) >= 2 {
			status = "succeeded"
			result = &Envelope{Success: true, Response: json.RawMessage(`{"result":{}}`)}
		}
		_ = json.NewEncoder(w).Encode(Job{ID: "job-1", Status: status, Result: result})
	})
	mux.HandleFunc("GET /api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("status") != "succeeded" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"jobs":[{"id":"job-1","status":"succeeded"}]}`))
	})
	mux.HandleFunc("GET /api/v1/agents", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"agents":[{"kind":"trend-topic","id":"abc","name":"Trend & Topic"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := client.SubmitJob(ctx, JobSubmission{AgentID: "trend-topic", Message: "m"})
	if err != nil || job.ID != "job-1" || job.Status != "pending" {
		t.Fatalf("submit: %+v %v", job, err)
	}
	done, err := client.WaitForJob(ctx, job.ID, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !done.Done() || done.Result == nil || !done.Result.Success {
		t.Fatalf("unexpected job: %+v", done)
	}

	jobs, err := client.ListJobs(ctx, "succeeded", 5)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("list: %+v %v", jobs, err)
	}
	agents, err := client.Agents(ctx)
	if err != nil || len(agents) != 1 || agents[0].Kind != "trend-topic" {
		t.Fatalf("agents: %+v %v", agents, err)
	}

	_, err = client.GetJob(ctx, "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "JOB_NOT_FOUND" {
		t.Fatalf("expected api error, got %v", err)
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("not a url", nil); err == nil {
		t.Fatal("expected error")
	}
}
