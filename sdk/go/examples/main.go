package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"AutoViral-Studio/sdk/go/studio"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/agent/call", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(studio.Envelope{
			Success:  true,
			Response: json.RawMessage(`{"result":{"hook_line":"Stop scrolling, this will change everything"}}`),
		})
	})
	mux.HandleFunc("POST /api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(studio.Job{ID: "job-demo", AgentID: "69a327053dad68d04a05e74f", Status: "pending"})
	})
	mux.HandleFunc("GET /api/v1/jobs/job-demo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(studio.Job{
			ID:     "job-demo",
			Status: "succeeded",
			Result: &studio.Envelope{Success: true, Response: json.RawMessage(`{"result":{"niche":"AI/Tech","topics":[]}}`)},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := studio.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	env, err := client.CallAgent(ctx, "script-planner", `Generate a 45-second Informative short-form video script for the topic: "AI tools". Target platforms: Instagram, TikTok.`)
	if err != nil {
		panic(err)
	}
	fmt.Printf("script call success=%v response=%s\n", env.Success, env.Response)

	job, err := client.SubmitJob(ctx, studio.JobSubmission{AgentID: "trend-topic", Message: "Research current trending topics in the AI/Tech niche"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("submitted job %s (status=%s)\n", job.ID, job.Status)

	done, err := client.WaitForJob(ctx, job.ID, 100*time.Millisecond)
	if err != nil {
		panic(err)
	}
	fmt.Printf("job %s finished with status=%s result=%s\n", done.ID, done.Status, done.Result.Response)
}
