package task

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"AutoViral-Studio/internal/agent"
	xerrors "AutoViral-Studio/internal/errors"
)

func TestMemoryStoreListWithFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-2 * time.Minute)

	jobs := []*Job{
		{ID: "j1", AgentID: "script", Message: "m1"},
		{ID: "j2", AgentID: "trend", Message: "m2"},
		{ID: "j3", AgentID: "script", Message: "coffee script"},
	}
	for _, job := range jobs {
		if err := store.Create(ctx, job); err != nil {
			t.Fatalf("create job %s: %v", job.ID, err)
		}
	}

	if err := store.MarkFailed(ctx, "j2", CodeJobPublish, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.Complete(ctx, "j3", agent.Succeeded(json.RawMessage(`{"result":{}}`))); err != nil {
		t.Fatalf("complete: %v", err)
	}

	store.mu.Lock()
	store.jobs["j1"].UpdatedAt = base.Unix()
	store.jobs["j2"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.jobs["j3"].UpdatedAt = base.Add(60 * time.Second).Unix()
	store.mu.Unlock()

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].ID != "j3" {
		t.Fatalf("expected newest job first, got %+v", all)
	}

	failed, err := store.List(ctx, BuildListOptions(WithStatuses(StatusFailed)))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "j2" {
		t.Fatalf("unexpected failed list: %+v", failed)
	}

	withResult, _ := store.List(ctx, BuildListOptions(WithResultPresence(true)))
	if len(withResult) != 1 || withResult[0].ID != "j3" {
		t.Fatalf("unexpected result filter: %+v", withResult)
	}

	byAgent, _ := store.List(ctx, BuildListOptions(WithAgentID("script"), WithSortOrder(SortByUpdatedAsc)))
	if len(byAgent) != 2 || byAgent[0].ID != "j1" {
		t.Fatalf("unexpected agent filter: %+v", byAgent)
	}

	queried, _ := store.List(ctx, BuildListOptions(WithQuery("COFFEE")))
	if len(queried) != 1 || queried[0].ID != "j3" {
		t.Fatalf("unexpected query filter: %+v", queried)
	}

	recent, _ := store.List(ctx, BuildListOptions(WithUpdatedSince(base.Add(45*time.Second))))
	if len(recent) != 1 || recent[0].ID != "j3" {
		t.Fatalf("unexpected since filter: %+v", recent)
	}

	paged, _ := store.List(ctx, BuildListOptions(WithLimit(1), WithOffset(1)))
	if len(paged) != 1 || paged[0].ID != "j2" {
		t.Fatalf("unexpected page: %+v", paged)
	}
	empty, _ := store.List(ctx, BuildListOptions(WithOffset(10)))
	if len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Failed != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.OldestUpdatedAt != base.Unix() || stats.NewestUpdatedAt != base.Add(60*time.Second).Unix() {
		t.Fatalf("unexpected stats window: %+v", stats)
	}
}

func TestMemoryStoreClaimLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, &Job{ID: "j1", AgentID: "a", Message: "m"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, &Job{ID: "j1", AgentID: "a", Message: "m"}); !errors.Is(err, ErrJobConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	job, err := store.Claim(ctx, "j1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job.Status != StatusRunning || job.Attempts != 1 {
		t.Fatalf("unexpected claimed job: %+v", job)
	}
	if _, err := store.Claim(ctx, "j1"); !errors.Is(err, ErrJobConflict) {
		t.Fatalf("expected conflict for running job, got %v", err)
	}

	if err := store.Complete(ctx, "j1", agent.Failed("agent returned status 500: boom")); err != nil {
		t.Fatalf("complete: %v", err)
	}
	job, _ = store.Get(ctx, "j1")
	if job.Status != StatusFailed || job.ErrorCode != string(CodeAgentFailed) || job.Result == nil || job.Result.Success {
		t.Fatalf("failure envelope not kept: %+v", job)
	}
	if _, err := store.Claim(ctx, "j1"); !errors.Is(err, ErrJobCompleted) {
		t.Fatalf("failed jobs must not be claimed again, got %v", err)
	}

	if _, err := store.Claim(ctx, "missing"); xerrors.CodeOf(err) != CodeJobNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_ = store.Create(ctx, &Job{ID: "j1", AgentID: "a", Message: "m", Metadata: map[string]any{"k": "v"}})
	_ = store.Complete(ctx, "j1", agent.Succeeded(json.RawMessage(`{"result":1}`)))

	job, _ := store.Get(ctx, "j1")
	job.Metadata["k"] = "changed"
	job.Result.Response[0] = '['

	again, _ := store.Get(ctx, "j1")
	if again.Metadata["k"] != "v" || string(again.Result.Response) != `{"result":1}` {
		t.Fatalf("store leaked internal state: %+v", again)
	}
}
