package task

import (
	"context"
	"errors"
	"testing"
	"time"

	xerrors "AutoViral-Studio/internal/errors"
)

type failingProducer struct{}

func (failingProducer) Publish(context.Context, string) error { return errors.New("broker down") }
func (failingProducer) Close() error                          { return nil }

func TestServiceSubmitValidates(t *testing.T) {
	service := NewService(NewMemoryStore(), NewMemoryQueue(4))
	for _, req := range []Request{{Message: "m"}, {AgentID: "a", Message: "  "}} {
		if _, err := service.Submit(context.Background(), req); xerrors.CodeOf(err) != CodeJobValidation {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestServiceSubmitIsIdempotentOnID(t *testing.T) {
	ctx := context.Background()
	queue := NewMemoryQueue(4)
	service := NewService(NewMemoryStore(), queue)

	first, err := service.Submit(ctx, Request{ID: "fixed", AgentID: "a", Message: "m"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := service.Submit(ctx, Request{ID: "fixed", AgentID: "b", Message: "other"})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.ID != first.ID || second.AgentID != "a" {
		t.Fatalf("expected existing job, got %+v", second)
	}
	if len(queue.ch) != 1 {
		t.Fatalf("expected one publish, got %d", len(queue.ch))
	}

	generated, _ := service.Submit(ctx, Request{AgentID: "a", Message: "m"})
	if generated.ID == "" || generated.ID == "fixed" || generated.Status != StatusPending {
		t.Fatalf("unexpected generated job: %+v", generated)
	}
}

func TestServiceSubmitPublishFailureMarksJob(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	service := NewService(store, failingProducer{})

	_, err := service.Submit(ctx, Request{ID: "j1", AgentID: "a", Message: "m"})
	if xerrors.CodeOf(err) != CodeJobPublish {
		t.Fatalf("expected publish error, got %v", err)
	}
	job, _ := store.Get(ctx, "j1")
	if job.Status != StatusFailed || job.ErrorCode != string(CodeJobPublish) {
		t.Fatalf("unexpected job after publish failure: %+v", job)
	}
}

func TestServiceWaitUntilCompleted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	service := NewService(store, NewMemoryQueue(4))
	job, _ := service.Submit(ctx, Request{AgentID: "a", Message: "m"})

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = NewProcessor(&fakeCaller{}, store, nil).Handle(ctx, job.ID)
	}()

	done, err := service.WaitUntilCompleted(ctx, job.ID, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != StatusSucceeded || done.Result == nil || !done.Result.Success {
		t.Fatalf("unexpected job: %+v", done)
	}

	pending, _ := service.Submit(ctx, Request{AgentID: "a", Message: "never runs"})
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, err := service.WaitUntilCompleted(short, pending.ID, 5*time.Millisecond); xerrors.CodeOf(err) != xerrors.CodeTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestRedisQueueDefaults(t *testing.T) {
	q := newRedisQueue(nil, RedisQueueConfig{})
	if q.queue != "studio:jobs" || q.wait != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", q)
	}
	if _, err := NewRedisQueue(context.Background(), RedisQueueConfig{}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := NewRabbitMQQueue(RabbitMQConfig{}); xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}
