package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
)

func TestSyncQueue_IsAsync(t *testing.T) {
	queue := NewSyncQueue()
	if queue.IsAsync() {
		t.Error("SyncQueue.IsAsync() should return false")
	}
	if err := queue.Close(); err != nil {
		t.Errorf("SyncQueue.Close() should return nil, got %v", err)
	}
}

func TestSyncQueue_EnqueueWithoutHandler(t *testing.T) {
	queue := NewSyncQueue()
	if err := queue.Enqueue(context.Background(), Task{Type: "unknown"}); err != nil {
		t.Errorf("Enqueue without handler should not error, got %v", err)
	}
}

func TestSyncQueue_RunsHandler(t *testing.T) {
	queue := NewSyncQueue()

	var calls int32
	var got string
	queue.Handle("greet", func(ctx context.Context, payload []byte) error {
		atomic.AddInt32(&calls, 1)
		var body map[string]string
		if err := json.Unmarshal(payload, &body); err != nil {
			return err
		}
		got = body["name"]
		return nil
	})

	task, err := NewJSONTask("greet", map[string]string{"name": "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if err := queue.Enqueue(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	queue.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("handler called %d times, expected 1", calls)
	}
	if got != "alice" {
		t.Errorf("payload name = %q, expected %q", got, "alice")
	}
}

func TestSyncQueue_HandlerErrorIsSwallowed(t *testing.T) {
	queue := NewSyncQueue()
	queue.Handle("fail", func(ctx context.Context, payload []byte) error {
		return errors.New("boom")
	})

	if err := queue.Enqueue(context.Background(), Task{Type: "fail"}); err != nil {
		t.Errorf("Enqueue should not surface handler errors, got %v", err)
	}
	if err := queue.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestSyncQueue_CancelledContextStillRuns(t *testing.T) {
	queue := NewSyncQueue()
	var ran int32
	queue.Handle("ctx", func(ctx context.Context, payload []byte) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		atomic.StoreInt32(&ran, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := queue.Enqueue(ctx, Task{Type: "ctx"}); err != nil {
		t.Fatal(err)
	}
	cancel()
	queue.Wait()

	if atomic.LoadInt32(&ran) != 1 {
		t.Error("task should outlive the request context")
	}
}

func TestAsyncQueue_IsAsync(t *testing.T) {
	queue := &AsyncQueue{}
	if !queue.IsAsync() {
		t.Error("AsyncQueue.IsAsync() should return true")
	}
}
