package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/charmverse/governance/internal/config"
	"github.com/charmverse/governance/pkg/logger"
	"github.com/hibiken/asynq"
)

// Task is a unit of background work identified by type.
type Task struct {
	Type    string
	Payload []byte
}

// NewJSONTask encodes payload as the task body.
func NewJSONTask(taskType string, payload interface{}) (Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Task{}, err
	}
	return Task{Type: taskType, Payload: data}, nil
}

// TaskHandler processes the payload of one task type.
type TaskHandler func(ctx context.Context, payload []byte) error

// TaskQueue defines the interface for background task processing
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(ctx context.Context, task Task) error
	// IsAsync returns true if queue processes tasks out of process
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewTaskQueue picks the Redis-backed queue when enabled and reachable,
// otherwise an in-process queue.
func NewTaskQueue(cfg *config.Config) TaskQueue {
	if cfg.Redis.Enabled {
		queue, err := NewAsyncQueue(&cfg.Redis, cfg.Webhook.MaxRetry)
		if err != nil {
			logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
			return NewSyncQueue()
		}
		logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
		return queue
	}
	logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
	return NewSyncQueue()
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client   *asynq.Client
	maxRetry int
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig, maxRetry int) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client, maxRetry: maxRetry}, nil
}

func (q *AsyncQueue) Enqueue(ctx context.Context, task Task) error {
	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(task.Type, task.Payload),
		asynq.Queue("default"),
		asynq.MaxRetry(q.maxRetry),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("type", task.Type).Msg("[AsyncQueue] Task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue in process, without Redis
type SyncQueue struct {
	mu       sync.RWMutex
	handlers map[string]TaskHandler
	wg       sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{handlers: make(map[string]TaskHandler)}
}

// Handle registers the handler for a task type
func (q *SyncQueue) Handle(taskType string, handler TaskHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = handler
}

// Enqueue runs the task on a new goroutine so the caller is not blocked
func (q *SyncQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.RLock()
	handler := q.handlers[task.Type]
	q.mu.RUnlock()

	if handler == nil {
		logger.Warnf("[SyncQueue] No handler for %s, task dropped", task.Type)
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := handler(context.WithoutCancel(ctx), task.Payload); err != nil {
			logger.Warnf("[SyncQueue] Task %s failed: %v", task.Type, err)
		}
	}()
	return nil
}

// Wait blocks until every enqueued task finished
func (q *SyncQueue) Wait() {
	q.wg.Wait()
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for in-flight tasks
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
