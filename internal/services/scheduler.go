package services

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/logger"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// ScheduledTask is a named job run on a cron spec
type ScheduledTask struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler runs registered tasks on their cron spec. Each slot is claimed
// through a SchedulerLock row so only one instance runs it.
type Scheduler struct {
	db       *gorm.DB
	cron     *cron.Cron
	instance string
	lockTTL  time.Duration

	mu    sync.Mutex
	tasks map[string]ScheduledTask
}

func NewScheduler(db *gorm.DB) *Scheduler {
	host, _ := os.Hostname()
	return &Scheduler{
		db:       db,
		cron:     cron.New(),
		instance: fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
		lockTTL:  time.Hour,
		tasks:    make(map[string]ScheduledTask),
	}
}

// Register adds a task; the spec is validated here
func (s *Scheduler) Register(task ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.Name]; exists {
		return fmt.Errorf("task %q already registered", task.Name)
	}
	if _, err := s.cron.AddFunc(task.Spec, func() { s.runScheduled(task) }); err != nil {
		return fmt.Errorf("task %q: invalid spec %q: %w", task.Name, task.Spec, err)
	}
	s.tasks[task.Name] = task
	logger.Infof("[Scheduler] Registered %s (%s)", task.Name, task.Spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Infof("[Scheduler] Started as %s", s.instance)
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Infof("[Scheduler] Stopped")
}

// Tasks returns the registered tasks sorted by name
func (s *Scheduler) Tasks() []ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ScheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RunNow runs a task once in the caller's goroutine, without taking a lock
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task: %s", name)
	}
	return s.run(ctx, task)
}

func (s *Scheduler) runScheduled(task ScheduledTask) {
	ctx := context.Background()
	slot := time.Now().UTC().Truncate(time.Minute)

	acquired, err := s.acquire(ctx, task.Name, slot)
	if err != nil {
		logger.Warnf("[Scheduler] Lock for %s failed: %v", task.Name, err)
		return
	}
	if !acquired {
		logger.Debug().Str("task", task.Name).Msg("[Scheduler] Slot taken by another instance")
		return
	}
	if err := s.run(ctx, task); err != nil {
		logger.Warnf("[Scheduler] %s failed: %v", task.Name, err)
	}
}

func (s *Scheduler) run(ctx context.Context, task ScheduledTask) error {
	start := time.Now()
	err := task.Run(ctx)
	logger.Debug().Str("task", task.Name).Dur("took", time.Since(start)).Err(err).Msg("[Scheduler] Task finished")
	return err
}

// acquire claims the slot of a task; false means another instance holds it
func (s *Scheduler) acquire(ctx context.Context, name string, slot time.Time) (bool, error) {
	now := time.Now()
	db := s.db.WithContext(ctx)

	if err := db.Where("expires_at < ?", now).Delete(&models.SchedulerLock{}).Error; err != nil {
		logger.Warnf("[Scheduler] Failed to purge expired locks: %v", err)
	}

	lock := &models.SchedulerLock{
		LockName:  name,
		LockKey:   slot.Format(time.RFC3339),
		LockedBy:  s.instance,
		LockedAt:  now,
		ExpiresAt: now.Add(s.lockTTL),
	}
	if err := db.Create(lock).Error; err != nil {
		var count int64
		if cerr := db.Model(&models.SchedulerLock{}).
			Where("lock_name = ? AND lock_key = ?", lock.LockName, lock.LockKey).
			Count(&count).Error; cerr == nil && count > 0 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
