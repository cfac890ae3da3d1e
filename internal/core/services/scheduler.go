package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/custodia-labs/convorag/internal/core/domain"
	"github.com/custodia-labs/convorag/internal/core/ports/driven"
	"github.com/custodia-labs/convorag/internal/core/ports/driving"
	"github.com/custodia-labs/convorag/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// historyRetention is the number of results kept per task.
const historyRetention = 100

// Refresher rebuilds stale indexes. IndexRefresher implements it.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

// Scheduler runs background tasks on cron schedules.
// Task state and results persist in the SchedulerStore.
type Scheduler struct {
	config    domain.SchedulerConfig
	store     driven.SchedulerStore
	refresher Refresher
	parser    cron.Parser
	log       *zap.Logger

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	stopCh  chan struct{}
	busy    map[string]*atomic.Bool
	now     func() time.Time
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(config domain.SchedulerConfig, store driven.SchedulerStore, refresher Refresher) *Scheduler {
	return &Scheduler{
		config:    config,
		store:     store,
		refresher: refresher,
		parser:    cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		log:       logger.Named("scheduler"),
		busy:      map[string]*atomic.Bool{domain.TaskIDIndexRefresh: {}},
		now:       time.Now,
	}
}

// Start schedules the enabled tasks and blocks until ctx is cancelled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.log.Info("scheduler disabled")
		return nil
	}

	c := cron.New(cron.WithParser(s.parser))
	schedules := make(map[string]cron.Schedule)
	for _, id := range []string{domain.TaskIDIndexRefresh} {
		cfg := s.config.GetTaskConfig(id)
		if !cfg.Enabled {
			continue
		}
		sched, err := s.parser.Parse(cfg.Schedule)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("%w: task %s schedule %q: %w", domain.ErrConfiguration, id, cfg.Schedule, err)
		}
		schedules[id] = sched
		c.Schedule(sched, cron.FuncJob(s.job(ctx, id, sched)))
	}

	s.cron = c
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx, schedules); err != nil {
		s.log.Warn("failed to initialise tasks", zap.Error(err))
	}

	c.Start()
	s.log.Info("scheduler started", zap.Int("tasks", len(schedules)))

	select {
	case <-ctx.Done():
		_ = s.Stop()
		return ctx.Err()
	case <-stopCh:
		return nil
	}
}

// Stop waits for running jobs and stops the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	c := s.cron
	s.mu.Unlock()

	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

// RunNow executes a task immediately and records its result.
// It returns domain.ErrInvalidInput for unknown tasks.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) (*domain.TaskResult, error) {
	busy, ok := s.busy[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown task %q", domain.ErrInvalidInput, taskID)
	}
	if !busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("task %s is already running", taskID)
	}
	defer busy.Store(false)

	var next time.Time
	if sched, err := s.parser.Parse(s.config.GetTaskConfig(taskID).Schedule); err == nil {
		next = sched.Next(s.now())
	}
	return s.runTask(ctx, taskID, next), nil
}

// job wraps a task for cron. Overlapping runs are skipped.
func (s *Scheduler) job(ctx context.Context, id string, sched cron.Schedule) func() {
	busy := s.busy[id]
	return func() {
		if !busy.CompareAndSwap(false, true) {
			s.log.Info("task skipped: still running", zap.String("task", id))
			return
		}
		defer busy.Store(false)
		s.runTask(ctx, id, sched.Next(s.now()))
	}
}

// initialiseTasks ensures all scheduled tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context, schedules map[string]cron.Schedule) error {
	for id, sched := range schedules {
		if err := s.ensureTask(ctx, id, taskName(id), s.config.GetTaskConfig(id), sched); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(
	ctx context.Context,
	id, name string,
	cfg domain.TaskConfig,
	sched cron.Schedule,
) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		task = &domain.ScheduledTask{ID: id, Name: name}
	}
	task.Schedule = cfg.Schedule
	task.Enabled = cfg.Enabled
	task.NextRun = sched.Next(s.now())

	return s.store.SaveTask(ctx, task)
}

// runTask executes a task and records its state and result.
func (s *Scheduler) runTask(ctx context.Context, id string, next time.Time) *domain.TaskResult {
	log := s.log.With(zap.String("task", id))
	result := &domain.TaskResult{
		TaskID:    id,
		StartedAt: s.now(),
	}

	var err error
	switch id {
	case domain.TaskIDIndexRefresh:
		result.ItemsProcessed, err = s.refresher.Refresh(ctx)
	default:
		err = fmt.Errorf("%w: unknown task %q", domain.ErrInvalidInput, id)
	}
	result.EndedAt = s.now()

	task, getErr := s.store.GetTask(ctx, id)
	if getErr != nil || task == nil {
		cfg := s.config.GetTaskConfig(id)
		task = &domain.ScheduledTask{ID: id, Name: taskName(id), Schedule: cfg.Schedule, Enabled: cfg.Enabled}
	}

	if err != nil {
		result.Success = false
		result.Error = err.Error()
		task.LastError = err.Error()
		log.Error("task failed", zap.Error(err), zap.Duration("duration", result.EndedAt.Sub(result.StartedAt)))
	} else {
		result.Success = true
		task.LastError = ""
		task.LastSuccess = result.EndedAt
		log.Info("task finished",
			zap.Int("items", result.ItemsProcessed),
			zap.Duration("duration", result.EndedAt.Sub(result.StartedAt)))
	}
	task.LastRun = result.StartedAt
	task.NextRun = next

	if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
		log.Warn("failed to save task", zap.Error(saveErr))
	}
	if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
		log.Warn("failed to record result", zap.Error(recordErr))
	}
	if pruneErr := s.store.PruneHistory(ctx, historyRetention); pruneErr != nil {
		log.Warn("failed to prune history", zap.Error(pruneErr))
	}

	return result
}

func taskName(id string) string {
	switch id {
	case domain.TaskIDIndexRefresh:
		return "Index Refresh"
	default:
		return id
	}
}
