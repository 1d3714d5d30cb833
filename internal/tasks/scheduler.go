package tasks

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"

	"sitepilot/internal/config"
	"sitepilot/internal/utils/logger"
)

// Scheduler handles periodic task scheduling
type Scheduler struct {
	scheduler *asynq.Scheduler
	cfg       config.TasksConfig
	logger    *logger.Logger
}

// NewScheduler creates a new task scheduler
func NewScheduler(redis config.RedisConfig, cfg config.TasksConfig, logger *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: asynq.NewScheduler(redisOpt(redis), &asynq.SchedulerOpts{}),
		cfg:       cfg,
		logger:    logger,
	}
}

// Start registers the periodic tasks and runs the scheduler until Stop.
func (s *Scheduler) Start() error {
	if err := s.registerTasks(); err != nil {
		return fmt.Errorf("failed to register tasks: %w", err)
	}

	s.logger.Info("starting task scheduler")
	return s.scheduler.Run()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Shutdown()
	s.logger.Info("task scheduler stopped")
}

func (s *Scheduler) registerTasks() error {
	if s.cfg.ReconcileSpec == "" {
		s.logger.Info("discussion reconcile sweep disabled")
		return nil
	}
	return s.RegisterCustomTask(s.cfg.ReconcileSpec, TaskTypeReconcile, nil,
		asynq.Queue(QueueLow), asynq.Timeout(TimeoutLong))
}

// RegisterCustomTask registers a periodic task on a standard five-field cron spec.
func (s *Scheduler) RegisterCustomTask(spec string, taskType string, payload []byte, opts ...asynq.Option) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, taskType, err)
	}

	entryID, err := s.scheduler.Register(spec, asynq.NewTask(taskType, payload, opts...))
	if err != nil {
		return fmt.Errorf("failed to register custom task: %w", err)
	}

	s.logger.Info("registered custom task %s %s %s", taskType, spec, entryID)
	return nil
}
