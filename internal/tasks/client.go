package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"sitepilot/internal/config"
	"sitepilot/internal/utils/logger"
)

// Dispatcher hands a page edit to whatever runs it.
type Dispatcher interface {
	DispatchApplyEdit(ctx context.Context, payload ApplyEditPayload) error
}

// TaskClient enqueues tasks on the Redis-backed queue.
type TaskClient struct {
	client      *asynq.Client
	logger      *logger.Logger
	redisClient *redis.Client
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewTaskClient creates a new TaskClient with the given Redis configuration
func NewTaskClient(cfg config.RedisConfig) *TaskClient {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &TaskClient{
		client:      asynq.NewClient(redisOpt(cfg)),
		redisClient: redisClient,
		logger:      logger.New("TASKS"),
	}
}

// Redis returns the plain Redis client sharing the queue's connection settings.
func (c *TaskClient) Redis() *redis.Client {
	return c.redisClient
}

// Ping checks the queue's Redis connection.
func (c *TaskClient) Ping(ctx context.Context) error {
	return c.redisClient.Ping(ctx).Err()
}

// DispatchApplyEdit enqueues an edit. Edits are never retried: a retry after a
// successful platform update would record the change twice.
func (c *TaskClient) DispatchApplyEdit(ctx context.Context, payload ApplyEditPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode edit payload: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, asynq.NewTask(TaskTypeApplyEdit, data),
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(0),
		asynq.Timeout(TimeoutMedium),
	)
	if err != nil {
		return c.logger.Error("failed to enqueue edit %s", err, payload.EditID)
	}

	c.logger.Debug("enqueued edit %s as task %s", payload.EditID, info.ID)
	return nil
}

// Close closes the underlying asynq and Redis clients
func (c *TaskClient) Close() error {
	if err := c.client.Close(); err != nil {
		return err
	}
	return c.redisClient.Close()
}

// InlineDispatcher runs edits in-process when no queue is configured.
type InlineDispatcher struct {
	handler *TaskHandler
}

func NewInlineDispatcher(handler *TaskHandler) *InlineDispatcher {
	return &InlineDispatcher{handler: handler}
}

// DispatchApplyEdit runs the edit on its own goroutine, detached from ctx so
// that it completes after the caller's connection goes away.
func (d *InlineDispatcher) DispatchApplyEdit(ctx context.Context, payload ApplyEditPayload) error {
	go func() {
		if err := d.handler.applyEdit(context.WithoutCancel(ctx), payload); err != nil {
			d.handler.logger.Warn("inline edit %s failed: %v", payload.EditID, err)
		}
	}()
	return nil
}
