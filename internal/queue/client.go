package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/uptube/content-ingestion-go/internal/fanout"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Client enqueues fan-out tasks for the worker.
type Client struct {
	asynqClient *asynq.Client
	timeout     time.Duration
	logger      *zap.Logger
}

// NewClient creates a queue client. timeout bounds how long the worker may
// spend on one fan-out.
func NewClient(target RedisTarget, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Client{
		asynqClient: asynq.NewClient(target.AsynqOpt()),
		timeout:     timeout,
		logger:      logger.Named("queue"),
	}
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.asynqClient.Close()
}

// Schedule enqueues a fan-out. Fan-out tasks are never retried.
func (c *Client) Schedule(ctx context.Context, event fanout.Event) error {
	task, err := NewFanoutTask(event)
	if err != nil {
		return err
	}

	info, err := c.asynqClient.EnqueueContext(ctx, task,
		asynq.MaxRetry(0),
		asynq.Timeout(c.timeout),
		asynq.Queue(QueueNotifications),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue fan-out: %w", err)
	}

	c.logger.Debug("enqueued fan-out",
		zap.String("task_id", info.ID),
		zap.String("content_id", event.ContentID.String()),
	)
	return nil
}
