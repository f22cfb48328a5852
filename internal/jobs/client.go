package jobs

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/wolfman30/supplier-onboarding/internal/supplier"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client submits jobs to the queue.
type Client struct {
	client enqueuer
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisConnOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// PublishSupplierCreated enqueues the follow-up task of a created supplier.
func (c *Client) PublishSupplierCreated(ctx context.Context, evt supplier.CreatedEvent) error {
	task, err := NewSupplierCreatedTask(evt)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

var _ supplier.Publisher = (*Client)(nil)
