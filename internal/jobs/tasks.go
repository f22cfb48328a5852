// Package jobs runs the background work that follows a supplier creation on
// an asynq queue backed by Redis.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/wolfman30/supplier-onboarding/internal/supplier"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSupplierCreated notifies procurement and records the manifest line.
	TaskSupplierCreated = "supplier:created"
)

// NewSupplierCreatedTask builds the follow-up task of one submission. The
// submission id doubles as task id so a retried publish is not queued twice.
func NewSupplierCreatedTask(evt supplier.CreatedEvent) (*asynq.Task, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("jobs: encode %s: %w", TaskSupplierCreated, err)
	}
	opts := []asynq.Option{
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.Timeout(2 * time.Minute),
		asynq.Retention(24 * time.Hour),
	}
	if evt.SubmissionID != "" {
		opts = append(opts, asynq.TaskID(TaskSupplierCreated+":"+evt.SubmissionID))
	}
	return asynq.NewTask(TaskSupplierCreated, body, opts...), nil
}
