package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/wolfman30/supplier-onboarding/internal/archive"
	"github.com/wolfman30/supplier-onboarding/internal/supplier"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

// Notifier sends the supplier-created emails.
type Notifier interface {
	NotifySupplierCreated(ctx context.Context, evt supplier.CreatedEvent) error
}

// ManifestWriter records created suppliers.
type ManifestWriter interface {
	AppendManifest(ctx context.Context, entry archive.ManifestEntry) error
}

// SupplierCreatedJob handles TaskSupplierCreated.
type SupplierCreatedJob struct {
	notifier Notifier
	manifest ManifestWriter
	logger   *logging.Logger
}

func NewSupplierCreatedJob(notifier Notifier, manifest ManifestWriter, logger *logging.Logger) *SupplierCreatedJob {
	if logger == nil {
		logger = logging.Default()
	}
	return &SupplierCreatedJob{notifier: notifier, manifest: manifest, logger: logger}
}

// Handle processes one task. Malformed payloads are dropped; notification
// failures are retried by the queue.
func (j *SupplierCreatedJob) Handle(ctx context.Context, t *asynq.Task) error {
	var evt supplier.CreatedEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil {
		j.logger.Error("jobs: malformed supplier created payload", "error", err)
		return fmt.Errorf("jobs: decode payload: %w: %w", err, asynq.SkipRetry)
	}
	logger := j.logger.With("submission_id", evt.SubmissionID, "account_id", evt.AccountID)

	if j.manifest != nil {
		retried, _ := asynq.GetRetryCount(ctx)
		if retried == 0 {
			entry := archive.ManifestEntry{
				SubmissionID:  evt.SubmissionID,
				AccountID:     evt.AccountID,
				RaisonSociale: evt.RaisonSociale,
				Country:       evt.Country,
				Documents:     evt.Documents,
				Warnings:      len(evt.Warnings),
				CreatedAt:     evt.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := j.manifest.AppendManifest(ctx, entry); err != nil {
				logger.Warn("jobs: manifest append failed", "error", err)
			}
		}
	}

	if j.notifier != nil {
		if err := j.notifier.NotifySupplierCreated(ctx, evt); err != nil {
			logger.Error("jobs: supplier notification failed", "error", err)
			return err
		}
	}
	logger.Info("jobs: supplier created task done")
	return nil
}
