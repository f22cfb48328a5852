package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/wolfman30/supplier-onboarding/cmd/mainconfig"
	"github.com/wolfman30/supplier-onboarding/internal/app/bootstrap"
	appconfig "github.com/wolfman30/supplier-onboarding/internal/config"
	"github.com/wolfman30/supplier-onboarding/internal/jobs"
	"github.com/wolfman30/supplier-onboarding/internal/notify"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

func main() {
	cfg := appconfig.Load()
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker, err := buildWorker(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize worker", "error", err)
		os.Exit(1)
	}

	logger.Info("supplier-onboarding worker started", "concurrency", cfg.WorkerConcurrency)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func buildWorker(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*jobs.Worker, error) {
	redisOpt := bootstrap.AsynqRedisOpt(cfg)
	if redisOpt == nil {
		return nil, errors.New("REDIS_ADDR is required for the worker")
	}

	var (
		awsCfg   *aws.Config
		manifest jobs.ManifestWriter
	)
	if loaded, err := mainconfig.LoadAWSConfig(ctx, cfg); err != nil {
		logger.Warn("aws config unavailable; manifest and SES disabled", "error", err)
	} else {
		awsCfg = &loaded
	}
	if store := bootstrap.BuildArchiveStore(cfg, awsCfg, logger); store != nil {
		manifest = store
	}

	notifier := notify.NewService(
		bootstrap.BuildEmailSender(cfg, awsCfg, logger),
		bootstrap.NotifyRecipients(cfg),
		instanceURL(cfg),
		logger,
	)
	job := jobs.NewSupplierCreatedJob(notifier, manifest, logger)

	return jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpt,
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSupplierCreated, Handler: job.Handle},
		},
	})
}

// instanceURL is the Lightning base used for record links in emails.
func instanceURL(cfg *appconfig.Config) string {
	if cfg.SalesforceInstanceURL != "" {
		return cfg.SalesforceInstanceURL
	}
	return cfg.SalesforceLoginURL
}
