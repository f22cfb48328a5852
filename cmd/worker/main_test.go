package main

import (
	"context"
	"testing"

	appconfig "github.com/wolfman30/supplier-onboarding/internal/config"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

func TestBuildWorkerRequiresRedis(t *testing.T) {
	if _, err := buildWorker(context.Background(), &appconfig.Config{}, logging.Discard()); err == nil {
		t.Fatalf("expected error without REDIS_ADDR")
	}
}

func TestBuildWorker(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		RedisAddr:         "localhost:6379",
		AWSRegion:         "eu-west-3",
		WorkerConcurrency: 2,
		NotifyTo:          "achats@example.com",
	}
	worker, err := buildWorker(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if worker == nil {
		t.Fatalf("expected worker")
	}
}

func TestInstanceURL(t *testing.T) {
	cfg := &appconfig.Config{SalesforceLoginURL: "https://login.salesforce.com"}
	if got := instanceURL(cfg); got != "https://login.salesforce.com" {
		t.Fatalf("expected login url fallback, got %s", got)
	}
	cfg.SalesforceInstanceURL = "https://acme.my.salesforce.com"
	if got := instanceURL(cfg); got != "https://acme.my.salesforce.com" {
		t.Fatalf("expected instance url, got %s", got)
	}
}
