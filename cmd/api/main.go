package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/supplier-onboarding/cmd/mainconfig"
	"github.com/wolfman30/supplier-onboarding/internal/api/router"
	"github.com/wolfman30/supplier-onboarding/internal/app/bootstrap"
	"github.com/wolfman30/supplier-onboarding/internal/branding"
	appconfig "github.com/wolfman30/supplier-onboarding/internal/config"
	"github.com/wolfman30/supplier-onboarding/internal/drafts"
	"github.com/wolfman30/supplier-onboarding/internal/filepolicy"
	"github.com/wolfman30/supplier-onboarding/internal/jobs"
	"github.com/wolfman30/supplier-onboarding/internal/observability/metrics"
	"github.com/wolfman30/supplier-onboarding/internal/ocr"
	"github.com/wolfman30/supplier-onboarding/internal/salesforce"
	"github.com/wolfman30/supplier-onboarding/internal/supplier"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.NewWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	logger.Info("starting supplier-onboarding API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, cleanup, err := buildServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.Host + ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "tls", useTLS(cfg))
		var err error
		if useTLS(cfg) {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildServer wires every dependency behind the router. Optional backends
// (Redis, Postgres, S3, OCR, the job queue) degrade to in-process fallbacks
// when unset.
func buildServer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (http.Handler, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	metricsHandler, submissionMetrics := setupMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
	}

	sf, err := bootstrap.BuildSalesforce(cfg, redisClient, logger)
	if err != nil {
		return fail(err)
	}
	sf.SeedSession(ctx, cfg.SalesforceRefreshToken, logger)

	sanitizer, err := bootstrap.BuildSanitizer(cfg)
	if err != nil {
		return fail(err)
	}

	recorder, closeJournal, err := bootstrap.BuildJournal(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeJournal)

	awsCfg := loadAWS(ctx, cfg, logger)

	analyzer, closeOCR, err := bootstrap.BuildOCRAnalyzer(ctx, cfg, awsCfg, submissionMetrics, logger)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeOCR)

	policy := filepolicy.Default(cfg.MaxUploadBytes)
	policy.MaxFiles = cfg.MaxFiles

	orchCfg := supplier.Config{
		CRM:                 sf.Client,
		Journal:             recorder,
		Metrics:             submissionMetrics,
		Sanitizer:           sanitizer,
		Policy:              policy,
		DefaultRecordTypeID: cfg.SalesforceDefaultRecordID,
		Logger:              logger,
	}
	if store := bootstrap.BuildArchiveStore(cfg, awsCfg, logger); store != nil {
		orchCfg.Archiver = store
	}
	if opt := bootstrap.AsynqRedisOpt(cfg); opt != nil && redisClient != nil {
		jobsClient := jobs.NewClient(opt)
		closers = append(closers, func() { _ = jobsClient.Close() })
		orchCfg.Publisher = jobsClient
	}
	orchestrator := supplier.NewOrchestrator(orchCfg)

	routerCfg := &router.Config{
		Logger:      logger,
		Session:     sf.Client,
		AuthHandler: salesforce.NewAuthHandler(sf.OAuth, sf.Store, logger),
		SupplierHandler: supplier.NewHandler(orchestrator, supplier.HandlerConfig{
			LoginURL:      loginURL(cfg),
			JSONBodyLimit: cfg.JSONBodyLimit,
			MaxFileBytes:  cfg.MaxUploadBytes,
			MaxFiles:      cfg.MaxFiles,
		}, logger),
		BrandingHandler:    branding.NewHandler(sf.Client, sanitizer, loginURL(cfg), logger),
		OCRHandler:         ocr.NewHandler(analyzer, policy, logger),
		MetricsHandler:     metricsHandler,
		CORSAllowedOrigins: cfg.AllowedOrigins,
		RateLimitMax:       cfg.RateLimitMax,
		RateLimitWindow:    cfg.RateLimitWindow,
		Production:         cfg.IsProduction(),
	}
	if redisClient != nil {
		routerCfg.DraftsHandler = drafts.NewHandler(drafts.NewStore(redisClient, cfg.DraftTTL), logger)
	} else {
		logger.Warn("REDIS_ADDR not set; server-side drafts disabled")
	}

	return router.New(routerCfg), cleanup, nil
}

func setupMetrics() (http.Handler, *metrics.SubmissionMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewSubmissionMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), m
}

// loadAWS returns nil when nothing needs AWS, so local runs do not probe for
// credentials.
func loadAWS(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *aws.Config {
	needed := cfg.UploadArchiveBucket != "" || strings.EqualFold(cfg.OCRProvider, "bedrock")
	if !needed {
		return nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		return nil
	}
	return &awsCfg
}

func loginURL(cfg *appconfig.Config) string {
	return cfg.PublicBaseURL + "/login"
}

func useTLS(cfg *appconfig.Config) bool {
	return cfg.TLSCertFile != "" && cfg.TLSKeyFile != ""
}
