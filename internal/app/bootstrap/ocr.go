package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/supplier-onboarding/internal/config"
	"github.com/wolfman30/supplier-onboarding/internal/observability/metrics"
	"github.com/wolfman30/supplier-onboarding/internal/ocr"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

// BuildOCRAnalyzer wires the attestation reader selected by OCR_PROVIDER.
// It returns nil without error when the provider lacks credentials, which
// the OCR endpoint reports as a configuration error. The close func is never nil.
func BuildOCRAnalyzer(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, m *metrics.SubmissionMetrics, logger *logging.Logger) (*ocr.Analyzer, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	switch provider := strings.ToLower(strings.TrimSpace(cfg.OCRProvider)); provider {
	case "", "gemini":
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			logger.Warn("GEMINI_API_KEY not set; OCR disabled")
			return nil, noop, nil
		}
		extractor, err := ocr.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("ocr enabled", "provider", "gemini", "model", cfg.GeminiModel)
		return ocr.NewAnalyzer(extractor, m, logger), func() { _ = extractor.Close() }, nil
	case "bedrock":
		model := strings.TrimSpace(cfg.BedrockModelID)
		if model == "" || awsCfg == nil {
			logger.Warn("bedrock ocr selected but model id or aws config missing; OCR disabled")
			return nil, noop, nil
		}
		extractor, err := ocr.NewBedrockExtractor(bedrockruntime.NewFromConfig(*awsCfg), model)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("ocr enabled", "provider", "bedrock", "model", model)
		return ocr.NewAnalyzer(extractor, m, logger), noop, nil
	default:
		return nil, noop, fmt.Errorf("bootstrap: unknown OCR_PROVIDER %q", provider)
	}
}
