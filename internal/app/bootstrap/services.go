package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/wolfman30/supplier-onboarding/internal/archive"
	appconfig "github.com/wolfman30/supplier-onboarding/internal/config"
	"github.com/wolfman30/supplier-onboarding/internal/notify"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

// BuildArchiveStore returns the S3 document archive, or nil when no bucket is
// configured.
func BuildArchiveStore(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) *archive.Store {
	if cfg == nil || awsCfg == nil || strings.TrimSpace(cfg.UploadArchiveBucket) == "" {
		return nil
	}
	client := s3.NewFromConfig(*awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.AWSEndpointOverride != ""
	})
	return archive.NewStore(client, cfg.UploadArchiveBucket, logger)
}

// BuildEmailSender picks SendGrid when an API key is set, then SES, then a
// stub that only logs.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		logger.Info("email via sendgrid")
		return sg
	}
	if awsCfg != nil && strings.TrimSpace(cfg.SESFromEmail) != "" {
		if ses := notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail:        cfg.SESFromEmail,
			FromName:         cfg.SESFromName,
			ConfigurationSet: cfg.SESConfigSet,
		}, logger); ses != nil {
			logger.Info("email via ses")
			return ses
		}
	}
	logger.Warn("no email provider configured; notifications are logged only")
	return notify.NewStubEmailSender(logger)
}

// NotifyRecipients splits NOTIFY_TO into addresses.
func NotifyRecipients(cfg *appconfig.Config) []string {
	if cfg == nil {
		return nil
	}
	var out []string
	for _, part := range strings.Split(cfg.NotifyTo, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
