package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

// SendGridSender delivers onboarding emails through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
	logger *logging.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil when no API key is configured.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
}

// build maps a message onto a v3 mail: one personalization carrying every
// recipient, the kind as category and the record ids as custom args.
func (s *SendGridSender) build(msg EmailMessage) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(s.from)
	m.Subject = msg.Subject

	p := mail.NewPersonalization()
	for _, a := range msg.To {
		if a.Email != "" {
			p.AddTos(mail.NewEmail(a.Name, a.Email))
		}
	}
	m.AddPersonalizations(p)

	if rt := msg.replyTo(); rt != nil {
		m.SetReplyTo(mail.NewEmail(rt.Name, rt.Email))
	}
	if msg.Kind != "" {
		m.AddCategories(string(msg.Kind))
	}
	for k, v := range msg.tags() {
		m.SetCustomArg(k, v)
	}

	// text/plain must precede text/html
	text := msg.Text
	if text == "" {
		text = msg.Subject
	}
	m.AddContent(mail.NewContent("text/plain", text))
	if msg.HTML != "" {
		m.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	return m
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	to := msg.recipients()
	if len(to) == 0 {
		return errNoRecipient
	}

	response, err := s.client.SendWithContext(ctx, s.build(msg))
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "kind", msg.Kind, "account_id", msg.AccountID)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body, "kind", msg.Kind)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid", "kind", msg.Kind, "recipients", len(to), "account_id", msg.AccountID, "status", response.StatusCode)
	return nil
}

var _ EmailSender = (*SendGridSender)(nil)
