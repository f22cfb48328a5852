package notify

import (
	"context"
	"fmt"
	"net/mail"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender delivers onboarding emails through SES v2. Message kind and
// record ids are sent as message tags, which a configuration set can route
// to event destinations.
type SESSender struct {
	client           sesAPI
	from             string
	configurationSet string
	logger           *logging.Logger
}

type SESConfig struct {
	FromEmail        string
	FromName         string
	ConfigurationSet string
}

// NewSESSender returns nil without a client or a from address.
func NewSESSender(client sesAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil || cfg.FromEmail == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SESSender{
		client:           client,
		from:             formatAddress(Address{Email: cfg.FromEmail, Name: cfg.FromName}),
		configurationSet: cfg.ConfigurationSet,
		logger:           logger,
	}
}

func (s *SESSender) build(msg EmailMessage) *sesv2.SendEmailInput {
	utf8 := aws.String("UTF-8")
	body := &types.Body{}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: utf8}
	}
	if msg.HTML != "" {
		body.Html = &types.Content{Data: aws.String(msg.HTML), Charset: utf8}
	}

	to := make([]string, 0, len(msg.To))
	for _, a := range msg.To {
		if a.Email != "" {
			to = append(to, formatAddress(a))
		}
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: utf8},
				Body:    body,
			},
		},
		EmailTags: sesTags(msg.tags()),
	}
	if rt := msg.replyTo(); rt != nil {
		input.ReplyToAddresses = []string{formatAddress(*rt)}
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = aws.String(s.configurationSet)
	}
	return input
}

func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: SES client not configured")
	}
	if len(msg.recipients()) == 0 {
		return errNoRecipient
	}

	output, err := s.client.SendEmail(ctx, s.build(msg))
	if err != nil {
		s.logger.Error("SES send failed", "error", err, "kind", msg.Kind, "account_id", msg.AccountID)
		return fmt.Errorf("notify: SES send failed: %w", err)
	}

	s.logger.Info("email sent via SES", "kind", msg.Kind, "account_id", msg.AccountID, "message_id", aws.ToString(output.MessageId))
	return nil
}

func formatAddress(a Address) string {
	return (&mail.Address{Name: a.Name, Address: a.Email}).String()
}

// sesTags converts tags into SES message tags. SES only accepts ASCII
// letters, digits, '_' and '-' in tag values.
func sesTags(tags map[string]string) []types.MessageTag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]types.MessageTag, 0, len(keys))
	for _, k := range keys {
		value := strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
				return r
			default:
				return '_'
			}
		}, tags[k])
		if len(value) > 256 {
			value = value[:256]
		}
		out = append(out, types.MessageTag{Name: aws.String(k), Value: aws.String(value)})
	}
	return out
}

var _ EmailSender = (*SESSender)(nil)
