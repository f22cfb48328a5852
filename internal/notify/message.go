package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

const defaultFromName = "Onboarding Fournisseurs"

// Kind identifies which onboarding email a message is. Providers receive it
// as a category or tag so deliveries can be filtered per flow.
type Kind string

const (
	KindProcurement    Kind = "supplier-procurement"
	KindAcknowledgment Kind = "supplier-acknowledgment"
)

var errNoRecipient = errors.New("notify: message has no recipient")

// EmailSender delivers onboarding emails.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// Address is a mailbox with an optional display name.
type Address struct {
	Email string
	Name  string
}

// EmailMessage is one onboarding email. SubmissionID and AccountID tie the
// delivery back to the supplier record.
type EmailMessage struct {
	Kind         Kind
	To           []Address
	ReplyTo      *Address
	Subject      string
	Text         string
	HTML         string
	SubmissionID string
	AccountID    string
}

func (m EmailMessage) recipients() []string {
	out := make([]string, 0, len(m.To))
	for _, a := range m.To {
		if a.Email != "" {
			out = append(out, a.Email)
		}
	}
	return out
}

// tags lists the provider metadata attached to a delivery, empty values
// omitted.
func (m EmailMessage) tags() map[string]string {
	out := map[string]string{}
	if m.Kind != "" {
		out["kind"] = string(m.Kind)
	}
	if m.SubmissionID != "" {
		out["submission_id"] = m.SubmissionID
	}
	if m.AccountID != "" {
		out["account_id"] = m.AccountID
	}
	return out
}

func (m EmailMessage) replyTo() *Address {
	if m.ReplyTo == nil || strings.TrimSpace(m.ReplyTo.Email) == "" {
		return nil
	}
	return m.ReplyTo
}

// StubEmailSender logs messages instead of sending them.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(ctx context.Context, msg EmailMessage) error {
	to := msg.recipients()
	if len(to) == 0 {
		return errNoRecipient
	}
	s.logger.Info("stub email sender: would send email", "kind", msg.Kind, "to", to, "subject", msg.Subject, "account_id", msg.AccountID)
	return nil
}
