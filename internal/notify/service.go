package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/wolfman30/supplier-onboarding/internal/supplier"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

// Service sends the emails that follow a supplier creation.
type Service struct {
	email      EmailSender
	recipients []string
	crmBaseURL string
	logger     *logging.Logger
}

// NewService creates a notification service. recipients receive the
// procurement summary; crmBaseURL, when set, is used to link the Account.
func NewService(email EmailSender, recipients []string, crmBaseURL string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	var cleaned []string
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	return &Service{
		email:      email,
		recipients: cleaned,
		crmBaseURL: strings.TrimRight(crmBaseURL, "/"),
		logger:     logger,
	}
}

// NotifySupplierCreated emails the procurement team, with replies going to
// the supplier contact, and acknowledges receipt to the contact, with replies
// going to procurement.
func (s *Service) NotifySupplierCreated(ctx context.Context, evt supplier.CreatedEvent) error {
	if s.email == nil {
		s.logger.Debug("notify: email sender not configured, skipping notifications")
		return nil
	}

	var errs []error
	contact := Address{Email: strings.TrimSpace(evt.ContactEmail), Name: evt.ContactName}

	if len(s.recipients) > 0 {
		text, htmlBody := s.procurementMessage(evt)
		msg := EmailMessage{
			Kind:         KindProcurement,
			To:           addresses(s.recipients),
			Subject:      fmt.Sprintf("Nouveau fournisseur : %s", evt.RaisonSociale),
			Text:         text,
			HTML:         htmlBody,
			SubmissionID: evt.SubmissionID,
			AccountID:    evt.AccountID,
		}
		if contact.Email != "" {
			msg.ReplyTo = &contact
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: failed to send procurement email", "error", err, "account_id", evt.AccountID)
			errs = append(errs, err)
		} else {
			s.logger.Info("notify: procurement email sent", "recipients", len(s.recipients), "account_id", evt.AccountID)
		}
	}

	if contact.Email != "" {
		msg := EmailMessage{
			Kind:    KindAcknowledgment,
			To:      []Address{contact},
			Subject: "Votre demande de référencement a bien été reçue",
			Text: fmt.Sprintf(`Bonjour %s,

Nous avons bien reçu la demande de référencement de %s. Notre équipe achats va l'examiner et reviendra vers vous si des informations complémentaires sont nécessaires.

Cordialement,
%s`, greetingName(evt.ContactName), evt.RaisonSociale, defaultFromName),
			SubmissionID: evt.SubmissionID,
			AccountID:    evt.AccountID,
		}
		if len(s.recipients) > 0 {
			msg.ReplyTo = &Address{Email: s.recipients[0], Name: defaultFromName}
		}
		if err := s.email.Send(ctx, msg); err != nil {
			s.logger.Error("notify: failed to send acknowledgment", "error", err, "account_id", evt.AccountID)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d notification(s) failed", len(errs))
	}
	return nil
}

func addresses(emails []string) []Address {
	out := make([]Address, len(emails))
	for i, e := range emails {
		out[i] = Address{Email: e}
	}
	return out
}

func (s *Service) procurementMessage(evt supplier.CreatedEvent) (string, string) {
	created := evt.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	when := created.Format("02/01/2006 15:04")

	rows := [][2]string{
		{"Raison sociale", evt.RaisonSociale},
		{"Pays", evt.Country},
		{"Contact", evt.ContactName},
		{"Email", evt.ContactEmail},
		{"Documents", fmt.Sprintf("%d", evt.Documents)},
		{"Reçu le", when},
	}
	if link := s.recordLink(evt.AccountID); link != "" {
		rows = append(rows, [2]string{"Fiche", link})
	}

	var text, table strings.Builder
	fmt.Fprintf(&text, "Un nouveau fournisseur a été créé.\n\n")
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		fmt.Fprintf(&text, "%s : %s\n", row[0], row[1])
		fmt.Fprintf(&table, `<tr><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;"><strong>%s</strong></td><td style="padding: 8px; border-bottom: 1px solid #e5e7eb;">%s</td></tr>`,
			html.EscapeString(row[0]), html.EscapeString(row[1]))
		table.WriteByte('\n')
	}
	if len(evt.Warnings) > 0 {
		text.WriteString("\nPoints à vérifier :\n")
		for _, w := range evt.Warnings {
			fmt.Fprintf(&text, "- %s\n", w)
		}
	}

	var warnings string
	if len(evt.Warnings) > 0 {
		var items strings.Builder
		for _, w := range evt.Warnings {
			fmt.Fprintf(&items, "<li>%s</li>", html.EscapeString(w))
		}
		warnings = fmt.Sprintf(`<div style="background: #fffbeb; padding: 12px; border-radius: 8px; border-left: 4px solid #f59e0b;"><strong>Points à vérifier</strong><ul>%s</ul></div>`, items.String())
	}

	htmlBody := fmt.Sprintf(`<div style="font-family: sans-serif; max-width: 600px;">
<h2 style="color: #2563eb;">Nouveau fournisseur</h2>
<table style="border-collapse: collapse; margin: 20px 0;">
%s</table>
%s
<p style="color: #6b7280; font-size: 12px; margin-top: 20px;">%s</p>
</div>`, table.String(), warnings, defaultFromName)

	return text.String(), htmlBody
}

func (s *Service) recordLink(accountID string) string {
	if s.crmBaseURL == "" || accountID == "" {
		return ""
	}
	return s.crmBaseURL + "/lightning/r/Account/" + accountID + "/view"
}

func greetingName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Madame, Monsieur"
	}
	return name
}
