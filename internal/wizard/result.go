package wizard

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/wolfman30/supplier-onboarding/internal/redact"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// Messages shown when the server reply cannot be shown as is.
const (
	UnexpectedErrorMessage = "Une erreur inattendue est survenue. Veuillez contacter l'administrateur."
	NetworkErrorMessage    = "Erreur réseau lors de l'envoi"
	DuplicateMessage       = "Doublon détecté"
	DuplicateFieldMessage  = "Valeur dupliquée"
	AuthRequiredMessage    = "Le serveur n'est pas connecté à Salesforce. Connectez-vous puis renvoyez le formulaire."
)

// SubmissionResult is the outcome of one submission attempt.
type SubmissionResult interface {
	isSubmissionResult()
}

// Success means the Account exists. Warnings list the secondary writes that
// did not go through.
type Success struct {
	AccountID      string
	ContactID      *string
	AttachmentRefs []supplierapi.UploadedFile
	Warnings       []string
}

// Conflict means the CRM refused a duplicate value.
type Conflict struct {
	DuplicateFields []supplierapi.Duplicate
	Message         string
}

// ValidationFailure means the server refused the content of the form.
type ValidationFailure struct {
	Fields  FieldErrors
	Message string
}

// Failure is any other refusal, with a message safe to display.
type Failure struct {
	SanitizedMessage string
}

// AuthRequired means the server has no CRM session; LoginURL starts one.
type AuthRequired struct {
	LoginURL string
}

func (Success) isSubmissionResult()           {}
func (Conflict) isSubmissionResult()          {}
func (ValidationFailure) isSubmissionResult() {}
func (Failure) isSubmissionResult()           {}
func (AuthRequired) isSubmissionResult()      {}

var (
	actionableMessage = regexp.MustCompile(`(?i)doublon|duplicate|valeur dupli`)
	supplierNameLabel = regexp.MustCompile(`(?i)nom fournisseur`)
	tradeNameLabel    = regexp.MustCompile(`(?i)nom commercial`)
)

// Interpret maps the status and body of POST /api/supplier to a result.
// Every message is passed through sanitizer before it is kept.
func Interpret(status int, body []byte, sanitizer *redact.Sanitizer) SubmissionResult {
	if sanitizer == nil {
		sanitizer = redact.MustNew(redact.ClientRules())
	}
	var resp supplierapi.Response
	decoded := json.Unmarshal(body, &resp) == nil

	if status >= 200 && status < 300 {
		if !decoded || resp.Data == nil {
			return Failure{SanitizedMessage: UnexpectedErrorMessage}
		}
		out := Success{
			AccountID:      resp.Data.AccountID,
			ContactID:      resp.Data.ContactID,
			AttachmentRefs: resp.Data.UploadedFiles,
		}
		if out.AttachmentRefs == nil {
			out.AttachmentRefs = []supplierapi.UploadedFile{}
		}
		for _, w := range resp.Warnings {
			out.Warnings = append(out.Warnings, sanitizer.Sanitize(w))
		}
		return out
	}
	if !decoded {
		return Failure{SanitizedMessage: UnexpectedErrorMessage}
	}

	switch status {
	case http.StatusConflict:
		msg := resp.Error
		if msg == "" {
			msg = DuplicateMessage
		}
		return Conflict{DuplicateFields: resp.Duplicates, Message: sanitizer.Sanitize(msg)}
	case http.StatusUnauthorized:
		if resp.LoginURL != "" {
			return AuthRequired{LoginURL: resp.LoginURL}
		}
	case http.StatusBadRequest:
		if resp.Error != "" {
			return ValidationFailure{Fields: FieldErrors{}, Message: sanitizer.Sanitize(resp.Error)}
		}
	}

	safe := sanitizer.Sanitize(resp.Error)
	if actionableMessage.MatchString(safe) {
		return Failure{SanitizedMessage: safe}
	}
	return Failure{SanitizedMessage: UnexpectedErrorMessage}
}

// DuplicateErrors turns conflict entries into field errors. Entries without
// a form field are matched on their label.
func DuplicateErrors(dups []supplierapi.Duplicate) FieldErrors {
	errs := FieldErrors{}
	for _, d := range dups {
		msg := d.Message
		if msg == "" {
			msg = DuplicateFieldMessage
		}
		switch {
		case d.Field != nil && *d.Field != "":
			errs[*d.Field] = msg
		case supplierNameLabel.MatchString(d.Label):
			errs[supplierapi.FieldRaisonSociale] = msg
		case tradeNameLabel.MatchString(d.Label):
			errs[supplierapi.FieldNomCommercial] = msg
		}
	}
	return errs
}
