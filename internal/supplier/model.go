// Package supplier creates supplier records in the CRM from a submitted
// onboarding form: Account, Contact, fiscal attestation and documents, in
// that order, keeping whatever was committed when a later write fails.
package supplier

import (
	"time"

	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// CRM object names written by the orchestrator.
const (
	ObjectAccount             = "Account"
	ObjectContact             = "Contact"
	ObjectAttestation         = "AttestationDeregularite__c"
	ObjectContentVersion      = "ContentVersion"
	ObjectContentDocumentLink = "ContentDocumentLink"
)

// Record type developer names.
const (
	RecordTypeLocal   = "LocalSupplier"
	RecordTypeForeign = "ForeignSupplier"
)

// Upload is one document received with a submission.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Submission is a supplier form as received by the API.
type Submission struct {
	supplierapi.Request
	Files []Upload
}

// RecordRefs are the CRM identifiers produced by one run.
type RecordRefs struct {
	AccountID     string
	ContactID     string
	ContactLinked bool
	AttestationID string
	Documents     []supplierapi.UploadedFile
}

// Result is the outcome of a successful run. Warnings describe secondary
// writes that failed after the Account was created.
type Result struct {
	SubmissionID string
	Refs         RecordRefs
	Warnings     []string
	Duration     time.Duration
}

// Response converts the result to the wire envelope.
func (r *Result) Response() supplierapi.Response {
	data := &supplierapi.ResponseData{
		AccountID:     r.Refs.AccountID,
		ContactLinked: r.Refs.ContactLinked,
		UploadedFiles: r.Refs.Documents,
	}
	if r.Refs.ContactID != "" {
		id := r.Refs.ContactID
		data.ContactID = &id
	}
	if r.Refs.AttestationID != "" {
		id := r.Refs.AttestationID
		data.AttestationID = &id
	}
	if data.UploadedFiles == nil {
		data.UploadedFiles = []supplierapi.UploadedFile{}
	}
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return supplierapi.Response{
		Success:  true,
		Message:  "Supplier created successfully",
		Data:     data,
		Warnings: warnings,
	}
}

// CreatedEvent is published after a supplier was created.
type CreatedEvent struct {
	SubmissionID  string    `json:"submission_id"`
	AccountID     string    `json:"account_id"`
	ContactID     string    `json:"contact_id,omitempty"`
	AttestationID string    `json:"attestation_id,omitempty"`
	RaisonSociale string    `json:"raison_sociale"`
	Country       string    `json:"country,omitempty"`
	ContactName   string    `json:"contact_name,omitempty"`
	ContactEmail  string    `json:"contact_email,omitempty"`
	Documents     int       `json:"documents"`
	Warnings      []string  `json:"warnings,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
