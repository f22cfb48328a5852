package supplier

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/supplier-onboarding/internal/filepolicy"
	"github.com/wolfman30/supplier-onboarding/internal/journal"
	"github.com/wolfman30/supplier-onboarding/internal/observability/metrics"
	"github.com/wolfman30/supplier-onboarding/internal/redact"
	"github.com/wolfman30/supplier-onboarding/internal/salesforce"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

const (
	contactWarning     = "Contact could not be created or linked. The account was created successfully, but you may need to manually create or link the contact in Salesforce."
	attestationWarning = "L'attestation de régularité fiscale n'a pas pu être créée. Les données OCR ont été reçues mais la création dans Salesforce a échoué."
)

// CRM is the subset of the Salesforce client used by the orchestrator.
type CRM interface {
	Authenticated(ctx context.Context) bool
	Create(ctx context.Context, object string, fields map[string]any, opts ...salesforce.CallOption) (string, error)
	Update(ctx context.Context, object, id string, fields map[string]any, opts ...salesforce.CallOption) error
	Query(ctx context.Context, soql string) ([]salesforce.Record, error)
}

// Archiver keeps a copy of accepted documents.
type Archiver interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
}

// Publisher announces created suppliers to background workers.
type Publisher interface {
	PublishSupplierCreated(ctx context.Context, evt CreatedEvent) error
}

// Config wires an Orchestrator. CRM is required; everything else has a
// usable default.
type Config struct {
	CRM                 CRM
	Journal             journal.Recorder
	Metrics             *metrics.SubmissionMetrics
	Sanitizer           *redact.Sanitizer
	Policy              filepolicy.Policy
	DefaultRecordTypeID string
	Archiver            Archiver
	Publisher           Publisher
	Logger              *logging.Logger
}

// Orchestrator turns submissions into CRM records.
type Orchestrator struct {
	crm                 CRM
	journal             journal.Recorder
	metrics             *metrics.SubmissionMetrics
	sanitizer           *redact.Sanitizer
	policy              filepolicy.Policy
	defaultRecordTypeID string
	archiver            Archiver
	publisher           Publisher
	logger              *logging.Logger
	validate            *validator.Validate
	tracer              trace.Tracer
	now                 func() time.Time
	newID               func() string
}

// NewOrchestrator builds an Orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.CRM == nil {
		panic("supplier: CRM client is required")
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Nop{}
	}
	if cfg.Sanitizer == nil {
		cfg.Sanitizer = redact.Default()
	}
	if cfg.Policy.MaxBytes == 0 {
		cfg.Policy = filepolicy.Default(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Orchestrator{
		crm:                 cfg.CRM,
		journal:             cfg.Journal,
		metrics:             cfg.Metrics,
		sanitizer:           cfg.Sanitizer,
		policy:              cfg.Policy,
		defaultRecordTypeID: cfg.DefaultRecordTypeID,
		archiver:            cfg.Archiver,
		publisher:           cfg.Publisher,
		logger:              cfg.Logger,
		validate:            newValidator(),
		tracer:              otel.Tracer("supplier-onboarding.internal.supplier"),
		now:                 time.Now,
		newID:               uuid.NewString,
	}
}

// Sanitizer returns the sanitizer used for client-facing messages.
func (o *Orchestrator) Sanitizer() *redact.Sanitizer {
	return o.sanitizer
}

// Authenticated reports whether the CRM session is usable.
func (o *Orchestrator) Authenticated(ctx context.Context) bool {
	return o.crm.Authenticated(ctx)
}

// Submit validates sub and writes it to the CRM. The error is one of
// ErrNotAuthenticated, *ValidationError, *filepolicy.Violation,
// *DuplicateConflict or *CRMError; any other error is unclassified.
func (o *Orchestrator) Submit(ctx context.Context, sub *Submission) (*Result, error) {
	start := o.now()
	ctx, span := o.tracer.Start(ctx, "supplier.submit")
	defer span.End()

	res, err := o.submit(ctx, sub)
	elapsed := o.now().Sub(start)
	o.metrics.ObserveSubmission(outcomeOf(res, err), elapsed.Seconds())
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	res.Duration = elapsed
	return res, nil
}

func (o *Orchestrator) submit(ctx context.Context, sub *Submission) (*Result, error) {
	if sub == nil {
		return nil, &ValidationError{Message: "Le corps de la requête est requis"}
	}
	if !o.crm.Authenticated(ctx) {
		return nil, ErrNotAuthenticated
	}
	if isEmptyRequest(sub.Request) && len(sub.Files) == 0 {
		return nil, &ValidationError{Message: "Le corps de la requête est requis"}
	}

	req := Normalize(sub.Request)
	if err := validateRequest(o.validate, req); err != nil {
		return nil, err
	}
	if err := checkFiles(o.policy, sub.Files); err != nil {
		var v *filepolicy.Violation
		if errors.As(err, &v) {
			o.metrics.ObserveFileRejected(string(v.Reason))
		}
		return nil, err
	}

	r := &run{
		id:         o.newID(),
		req:        req,
		rawCountry: sub.Country,
		files:      sub.Files,
	}
	o.logger.Info("creating supplier",
		"submission_id", r.id,
		"country", req.Country,
		"files", len(sub.Files),
		"has_attestation_data", !req.AttestationData.IsZero(),
	)

	if err := o.execute(ctx, r, o.steps()); err != nil {
		return nil, err
	}

	res := &Result{SubmissionID: r.id, Refs: r.refs, Warnings: r.warnings}
	o.archive(ctx, r)
	o.publish(ctx, r)
	o.logger.Info("supplier created",
		"submission_id", r.id,
		"account_id", r.refs.AccountID,
		"contact_id", r.refs.ContactID,
		"attestation_id", r.refs.AttestationID,
		"documents", len(r.refs.Documents),
		"warnings", len(r.warnings),
	)
	return res, nil
}

func (o *Orchestrator) steps() []Step {
	return []Step{
		{Name: "record_type", Run: o.resolveRecordType},
		{Name: "account", Run: o.createAccount},
		{Name: "contact", Run: o.createContact},
		{Name: "contact_link", Run: o.linkContact},
		{Name: "attestation", Run: o.createAttestation},
		{Name: "documents", Run: o.uploadDocuments},
	}
}

func (o *Orchestrator) resolveRecordType(ctx context.Context, r *run) error {
	devName := RecordTypeFor(r.req.Country)
	soql := fmt.Sprintf("SELECT Id FROM RecordType WHERE SObjectType = 'Account' AND DeveloperName = '%s' LIMIT 1", salesforce.QuoteSOQL(devName))
	records, err := o.crm.Query(ctx, soql)
	if err == nil && len(records) > 0 && records[0].String("Id") != "" {
		r.recordTypeID = records[0].String("Id")
		return nil
	}
	if err != nil {
		o.logger.Warn("record type lookup failed", "submission_id", r.id, "record_type", devName, "error", err)
	} else {
		o.logger.Warn("record type not found", "submission_id", r.id, "record_type", devName)
	}
	r.recordTypeID = o.defaultRecordTypeID
	return nil
}

func (o *Orchestrator) createAccount(ctx context.Context, r *run) error {
	id, err := o.create(ctx, r, "account", ObjectAccount, accountFields(r.req, r.rawCountry, r.recordTypeID))
	if err != nil {
		return Hard(o.classifyAccountError(err))
	}
	r.refs.AccountID = id
	return nil
}

func (o *Orchestrator) createContact(ctx context.Context, r *run) error {
	id, err := o.create(ctx, r, "contact", ObjectContact, contactFields(r.req, r.refs.AccountID), salesforce.AllowDuplicateSave())
	if err != nil {
		return Soft(contactWarning, err)
	}
	r.refs.ContactID = id
	r.refs.ContactLinked = true
	return nil
}

// linkContact sets the Account back-reference. The field is optional in
// some orgs, so failures are only logged.
func (o *Orchestrator) linkContact(ctx context.Context, r *run) error {
	if r.refs.ContactID == "" {
		return nil
	}
	err := o.crm.Update(ctx, ObjectAccount, r.refs.AccountID, map[string]any{"Contact__c": r.refs.ContactID})
	o.record(ctx, r, "contact_link", ObjectAccount, r.refs.AccountID, err)
	if err != nil {
		o.logger.Warn("could not set Account.Contact__c", "submission_id", r.id, "account_id", r.refs.AccountID, "error", err)
	}
	return nil
}

func (o *Orchestrator) createAttestation(ctx context.Context, r *run) error {
	if r.req.AttestationData.IsZero() {
		return nil
	}
	id, err := o.create(ctx, r, "attestation", ObjectAttestation, attestationFields(r.req.AttestationData, r.refs.AccountID))
	if err != nil {
		return Soft(attestationWarning, err)
	}
	r.refs.AttestationID = id
	return nil
}

func (o *Orchestrator) uploadDocuments(ctx context.Context, r *run) error {
	r.refs.Documents = []supplierapi.UploadedFile{}
	for _, f := range r.files {
		doc, err := o.uploadDocument(ctx, r, f)
		if err != nil {
			o.logger.Warn("document upload failed", "submission_id", r.id, "account_id", r.refs.AccountID, "title", doc.FileName, "error", err)
			r.warn(fmt.Sprintf("Le document « %s » n'a pas pu être téléversé.", doc.FileName))
			continue
		}
		r.refs.Documents = append(r.refs.Documents, doc)
	}
	return nil
}

// uploadDocument creates the ContentVersion, resolves its ContentDocument
// and, for the fiscal attestation, links the document back to the Account.
// The returned file name is set even on failure.
func (o *Orchestrator) uploadDocument(ctx context.Context, r *run, f Upload) (supplierapi.UploadedFile, error) {
	title, ext := DocumentTitle(f.FileName)
	if ext == "" {
		ext = mimetype.Detect(f.Data).Extension()
	}
	doc := supplierapi.UploadedFile{FileName: title + ext}

	parent := r.refs.AccountID
	toAttestation := r.refs.AttestationID != "" && supplierapi.IsFiscalAttestation(title)
	if toAttestation {
		parent = r.refs.AttestationID
	}

	versionID, err := o.create(ctx, r, "documents", ObjectContentVersion, map[string]any{
		"Title":                  title,
		"PathOnClient":           doc.FileName,
		"VersionData":            base64.StdEncoding.EncodeToString(f.Data),
		"FirstPublishLocationId": parent,
	})
	if err != nil {
		return doc, err
	}

	records, err := o.crm.Query(ctx, fmt.Sprintf("SELECT ContentDocumentId FROM ContentVersion WHERE Id = '%s'", salesforce.QuoteSOQL(versionID)))
	if err != nil {
		return doc, fmt.Errorf("supplier: resolve content document: %w", err)
	}
	if len(records) == 0 || records[0].String("ContentDocumentId") == "" {
		return doc, fmt.Errorf("supplier: no content document for version %s", versionID)
	}
	doc.ContentDocumentID = records[0].String("ContentDocumentId")

	if toAttestation {
		_, err := o.create(ctx, r, "documents", ObjectContentDocumentLink, map[string]any{
			"ContentDocumentId": doc.ContentDocumentID,
			"LinkedEntityId":    r.refs.AccountID,
			"ShareType":         "V",
			"Visibility":        "AllUsers",
		})
		if err != nil {
			o.logger.Warn("could not link attestation document to account", "submission_id", r.id, "account_id", r.refs.AccountID, "error", err)
		}
	}
	return doc, nil
}

// create writes one record and journals the attempt.
func (o *Orchestrator) create(ctx context.Context, r *run, step, object string, fields map[string]any, opts ...salesforce.CallOption) (string, error) {
	id, err := o.crm.Create(ctx, object, fields, opts...)
	o.record(ctx, r, step, object, id, err)
	return id, err
}

func (o *Orchestrator) record(ctx context.Context, r *run, step, object, id string, err error) {
	o.metrics.ObserveCRMWrite(object, err == nil)

	entry := journal.Entry{
		SubmissionID: r.id,
		Step:         step,
		Object:       object,
		RecordID:     id,
		Status:       journal.StatusCommitted,
		RequestID:    middleware.GetReqID(ctx),
	}
	if err != nil {
		entry.Status = journal.StatusFailed
		entry.Detail = o.sanitizer.Scrub(err.Error())
		if apiErr, ok := salesforce.AsAPIError(err); ok {
			entry.ErrorCodes = apiErr.Codes()
		}
	}
	if jerr := o.journal.Record(ctx, entry); jerr != nil {
		o.logger.Warn("journal write failed", "submission_id", r.id, "object", object, "record_id", id, "error", jerr)
	}
}

// classifyAccountError maps a failed Account creation to the error the
// caller reports: duplicate, fixable validation error or generic failure.
func (o *Orchestrator) classifyAccountError(err error) error {
	if errors.Is(err, salesforce.ErrNoSession) {
		return ErrNotAuthenticated
	}
	msg := err.Error()
	var codes, messages, fields []string
	apiErr, ok := salesforce.AsAPIError(err)
	if ok {
		msg = apiErr.Error()
		codes, messages, fields = apiErr.Codes(), apiErr.Messages(), apiErr.Fields()
	} else {
		messages = []string{msg}
	}

	if (ok && (apiErr.HasCode("DUPLICATE_VALUE") || apiErr.HasCode("DUPLICATES_DETECTED"))) || o.sanitizer.IsDuplicate(msg) {
		return &DuplicateConflict{
			Message:    o.sanitizer.Sanitize(msg),
			Duplicates: o.sanitizer.Duplicates(messages, fields),
		}
	}
	if o.sanitizer.IsValidation(codes, msg) {
		return &CRMError{Validation: true, Message: o.sanitizer.Sanitize(msg), Err: err}
	}
	return &CRMError{Message: o.sanitizer.GenericMessage(), Err: err}
}

func (o *Orchestrator) archive(ctx context.Context, r *run) {
	if o.archiver == nil || len(r.files) == 0 {
		return
	}
	for i, f := range r.files {
		title, ext := DocumentTitle(f.FileName)
		key := fmt.Sprintf("submissions/%s/%s/%02d-%s%s", r.refs.AccountID, r.id, i+1, title, ext)
		contentType := f.ContentType
		if contentType == "" {
			contentType = filepolicy.DetectMIME(f.Data)
		}
		if err := o.archiver.Put(ctx, key, contentType, f.Data); err != nil {
			o.logger.Warn("document archive failed", "submission_id", r.id, "key", key, "error", err)
		}
	}
}

func (o *Orchestrator) publish(ctx context.Context, r *run) {
	if o.publisher == nil {
		return
	}
	evt := CreatedEvent{
		SubmissionID:  r.id,
		AccountID:     r.refs.AccountID,
		ContactID:     r.refs.ContactID,
		AttestationID: r.refs.AttestationID,
		RaisonSociale: r.req.RaisonSociale,
		Country:       r.req.Country,
		ContactName:   joinName(r.req.ContactPrenom, r.req.ContactNom),
		ContactEmail:  r.req.Email,
		Documents:     len(r.refs.Documents),
		Warnings:      r.warnings,
		CreatedAt:     o.now().UTC(),
	}
	if err := o.publisher.PublishSupplierCreated(ctx, evt); err != nil {
		o.logger.Warn("supplier created event not published", "submission_id", r.id, "account_id", r.refs.AccountID, "error", err)
	}
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}

func outcomeOf(res *Result, err error) string {
	var (
		verr *ValidationError
		fv   *filepolicy.Violation
		dup  *DuplicateConflict
		crm  *CRMError
	)
	switch {
	case err == nil && res != nil && len(res.Warnings) > 0:
		return "partial"
	case err == nil:
		return "success"
	case errors.Is(err, ErrNotAuthenticated):
		return "unauthenticated"
	case errors.As(err, &verr), errors.As(err, &fv):
		return "invalid"
	case errors.As(err, &dup):
		return "conflict"
	case errors.As(err, &crm) && crm.Validation:
		return "invalid"
	default:
		return "error"
	}
}
