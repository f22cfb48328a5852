package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/supplier-onboarding/internal/filepolicy"
	"github.com/wolfman30/supplier-onboarding/internal/redact"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// ErrSuperseded is returned by an operation replaced by a newer one of the
// same kind before it finished.
var ErrSuperseded = errors.New("wizard: superseded by a newer request")

// ErrNoAttestationFile is returned when OCR is asked for without a fiscal
// attestation attached.
var ErrNoAttestationFile = errors.New("wizard: no fiscal attestation attached")

// LoginOpener lets the user start the CRM login when the server has no
// session, typically in a new browser window.
type LoginOpener interface {
	ConfirmLogin(ctx context.Context, loginURL string) bool
	OpenLogin(loginURL string) error
}

// ControllerConfig wires a Controller. Client is required.
type ControllerConfig struct {
	Client      *Client
	Storage     Storage
	Policy      filepolicy.Policy
	Sanitizer   *redact.Sanitizer
	LoginOpener LoginOpener
	Logger      *logging.Logger
}

// Controller owns the wizard state and performs its side effects: draft
// persistence at checkpoints and the network calls. Reducers do the rest.
type Controller struct {
	mu        sync.Mutex
	state     State
	client    *Client
	storage   Storage
	policy    filepolicy.Policy
	sanitizer *redact.Sanitizer
	opener    LoginOpener
	logger    *logging.Logger
	now       func() time.Time

	cancelSubmit context.CancelFunc
	submitSeq    uint64
	cancelLogo   context.CancelFunc
	logoSeq      uint64
}

// NewController creates a controller on a fresh state.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Client == nil {
		panic("wizard: api client is required")
	}
	if cfg.Policy.MaxBytes == 0 {
		cfg.Policy = filepolicy.Default(0)
	}
	if cfg.Sanitizer == nil {
		cfg.Sanitizer = redact.MustNew(redact.ClientRules())
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Controller{
		state:     NewState(),
		client:    cfg.Client,
		storage:   cfg.Storage,
		policy:    cfg.Policy,
		sanitizer: cfg.Sanitizer,
		opener:    cfg.LoginOpener,
		logger:    cfg.Logger,
		now:       time.Now,
	}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Load restores a saved draft. Having none is not an error.
func (c *Controller) Load(ctx context.Context) error {
	if c.storage == nil {
		return nil
	}
	saved, err := c.storage.Load(ctx)
	if errors.Is(err, ErrNoDraft) {
		return nil
	}
	if err != nil {
		return err
	}
	st := NewState()
	st.Draft = Restore(saved.FormData)
	if saved.Step >= 0 && saved.Step < StepConfirmation {
		st.Step = saved.Step
	}
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
	return nil
}

func (c *Controller) UpdateField(name string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := UpdateField(c.state, name, value)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

func (c *Controller) AddFiles(category supplierapi.Category, files []Attachment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := AddFiles(c.state, c.policy, category, files)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

func (c *Controller) RemoveFile(category supplierapi.Category, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = RemoveFile(c.state, category, index)
}

// Next advances when the current step validates and saves the draft as a
// checkpoint. It reports whether the step changed.
func (c *Controller) Next(ctx context.Context) (bool, error) {
	c.mu.Lock()
	prev := c.state.Step
	c.state = Next(c.state)
	advanced := c.state.Step != prev
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if !advanced {
		return false, nil
	}
	return true, c.persist(ctx, snapshot)
}

func (c *Controller) Prev() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Prev(c.state)
}

// GoTo jumps to a step and saves the draft as a checkpoint.
func (c *Controller) GoTo(ctx context.Context, step int) error {
	c.mu.Lock()
	prev := c.state.Step
	c.state = GoTo(c.state, step)
	moved := c.state.Step != prev
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if !moved {
		return nil
	}
	return c.persist(ctx, snapshot)
}

// SaveProgress persists the draft and raises the saved flag.
func (c *Controller) SaveProgress(ctx context.Context) error {
	c.mu.Lock()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if err := c.persist(ctx, snapshot); err != nil {
		return err
	}
	c.mu.Lock()
	c.state.Saved = true
	c.mu.Unlock()
	return nil
}

// Reset drops the draft, in memory and in storage, and cancels in-flight
// requests.
func (c *Controller) Reset(ctx context.Context) error {
	c.Cancel()
	c.mu.Lock()
	c.state = Reset(c.state)
	c.mu.Unlock()
	if c.storage == nil {
		return nil
	}
	return c.storage.Clear(ctx)
}

// Cancel aborts the in-flight submission and logo fetch, if any.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelSubmit != nil {
		c.cancelSubmit()
		c.cancelSubmit = nil
		c.submitSeq++
		c.state.Submitting = false
	}
	if c.cancelLogo != nil {
		c.cancelLogo()
		c.cancelLogo = nil
		c.logoSeq++
	}
}

// SubmitForm validates, normalizes and sends the draft, then applies the
// outcome to the state. Starting a submission cancels the previous one.
// The returned error covers failures to obtain a reply; refusals by the
// server are results.
func (c *Controller) SubmitForm(ctx context.Context) (SubmissionResult, error) {
	c.mu.Lock()
	if c.cancelSubmit != nil {
		c.cancelSubmit()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancelSubmit = cancel
	c.submitSeq++
	seq := c.submitSeq

	st := c.state.clone()
	st.Submitting = true
	st.SubmitError = ""
	st.SubmitWarnings = nil
	st.FieldErrors = FieldErrors{}

	sub, err := BuildSubmission(st.Draft, c.policy)
	if err != nil {
		var be *BuildError
		if errors.As(err, &be) {
			if be.Fields != nil {
				st.FieldErrors = be.Fields
			}
			if be.FileErrors != nil {
				st.FileErrors = be.FileErrors
			}
			st.SubmitError = be.Message
		}
		st.Submitting = false
		st.ScrollToTop = true
		c.state = st
		c.cancelSubmit = nil
		c.mu.Unlock()
		return nil, err
	}
	for field, value := range sub.Normalized {
		st.Draft.Fields[field] = value
	}
	c.state = st
	c.mu.Unlock()

	body, contentType, err := sub.Encode()
	if err != nil {
		c.finishSubmit(seq, func(s *State) { s.SubmitError = UnexpectedErrorMessage })
		return nil, err
	}
	c.logger.Debug("submitting supplier", "multipart", sub.Multipart(), "files", len(sub.Files))
	status, reply, err := c.client.Submit(ctx, body, contentType)
	if err != nil {
		if ctx.Err() != nil {
			c.finishSubmit(seq, nil)
			return nil, ctx.Err()
		}
		c.logger.Warn("supplier submission failed", "error", err)
		if !c.finishSubmit(seq, func(s *State) { s.SubmitError = NetworkErrorMessage }) {
			return nil, ErrSuperseded
		}
		return nil, err
	}

	result := Interpret(status, reply, c.sanitizer)
	if !c.finishSubmit(seq, func(s *State) { applyResult(s, result) }) {
		return nil, ErrSuperseded
	}

	switch r := result.(type) {
	case Success:
		if len(r.Warnings) == 0 && c.storage != nil {
			if err := c.storage.Clear(ctx); err != nil {
				c.logger.Warn("failed to clear saved draft", "error", err)
			}
		}
	case AuthRequired:
		if c.opener != nil && c.opener.ConfirmLogin(ctx, r.LoginURL) {
			if err := c.opener.OpenLogin(r.LoginURL); err != nil {
				c.logger.Warn("failed to open login", "error", err)
			}
		}
	}
	return result, nil
}

// finishSubmit applies fn when seq is still the current submission and
// reports whether it was.
func (c *Controller) finishSubmit(seq uint64, fn func(*State)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.submitSeq {
		return false
	}
	c.cancelSubmit = nil
	next := c.state.clone()
	next.Submitting = false
	if fn != nil {
		fn(&next)
	}
	c.state = next
	return true
}

func applyResult(s *State, result SubmissionResult) {
	switch r := result.(type) {
	case Success:
		if len(r.Warnings) > 0 {
			s.SubmitWarnings = r.Warnings
			return
		}
		s.Step = StepConfirmation
		s.ScrollToTop = true
	case Conflict:
		s.FieldErrors = DuplicateErrors(r.DuplicateFields)
		s.SubmitError = r.Message
	case ValidationFailure:
		for k, v := range r.Fields {
			s.FieldErrors[k] = v
		}
		s.SubmitError = r.Message
	case AuthRequired:
		s.SubmitError = AuthRequiredMessage
	case Failure:
		s.SubmitError = r.SanitizedMessage
	}
}

// FetchLogo loads the branding into the draft. A newer call cancels an
// older one still in flight.
func (c *Controller) FetchLogo(ctx context.Context) error {
	c.mu.Lock()
	if c.cancelLogo != nil {
		c.cancelLogo()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.cancelLogo = cancel
	c.logoSeq++
	seq := c.logoSeq
	c.mu.Unlock()

	logo, err := c.client.Logo(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.logoSeq {
		return ErrSuperseded
	}
	c.cancelLogo = nil
	if err != nil {
		return err
	}
	next := c.state.clone()
	for field, value := range map[string]string{
		FieldLogoURL:       logo.LogoURL,
		FieldLogoName:      logo.LogoName,
		FieldLogoDeveloper: logo.DeveloperName,
	} {
		if value != "" {
			next.Draft.Fields[field] = value
		}
	}
	c.state = next
	return nil
}

// AnalyzeAttestation runs OCR on the first fiscal attestation attached and
// stores the extracted data in the draft.
func (c *Controller) AnalyzeAttestation(ctx context.Context) (*supplierapi.AttestationData, error) {
	c.mu.Lock()
	files := c.state.Draft.Files[supplierapi.CategoryAttestationRegulariteFiscale]
	var doc Attachment
	if len(files) > 0 {
		doc = files[0]
	}
	c.mu.Unlock()
	if len(files) == 0 {
		return nil, ErrNoAttestationFile
	}

	data, err := c.client.AnalyzeAttestation(ctx, doc)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	next, err := UpdateField(c.state, supplierapi.AttestationFD, data)
	if err != nil {
		return nil, err
	}
	c.state = next
	return data, nil
}

func (c *Controller) snapshotLocked() *supplierapi.Draft {
	return &supplierapi.Draft{
		Step:     c.state.Step,
		SavedAt:  c.now().UTC(),
		FormData: Snapshot(c.state.Draft),
	}
}

// persist saves a snapshot. The confirmation step is never saved.
func (c *Controller) persist(ctx context.Context, d *supplierapi.Draft) error {
	if c.storage == nil || d.Step >= StepConfirmation {
		return nil
	}
	if err := c.storage.Save(ctx, d); err != nil {
		c.logger.Warn("failed to save draft", "error", err)
		return err
	}
	return nil
}
