package supplier

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/wolfman30/supplier-onboarding/internal/filepolicy"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

const (
	notAuthenticatedMessage = "Not authenticated. Please log in first."
	invalidBodyMessage      = "Requête invalide"
	uploadTooLargeMessage   = "Un des fichiers dépasse la taille maximale autorisée."
)

// HandlerConfig bounds request bodies.
type HandlerConfig struct {
	LoginURL      string
	JSONBodyLimit int64
	MaxFileBytes  int64
	MaxFiles      int
}

// Handler serves POST /api/supplier.
type Handler struct {
	orchestrator *Orchestrator
	cfg          HandlerConfig
	logger       *logging.Logger
}

// NewHandler creates the submission handler.
func NewHandler(o *Orchestrator, cfg HandlerConfig, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.JSONBodyLimit <= 0 {
		cfg.JSONBodyLimit = 200 * 1024
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = filepolicy.DefaultMaxBytes
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = filepolicy.DefaultMaxFiles
	}
	return &Handler{orchestrator: o, cfg: cfg, logger: logger}
}

// HandleCreate creates a supplier from a JSON or multipart body.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !h.orchestrator.Authenticated(r.Context()) {
		h.writeError(w, http.StatusUnauthorized, supplierapi.Response{Error: notAuthenticatedMessage, LoginURL: h.cfg.LoginURL})
		return
	}

	sub, err := h.decode(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		msg := invalidBodyMessage
		if errors.As(err, &tooLarge) {
			msg = uploadTooLargeMessage
		}
		h.logger.Warn("invalid supplier request body", "error", err)
		h.writeError(w, http.StatusBadRequest, supplierapi.Response{Error: msg})
		return
	}

	res, err := h.orchestrator.Submit(r.Context(), sub)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res.Response())
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*Submission, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		// generous envelope; per-file limits are enforced by the file policy
		limit := int64(h.cfg.MaxFiles+1)*h.cfg.MaxFileBytes + h.cfg.JSONBodyLimit
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		return h.decodeMultipart(r)
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.JSONBodyLimit)
	var req supplierapi.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return &Submission{}, nil
		}
		return nil, err
	}
	return &Submission{Request: req}, nil
}

// decodeMultipart maps form values onto the request through its JSON form so
// certifications and attestation data accept the same shapes as in JSON.
// Files are accepted under any field name.
func (h *Handler) decodeMultipart(r *http.Request) (*Submission, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, err
	}
	form := r.MultipartForm
	defer func() { _ = form.RemoveAll() }()

	values := map[string]any{}
	for key, vals := range form.Value {
		key = strings.TrimSuffix(key, "[]")
		switch {
		case len(vals) == 0:
		case key == supplierapi.FieldCertifications && len(vals) > 1:
			values[key] = vals
		default:
			values[key] = vals[0]
		}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	var req supplierapi.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}

	sub := &Submission{Request: req}
	for _, headers := range form.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, err
			}
			sub.Files = append(sub.Files, Upload{
				FileName:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return sub, nil
}

func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	var (
		verr *ValidationError
		fv   *filepolicy.Violation
		dup  *DuplicateConflict
		crm  *CRMError
	)
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		h.writeError(w, http.StatusUnauthorized, supplierapi.Response{Error: notAuthenticatedMessage, LoginURL: h.cfg.LoginURL})
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, supplierapi.Response{Error: verr.Message})
	case errors.As(err, &fv):
		h.writeError(w, http.StatusBadRequest, supplierapi.Response{Error: fv.Error()})
	case errors.As(err, &dup):
		h.writeError(w, http.StatusConflict, supplierapi.Response{Error: dup.Message, Duplicates: dup.Duplicates})
	case errors.As(err, &crm) && crm.Validation:
		h.writeError(w, http.StatusBadRequest, supplierapi.Response{Error: crm.Message})
	default:
		h.logger.Error("supplier creation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, supplierapi.Response{Error: h.orchestrator.Sanitizer().GenericMessage()})
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, resp supplierapi.Response) {
	resp.Success = false
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
