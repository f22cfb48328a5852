package ocr

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/wolfman30/supplier-onboarding/internal/filepolicy"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

const (
	noFileMessage        = "No file uploaded"
	missingConfigMessage = "Server configuration error: API Key missing"
	invalidFormatMessage = "Erreur lors de l'analyse du document (Format invalide)"
	ocrFailureMessage    = "Erreur lors de l'analyse OCR"
)

// Handler serves POST /api/ocr/analyze.
type Handler struct {
	analyzer *Analyzer
	policy   filepolicy.Policy
	logger   *logging.Logger
}

// NewHandler creates the OCR handler. A nil analyzer answers every request
// with a configuration error.
func NewHandler(analyzer *Analyzer, policy filepolicy.Policy, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if policy.MaxBytes <= 0 {
		policy = filepolicy.Default(0)
	}
	return &Handler{analyzer: analyzer, policy: policy, logger: logger}
}

// HandleAnalyze reads the multipart "file" field and returns the extracted
// attestation fields.
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.policy.MaxBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			v := &filepolicy.Violation{Reason: filepolicy.ReasonTooLarge, Limit: h.policy.MaxBytes}
			writeJSON(w, http.StatusBadRequest, supplierapi.ErrorResponse{Error: v.Message()})
			return
		}
		writeJSON(w, http.StatusBadRequest, supplierapi.ErrorResponse{Error: noFileMessage})
		return
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	if h.analyzer == nil {
		h.logger.Error("ocr requested but no provider is configured")
		writeJSON(w, http.StatusInternalServerError, supplierapi.ErrorResponse{Error: missingConfigMessage})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, supplierapi.ErrorResponse{Error: noFileMessage})
		return
	}
	if err := h.policy.CheckContent(header.Filename, data, header.Header.Get("Content-Type")); err != nil {
		var v *filepolicy.Violation
		if errors.As(err, &v) {
			writeJSON(w, http.StatusBadRequest, supplierapi.ErrorResponse{Error: v.Message()})
			return
		}
		writeJSON(w, http.StatusBadRequest, supplierapi.ErrorResponse{Error: noFileMessage})
		return
	}

	doc := Document{Name: header.Filename, MIMEType: documentMIME(header.Header.Get("Content-Type"), data), Data: data}
	result, err := h.analyzer.Analyze(r.Context(), doc)
	switch {
	case errors.Is(err, ErrInvalidFormat):
		writeJSON(w, http.StatusInternalServerError, supplierapi.ErrorResponse{Error: invalidFormatMessage})
	case err != nil:
		h.logger.Error("ocr analysis failed", "provider", h.analyzer.Provider(), "file", header.Filename, "error", err)
		writeJSON(w, http.StatusInternalServerError, supplierapi.ErrorResponse{Error: ocrFailureMessage})
	default:
		h.logger.Info("ocr analysis completed", "provider", h.analyzer.Provider(), "file", header.Filename)
		writeJSON(w, http.StatusOK, result)
	}
}

// documentMIME prefers the sniffed type; browsers often send
// application/octet-stream for scans.
func documentMIME(declared string, data []byte) string {
	detected := filepolicy.DetectMIME(data)
	if detected != "" && detected != "application/octet-stream" {
		if i := strings.IndexByte(detected, ';'); i >= 0 {
			detected = detected[:i]
		}
		return detected
	}
	return declared
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
