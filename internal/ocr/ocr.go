// Package ocr reads a fiscal regularity attestation with a vision model and
// returns its fields in the shape the supplier form submits them.
package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/supplier-onboarding/internal/observability/metrics"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

var (
	// ErrInvalidFormat is returned when the model answer is not the expected JSON object.
	ErrInvalidFormat = errors.New("ocr: model returned an invalid document")
	// ErrUnsupportedDocument is returned for content types the provider cannot read.
	ErrUnsupportedDocument = errors.New("ocr: unsupported document type")
)

// Prompt asks for the attestation fields as a bare JSON object.
const Prompt = `Analyse ce document (Attestation de Régularité Fiscale Marocaine) et extrais les informations suivantes au format JSON uniquement.
Ne mets pas de markdown (pas de ` + "```json" + `). Renvoie juste l'objet JSON brut.

Champs à extraire :
- numero_attestation (String)
- numero_d_identification_fiscale (String)
- ice (String)
- registre_de_commerce (String)
- taxe_professionnelle (String)
- date_reception (String, format DD-MM-YYYY)
- date_edition (String, format DD-MM-YYYY)
- statut_regularite (Boolean, true si le contribuable est en situation fiscale régulière)
- statut_garanties (Boolean, true si le contribuable a constitué des garanties suffisantes)
- nest_pas_en_regle (Boolean, true si le contribuable n'est pas en règle)

Si un champ n'est pas trouvé, mets null.`

// Document is the file sent to the model.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Extractor sends a document and an instruction to a vision model and
// returns the raw text answer.
type Extractor interface {
	Provider() string
	Extract(ctx context.Context, doc Document, prompt string) (string, error)
}

// StripFences removes markdown code fences the model may add despite the
// instruction.
func StripFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```JSON", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// Parse decodes a model answer into attestation data.
func Parse(text string) (*supplierapi.AttestationData, error) {
	text = StripFences(text)
	if !strings.HasPrefix(text, "{") {
		return nil, ErrInvalidFormat
	}
	var data supplierapi.AttestationData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return &data, nil
}

// Analyzer runs an Extractor and parses its answer.
type Analyzer struct {
	extractor Extractor
	metrics   *metrics.SubmissionMetrics
	logger    *logging.Logger
}

// NewAnalyzer wraps extractor.
func NewAnalyzer(extractor Extractor, m *metrics.SubmissionMetrics, logger *logging.Logger) *Analyzer {
	if extractor == nil {
		panic("ocr: extractor is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Analyzer{extractor: extractor, metrics: m, logger: logger}
}

// Provider names the model backend.
func (a *Analyzer) Provider() string {
	return a.extractor.Provider()
}

// Analyze extracts the attestation fields of doc.
func (a *Analyzer) Analyze(ctx context.Context, doc Document) (*supplierapi.AttestationData, error) {
	provider := a.extractor.Provider()
	text, err := a.extractor.Extract(ctx, doc, Prompt)
	if err != nil {
		a.metrics.ObserveOCR(provider, "error")
		return nil, err
	}
	data, err := Parse(text)
	if err != nil {
		a.metrics.ObserveOCR(provider, "invalid")
		a.logger.Warn("ocr answer could not be parsed", "provider", provider, "answer_length", len(text), "error", err)
		return nil, err
	}
	a.metrics.ObserveOCR(provider, "ok")
	return data, nil
}
