package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/supplier-onboarding/internal/observability/metrics"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

type stubExtractor struct {
	answer string
	err    error
	docs   []Document
	prompt string
}

func (s *stubExtractor) Provider() string { return "stub" }

func (s *stubExtractor) Extract(ctx context.Context, doc Document, prompt string) (string, error) {
	s.docs = append(s.docs, doc)
	s.prompt = prompt
	return s.answer, s.err
}

const sampleAnswer = `{"numero_attestation":"A-2024-001","numero_d_identification_fiscale":"40123456","ice":"001525634000089","registre_de_commerce":null,"taxe_professionnelle":"12345","date_reception":"02-01-2024","date_edition":"05-01-2024","statut_regularite":true,"statut_garanties":false,"nest_pas_en_regle":null}`

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":1}\n```\n", `{"a":1}`},
		{"upper fence", "```JSON{\"a\":1}```", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}

func TestParse(t *testing.T) {
	data, err := Parse("```json\n" + sampleAnswer + "\n```")
	require.NoError(t, err)
	require.NotNil(t, data.NumeroAttestation)
	assert.Equal(t, "A-2024-001", *data.NumeroAttestation)
	assert.Nil(t, data.RegistreDeCommerce)
	require.NotNil(t, data.StatutRegularite)
	assert.True(t, *data.StatutRegularite)
	require.NotNil(t, data.StatutGaranties)
	assert.False(t, *data.StatutGaranties)
	assert.Nil(t, data.NestPasEnRegle)

	_, err = Parse("Je ne peux pas lire ce document.")
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Parse(`{"numero_attestation": `)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestAnalyzerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewSubmissionMetrics(reg)

	stub := &stubExtractor{answer: sampleAnswer}
	a := NewAnalyzer(stub, m, logging.Discard())
	data, err := a.Analyze(context.Background(), Document{Name: "att.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)
	assert.Equal(t, "001525634000089", *data.ICE)
	assert.Equal(t, Prompt, stub.prompt)

	stub.answer = "not json"
	_, err = a.Analyze(context.Background(), Document{Name: "att.pdf"})
	assert.ErrorIs(t, err, ErrInvalidFormat)

	stub.err = errors.New("quota exceeded")
	_, err = a.Analyze(context.Background(), Document{Name: "att.pdf"})
	assert.EqualError(t, err, "quota exceeded")

	families, err := reg.Gather()
	require.NoError(t, err)
	statuses := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "supplier_onboarding_ocr_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" {
					statuses[label.GetValue()] = metric.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{"ok": 1, "invalid": 1, "error": 1}, statuses)
}

func TestPromptListsEveryField(t *testing.T) {
	for _, field := range []string{
		"numero_attestation", "numero_d_identification_fiscale", "ice", "registre_de_commerce",
		"taxe_professionnelle", "date_reception", "date_edition", "statut_regularite",
		"statut_garanties", "nest_pas_en_regle",
	} {
		assert.Contains(t, Prompt, "- "+field+" (")
	}
	assert.Contains(t, Prompt, "Si un champ n'est pas trouvé, mets null.")
}
