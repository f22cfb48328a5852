package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.5-flash"

// geminiGenerator is satisfied by *genai.GenerativeModel.
type geminiGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiExtractor reads documents with a Gemini vision model.
type GeminiExtractor struct {
	client *genai.Client
	model  geminiGenerator
}

// NewGeminiExtractor creates a Gemini client constrained to answer with the
// attestation JSON schema.
func NewGeminiExtractor(ctx context.Context, apiKey, modelID string) (*GeminiExtractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ocr: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("ocr: failed to create gemini client: %w", err)
	}
	model := client.GenerativeModel(modelID)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = attestationSchema()
	return &GeminiExtractor{client: client, model: model}, nil
}

func (g *GeminiExtractor) Provider() string { return "gemini" }

func (g *GeminiExtractor) Extract(ctx context.Context, doc Document, prompt string) (string, error) {
	if doc.MIMEType == "" {
		return "", ErrUnsupportedDocument
	}
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt), genai.Blob{MIMEType: doc.MIMEType, Data: doc.Data})
	if err != nil {
		return "", fmt.Errorf("ocr: gemini request failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("ocr: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("ocr: gemini returned empty content")
	}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String(), nil
}

// Close releases the client.
func (g *GeminiExtractor) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func attestationSchema() *genai.Schema {
	text := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Nullable: true, Description: desc}
	}
	flag := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeBoolean, Nullable: true, Description: desc}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"numero_attestation":              text("Numéro de l'attestation"),
			"numero_d_identification_fiscale": text("Numéro d'identification fiscale"),
			"ice":                             text("Identifiant commun de l'entreprise"),
			"registre_de_commerce":            text("Numéro du registre de commerce"),
			"taxe_professionnelle":            text("Numéro de taxe professionnelle"),
			"date_reception":                  text("Date de réception, DD-MM-YYYY"),
			"date_edition":                    text("Date d'édition, DD-MM-YYYY"),
			"statut_regularite":               flag("En situation fiscale régulière"),
			"statut_garanties":                flag("A constitué des garanties suffisantes"),
			"nest_pas_en_regle":               flag("N'est pas en règle"),
		},
	}
}
