package wizard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// ErrNoDraft is returned when no saved draft exists.
var ErrNoDraft = errors.New("wizard: no saved draft")

// maxResponseBytes bounds what the client reads from the API.
const maxResponseBytes = 1 << 20

// APIError is a non-success reply from an auxiliary endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("wizard: api returned %d", e.Status)
	}
	return fmt.Sprintf("wizard: api returned %d: %s", e.Status, e.Message)
}

// Client talks to the onboarding API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for baseURL. A nil httpClient selects one with
// a two minute timeout, enough for large multipart submissions.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// Submit sends an encoded submission and returns the raw reply.
func (c *Client) Submit(ctx context.Context, body io.Reader, contentType string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+supplierapi.SupplierPath, body)
	if err != nil {
		return 0, nil, fmt.Errorf("wizard: build submit request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// Logo fetches the branding shown in the header.
func (c *Client) Logo(ctx context.Context) (*supplierapi.LogoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+supplierapi.LogoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("wizard: build logo request: %w", err)
	}
	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var out supplierapi.LogoResponse
	_ = json.Unmarshal(body, &out)
	if status != http.StatusOK {
		return nil, &APIError{Status: status, Message: out.Error}
	}
	return &out, nil
}

// AnalyzeAttestation sends one document to the OCR endpoint.
func (c *Client) AnalyzeAttestation(ctx context.Context, doc Attachment) (*supplierapi.AttestationData, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		supplierapi.OCRFileField, quoteEscaper.Replace(doc.Name)))
	if doc.MIMEType != "" {
		h.Set("Content-Type", doc.MIMEType)
	}
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("wizard: create ocr part: %w", err)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, fmt.Errorf("wizard: write ocr part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("wizard: close ocr body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+supplierapi.OCRPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("wizard: build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, apiError(status, body)
	}
	var data supplierapi.AttestationData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("wizard: decode ocr reply: %w", err)
	}
	return &data, nil
}

// GetDraft loads a server-side draft.
func (c *Client) GetDraft(ctx context.Context, id string) (*supplierapi.Draft, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.draftURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("wizard: build draft request: %w", err)
	}
	status, body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrNoDraft
	default:
		return nil, apiError(status, body)
	}
	var d supplierapi.Draft
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("wizard: decode draft: %w", err)
	}
	return &d, nil
}

// PutDraft stores a server-side draft.
func (c *Client) PutDraft(ctx context.Context, id string, d *supplierapi.Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("wizard: encode draft: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.draftURL(id), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("wizard: build draft request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	status, body, err := c.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return apiError(status, body)
	}
	return nil
}

// DeleteDraft removes a server-side draft. A missing draft is not an error.
func (c *Client) DeleteDraft(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.draftURL(id), nil)
	if err != nil {
		return fmt.Errorf("wizard: build draft request: %w", err)
	}
	status, body, err := c.do(req)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusOK && status != http.StatusNotFound {
		return apiError(status, body)
	}
	return nil
}

func (c *Client) draftURL(id string) string {
	return c.baseURL + supplierapi.DraftsPath + "/" + id
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("wizard: read reply: %w", err)
	}
	return resp.StatusCode, body, nil
}

func apiError(status int, body []byte) error {
	var e supplierapi.ErrorResponse
	_ = json.Unmarshal(body, &e)
	return &APIError{Status: status, Message: e.Error}
}
