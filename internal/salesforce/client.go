// Package salesforce is a small REST client for the CRM objects the
// onboarding flow writes, plus the OAuth plumbing that keeps a session alive.
package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

const defaultAPIVersion = "59.0"

// Record is one SOQL result row.
type Record map[string]any

// String returns the string value of field, or "" when absent or not a string.
func (r Record) String(field string) string {
	if v, ok := r[field].(string); ok {
		return v
	}
	return ""
}

// CallOption adjusts a single REST call.
type CallOption func(h http.Header)

// AllowDuplicateSave tells duplicate rules to let the record through.
func AllowDuplicateSave() CallOption {
	return func(h http.Header) {
		h.Set("Sforce-Duplicate-Rule-Header", "allowSave=true")
	}
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Store      SessionStore
	Refresher  Refresher // optional; enables one refresh-and-retry on expired sessions
	APIVersion string
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client talks to the REST API of the instance stored in the session.
type Client struct {
	store      SessionStore
	refresher  Refresher
	apiVersion string
	http       *http.Client
	logger     *logging.Logger
}

// NewClient builds a Client. Store is required.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Store == nil {
		panic("salesforce: session store is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	version := strings.TrimPrefix(strings.TrimSpace(cfg.APIVersion), "v")
	if version == "" {
		version = defaultAPIVersion
	}
	return &Client{
		store:      cfg.Store,
		refresher:  cfg.Refresher,
		apiVersion: version,
		http:       cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// Authenticated reports whether a usable session is stored.
func (c *Client) Authenticated(ctx context.Context) bool {
	session, err := c.store.Get(ctx)
	return err == nil && session.Valid()
}

// Create inserts a record and returns its id.
func (c *Client) Create(ctx context.Context, object string, fields map[string]any, opts ...CallOption) (string, error) {
	var out struct {
		ID      string      `json:"id"`
		Success bool        `json:"success"`
		Errors  []ErrorItem `json:"errors"`
	}
	if err := c.do(ctx, http.MethodPost, c.sobjectPath(object, ""), fields, &out, opts...); err != nil {
		return "", fmt.Errorf("salesforce: create %s: %w", object, err)
	}
	if !out.Success || out.ID == "" {
		return "", fmt.Errorf("salesforce: create %s: %w", object, &APIError{StatusCode: http.StatusOK, Items: out.Errors})
	}
	return out.ID, nil
}

// Update patches fields of an existing record.
func (c *Client) Update(ctx context.Context, object, id string, fields map[string]any, opts ...CallOption) error {
	if err := c.do(ctx, http.MethodPatch, c.sobjectPath(object, id), fields, nil, opts...); err != nil {
		return fmt.Errorf("salesforce: update %s: %w", object, err)
	}
	return nil
}

// Query runs a SOQL query and returns every row, following pagination.
func (c *Client) Query(ctx context.Context, soql string) ([]Record, error) {
	path := "/services/data/v" + c.apiVersion + "/query?q=" + url.QueryEscape(soql)
	var records []Record
	for path != "" {
		var page struct {
			Done           bool     `json:"done"`
			NextRecordsURL string   `json:"nextRecordsUrl"`
			Records        []Record `json:"records"`
		}
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, fmt.Errorf("salesforce: query: %w", err)
		}
		records = append(records, page.Records...)
		path = ""
		if !page.Done {
			path = page.NextRecordsURL
		}
	}
	return records, nil
}

// QuoteSOQL escapes a value for use inside single quotes in SOQL.
func QuoteSOQL(value string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(value)
}

func (c *Client) sobjectPath(object, id string) string {
	path := "/services/data/v" + c.apiVersion + "/sobjects/" + url.PathEscape(object) + "/"
	if id != "" {
		path += url.PathEscape(id)
	}
	return path
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any, opts ...CallOption) error {
	session, err := c.store.Get(ctx)
	if err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
	}

	err = c.send(ctx, session, method, path, payload, out, opts)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.SessionExpired() || c.refresher == nil {
		return err
	}

	c.logger.Info("salesforce session expired, refreshing")
	refreshed, rerr := c.refresher.Refresh(ctx, session.RefreshToken)
	if rerr != nil {
		c.logger.Warn("salesforce session refresh failed", "error", rerr)
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			c.logger.Warn("failed to clear expired session", "error", clearErr)
		}
		return fmt.Errorf("%w: %v", ErrNoSession, rerr)
	}
	if serr := c.store.Save(ctx, refreshed); serr != nil {
		c.logger.Warn("failed to persist refreshed session", "error", serr)
	}
	return c.send(ctx, refreshed, method, path, payload, out, opts)
}

func (c *Client) send(ctx context.Context, session *Session, method, path string, payload []byte, out any, opts []CallOption) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	target := path
	if !strings.HasPrefix(path, "http") {
		target = session.InstanceURL + path
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req.Header)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, respBody)
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
