package salesforce

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoSession is returned when no CRM session has been established yet.
var ErrNoSession = errors.New("salesforce: not authenticated")

// ErrorItem is one entry of a Salesforce REST error body.
type ErrorItem struct {
	Message   string   `json:"message"`
	ErrorCode string   `json:"errorCode"`
	Fields    []string `json:"fields,omitempty"`
}

// APIError is a non-successful REST response.
type APIError struct {
	StatusCode int
	Items      []ErrorItem
	Body       string
}

func (e *APIError) Error() string {
	if len(e.Items) == 0 {
		return fmt.Sprintf("salesforce: status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
	}
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		if item.ErrorCode != "" {
			parts = append(parts, item.ErrorCode+": "+item.Message)
		} else {
			parts = append(parts, item.Message)
		}
	}
	return strings.Join(parts, "; ")
}

// Codes returns the error codes carried by the response.
func (e *APIError) Codes() []string {
	out := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		if item.ErrorCode != "" {
			out = append(out, item.ErrorCode)
		}
	}
	return out
}

// Messages returns the raw error messages.
func (e *APIError) Messages() []string {
	out := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		out = append(out, item.Message)
	}
	return out
}

// Fields returns every field name reported by the response.
func (e *APIError) Fields() []string {
	var out []string
	for _, item := range e.Items {
		out = append(out, item.Fields...)
	}
	return out
}

// HasCode reports whether any item carries code.
func (e *APIError) HasCode(code string) bool {
	for _, item := range e.Items {
		if strings.EqualFold(item.ErrorCode, code) {
			return true
		}
	}
	return false
}

// SessionExpired reports whether the error asks for a new access token.
func (e *APIError) SessionExpired() bool {
	return e.StatusCode == 401 || e.HasCode("INVALID_SESSION_ID")
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	var items []ErrorItem
	if err := json.Unmarshal(body, &items); err == nil {
		apiErr.Items = items
		return apiErr
	}
	// OAuth endpoints answer with a single object
	var single struct {
		ErrorItem
		OAuthError       string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &single); err == nil {
		item := single.ErrorItem
		if item.ErrorCode == "" {
			item.ErrorCode = single.OAuthError
		}
		if item.Message == "" {
			item.Message = single.ErrorDescription
		}
		if item.ErrorCode != "" || item.Message != "" {
			apiErr.Items = []ErrorItem{item}
		}
	}
	return apiErr
}
