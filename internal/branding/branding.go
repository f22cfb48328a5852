// Package branding serves the logo and group name configured in the CRM
// custom metadata so the form can be themed per organisation.
package branding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/wolfman30/supplier-onboarding/internal/redact"
	"github.com/wolfman30/supplier-onboarding/internal/salesforce"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

const logoQuery = "SELECT Logo__c, GroupName__c, DeveloperName FROM MetaRegisterForm__mdt LIMIT 1"

// Querier runs SOQL against the CRM.
type Querier interface {
	Authenticated(ctx context.Context) bool
	Query(ctx context.Context, soql string) ([]salesforce.Record, error)
}

// Branding is the first MetaRegisterForm__mdt record.
type Branding struct {
	LogoURL       string
	LogoName      string
	DeveloperName string
}

// Lookup reads the branding record. No record yields an empty Branding.
func Lookup(ctx context.Context, q Querier) (Branding, error) {
	records, err := q.Query(ctx, logoQuery)
	if err != nil {
		return Branding{}, fmt.Errorf("branding: query metadata: %w", err)
	}
	if len(records) == 0 {
		return Branding{}, nil
	}
	rec := records[0]
	return Branding{
		LogoURL:       rec.String("Logo__c"),
		LogoName:      rec.String("GroupName__c"),
		DeveloperName: rec.String("DeveloperName"),
	}, nil
}

// Handler serves GET /api/metadata/logo.
type Handler struct {
	crm       Querier
	sanitizer *redact.Sanitizer
	loginURL  string
	logger    *logging.Logger
}

func NewHandler(crm Querier, sanitizer *redact.Sanitizer, loginURL string, logger *logging.Logger) *Handler {
	if sanitizer == nil {
		sanitizer = redact.Default()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{crm: crm, sanitizer: sanitizer, loginURL: loginURL, logger: logger}
}

func (h *Handler) HandleLogo(w http.ResponseWriter, r *http.Request) {
	if !h.crm.Authenticated(r.Context()) {
		writeJSON(w, http.StatusUnauthorized, supplierapi.LogoResponse{
			Error:    "Not authenticated. Please log in first.",
			LoginURL: h.loginURL,
		})
		return
	}

	b, err := Lookup(r.Context(), h.crm)
	if err != nil {
		if errors.Is(err, salesforce.ErrNoSession) {
			writeJSON(w, http.StatusUnauthorized, supplierapi.LogoResponse{
				Error:    "Not authenticated. Please log in first.",
				LoginURL: h.loginURL,
			})
			return
		}
		h.logger.Error("failed to fetch branding metadata", "error", err)
		msg := "Failed to fetch metadata logo"
		if apiErr, ok := salesforce.AsAPIError(err); ok {
			msg = apiErr.Error()
		}
		writeJSON(w, http.StatusInternalServerError, supplierapi.LogoResponse{Error: h.sanitizer.Sanitize(msg)})
		return
	}
	writeJSON(w, http.StatusOK, supplierapi.LogoResponse{
		Success:       true,
		LogoURL:       b.LogoURL,
		LogoName:      b.LogoName,
		DeveloperName: b.DeveloperName,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
