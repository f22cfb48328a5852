package branding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/supplier-onboarding/internal/salesforce"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

type fakeQuerier struct {
	authenticated bool
	records       []salesforce.Record
	err           error
	soql          string
}

func (f *fakeQuerier) Authenticated(ctx context.Context) bool { return f.authenticated }

func (f *fakeQuerier) Query(ctx context.Context, soql string) ([]salesforce.Record, error) {
	f.soql = soql
	return f.records, f.err
}

func serve(t *testing.T, q Querier) (*httptest.ResponseRecorder, supplierapi.LogoResponse) {
	t.Helper()
	h := NewHandler(q, nil, "https://localhost:3000/login", logging.Discard())
	rec := httptest.NewRecorder()
	h.HandleLogo(rec, httptest.NewRequest(http.MethodGet, "/api/metadata/logo", nil))
	var body supplierapi.LogoResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHandleLogo(t *testing.T) {
	q := &fakeQuerier{authenticated: true, records: []salesforce.Record{{
		"Logo__c":       "https://cdn.example.com/logo.png",
		"GroupName__c":  "Groupe Atlas",
		"DeveloperName": "Atlas",
	}}}
	rec, body := serve(t, q)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, logoQuery, q.soql)
	assert.True(t, body.Success)
	assert.Equal(t, "https://cdn.example.com/logo.png", body.LogoURL)
	assert.Equal(t, "Groupe Atlas", body.LogoName)
	assert.Equal(t, "Atlas", body.DeveloperName)
}

func TestHandleLogoNoRecord(t *testing.T) {
	rec, body := serve(t, &fakeQuerier{authenticated: true})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, body.Success)
	assert.Empty(t, body.LogoURL)
}

func TestHandleLogoRequiresSession(t *testing.T) {
	rec, body := serve(t, &fakeQuerier{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, body.Success)
	assert.Equal(t, "https://localhost:3000/login", body.LoginURL)

	rec, _ = serve(t, &fakeQuerier{authenticated: true, err: salesforce.ErrNoSession})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleLogoQueryFailure(t *testing.T) {
	apiErr := &salesforce.APIError{StatusCode: http.StatusBadRequest, Items: []salesforce.ErrorItem{{
		ErrorCode: "ENTITY_IS_DELETED",
		Message:   "entity is deleted: 001000000000001AAA",
	}}}
	rec, body := serve(t, &fakeQuerier{authenticated: true, err: apiErr})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, body.Success)
	assert.NotContains(t, body.Error, "001000000000001AAA")
	assert.Contains(t, body.Error, "entity is deleted")
}
