package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/supplier-onboarding/internal/branding"
	"github.com/wolfman30/supplier-onboarding/internal/drafts"
	"github.com/wolfman30/supplier-onboarding/internal/filepolicy"
	"github.com/wolfman30/supplier-onboarding/internal/observability/metrics"
	"github.com/wolfman30/supplier-onboarding/internal/ocr"
	"github.com/wolfman30/supplier-onboarding/internal/salesforce"
	"github.com/wolfman30/supplier-onboarding/internal/supplier"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

type stubSession struct{ ok bool }

func (s stubSession) Authenticated(ctx context.Context) bool { return s.ok }

type stubCRM struct{ stubSession }

func (s stubCRM) Create(ctx context.Context, object string, fields map[string]any, opts ...salesforce.CallOption) (string, error) {
	return "", salesforce.ErrNoSession
}

func (s stubCRM) Update(ctx context.Context, object, id string, fields map[string]any, opts ...salesforce.CallOption) error {
	return salesforce.ErrNoSession
}

func (s stubCRM) Query(ctx context.Context, soql string) ([]salesforce.Record, error) {
	return nil, nil
}

type memoryDrafts struct{ items map[string]*supplierapi.Draft }

func (m *memoryDrafts) Get(ctx context.Context, id string) (*supplierapi.Draft, error) {
	d, ok := m.items[id]
	if !ok {
		return nil, drafts.ErrNotFound
	}
	return d, nil
}

func (m *memoryDrafts) Put(ctx context.Context, id string, d *supplierapi.Draft) error {
	m.items[id] = d
	return nil
}

func (m *memoryDrafts) Delete(ctx context.Context, id string) error {
	delete(m.items, id)
	return nil
}

func newTestRouter(t *testing.T, authed bool, rateMax int) http.Handler {
	t.Helper()
	logger := logging.Discard()
	crm := stubCRM{stubSession{ok: authed}}
	reg := prometheus.NewRegistry()
	m := metrics.NewSubmissionMetrics(reg)

	orch := supplier.NewOrchestrator(supplier.Config{CRM: crm, Metrics: m, Logger: logger})
	store := salesforce.NewMemorySessionStore()
	oauth := salesforce.NewOAuth(salesforce.OAuthConfig{ClientID: "id", ClientSecret: "secret", LoginURL: "https://login.salesforce.com"}, nil)

	return New(&Config{
		Logger:             logger,
		Session:            crm,
		AuthHandler:        salesforce.NewAuthHandler(oauth, store, logger),
		SupplierHandler:    supplier.NewHandler(orch, supplier.HandlerConfig{LoginURL: "https://localhost:3000/login"}, logger),
		BrandingHandler:    branding.NewHandler(crm, nil, "https://localhost:3000/login", logger),
		OCRHandler:         ocr.NewHandler(nil, filepolicy.Default(0), logger),
		DraftsHandler:      drafts.NewHandler(&memoryDrafts{items: map[string]*supplierapi.Draft{}}, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		RateLimitMax:       rateMax,
		RateLimitWindow:    time.Minute,
	})
}

func TestRouterHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, true, 60)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "OK" || resp["authenticated"] != true {
		t.Errorf("unexpected health response %v", resp)
	}
}

func TestRouterRootReportsSession(t *testing.T) {
	router := newTestRouter(t, false, 60)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["authenticated"] != false {
		t.Errorf("expected unauthenticated, got %v", resp)
	}
}

func TestRouterRoutesAreMounted(t *testing.T) {
	router := newTestRouter(t, false, 60)

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodPost, "/api/supplier", `{"raisonSociale":"ACME"}`, http.StatusUnauthorized},
		{http.MethodGet, "/api/metadata/logo", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/ocr/analyze", "", http.StatusBadRequest},
		{http.MethodGet, "/api/drafts/3f2b8f2e-6f0e-4d8a-9a51-0c7d2b1e9a10", "", http.StatusNotFound},
		{http.MethodGet, "/login", "", http.StatusFound},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestRouterPreflightAndHeaders(t *testing.T) {
	router := newTestRouter(t, true, 60)

	req := httptest.NewRequest(http.MethodOptions, "/api/supplier", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("unexpected allow origin %q", got)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("expected security headers")
	}
}

func TestRouterRateLimitsAPI(t *testing.T) {
	router := newTestRouter(t, true, 2)

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = "192.0.2.10:1234"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after the limit, got %d", last)
	}

	// outside /api is not limited
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:1234"
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Supplier Onboarding API") {
		t.Fatalf("root should not be rate limited, got %d", rr.Code)
	}
}
