package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	appconfig "github.com/wolfman30/supplier-onboarding/internal/config"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
)

func TestSetupMetricsExposesSubmissionMetrics(t *testing.T) {
	handler, m := setupMetrics()
	if handler == nil || m == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	m.ObserveSubmission("success", 0.5)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "supplier_onboarding_submission_total") {
		t.Fatalf("expected submission counter to be exported")
	}
}

func testConfig(redisAddr string) *appconfig.Config {
	return &appconfig.Config{
		Env:             "development",
		PublicBaseURL:   "https://localhost:3000",
		AllowedOrigins:  []string{"http://localhost:5173"},
		RateLimitWindow: time.Minute,
		RateLimitMax:    100,
		MaxUploadBytes:  5 << 20,
		MaxFiles:        20,
		JSONBodyLimit:   200 << 10,
		OCRProvider:     "gemini",
		RedisAddr:       redisAddr,
		DraftTTL:        time.Hour,
	}
}

func TestBuildServerWithoutBackends(t *testing.T) {
	handler, cleanup, err := buildServer(context.Background(), testConfig(""), logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "OK" || body["authenticated"] != false {
		t.Fatalf("unexpected health body %v", body)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/supplier", strings.NewReader(`{}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "https://localhost:3000/login") {
		t.Fatalf("expected login url in body, got %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/drafts/6f1c1d2e-8b43-4d7e-9a59-3f0f0c2b9d11", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected drafts to be unrouted without redis, got %d", rr.Code)
	}
}

func TestBuildServerWithRedisEnablesDrafts(t *testing.T) {
	mr := miniredis.RunT(t)
	handler, cleanup, err := buildServer(context.Background(), testConfig(mr.Addr()), logging.Discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/drafts/6f1c1d2e-8b43-4d7e-9a59-3f0f0c2b9d11", nil))
	if rr.Code != http.StatusNotFound || !strings.Contains(rr.Body.String(), "Brouillon introuvable") {
		t.Fatalf("expected draft-not-found, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestBuildServerRejectsUnknownOCRProvider(t *testing.T) {
	cfg := testConfig("")
	cfg.OCRProvider = "tesseract"
	if _, _, err := buildServer(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatalf("expected error")
	}
}
