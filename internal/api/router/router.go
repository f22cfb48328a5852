package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/supplier-onboarding/internal/branding"
	"github.com/wolfman30/supplier-onboarding/internal/drafts"
	httpmiddleware "github.com/wolfman30/supplier-onboarding/internal/http/middleware"
	"github.com/wolfman30/supplier-onboarding/internal/ocr"
	"github.com/wolfman30/supplier-onboarding/internal/salesforce"
	"github.com/wolfman30/supplier-onboarding/internal/supplier"
	"github.com/wolfman30/supplier-onboarding/pkg/logging"
	"github.com/wolfman30/supplier-onboarding/pkg/supplierapi"
)

// SessionChecker reports whether a CRM session is available.
type SessionChecker interface {
	Authenticated(ctx context.Context) bool
}

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	Session         SessionChecker
	AuthHandler     *salesforce.AuthHandler
	SupplierHandler *supplier.Handler
	BrandingHandler *branding.Handler
	OCRHandler      *ocr.Handler
	DraftsHandler   *drafts.Handler
	MetricsHandler  http.Handler

	CORSAllowedOrigins []string
	RateLimitMax       int
	RateLimitWindow    time.Duration
	Production         bool
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(httpmiddleware.SecureHeaders(cfg.Production))
	r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins, cfg.Logger))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":       "Supplier Onboarding API",
			"authenticated": authenticated(cfg.Session, req),
		})
	})

	if cfg.AuthHandler != nil {
		r.Get("/login", cfg.AuthHandler.HandleLogin)
		r.Get("/oauth/callback", cfg.AuthHandler.HandleCallback)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(httpmiddleware.RateLimit(cfg.RateLimitMax, cfg.RateLimitWindow))

		api.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"status":        "OK",
				"authenticated": authenticated(cfg.Session, req),
			})
		})
		if cfg.SupplierHandler != nil {
			api.Post("/supplier", cfg.SupplierHandler.HandleCreate)
		}
		if cfg.BrandingHandler != nil {
			api.Get("/metadata/logo", cfg.BrandingHandler.HandleLogo)
		}
		if cfg.OCRHandler != nil {
			api.Post("/ocr/analyze", cfg.OCRHandler.HandleAnalyze)
		}
		if cfg.DraftsHandler != nil {
			api.Route("/drafts", cfg.DraftsHandler.Routes)
		}
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, supplierapi.ErrorResponse{Error: "Not found"})
	})

	return r
}

func authenticated(s SessionChecker, r *http.Request) bool {
	return s != nil && s.Authenticated(r.Context())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
