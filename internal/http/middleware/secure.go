package middleware

import (
	"net/http"

	"github.com/unrolled/secure"
)

// SecureHeaders sets the usual hardening headers. HSTS is only sent in
// production so local self-signed setups keep working.
func SecureHeaders(production bool) func(http.Handler) http.Handler {
	opts := secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; frame-ancestors 'none'",
		IsDevelopment:         !production,
	}
	if production {
		opts.STSSeconds = 15552000
		opts.STSIncludeSubdomains = true
	}
	return secure.New(opts).Handler
}
