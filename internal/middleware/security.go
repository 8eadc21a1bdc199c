package middleware

import (
	"fmt"
	"net/http"
)

// SecurityConfig security headers ayarları
type SecurityConfig struct {
	// Content Security Policy
	ContentSecurityPolicy string

	// HTTP Strict Transport Security (HSTS)
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool

	FrameOptions       string
	ContentTypeNosniff bool
	ReferrerPolicy     string

	// Kredi yanıtları asla cache'lenmemeli
	NoStore bool

	CustomHeaders map[string]string
}

// DefaultSecurityConfig JSON API için varsayılan güvenlik ayarları
func DefaultSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:            0,
		FrameOptions:          "DENY",
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		NoStore:               true,
		CustomHeaders:         make(map[string]string),
	}
}

// ProductionSecurityConfig production için HSTS açık ayarlar
func ProductionSecurityConfig() *SecurityConfig {
	config := DefaultSecurityConfig()
	config.HSTSMaxAge = 63072000 // 2 yıl
	config.HSTSIncludeSubdomains = true
	config.CustomHeaders["X-Permitted-Cross-Domain-Policies"] = "none"
	return config
}

// SecurityHeadersMiddleware güvenlik header'larını ekler
func SecurityHeadersMiddleware(config *SecurityConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultSecurityConfig()
	}

	hsts := ""
	if config.HSTSMaxAge > 0 {
		hsts = fmt.Sprintf("max-age=%d", config.HSTSMaxAge)
		if config.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if config.ContentSecurityPolicy != "" {
				h.Set("Content-Security-Policy", config.ContentSecurityPolicy)
			}
			if hsts != "" {
				h.Set("Strict-Transport-Security", hsts)
			}
			if config.FrameOptions != "" {
				h.Set("X-Frame-Options", config.FrameOptions)
			}
			if config.ContentTypeNosniff {
				h.Set("X-Content-Type-Options", "nosniff")
			}
			if config.ReferrerPolicy != "" {
				h.Set("Referrer-Policy", config.ReferrerPolicy)
			}
			if config.NoStore {
				h.Set("Cache-Control", "no-store")
			}
			for key, value := range config.CustomHeaders {
				h.Set(key, value)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeadersMiddlewareForEnv ortama göre security middleware döner
func SecurityHeadersMiddlewareForEnv(production bool) func(http.Handler) http.Handler {
	if production {
		return SecurityHeadersMiddleware(ProductionSecurityConfig())
	}
	return SecurityHeadersMiddleware(DefaultSecurityConfig())
}
