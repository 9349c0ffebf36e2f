// Package security guards the HTTP listener.
package security

import (
	"crypto/subtle"
	"net/http"

	applog "xarajat/internal/log"
)

// HeaderTelegramSecret carries the secret_token registered with setWebhook.
const HeaderTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"

// HeadersConfig holds the headers set on every response. The listener only
// serves JSON and plain text, so the defaults forbid framing and caching.
type HeadersConfig struct {
	XContentTypeOptions string
	XFrameOptions       string
	CacheControl        string
	ReferrerPolicy      string
}

func DefaultHeadersConfig() HeadersConfig {
	return HeadersConfig{
		XContentTypeOptions: "nosniff",
		XFrameOptions:       "DENY",
		CacheControl:        "no-store",
		ReferrerPolicy:      "no-referrer",
	}
}

func Headers(config HeadersConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			setIf(h, "X-Content-Type-Options", config.XContentTypeOptions)
			setIf(h, "X-Frame-Options", config.XFrameOptions)
			setIf(h, "Cache-Control", config.CacheControl)
			setIf(h, "Referrer-Policy", config.ReferrerPolicy)
			next.ServeHTTP(w, r)
		})
	}
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

// RequireSecretToken rejects webhook calls whose secret header does not match.
// An empty secret rejects every call.
func RequireSecretToken(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		want := []byte(secret)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(HeaderTelegramSecret))
			if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
				applog.FromContext(r.Context()).WarnContext(r.Context(), "Rejected webhook call with bad secret token",
					applog.FieldPath, r.URL.Path)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
