package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/sawanori/nonturn-chatdesk/internal/crypto"
	"github.com/sawanori/nonturn-chatdesk/internal/metrics"
)

// Cookie and header names for the double-submit CSRF scheme.
const (
	CSRFCookie = "csrf-token"
	CSRFHeader = "X-CSRF-Token"
)

// CSRF enforces double-submit protection: the header token and the cookie
// token must match, and each must independently verify as a signed,
// unexpired token. Rejections happen before any handler side effect.
func CSRF(secret []byte, logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get(CSRFHeader)
			cookie, err := r.Cookie(CSRFCookie)
			if err != nil || headerToken == "" || cookie.Value == "" ||
				subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookie.Value)) != 1 ||
				crypto.VerifyToken(secret, headerToken) != nil ||
				crypto.VerifyToken(secret, cookie.Value) != nil {
				metrics.CSRFFailures.Inc()
				logger.Warn().
					Str("type", "security").
					Str("event", "csrf_rejected").
					Str("ip", RealIP(r)).
					Str("endpoint", r.URL.Path).
					Msg("csrf validation failed")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				w.Write([]byte(`{"error":"invalid csrf token"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
