package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/sarkariwatch/scraper-http-service/common/utils"
)

// ApiKey rejects requests whose X-API-KEY header does not match the
// configured backend key. An empty configured key disables the check, which
// is only sensible for local development.
func ApiKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" {
				provided := r.Header.Get("X-API-KEY")
				if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
					utils.WriteError(w, http.StatusUnauthorized, "Invalid API key")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
