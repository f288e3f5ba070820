package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/investoscope/investoscope-backend/internal/api/response"
)

// CronKeyHeader carries the shared secret on job-trigger and admin requests.
const CronKeyHeader = "X-CRON-KEY"

// CronKey rejects requests whose shared-secret header does not match the
// configured value, before any side effect. A server with no secret
// configured refuses all protected calls rather than running open.
func CronKey(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				response.RespondError(w, http.StatusUnauthorized, "job trigger secret not configured")
				return
			}

			provided := r.Header.Get(CronKeyHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
