package httpapi

import (
	"net/http"
	"strings"
)

// RequireAdmin validates the Bearer JWT issued by adminLogin. There is only
// one role in this surface, so unlike the teacher's RequireAuth/RequireAdmin
// pair, authentication and authorization collapse into one check.
func RequireAdmin(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if raw == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			if _, err := parseAdminToken(secret, raw); err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
