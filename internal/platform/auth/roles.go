package auth

import (
	"net/http"
	"slices"
	"strings"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// RequireRole lets a request through when the role put into the context by
// RequireUser is one of roles.
func RequireRole(roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := RoleFromContext(r.Context())
			if !slices.Contains(roles, strings.ToLower(strings.TrimSpace(role))) {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin gates post creation and other moderator-only routes.
var RequireAdmin = RequireRole(RoleAdmin)
