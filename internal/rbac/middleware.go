package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/solarquote/solarquote/internal/platform/httpx"
	"github.com/solarquote/solarquote/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers. It expects
// the authentication middleware to have stored a shared.Principal.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny ensures the caller has at least one of the permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.guard(func(p shared.Principal) bool {
		for _, perm := range normalized {
			if m.Service.Allowed(p.Role, perm) {
				return true
			}
		}
		return len(normalized) == 0
	})
}

// RequireAll ensures the caller has all of the permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return m.guard(func(p shared.Principal) bool {
		for _, perm := range normalized {
			if !m.Service.Allowed(p.Role, perm) {
				return false
			}
		}
		return true
	})
}

// RequireRoles ensures the caller holds one of roles.
func (m Middleware) RequireRoles(roles ...shared.Role) func(http.Handler) http.Handler {
	return m.guard(func(p shared.Principal) bool {
		return p.Is(roles...)
	})
}

func (m Middleware) guard(allowed func(shared.Principal) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.NewError(httpx.CodeUnauthenticated, "authentication required"))
				return
			}
			if !allowed(principal) {
				if m.Logger != nil {
					m.Logger.Warn("rbac denied",
						slog.String("account_id", principal.AccountID),
						slog.String("role", string(principal.Role)),
						slog.String("path", r.URL.Path),
					)
				}
				httpx.RespondError(w, httpx.NewError(httpx.CodeForbidden, "insufficient role for this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func normalizePermissions(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, seen := unique[p]; seen {
			continue
		}
		unique[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}
