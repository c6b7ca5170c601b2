package rbac

import (
	"net/http"

	"github.com/staffhub-hr/staffhub/internal/observability"
	"github.com/staffhub-hr/staffhub/internal/platform/httpx"
	"github.com/staffhub-hr/staffhub/internal/shared"
)

// Enforcer gates routes on permission membership. The check is an
// exact string match against the principal's permission set; there is
// no wildcard or hierarchy between permission names.
type Enforcer struct {
	metrics *observability.Metrics
}

func NewEnforcer(metrics *observability.Metrics) *Enforcer {
	return &Enforcer{metrics: metrics}
}

// Require rejects the request with 403 unless the context carries a
// principal holding the named permission. Anonymous requests get the
// same 403 as authenticated ones missing the grant.
func (e *Enforcer) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil || !principal.HasPermission(permission) {
				e.metrics.RecordDenied()
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny passes when the principal holds at least one of the named
// permissions.
func (e *Enforcer) RequireAny(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal != nil {
				for _, p := range permissions {
					if principal.HasPermission(p) {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			e.metrics.RecordDenied()
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient permissions")
		})
	}
}
