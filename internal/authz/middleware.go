package authz

import (
	"context"
	"errors"
	"net/http"

	"log/slog"

	"github.com/refdesk/refdesk/internal/platform/httpx"
	"github.com/refdesk/refdesk/internal/shared"
)

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal on the context.
func ContextWithPrincipal(ctx context.Context, pr Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, pr)
}

// PrincipalFromContext returns the principal stored by RequirePrincipal.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	pr, ok := ctx.Value(principalContextKey{}).(Principal)
	return pr, ok
}

// Middleware wires principal resolution and permission gates for HTTP
// handlers. Resolution failures are 401, permission failures are 403;
// the two are never collapsed.
type Middleware struct {
	Resolver *Resolver
	Policy   *Policy
	Logger   *slog.Logger
}

// RequirePrincipal resolves the session user once and stores the Principal
// in the request context for downstream gates and handlers.
func (m Middleware) RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		pr, err := m.Resolver.Resolve(r.Context(), sess)
		if err != nil {
			var authErr *AuthenticationError
			if errors.As(err, &authErr) {
				httpx.Unauthenticated(w, authErr.Code)
				return
			}
			if m.Logger != nil {
				m.Logger.Error("authz resolve principal", slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), pr)))
	})
}

// Authorize runs the resource-level policy check and writes the rejection
// when the principal may not proceed. Handlers call this before every
// mutation so no write ever precedes its check. Returns true when the
// caller may continue.
func (m Middleware) Authorize(w http.ResponseWriter, pr Principal, action Action, res Resource) bool {
	dec, err := m.Policy.Authorize(pr, action, res)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("authz check", slog.Any("error", err))
		}
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	if !dec.Allowed {
		m.logDenial(pr, action, dec.Reason)
		httpx.Denied(w, string(dec.Reason))
		return false
	}
	return true
}

func (m Middleware) logDenial(pr Principal, action Action, reason DenyReason) {
	if m.Logger == nil {
		return
	}
	m.Logger.Warn("authz denied",
		slog.Int64("principal", pr.ID),
		slog.String("role", string(pr.Role)),
		slog.String("action", string(action)),
		slog.String("reason", string(reason)))
}

// RequireAction gates a route on the permission table: the principal must
// hold at least one of the listed actions. This is the coarse route gate;
// resource-level scoping still runs in the handlers via Authorize.
func (m Middleware) RequireAction(actions ...Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(actions) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			pr, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Unauthenticated(w, CodeUnauthenticated)
				return
			}
			for _, action := range actions {
				if m.Policy.IsPermitted(pr.Role, action) {
					next.ServeHTTP(w, r)
					return
				}
			}
			m.logDenial(pr, actions[0], ReasonRoleForbidden)
			httpx.Denied(w, string(ReasonRoleForbidden))
		})
	}
}
