package http

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/jewelbox/backoffice/internal/auth/domain"
	"github.com/jewelbox/backoffice/internal/auth/service"
	"github.com/jewelbox/backoffice/pkg/httpx"
	"github.com/jewelbox/backoffice/pkg/slogx"
)

type ctxKey int

const (
	ctxKeyPrincipal ctxKey = iota
	ctxKeyClaims
)

// PrincipalFromContext returns the principal attached by Guard.
func PrincipalFromContext(ctx context.Context) (domain.PrincipalView, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(domain.PrincipalView)
	return p, ok
}

func claimsFromContext(ctx context.Context) (domain.SessionClaims, bool) {
	c, ok := ctx.Value(ctxKeyClaims).(domain.SessionClaims)
	return c, ok
}

// Guard is the Access Guard. It only admits requests carrying a verified,
// non-revoked session token for an active principal, and attaches that
// principal to the request context.
func Guard(sessions *service.SessionService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw, ok := httpx.BearerToken(r)
			if !ok {
				httpx.WriteError(w, httpx.ErrUnauthorized.WithDescription("missing bearer token"))
				return
			}

			principal, claims, err := sessions.Authenticate(ctx, domain.SessionToken(raw))
			if err != nil {
				if errors.Is(err, service.ErrUnauthorized) {
					slogx.FromContext(ctx).Warn("access denied", "reason", err.Error())
				}
				writeServiceError(w, r, err)
				return
			}

			ctx = context.WithValue(ctx, ctxKeyPrincipal, principal)
			ctx = context.WithValue(ctx, ctxKeyClaims, claims)
			ctx = httpx.WithSubject(ctx, principal.ID)
			ctx = slogx.With(ctx, "principal_id", principal.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole admits principals holding any of roles. It must run after Guard.
func RequireRole(roles ...domain.Role) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.WriteError(w, httpx.ErrUnauthorized)
				return
			}
			if !slices.Contains(roles, p.Role) {
				slogx.FromContext(r.Context()).Warn("role not permitted", "role", p.Role.String())
				httpx.WriteError(w, httpx.ErrForbidden.WithDescription("role %q may not perform this action", p.Role))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
