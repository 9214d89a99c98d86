package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/jsvoboda/authd/internal/autherr"
	"github.com/jsvoboda/authd/internal/server/auth"
)

type identityContextKey struct{}

// IdentityFromContext returns the verified identity stored by the
// authentication middleware.
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*auth.Identity)
	return identity, ok
}

// requireAuth verifies the access token before invoking next. The
// `token` cookie takes precedence over the Authorization header.
func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := accessTokenFromRequest(r)
		if token == "" {
			h.writeError(w, r, autherr.ErrUnauthenticated)
			return
		}

		identity, err := h.tokens.Verify(r.Context(), token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
		next(w, r.WithContext(ctx))
	}
}

func accessTokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(accessCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	const bearer = "Bearer "
	if v := r.Header.Get("Authorization"); strings.HasPrefix(v, bearer) {
		return v[len(bearer):]
	}
	return ""
}
