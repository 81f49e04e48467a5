package httpapi

import (
	"net/http"
	"strings"

	"gatekit.org/internal/auth"
	"gatekit.org/internal/obs"
	"gatekit.org/internal/rbac"
)

// requireAuth authenticates the bearer token, checks the permission against
// the caller's role and stores the resulting identity in the request context.
func (a *API) requireAuth(perm rbac.Permission, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := extractBearerToken(r)
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "authorization header is required")
			return
		}

		identity, err := a.engine.Authorize(r.Context(), raw, perm)
		if err != nil {
			obs.ObserveDenial(resultLabel(err))
			a.respondAuthError(w, r, err)
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), identity)
		ctx = auth.ContextWithToken(ctx, raw)
		next(w, r.WithContext(ctx))
	}
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	raw := strings.TrimSpace(header[len(prefix):])
	if raw == "" {
		return "", false
	}
	return raw, true
}
