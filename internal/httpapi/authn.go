package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"orgctl/internal/auth"
	"orgctl/internal/tenant"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// withAuth verifies the bearer token and attaches the session claims. Absence
// or verification failure rejects the request before any domain component
// runs.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.resolver.Tokens().Verify(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
	})
}

// requireRole gates a handler on the caller's role. Returns the claims when
// the gate passes.
func (a *API) requireRole(w http.ResponseWriter, r *http.Request, roles ...auth.Role) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		w.Header().Set("WWW-Authenticate", "Bearer")
		writeError(w, r, http.StatusUnauthorized, "unauthenticated")
		return nil, false
	}
	for _, role := range roles {
		if claims.Role == role {
			return claims, true
		}
	}
	writeError(w, r, http.StatusForbidden, "forbidden")
	return nil, false
}

// tenantScope derives and cross-checks the caller's tenant schema. A claim
// whose organization id and schema disagree is a hard reject.
func (a *API) tenantScope(w http.ResponseWriter, r *http.Request, claims *auth.Claims) (tenant.SchemaName, bool) {
	schema, err := claims.TenantSchema()
	if err != nil {
		writeError(w, r, http.StatusForbidden, "invalid tenant context")
		return tenant.SchemaName{}, false
	}
	return schema, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
