package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tinytrack.org/internal/auth"
	"tinytrack.org/internal/tracker"
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
	"/v1/info",
	"/",
}

func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := auth.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), auth.Principal{
			UserID: claims.Subject,
			Role:   claims.Role,
		})
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actor resolves the authenticated account for the request. A token whose
// subject no longer exists, or belongs to a soft-deleted account, is
// rejected the same way as a bad signature.
func (a *API) actor(r *http.Request) (tracker.User, error) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return tracker.User{}, auth.ErrInvalidToken
	}
	u, err := a.users.Get(r.Context(), principal.UserID)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			return tracker.User{}, auth.ErrInvalidToken
		}
		return tracker.User{}, err
	}
	if u.Deleted {
		return tracker.User{}, auth.ErrInvalidToken
	}
	return u, nil
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
