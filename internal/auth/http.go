// ABOUTME: HTTP middleware guarding the /api routes with bearer tokens
// ABOUTME: Also accepts ?token= so event streams opened without custom headers can authenticate

package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	errNoToken      = errors.New("missing bearer token")
	errBadScheme    = errors.New("invalid authorization header format")
	errEmptyToken   = errors.New("empty token")
	errRejectedAuth = errors.New("invalid token")
)

// requestToken finds the caller's token. The Authorization header wins; the
// token query parameter is only consulted when the header is absent.
func requestToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if q := r.URL.Query().Get("token"); q != "" {
			return q, nil
		}
		return "", errNoToken
	}

	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errBadScheme
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", errEmptyToken
	}
	return token, nil
}

// HTTPAuthMiddleware rejects requests without a valid token and stores the
// token subject in the request context for logging.
func HTTPAuthMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := requestToken(r)
			if err != nil {
				writeUnauthorized(w, err)
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				writeUnauthorized(w, errRejectedAuth)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="spark-gateway"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + err.Error() + `"}`))
}
