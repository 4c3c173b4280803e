// ABOUTME: Tests for the bearer token middleware on /api routes
// ABOUTME: Covers header and query token sources, rejections, and subject propagation

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPAuthMiddleware(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	valid, err := verifier.Generate("phone-companion", time.Hour)
	require.NoError(t, err)
	expired, err := verifier.Generate("phone-companion", -time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + valid, "", http.StatusOK, ""},
		{"lowercase scheme", "bearer " + valid, "", http.StatusOK, ""},
		{"query token", "", valid, http.StatusOK, ""},
		{"header wins over query", "Bearer nope", valid, http.StatusUnauthorized, "invalid token"},
		{"missing token", "", "", http.StatusUnauthorized, "missing bearer token"},
		{"wrong scheme", "Basic abc", "", http.StatusUnauthorized, "invalid authorization header format"},
		{"empty token", "Bearer ", "", http.StatusUnauthorized, "empty token"},
		{"expired token", "Bearer " + expired, "", http.StatusUnauthorized, "invalid token"},
		{"garbage token", "Bearer nope", "", http.StatusUnauthorized, "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotSubject string
			handler := HTTPAuthMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotSubject = SubjectFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			target := "/api/watch/events"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "phone-companion", gotSubject)
				return
			}
			assert.Empty(t, gotSubject)
			assert.JSONEq(t, `{"error":"`+tt.wantBody+`"}`, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "spark-gateway")
		})
	}
}
