package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedAdminToken(t *testing.T, secret string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestAdminJWT(t *testing.T) {
	tests := []struct {
		name       string
		secret     string
		authHeader string
		wantStatus int
	}{
		{
			name:       "empty secret fails closed",
			secret:     "",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			secret:     "secret",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not a bearer token",
			secret:     "secret",
			authHeader: "Basic abc123",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong signing secret",
			secret:     "secret",
			authHeader: "Bearer " + signedAdminToken(t, "other-secret", 5*time.Minute),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			secret:     "secret",
			authHeader: "Bearer " + signedAdminToken(t, "secret", -time.Minute),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "valid token",
			secret:     "secret",
			authHeader: "Bearer " + signedAdminToken(t, "secret", 5*time.Minute),
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AdminJWT(tt.secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/admin/conversations/x/transcript", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAdminJWTClaimsReachHandler(t *testing.T) {
	var got jwt.RegisteredClaims
	var ok bool
	handler := AdminJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = AdminClaimsFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signedAdminToken(t, "secret", time.Minute))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ok)
	assert.Equal(t, "ops", got.Subject)
}
