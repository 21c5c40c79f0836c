package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"circle/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_AuthRequired(t *testing.T) {
	ts := newTestServer(t, false)
	alice := ts.register(t, "alice")

	generateToken := func(sub interface{}, issuer, audience string, exp time.Duration) string {
		claims := jwt.MapClaims{
			"sub": sub,
			"iss": issuer,
			"aud": audience,
			"exp": time.Now().Add(exp).Unix(),
			"jti": "test-jti",
		}
		str, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
		require.NoError(t, err)
		return str
	}
	sub := strconv.FormatUint(uint64(alice.ID), 10)

	tests := []struct {
		name           string
		path           string
		authHeader     string
		expectedStatus int
	}{
		{
			name:           "Valid Token",
			path:           "/api/users/profile/me",
			authHeader:     "Bearer " + alice.Token,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Hand-signed Token",
			path:           "/api/users/profile/me",
			authHeader:     "Bearer " + generateToken(sub, service.TokenIssuer, service.TokenAudience, time.Hour),
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Expired Token",
			path:           "/api/users/profile/me",
			authHeader:     "Bearer " + generateToken(sub, service.TokenIssuer, service.TokenAudience, -time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Issuer",
			path:           "/api/users/profile/me",
			authHeader:     "Bearer " + generateToken(sub, "wrong-issuer", service.TokenAudience, time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Invalid Audience",
			path:           "/api/users/profile/me",
			authHeader:     "Bearer " + generateToken(sub, service.TokenIssuer, "wrong-audience", time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Numeric Subject",
			path:           "/api/users/profile/me",
			authHeader:     "Bearer " + generateToken(123, service.TokenIssuer, service.TokenAudience, time.Hour),
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Missing Header",
			path:           "/api/users/profile/me",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Malformed Bearer Format",
			path:           "/api/users/profile/me",
			authHeader:     "BearerTokenOnly",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Query Token Rejected Outside WebSocket",
			path:           "/api/users/profile/me?token=" + alice.Token,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			// Auth passes; the plain GET is then refused by the upgrader.
			name:           "Query Token Accepted On WebSocket",
			path:           "/api/ws?token=" + alice.Token,
			expectedStatus: http.StatusUpgradeRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.authHeader)
			}
			status, raw := ts.send(t, req, "")
			assert.Equal(t, tt.expectedStatus, status, string(raw))
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp, err := ts.app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestReadinessCheck(t *testing.T) {
	ts := newTestServer(t, true)

	status, raw := ts.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	body := decode[map[string]interface{}](t, raw)
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "healthy", checks["redis"])

	ts.mr.Close()
	status, raw = ts.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	checks = decode[map[string]interface{}](t, raw)["checks"].(map[string]interface{})
	assert.Equal(t, "unhealthy", checks["redis"])
}

func TestReadinessCheckWithoutRedis(t *testing.T) {
	ts := newTestServer(t, false)

	status, raw := ts.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, status, string(raw))
	checks := decode[map[string]interface{}](t, raw)["checks"].(map[string]interface{})
	assert.Equal(t, "unavailable", checks["redis"])
}
