package middleware_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/switchboard"
	"github.com/bjaus/switchboard/middleware"
)

var secret = []byte("test-secret")

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWT(t *testing.T) {
	cfg := middleware.JWTConfig{Secret: secret, Issuer: "switchboard", Audience: "api"}
	valid := jwt.MapClaims{
		"sub": "user-1",
		"iss": "switchboard",
		"aud": "api",
		"exp": time.Now().Add(time.Hour).Unix(),
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{
			name:       "valid token",
			header:     "Bearer " + sign(t, jwt.SigningMethodHS256, secret, valid),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not bearer",
			header:     "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong secret",
			header:     "Bearer " + sign(t, jwt.SigningMethodHS256, []byte("other"), valid),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "expired",
			header: "Bearer " + sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{
				"sub": "user-1", "iss": "switchboard", "aud": "api",
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong issuer",
			header: "Bearer " + sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{
				"sub": "user-1", "iss": "elsewhere", "aud": "api",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "wrong audience",
			header: "Bearer " + sign(t, jwt.SigningMethodHS256, secret, jwt.MapClaims{
				"sub": "user-1", "iss": "switchboard", "aud": "web",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := switchboard.New(switchboard.WithMiddleware(middleware.JWT(cfg)))
			var subject string
			h.Get("/me", func(ctx context.Context, req *switchboard.Request) (*switchboard.ResponseBody, error) {
				subject = middleware.Subject(req)
				return switchboard.OK(req).Send(subject), nil
			}, switchboard.WithValue(middleware.AuthRequired, true))

			e := events.APIGatewayProxyRequest{HTTPMethod: "GET", Path: "/me", Resource: "/me"}
			if tt.header != "" {
				e.Headers = map[string]string{"Authorization": tt.header}
			}
			resp := serve(t, h, e)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "user-1", subject)
			} else {
				assert.Contains(t, resp.Body, `"errorCode":"Unauthorized"`)
			}
		})
	}
}

func TestJWT_PublicRoute(t *testing.T) {
	h := switchboard.New(switchboard.WithMiddleware(middleware.JWT(middleware.JWTConfig{Secret: secret})))
	h.Get("/health", ok)

	resp := serve(t, h, events.APIGatewayProxyRequest{HTTPMethod: "GET", Path: "/health", Resource: "/health"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJWT_RejectsNoneAlgorithm(t *testing.T) {
	h := switchboard.New(switchboard.WithMiddleware(middleware.JWT(middleware.JWTConfig{Secret: secret})))
	h.Get("/me", ok, switchboard.WithValue(middleware.AuthRequired, true))

	token := sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, jwt.MapClaims{"sub": "user-1"})
	resp := serve(t, h, events.APIGatewayProxyRequest{
		HTTPMethod: "GET",
		Path:       "/me",
		Resource:   "/me",
		Headers:    map[string]string{"authorization": "Bearer " + token},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
