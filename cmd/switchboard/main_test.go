package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bjaus/switchboard"
	"github.com/bjaus/switchboard/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(context.Background(), append([]string{"switchboard"}, args...))
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "switchboard version dev\n", out)
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid_config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "switchboard.toml")
		require.NoError(t, os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n\n[batch]\nconcurrency = 4\n"), 0o644))

		out, err := run(t, "validate", path)
		require.NoError(t, err)
		assert.Contains(t, out, "is valid")
		assert.Contains(t, out, "Batch concurrency: 4")
	})

	t.Run("unknown_key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "switchboard.toml")
		require.NoError(t, os.WriteFile(path, []byte("[log]\nverbosity = 3\n"), 0o644))

		_, err := run(t, "validate", "--config", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})

	t.Run("missing_path", func(t *testing.T) {
		t.Setenv(config.EnvFile, "")
		_, err := run(t, "validate")
		require.Error(t, err)
	})
}

func invokeHTTP(t *testing.T, ep *switchboard.EntryPoint, e events.APIGatewayProxyRequest) *switchboard.ResponseBody {
	t.Helper()
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	out, err := ep.Invoke(context.Background(), raw)
	require.NoError(t, err)
	resp, ok := out.(*switchboard.ResponseBody)
	require.True(t, ok)
	return resp
}

func TestUsersService(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Secret = "s3cret"
	ep := newEntryPoint(cfg, zap.NewNop(), nil)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	t.Run("create requires token", func(t *testing.T) {
		resp := invokeHTTP(t, ep, events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodPost,
			Resource:   "/{proxy+}",
			Path:       "/users",
			Body:       `{"name":"Ada","email":"ada@example.com"}`,
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("create validates", func(t *testing.T) {
		resp := invokeHTTP(t, ep, events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodPost,
			Resource:   "/{proxy+}",
			Path:       "/users",
			Headers:    map[string]string{"Authorization": "Bearer " + token},
			Body:       `{"name":"","email":"nope"}`,
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, resp.Body, `"errorCode":"ValidationError"`)
		assert.Contains(t, resp.Body, `"field":"email"`)
	})

	t.Run("create then get", func(t *testing.T) {
		resp := invokeHTTP(t, ep, events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodPost,
			Resource:   "/{proxy+}",
			Path:       "/users",
			Headers:    map[string]string{"Authorization": "Bearer " + token},
			Body:       `{"name":"Ada","email":"ada@example.com"}`,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var created user
		require.NoError(t, json.Unmarshal([]byte(resp.Body), &created))
		require.NotEmpty(t, created.ID)

		resp = invokeHTTP(t, ep, events.APIGatewayProxyRequest{
			HTTPMethod: http.MethodGet,
			Resource:   "/{proxy+}",
			Path:       "/users/" + created.ID,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"id":"`+created.ID+`","name":"Ada","email":"ada@example.com"}`, resp.Body)
	})

	t.Run("import from queue", func(t *testing.T) {
		raw := []byte(`{"Records":[
			{"eventSource":"aws:sqs","eventSourceARN":"arn:aws:sqs:us-east-1:1:users","messageId":"m1","body":"{\"name\":\"Grace\",\"email\":\"grace@example.com\"}"},
			{"eventSource":"aws:sqs","eventSourceARN":"arn:aws:sqs:us-east-1:1:users","messageId":"m2","body":"not json"}
		]}`)
		out, err := ep.Invoke(context.Background(), raw)
		require.NoError(t, err)

		results, ok := out.([]switchboard.Settled)
		require.True(t, ok)
		require.Len(t, results, 2)
		assert.Equal(t, switchboard.Fulfilled, results[0].Status)
		assert.Equal(t, switchboard.Rejected, results[1].Status)
	})

	t.Run("authorizer", func(t *testing.T) {
		raw := []byte(`{"type":"REQUEST","methodArn":"arn:aws:execute-api:us-east-1:1:api/dev/GET/users","headers":{"Authorization":"Bearer ` + token + `"}}`)
		out, err := ep.Invoke(context.Background(), raw)
		require.NoError(t, err)

		policy, ok := out.(events.APIGatewayCustomAuthorizerResponse)
		require.True(t, ok)
		assert.Equal(t, "admin", policy.PrincipalID)
		assert.Equal(t, "Allow", policy.PolicyDocument.Statement[0].Effect)
	})
}
