package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"

	"github.com/bjaus/switchboard"
	"github.com/bjaus/switchboard/middleware"
)

type createUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (c createUser) Validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   string
	}{
		{
			name:       "valid body",
			body:       `{"name":"Ada","email":"ada@example.com"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty body",
			wantStatus: http.StatusBadRequest,
			wantBody:   "Request body is empty",
		},
		{
			name:       "invalid json",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Request body contains invalid JSON",
		},
		{
			name:       "fails validation",
			body:       `{"email":"ada@example.com"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := switchboard.New(switchboard.WithMiddleware(middleware.Validate()))
			h.Post("/users", func(ctx context.Context, req *switchboard.Request) (*switchboard.ResponseBody, error) {
				body, ok := middleware.Body[createUser](req)
				if !ok {
					return nil, errors.New("body missing")
				}
				return switchboard.Created(req).Send(body.Name), nil
			}, middleware.WithBody[createUser]())

			resp := serve(t, h, events.APIGatewayProxyRequest{
				HTTPMethod: "POST",
				Path:       "/users",
				Resource:   "/users",
				Body:       tt.body,
			})

			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, http.StatusCreated, resp.StatusCode)
				assert.Equal(t, "Ada", resp.Body)
				return
			}
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, resp.Body, tt.wantBody)
		})
	}
}

func TestValidate_UndeclaredRoute(t *testing.T) {
	h := switchboard.New(switchboard.WithMiddleware(middleware.Validate()))
	h.Get("/", func(ctx context.Context, req *switchboard.Request) (*switchboard.ResponseBody, error) {
		_, ok := middleware.Body[createUser](req)
		assert.False(t, ok)
		return switchboard.NoContent(req).Send(nil), nil
	})

	resp := serve(t, h, events.APIGatewayProxyRequest{HTTPMethod: "GET", Path: "/", Resource: "/"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
