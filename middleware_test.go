package switchboard

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(path string) *Request {
	return NewRequest(events.APIGatewayProxyRequest{HTTPMethod: http.MethodGet, Path: path, Resource: path})
}

func serve(t *testing.T, h *Handler, req *Request) *ResponseBody {
	t.Helper()
	out, err := h.Handle(context.Background(), req)
	require.NoError(t, err)
	resp, ok := out.(*ResponseBody)
	require.True(t, ok)
	return resp
}

func record(calls *[]string, name string) Middleware {
	return func(ctx context.Context, req *Request, route *Route) (Outcome, error) {
		*calls = append(*calls, name)
		return Continue(), nil
	}
}

func TestChain_RunsInOrder(t *testing.T) {
	var calls []string
	h := New(WithMiddleware(record(&calls, "first"), record(&calls, "second")))
	h.Use(record(&calls, "third"))
	h.Get("/", func(ctx context.Context, req *Request) (*ResponseBody, error) {
		calls = append(calls, "action")
		return OK(req).Send(nil), nil
	})

	resp := serve(t, h, get("/"))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"first", "second", "third", "action"}, calls)
}

func TestChain_ErrorShortCircuits(t *testing.T) {
	var calls []string
	failing := func(ctx context.Context, req *Request, route *Route) (Outcome, error) {
		calls = append(calls, "auth")
		return Outcome{}, NewUnauthorized("no token")
	}
	h := New(WithMiddleware(record(&calls, "first"), failing, record(&calls, "never")))
	h.Get("/", func(ctx context.Context, req *Request) (*ResponseBody, error) {
		calls = append(calls, "action")
		return OK(req).Send(nil), nil
	})

	resp := serve(t, h, get("/"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Body, `"errorCode":"Unauthorized"`)
	assert.Equal(t, []string{"first", "auth"}, calls)
}

func TestChain_PrematureResponse(t *testing.T) {
	actionCalled := false
	cached := func(ctx context.Context, req *Request, route *Route) (Outcome, error) {
		return Respond(OK(req).Send("cached")), nil
	}
	h := New(WithMiddleware(cached))
	h.Get("/", func(ctx context.Context, req *Request) (*ResponseBody, error) {
		actionCalled = true
		return OK(req).Send("fresh"), nil
	})

	resp := serve(t, h, get("/"))
	assert.Equal(t, "cached", resp.Body)
	assert.False(t, actionCalled)
}

func TestChain_RespondNilContinues(t *testing.T) {
	h := New(WithMiddleware(func(ctx context.Context, req *Request, route *Route) (Outcome, error) {
		return Respond(nil), nil
	}))
	h.Get("/", func(ctx context.Context, req *Request) (*ResponseBody, error) {
		return OK(req).Send("fresh"), nil
	})

	assert.Equal(t, "fresh", serve(t, h, get("/")).Body)
}

func deferring(f FollowUp) Middleware {
	return func(ctx context.Context, req *Request, route *Route) (Outcome, error) {
		return Defer(f), nil
	}
}

func TestChain_SuccessFollowUpsLastWriterWins(t *testing.T) {
	var seen []string
	h := New(WithMiddleware(
		deferring(FollowUp{OnSuccess: func(ctx context.Context, req *Request, resp *ResponseBody) (*ResponseBody, error) {
			seen = append(seen, "a:"+resp.Body)
			return OK(req).Send("from a"), nil
		}}),
		deferring(FollowUp{OnSuccess: func(ctx context.Context, req *Request, resp *ResponseBody) (*ResponseBody, error) {
			seen = append(seen, "b:"+resp.Body)
			return OK(req).Send("from b"), nil
		}}),
		deferring(FollowUp{OnSuccess: func(ctx context.Context, req *Request, resp *ResponseBody) (*ResponseBody, error) {
			seen = append(seen, "observer:"+resp.Body)
			return nil, nil
		}}),
	))
	h.Get("/", func(ctx context.Context, req *Request) (*ResponseBody, error) {
		return OK(req).Send("action"), nil
	})

	resp := serve(t, h, get("/"))
	assert.Equal(t, "from b", resp.Body)
	assert.Equal(t, []string{"a:action", "b:action", "observer:action"}, seen, "every follow-up sees the action result")
}

func TestChain_SuccessFollowUpsAllNil(t *testing.T) {
	h := New(WithMiddleware(deferring(FollowUp{OnSuccess: func(context.Context, *Request, *ResponseBody) (*ResponseBody, error) {
		return nil, nil
	}})))
	h.Get("/", func(ctx context.Context, req *Request) (*ResponseBody, error) {
		return Accepted(req).Send("queued"), nil
	})

	resp := serve(t, h, get("/"))
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "queued", resp.Body)
}

func TestChain_SuccessFollowUpError(t *testing.T) {
	var failures []error
	h := New(WithMiddleware(deferring(FollowUp{
		OnSuccess: func(context.Context, *Request, *ResponseBody) (*ResponseBody, error) {
			return nil, NewConflict("stale")
		},
		OnError: func(ctx context.Context, req *Request, err error) *ResponseBody {
			failures = append(failures, err)
			return nil
		},
	})))
	h.Get("/", func(ctx context.Context, req *Request) (*ResponseBody, error) {
		return OK(req).Send(nil), nil
	})

	resp := serve(t, h, get("/"))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Len(t, failures, 1)
}

func TestChain_FailureFollowUps(t *testing.T) {
	actionErr := NewNotFound("missing")

	t.Run("every follow-up sees the error", func(t *testing.T) {
		var seen []error
		observe := FollowUp{OnError: func(ctx context.Context, req *Request, err error) *ResponseBody {
			seen = append(seen, err)
			return nil
		}}
		h := New(WithMiddleware(deferring(observe), deferring(observe)))
		h.Get("/", func(context.Context, *Request) (*ResponseBody, error) { return nil, actionErr })

		resp := serve(t, h, get("/"))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, []error{actionErr, actionErr}, seen)
	})

	t.Run("replacement response wins over conversion", func(t *testing.T) {
		h := New(WithMiddleware(deferring(FollowUp{OnError: func(ctx context.Context, req *Request, err error) *ResponseBody {
			return OK(req).Send("recovered")
		}})))
		h.Get("/", func(context.Context, *Request) (*ResponseBody, error) { return nil, actionErr })

		assert.Equal(t, "recovered", serve(t, h, get("/")).Body)
	})

	t.Run("panicking follow-up is swallowed", func(t *testing.T) {
		called := false
		h := New(WithMiddleware(
			deferring(FollowUp{OnError: func(context.Context, *Request, error) *ResponseBody { panic("boom") }}),
			deferring(FollowUp{OnError: func(context.Context, *Request, error) *ResponseBody {
				called = true
				return nil
			}}),
		))
		h.Get("/", func(context.Context, *Request) (*ResponseBody, error) { return nil, actionErr })

		assert.Equal(t, http.StatusNotFound, serve(t, h, get("/")).StatusCode)
		assert.True(t, called)
	})

	t.Run("error handler wins and follow-ups still run", func(t *testing.T) {
		ran := false
		h := New(WithMiddleware(deferring(FollowUp{OnError: func(ctx context.Context, req *Request, err error) *ResponseBody {
			ran = true
			return OK(req).Send("follow-up")
		}})))
		h.Get("/", func(context.Context, *Request) (*ResponseBody, error) { return nil, actionErr },
			WithErrorHandler(func(ctx context.Context, req *Request, err error) *ResponseBody {
				return BadRequest(req).Send("custom")
			}))

		resp := serve(t, h, get("/"))
		assert.True(t, ran)
		assert.Equal(t, "custom", resp.Body)
	})

	t.Run("middleware error runs earlier follow-ups", func(t *testing.T) {
		ran := false
		h := New(WithMiddleware(
			deferring(FollowUp{OnError: func(context.Context, *Request, error) *ResponseBody {
				ran = true
				return nil
			}}),
			func(context.Context, *Request, *Route) (Outcome, error) { return Outcome{}, NewForbidden("") },
		))
		h.Get("/", func(context.Context, *Request) (*ResponseBody, error) { return nil, nil })

		assert.Equal(t, http.StatusForbidden, serve(t, h, get("/")).StatusCode)
		assert.True(t, ran)
	})
}

func TestChain_Panics(t *testing.T) {
	t.Run("middleware panic is internal", func(t *testing.T) {
		h := New(WithMiddleware(func(context.Context, *Request, *Route) (Outcome, error) { panic("boom") }))
		h.Get("/", func(context.Context, *Request) (*ResponseBody, error) { return nil, nil })

		resp := serve(t, h, get("/"))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.NotContains(t, resp.Body, "boom")
	})

	t.Run("action panic is internal", func(t *testing.T) {
		h := New()
		h.Get("/", func(context.Context, *Request) (*ResponseBody, error) { panic(errors.New("boom")) })

		assert.Equal(t, http.StatusInternalServerError, serve(t, h, get("/")).StatusCode)
	})

	t.Run("panicking error handler falls back", func(t *testing.T) {
		h := New()
		h.Get("/", func(context.Context, *Request) (*ResponseBody, error) { return nil, NewConflict("x") },
			WithErrorHandler(func(context.Context, *Request, error) *ResponseBody { panic("boom") }))

		assert.Equal(t, http.StatusConflict, serve(t, h, get("/")).StatusCode)
	})
}

func TestChain_MetadataFlowsToAction(t *testing.T) {
	key := Key[string]("user")
	h := New(WithMiddleware(func(ctx context.Context, req *Request, route *Route) (Outcome, error) {
		key.Set(req.Metadata(), "ada")
		return Continue(), nil
	}))
	h.Get("/", func(ctx context.Context, req *Request) (*ResponseBody, error) {
		name, _ := key.Get(req.Metadata())
		return OK(req).Send(name), nil
	})

	assert.Equal(t, "ada", serve(t, h, get("/")).Body)
}

func TestChain_RouteValues(t *testing.T) {
	type scopeKey struct{}
	var got any
	h := New(WithMiddleware(func(ctx context.Context, req *Request, route *Route) (Outcome, error) {
		got = route.Value(scopeKey{})
		return Continue(), nil
	}))
	h.Get("/", func(ctx context.Context, req *Request) (*ResponseBody, error) { return nil, nil },
		WithValue(scopeKey{}, "admin"))

	resp := serve(t, h, get("/"))
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "admin", got)
}
