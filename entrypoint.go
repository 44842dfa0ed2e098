package switchboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// InitFunc builds the handler. It typically opens connections and
// registers routes. It runs once per process on success.
type InitFunc func(ctx context.Context) (*Handler, error)

// EntryPoint adapts a Handler to the Lambda runtime. It initializes the
// handler lazily, classifies every raw invocation and builds the typed
// request before dispatching.
//
//	ep := switchboard.NewEntryPoint(func(ctx context.Context) (*switchboard.Handler, error) {
//	    h := switchboard.New()
//	    h.Get("/health", health)
//	    return h, nil
//	})
//	lambda.Start(ep.Invoke)
type EntryPoint struct {
	init       InitFunc
	handler    atomic.Pointer[Handler]
	group      singleflight.Group
	classifier *Classifier
	logger     *zap.Logger
	defaults   ResponseDefaults
}

// EntryPointOption configures an EntryPoint.
type EntryPointOption func(*EntryPoint)

// WithEntryPointLogger sets the logger. The default discards everything.
func WithEntryPointLogger(l *zap.Logger) EntryPointOption {
	return func(e *EntryPoint) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEntryPointResponseDefaults sets the response defaults of every
// HTTP request the entry point builds.
func WithEntryPointResponseDefaults(d ResponseDefaults) EntryPointOption {
	return func(e *EntryPoint) {
		e.defaults = d
	}
}

// NewEntryPoint creates an EntryPoint around init.
func NewEntryPoint(init InitFunc, opts ...EntryPointOption) *EntryPoint {
	e := &EntryPoint{
		init:       init,
		classifier: NewClassifier(),
		logger:     zap.NewNop(),
		defaults:   ResponseDefaults{AllowedOrigins: []string{"*"}},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handler returns the initialized handler. Concurrent callers share one
// in-flight initialization; a failed initialization is retried by the
// next caller.
func (e *EntryPoint) Handler(ctx context.Context) (*Handler, error) {
	if h := e.handler.Load(); h != nil {
		return h, nil
	}

	v, err, _ := e.group.Do("init", func() (any, error) {
		if h := e.handler.Load(); h != nil {
			return h, nil
		}
		h, err := e.init(ctx)
		if err != nil {
			return nil, err
		}
		e.handler.Store(h)
		return h, nil
	})
	if err != nil {
		e.logger.Error("handler initialization failed", zap.Error(err))
		return nil, NewInternal("Handler initialization failed").Wrap(err)
	}
	return v.(*Handler), nil
}

// Invoke is the Lambda handler function. HTTP failures are always
// answered with an error response; batch and authorizer failures are
// returned as errors so the platform can retry or deny.
func (e *EntryPoint) Invoke(ctx context.Context, raw json.RawMessage) (any, error) {
	logger := e.logger
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With(zap.String("aws_request_id", lc.AwsRequestID))
	}

	class, err := e.classifier.Classify(raw)
	if err != nil {
		logger.Warn("unreadable invocation", zap.Error(err))
		return FromError(nil, NewBadRequest("Request is not valid JSON").Wrap(err)), nil
	}
	if class.Heartbeat {
		logger.Debug("heartbeat")
		return heartbeat(), nil
	}

	switch class.Kind {
	case KindEvent:
		return e.invokeEvent(ctx, raw)
	case KindAuthorizer:
		return e.invokeAuthorizer(ctx, raw)
	default:
		return e.invokeHTTP(ctx, logger, raw), nil
	}
}

func (e *EntryPoint) invokeHTTP(ctx context.Context, logger *zap.Logger, raw json.RawMessage) *ResponseBody {
	var event events.APIGatewayProxyRequest
	if err := json.Unmarshal(raw, &event); err != nil {
		logger.Warn("malformed proxy event", zap.Error(err))
		return FromError(nil, NewBadRequest("Request is malformed").Wrap(err))
	}
	req := NewRequest(event, WithResponseDefaults(e.defaults))

	h, err := e.Handler(ctx)
	if err != nil {
		return FromError(req, err)
	}

	out, err := h.Handle(ctx, req)
	if err != nil {
		logger.Error("error handling request", zap.Error(err))
		return FromError(req, err)
	}
	resp, ok := out.(*ResponseBody)
	if !ok || resp == nil {
		return NoContent(req).Send(nil)
	}
	return resp
}

func (e *EntryPoint) invokeEvent(ctx context.Context, raw json.RawMessage) (any, error) {
	req, err := NewEventRequest(raw)
	if err != nil {
		return nil, err
	}
	h, err := e.Handler(ctx)
	if err != nil {
		return nil, err
	}
	return h.Handle(ctx, req)
}

func (e *EntryPoint) invokeAuthorizer(ctx context.Context, raw json.RawMessage) (any, error) {
	var event events.APIGatewayCustomAuthorizerRequestTypeRequest
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, NewBadRequest("Authorizer request is malformed").Wrap(err)
	}
	h, err := e.Handler(ctx)
	if err != nil {
		return nil, err
	}
	return h.Handle(ctx, NewAuthorizerRequest(event))
}

// heartbeat answers keep-alive invocations without CORS or default
// headers.
func heartbeat() *ResponseBody {
	return &ResponseBody{
		StatusCode:        http.StatusNoContent,
		MultiValueHeaders: map[string][]string{},
	}
}
