package switchboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// routeStrategy dispatches HTTP requests to routes. It always produces a
// response: failures are converted, never returned.
type routeStrategy struct {
	h *Handler
}

func (s routeStrategy) Handle(ctx context.Context, req GenericRequest) (any, error) {
	r, ok := req.(*Request)
	if !ok {
		return nil, NewInternal("Unexpected request type for route strategy")
	}
	return s.h.serveHTTP(ctx, r), nil
}

// target resolves the route for req. A non-nil response means the request
// was a preflight and is already answered.
func (h *Handler) target(ctx context.Context, req *Request) (*Route, *ResponseBody, error) {
	res, ok := h.resolver.FuzzyResource(req.Resource(), req.Path())
	if !ok {
		err := NewNotFound("Resource not found")
		h.callOnNoTarget(ctx, KindHTTP, err)
		return nil, nil, err
	}

	if req.Method() == http.MethodOptions {
		routes := h.resolver.RouteByPathFinder(res.Resource)
		if len(routes) == 0 {
			err := NewNotFound("Resource not found")
			h.callOnNoTarget(ctx, KindHTTP, err)
			return nil, nil, err
		}
		resp, err := h.optionsResponse(req, routes)
		return nil, resp, err
	}

	route := h.resolver.RouteFinder(req.Method(), res.Resource)
	if route == nil {
		msg := "Route not found"
		if len(h.resolver.RouteByPathFinder(res.Resource)) == 0 {
			msg = "Resource not found"
		}
		err := NewNotFound(msg)
		h.callOnNoTarget(ctx, KindHTTP, err)
		return nil, nil, err
	}

	if res.Proxy {
		req.SetPathParams(h.resolver.ResolvePathParams(req.Path(), res.Matcher))
	}
	return route, nil, nil
}

func (h *Handler) serveHTTP(ctx context.Context, req *Request) *ResponseBody {
	route, preflight, err := h.target(ctx, req)
	if err != nil {
		return h.fail(ctx, req, nil, nil, err)
	}
	if preflight != nil {
		return preflight
	}

	c := newChain(route, h.middleware, h.logger)
	start := time.Now()

	premature, err := c.handle(ctx, req)
	if err != nil {
		h.callOnFailure(ctx, nil, KindHTTP, route.Name, err, time.Since(start))
		return h.fail(ctx, req, route, c, err)
	}
	if premature != nil {
		return premature
	}

	h.callOnDispatch(ctx, nil, KindHTTP, route.Name)
	resp, err := h.invoke(ctx, req, route)
	if err == nil {
		resp, err = c.handleSuccessFollowUps(ctx, req, resp)
	}
	duration := time.Since(start)
	if err != nil {
		h.callOnFailure(ctx, nil, KindHTTP, route.Name, err, duration)
		return h.fail(ctx, req, route, c, err)
	}

	h.callOnSuccess(ctx, nil, KindHTTP, route.Name, duration)
	if resp == nil {
		return NoContent(req).Send(nil)
	}
	return resp
}

func (h *Handler) invoke(ctx context.Context, req *Request, route *Route) (resp *ResponseBody, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewInternal("Internal Server Error").Wrap(fmt.Errorf("action panic: %v", r))
		}
	}()
	return route.action(ctx, req)
}

// fail turns err into a response. Failure follow-ups always run first.
// The route's error handler gets first refusal, then a follow-up's
// replacement, then the default conversion.
func (h *Handler) fail(ctx context.Context, req *Request, route *Route, c *chain, err error) *ResponseBody {
	var replacement *ResponseBody
	if c != nil {
		replacement = c.handleFailureFollowUps(ctx, req, err)
	}

	var resp *ResponseBody
	if route != nil && route.ErrorHandler != nil {
		resp = h.customError(ctx, req, route, err)
	}
	if resp == nil {
		resp = replacement
	}
	if resp == nil {
		resp = FromError(req, err)
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.Int("status", resp.StatusCode),
		zap.String("method", req.Method()),
		zap.String("path", req.Path()),
	}
	if resp.StatusCode == http.StatusInternalServerError {
		h.logger.Error("an internal server error occurred", fields...)
	} else {
		h.logger.Warn("a known error occurred", fields...)
	}
	return resp
}

func (h *Handler) customError(ctx context.Context, req *Request, route *Route, err error) (resp *ResponseBody) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("error handler panicked", zap.Any("panic", r), zap.String("route", route.Name))
			resp = nil
		}
	}()
	return route.ErrorHandler(ctx, req, err)
}
