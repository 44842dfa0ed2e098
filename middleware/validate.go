package middleware

import (
	"context"

	"github.com/bjaus/switchboard"
)

type bodyDecoder func(req *switchboard.Request) (any, error)

const bodyRouteKey routeKey = "body-decoder"

// BodyKey holds the decoded request body in request metadata.
var BodyKey = switchboard.Key[any]("body")

// WithBody declares that the route's body decodes into T. The Validate
// middleware binds it, runs T's Validate method when it has one, and
// stores the result under BodyKey.
func WithBody[T any]() switchboard.RouteOption {
	return switchboard.WithValue(bodyRouteKey, bodyDecoder(func(req *switchboard.Request) (any, error) {
		var v T
		if err := req.Bind(&v); err != nil {
			return nil, err
		}
		return v, nil
	}))
}

// Validate returns middleware that decodes and validates the body of
// routes declared with WithBody. Routes without a declaration pass
// through.
func Validate() switchboard.Middleware {
	return func(ctx context.Context, req *switchboard.Request, route *switchboard.Route) (switchboard.Outcome, error) {
		decode, ok := route.Value(bodyRouteKey).(bodyDecoder)
		if !ok {
			return switchboard.Continue(), nil
		}
		v, err := decode(req)
		if err != nil {
			return switchboard.Outcome{}, err
		}
		BodyKey.Set(req.Metadata(), v)
		return switchboard.Continue(), nil
	}
}

// Body returns the decoded body stored by Validate.
func Body[T any](req *switchboard.Request) (T, bool) {
	var zero T
	v, ok := BodyKey.Get(req.Metadata())
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
