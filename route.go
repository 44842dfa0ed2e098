package switchboard

import (
	"context"
	"strings"
)

// Action is the target of an HTTP route.
type Action func(ctx context.Context, req *Request) (*ResponseBody, error)

// ErrorHandler gets first refusal at turning a failed request into a
// response. Returning nil declines, and the default conversion applies.
type ErrorHandler func(ctx context.Context, req *Request, err error) *ResponseBody

// CORS is the cross-origin policy declared on a handler or a route.
type CORS struct {
	ExposedHeaders   []string
	AllowHeaders     []string
	AllowCredentials bool
}

// Route is one registered (path, method) pair bound to its action.
// Routes are immutable once registered.
type Route struct {
	Name         string
	Path         string
	Method       string
	CORS         *CORS
	ErrorHandler ErrorHandler

	values map[any]any
	action Action
}

// Value returns the metadata stored on the route under key, or nil.
func (r *Route) Value(key any) any {
	return r.values[key]
}

// RouteOption configures a Route at registration.
type RouteOption func(*Route)

// WithName overrides the default "METHOD path" route name.
func WithName(name string) RouteOption {
	return func(r *Route) {
		r.Name = name
	}
}

// WithCORS attaches a CORS policy to the route. It is merged with the
// handler policy when answering OPTIONS requests.
func WithCORS(c CORS) RouteOption {
	return func(r *Route) {
		r.CORS = &c
	}
}

// WithErrorHandler attaches a custom error handler to the route.
func WithErrorHandler(fn ErrorHandler) RouteOption {
	return func(r *Route) {
		r.ErrorHandler = fn
	}
}

// WithValue attaches opaque metadata that middleware can read through
// Route.Value.
//
//	h.Get("/me", me, switchboard.WithValue(middleware.AuthRequired, true))
func WithValue(key, value any) RouteOption {
	return func(r *Route) {
		if r.values == nil {
			r.values = make(map[any]any)
		}
		r.values[key] = value
	}
}

func newRoute(method, path string, action Action, opts ...RouteOption) *Route {
	r := &Route{
		Method: strings.ToUpper(strings.TrimSpace(method)),
		Path:   strings.TrimSpace(path),
		action: action,
	}
	r.Name = r.Method + " " + r.Path
	for _, opt := range opts {
		opt(r)
	}
	return r
}
