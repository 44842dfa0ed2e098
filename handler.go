package switchboard

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"

	"go.uber.org/zap"
)

// Strategy produces the result for one kind of request.
type Strategy interface {
	Handle(ctx context.Context, req GenericRequest) (any, error)
}

// Handler owns the route table, event registrations, optional authorizer
// and middleware of one function, and dispatches requests to them.
//
// Usage:
//  1. Create a handler with New
//  2. Register routes with Route (or Get, Post, ...), events with On or
//     OnEvent, and at most one Authorizer
//  3. Serve requests with Handle, usually through an EntryPoint
//
// Handler is safe for concurrent use after configuration. Do not register
// anything after calling Handle.
type Handler struct {
	logger      *zap.Logger
	middleware  []Middleware
	cors        CORS
	concurrency int
	hooks       hooks

	routes         []*Route
	resolver       *PathResolver
	originPatterns []*regexp.Regexp

	inspector  Inspector
	sources    []Source
	events     []*EventRegistration
	authorizer AuthorizerFunc

	strategies map[RequestKind]Strategy
	custom     map[RequestKind]Strategy

	// Adaptive ordering: try last successful source first
	lastSource atomic.Value // stores string
}

// Option configures a Handler.
type Option func(*Handler)

// New creates a Handler with the given options.
//
// By default the handler logs nothing, recognizes S3, SQS, SNS, DynamoDB
// and Kinesis records, and dispatches batch records without a
// concurrency limit.
//
// Example:
//
//	h := switchboard.New(
//	    switchboard.WithLogger(logger),
//	    switchboard.WithMiddleware(middleware.JWT(cfg)),
//	)
//	h.Get("/users/{id}", getUser)
func New(opts ...Option) *Handler {
	h := &Handler{
		logger:    zap.NewNop(),
		inspector: JSONInspector(),
		sources:   defaultSources(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.resolver = NewPathResolver(nil, h.logger)
	h.strategies = map[RequestKind]Strategy{
		KindHTTP:       routeStrategy{h: h},
		KindEvent:      eventStrategy{h: h},
		KindAuthorizer: authorizerStrategy{h: h},
	}
	for kind, s := range h.custom {
		h.strategies[kind] = s
	}
	return h
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMiddleware appends middleware run in front of every route.
func WithMiddleware(mw ...Middleware) Option {
	return func(h *Handler) {
		h.middleware = append(h.middleware, mw...)
	}
}

// WithDefaultCORS sets the handler-wide CORS policy merged into every
// OPTIONS response.
func WithDefaultCORS(c CORS) Option {
	return func(h *Handler) {
		h.cors = c
	}
}

// WithAllowedOrigins restricts OPTIONS requests to origins on the given
// domains (and their subdomains). Other origins are forbidden.
func WithAllowedOrigins(domains ...string) Option {
	return func(h *Handler) {
		for _, d := range domains {
			if d == "" {
				continue
			}
			h.originPatterns = append(h.originPatterns, originPattern(d))
		}
	}
}

// WithSource adds a batch record source. Sources are tried in order; the
// built-in ones come first.
func WithSource(s Source) Option {
	return func(h *Handler) {
		h.sources = append(h.sources, s)
	}
}

// WithInspector sets the inspector used to examine batch records.
func WithInspector(i Inspector) Option {
	return func(h *Handler) {
		h.inspector = i
	}
}

// WithBatchConcurrency bounds how many records of a batch run at once.
// Zero or less means no bound.
func WithBatchConcurrency(n int) Option {
	return func(h *Handler) {
		h.concurrency = n
	}
}

// WithStrategy replaces or adds the strategy for a request kind.
func WithStrategy(kind RequestKind, s Strategy) Option {
	return func(h *Handler) {
		if h.custom == nil {
			h.custom = make(map[RequestKind]Strategy)
		}
		h.custom[kind] = s
	}
}

// Use appends middleware run in front of every route.
func (h *Handler) Use(mw ...Middleware) {
	h.middleware = append(h.middleware, mw...)
}

// Route registers action for method and path. Registering the same
// method and path twice panics.
func (h *Handler) Route(method, path string, action Action, opts ...RouteOption) *Route {
	r := newRoute(method, path, action, opts...)
	if h.resolver.RouteFinder(r.Method, r.Path) != nil {
		panic(fmt.Sprintf("switchboard: duplicate route %s %s", r.Method, r.Path))
	}
	h.routes = append(h.routes, r)
	h.resolver.add(r)
	return r
}

// Get registers a GET route.
func (h *Handler) Get(path string, action Action, opts ...RouteOption) *Route {
	return h.Route(http.MethodGet, path, action, opts...)
}

// Post registers a POST route.
func (h *Handler) Post(path string, action Action, opts ...RouteOption) *Route {
	return h.Route(http.MethodPost, path, action, opts...)
}

// Put registers a PUT route.
func (h *Handler) Put(path string, action Action, opts ...RouteOption) *Route {
	return h.Route(http.MethodPut, path, action, opts...)
}

// Patch registers a PATCH route.
func (h *Handler) Patch(path string, action Action, opts ...RouteOption) *Route {
	return h.Route(http.MethodPatch, path, action, opts...)
}

// Delete registers a DELETE route.
func (h *Handler) Delete(path string, action Action, opts ...RouteOption) *Route {
	return h.Route(http.MethodDelete, path, action, opts...)
}

// Head registers a HEAD route.
func (h *Handler) Head(path string, action Action, opts ...RouteOption) *Route {
	return h.Route(http.MethodHead, path, action, opts...)
}

// Routes returns the registered routes in registration order.
func (h *Handler) Routes() []*Route {
	return h.routes
}

// On registers action for batch records of source whose target equals
// target, or any target for AnySelector. The first matching registration
// wins.
func (h *Handler) On(source, target string, action EventAction, opts ...EventOption) *EventRegistration {
	reg := &EventRegistration{
		Name:   source + " " + target,
		Source: source,
		Target: target,
		action: action,
	}
	for _, opt := range opts {
		opt(reg)
	}
	h.events = append(h.events, reg)
	return reg
}

// Events returns the event registrations in registration order.
func (h *Handler) Events() []*EventRegistration {
	return h.events
}

// Authorizer declares the handler's authorizer. A handler has at most
// one; declaring a second panics.
func (h *Handler) Authorizer(fn AuthorizerFunc) {
	if h.authorizer != nil {
		panic("switchboard: authorizer already declared")
	}
	h.authorizer = fn
}

// Resolver returns the handler's path resolver.
func (h *Handler) Resolver() *PathResolver {
	return h.resolver
}

// Handle dispatches req to the strategy for its kind.
//
// HTTP requests always yield a *ResponseBody. Batch events yield
// []Settled, one per record in input order. Authorizer requests yield
// whatever the authorizer returned.
func (h *Handler) Handle(ctx context.Context, req GenericRequest) (any, error) {
	s, ok := h.strategies[req.Kind()]
	if !ok {
		return nil, NewInternal("No strategy found for request type " + req.Kind().String()).
			Wrap(fmt.Errorf("%w: %s", ErrNoStrategy, req.Kind()))
	}
	return s.Handle(ctx, req)
}
