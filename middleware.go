package switchboard

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Middleware runs before the target action of an HTTP route. It returns
// an Outcome telling the chain how to proceed, or an error that stops the
// chain.
//
// Middleware run sequentially in registration order; later middleware
// may rely on request metadata set by earlier ones.
type Middleware func(ctx context.Context, req *Request, route *Route) (Outcome, error)

type outcomeKind int

const (
	outcomeContinue outcomeKind = iota
	outcomeRespond
	outcomeDefer
)

// Outcome is the result of a middleware. Build one with Continue, Respond
// or Defer.
type Outcome struct {
	kind     outcomeKind
	response *ResponseBody
	followUp FollowUp
}

// Continue passes control to the next middleware.
func Continue() Outcome {
	return Outcome{kind: outcomeContinue}
}

// Respond ends the chain with resp. The target action is not invoked.
func Respond(resp *ResponseBody) Outcome {
	return Outcome{kind: outcomeRespond, response: resp}
}

// Defer registers a follow-up that runs after the target action
// completes or fails, then passes control to the next middleware.
func Defer(f FollowUp) Outcome {
	return Outcome{kind: outcomeDefer, followUp: f}
}

// FollowUp is a pair of deferred callbacks registered by a middleware.
// Either callback may be nil.
type FollowUp struct {
	// OnSuccess receives the action's response. When several follow-ups
	// declare OnSuccess, the last non-nil output is returned; when all
	// return nil the action's response is kept.
	OnSuccess func(ctx context.Context, req *Request, resp *ResponseBody) (*ResponseBody, error)

	// OnError receives the failure. A non-nil return is used as the
	// response unless the route's ErrorHandler produces one first.
	OnError func(ctx context.Context, req *Request, err error) *ResponseBody
}

// chain executes middleware for a single request. It accumulates
// follow-ups and must never outlive the request it was created for.
type chain struct {
	route      *Route
	middleware []Middleware
	followUps  []FollowUp
	logger     *zap.Logger
}

func newChain(route *Route, middleware []Middleware, logger *zap.Logger) *chain {
	return &chain{route: route, middleware: middleware, logger: logger}
}

// handle runs the middleware in order. It stops at the first error or
// premature response. A nil response with a nil error means the target
// action should run.
func (c *chain) handle(ctx context.Context, req *Request) (*ResponseBody, error) {
	for _, mw := range c.middleware {
		out, err := c.call(ctx, mw, req)
		if err != nil {
			return nil, err
		}
		switch out.kind {
		case outcomeRespond:
			if out.response != nil {
				return out.response, nil
			}
		case outcomeDefer:
			c.followUps = append(c.followUps, out.followUp)
		case outcomeContinue:
		}
	}
	return nil, nil
}

func (c *chain) call(ctx context.Context, mw Middleware, req *Request) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewInternal("Internal Server Error").Wrap(fmt.Errorf("middleware panic: %v", r))
		}
	}()
	return mw(ctx, req, c.route)
}

// handleSuccessFollowUps passes resp to every OnSuccess callback in order
// and returns the last non-nil output. Earlier outputs are discarded.
func (c *chain) handleSuccessFollowUps(ctx context.Context, req *Request, resp *ResponseBody) (*ResponseBody, error) {
	var last *ResponseBody
	for _, f := range c.followUps {
		if f.OnSuccess == nil {
			continue
		}
		out, err := c.callSuccess(ctx, f, req, resp)
		if err != nil {
			return nil, err
		}
		if out != nil {
			last = out
		}
	}
	if last == nil {
		return resp, nil
	}
	return last, nil
}

func (c *chain) callSuccess(ctx context.Context, f FollowUp, req *Request, resp *ResponseBody) (out *ResponseBody, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewInternal("Internal Server Error").Wrap(fmt.Errorf("follow-up panic: %v", r))
		}
	}()
	return f.OnSuccess(ctx, req, resp)
}

// handleFailureFollowUps passes err to every OnError callback in order.
// Panics are logged and swallowed so the original error is still
// reported. It returns the last non-nil response a callback produced.
func (c *chain) handleFailureFollowUps(ctx context.Context, req *Request, err error) *ResponseBody {
	var replacement *ResponseBody
	for _, f := range c.followUps {
		if f.OnError == nil {
			continue
		}
		if out := c.callFailure(ctx, f, req, err); out != nil {
			replacement = out
		}
	}
	return replacement
}

func (c *chain) callFailure(ctx context.Context, f FollowUp, req *Request, err error) (out *ResponseBody) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("failure follow-up panicked", zap.Any("panic", r), zap.String("route", c.route.Name))
			out = nil
		}
	}()
	return f.OnError(ctx, req, err)
}
