// Package switchboard routes serverless invocations to registered actions.
//
// A single function can serve HTTP proxy requests, batches of queue or
// notification records, and custom authorizer requests. The switchboard
// classifies each raw invocation, resolves the target (route, event
// registration or authorizer), runs middleware in front of HTTP routes and
// normalizes the result into the response the platform expects.
//
// # Quick Start
//
// Register routes on a Handler and hand it to an EntryPoint:
//
//	ep := switchboard.NewEntryPoint(func(ctx context.Context) (*switchboard.Handler, error) {
//	    h := switchboard.New(switchboard.WithLogger(logger))
//
//	    h.Get("/users/{id}", func(ctx context.Context, req *switchboard.Request) (*switchboard.ResponseBody, error) {
//	        user, err := users.Find(ctx, req.PathParam("id"))
//	        if err != nil {
//	            return nil, switchboard.NewNotFound("User not found")
//	        }
//	        return switchboard.OK(req).Send(user), nil
//	    })
//
//	    switchboard.OnSQS(h, queueARN, func(ctx context.Context, m events.SQSMessage, _ *switchboard.Metadata) (any, error) {
//	        return nil, jobs.Run(ctx, m.Body)
//	    })
//
//	    return h, nil
//	})
//
//	lambda.Start(ep.Invoke)
//
// # Request Kinds
//
// Every invocation is classified, in priority order, as:
//
//   - a batch event when it carries a "Records" array
//   - an authorizer request when its "type" is "REQUEST"
//   - an HTTP proxy request otherwise
//
// Empty invocations (no body, null, or {}) are keep-alive heartbeats and
// are answered with 204 without reaching the handler.
//
// Each kind has its own Strategy. A request whose kind has no strategy
// fails with ErrNoStrategy rather than being ignored.
//
// # Routes and Proxy Paths
//
// Routes are (method, path) pairs. Paths may contain {param} segments.
// When the platform matched a catch-all resource such as "/{proxy+}", the
// actual request path is re-resolved against the registered templates:
// the segment counts must be equal and every literal segment must match.
// The first registered template that matches wins, so overlapping
// templates should be avoided.
//
//	h.Get("/", home)
//	h.Get("/users/{id}", getUser)
//
//	// resource "/{proxy+}", path "/users/42" -> getUser, id = "42"
//	// resource "/{proxy+}", path "/users/42/extra" -> 404
//
// OPTIONS requests are answered from the routes registered at the path,
// merging the handler and route CORS policies.
//
// # Middleware
//
// Middleware run in registration order before the action. Each returns
// an Outcome:
//
//   - Continue: run the next middleware
//   - Respond: answer now; the action is never invoked
//   - Defer: register a FollowUp and continue
//
// The first error stops the chain. Failure follow-ups always run before
// the error is converted; the route's ErrorHandler gets first refusal at
// producing the response. When several follow-ups declare OnSuccess, the
// last one's output is the response.
//
// # Batch Events
//
// Each record is matched to a Source by its Discriminator, then to the
// first registration whose target (or "*") and filters match. Records run
// concurrently and independently; Handle returns one Settled result per
// record in input order and never fails for partial failures.
//
// # Inspector and View
//
// Classification and record matching use the Inspector/View abstraction
// for cheap field access without decoding whole payloads. JSONInspector
// is backed by gjson.
//
// # Hooks
//
// WithOnDispatch, WithOnSuccess, WithOnFailure and WithOnNoTarget observe
// every dispatch. The metrics package builds prometheus hooks from them.
//
// # Errors
//
// Actions return *APIError values (NewBadRequest, NewNotFound, ...) to
// control the response. Any other error becomes a 500 with a generic
// message; the error itself is only logged.
package switchboard
