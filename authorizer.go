package switchboard

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// AuthorizerRequest is a REQUEST-type custom authorizer invocation.
type AuthorizerRequest struct {
	event events.APIGatewayCustomAuthorizerRequestTypeRequest
	meta  *Metadata
}

// NewAuthorizerRequest wraps an authorizer event.
func NewAuthorizerRequest(e events.APIGatewayCustomAuthorizerRequestTypeRequest) *AuthorizerRequest {
	return &AuthorizerRequest{event: e, meta: NewMetadata()}
}

// Kind implements GenericRequest.
func (a *AuthorizerRequest) Kind() RequestKind { return KindAuthorizer }

// Metadata implements GenericRequest.
func (a *AuthorizerRequest) Metadata() *Metadata { return a.meta }

// Event returns the raw authorizer event.
func (a *AuthorizerRequest) Event() events.APIGatewayCustomAuthorizerRequestTypeRequest {
	return a.event
}

// MethodArn returns the ARN of the method being authorized.
func (a *AuthorizerRequest) MethodArn() string { return a.event.MethodArn }

// Header returns the named header, ignoring case.
func (a *AuthorizerRequest) Header(name string) string {
	for k, v := range a.event.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// QueryParam returns a query string parameter.
func (a *AuthorizerRequest) QueryParam(name string) string {
	return a.event.QueryStringParameters[name]
}

// BearerToken returns the token of an "Authorization: Bearer" header.
func (a *AuthorizerRequest) BearerToken() string {
	token, ok := strings.CutPrefix(a.Header("authorization"), "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// AuthorizerFunc is the single authorizer action of a handler. Its result
// is returned to the platform untouched; it is typically built with Allow
// or Deny.
type AuthorizerFunc func(ctx context.Context, req *AuthorizerRequest) (any, error)

// Allow builds a policy granting principal access to resource.
func Allow(principal, resource string) events.APIGatewayCustomAuthorizerResponse {
	return policy(principal, "Allow", resource)
}

// Deny builds a policy refusing principal access to resource.
func Deny(principal, resource string) events.APIGatewayCustomAuthorizerResponse {
	return policy(principal, "Deny", resource)
}

func policy(principal, effect, resource string) events.APIGatewayCustomAuthorizerResponse {
	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: principal,
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version: "2012-10-17",
			Statement: []events.IAMPolicyStatement{
				{
					Action:   []string{"execute-api:Invoke"},
					Effect:   effect,
					Resource: []string{resource},
				},
			},
		},
	}
}

// authorizerStrategy invokes the handler's authorizer. No middleware and
// no route matching apply.
type authorizerStrategy struct {
	h *Handler
}

func (s authorizerStrategy) Handle(ctx context.Context, req GenericRequest) (any, error) {
	ar, ok := req.(*AuthorizerRequest)
	if !ok {
		return nil, NewInternal("Unexpected request type for authorizer strategy")
	}
	if s.h.authorizer == nil {
		err := NewInternal("Tried to use an authorizer when none was available").Wrap(ErrNoAuthorizer)
		s.h.callOnNoTarget(ctx, KindAuthorizer, err)
		return nil, err
	}

	s.h.callOnDispatch(ctx, nil, KindAuthorizer, "authorizer")
	start := time.Now()
	out, err := s.h.authorizer(ctx, ar)
	duration := time.Since(start)
	if err != nil {
		s.h.callOnFailure(ctx, nil, KindAuthorizer, "authorizer", err, duration)
		return nil, err
	}
	s.h.callOnSuccess(ctx, nil, KindAuthorizer, "authorizer", duration)
	return out, nil
}
