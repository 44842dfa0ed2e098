package switchboard

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// Content types set by the Response builder.
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
	ContentTypeHTML = "text/html"
)

// ResponseBody is the normalized output envelope. Body is always a
// pre-serialized string by the time it leaves the engine.
type ResponseBody struct {
	StatusCode        int                 `json:"statusCode"`
	Body              string              `json:"body"`
	MultiValueHeaders map[string][]string `json:"multiValueHeaders"`
}

// Header returns the values of the named header joined by ",". The
// lookup ignores case.
func (b *ResponseBody) Header(name string) string {
	for k, v := range b.MultiValueHeaders {
		if strings.EqualFold(k, name) {
			return strings.Join(v, ",")
		}
	}
	return ""
}

// ProxyResponse converts b into the platform response type.
func (b *ResponseBody) ProxyResponse() events.APIGatewayProxyResponse {
	headers := make(map[string][]string, len(b.MultiValueHeaders))
	for k, v := range b.MultiValueHeaders {
		headers[k] = slices.Clone(v)
	}
	return events.APIGatewayProxyResponse{
		StatusCode:        b.StatusCode,
		Body:              b.Body,
		MultiValueHeaders: headers,
	}
}

// ResponseOption configures a Response.
type ResponseOption func(*Response)

// WithoutCORS disables the Access-Control-* headers.
func WithoutCORS() ResponseOption {
	return func(r *Response) {
		r.cors = false
	}
}

// WithoutDefaultHeaders disables the default security headers.
func WithoutDefaultHeaders() ResponseOption {
	return func(r *Response) {
		r.defaultHeaders = false
	}
}

// Response builds a ResponseBody for a request.
//
//	return switchboard.OK(req).Send(user), nil
//	return switchboard.Redirect(req, "https://example.com/login").Send(nil), nil
type Response struct {
	req            *Request
	status         int
	headers        map[string][]string
	cors           bool
	defaultHeaders bool
}

// NewResponse creates a Response with the given status. A nil request is
// treated as an empty one.
func NewResponse(req *Request, status int, opts ...ResponseOption) *Response {
	if req == nil {
		req = NewRequest(events.APIGatewayProxyRequest{})
	}
	r := &Response{
		req:            req,
		status:         status,
		headers:        make(map[string][]string),
		cors:           true,
		defaultHeaders: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cors {
		r.setCORSHeaders()
	}
	if r.defaultHeaders {
		r.setDefaultHeaders()
	}
	return r
}

// OK creates a 200 response.
func OK(req *Request, opts ...ResponseOption) *Response {
	return NewResponse(req, http.StatusOK, opts...)
}

// Created creates a 201 response.
func Created(req *Request, opts ...ResponseOption) *Response {
	return NewResponse(req, http.StatusCreated, opts...)
}

// Accepted creates a 202 response.
func Accepted(req *Request, opts ...ResponseOption) *Response {
	return NewResponse(req, http.StatusAccepted, opts...)
}

// NoContent creates a 204 response.
func NoContent(req *Request, opts ...ResponseOption) *Response {
	return NewResponse(req, http.StatusNoContent, opts...)
}

// BadRequest creates a 400 response.
func BadRequest(req *Request, opts ...ResponseOption) *Response {
	return NewResponse(req, http.StatusBadRequest, opts...)
}

// NotFound creates a 404 response.
func NotFound(req *Request, opts ...ResponseOption) *Response {
	return NewResponse(req, http.StatusNotFound, opts...)
}

// Render creates a 200 HTML response without the default headers, which
// interfere with rendered pages.
func Render(req *Request, opts ...ResponseOption) *Response {
	r := NewResponse(req, http.StatusOK, append([]ResponseOption{WithoutDefaultHeaders()}, opts...)...)
	return r.SetHeader("content-type", ContentTypeHTML)
}

// Redirect creates a 302 response pointing at location.
func Redirect(req *Request, location string, opts ...ResponseOption) *Response {
	r := NewResponse(req, http.StatusFound, append([]ResponseOption{WithoutDefaultHeaders()}, opts...)...)
	return r.SetHeader("location", location).SetHeader("content-type", ContentTypeHTML)
}

// SetHeader replaces the named header. Names are stored lower-cased.
func (r *Response) SetHeader(name string, values ...string) *Response {
	r.headers[strings.ToLower(name)] = values
	return r
}

// RemoveHeader deletes the named header.
func (r *Response) RemoveHeader(name string) *Response {
	delete(r.headers, strings.ToLower(name))
	return r
}

// AddCookie appends a Set-Cookie header. Path defaults to "/", Domain to
// the request host and SameSite to None.
func (r *Response) AddCookie(c *http.Cookie) *Response {
	cookie := *c
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	if cookie.Domain == "" {
		cookie.Domain = r.req.Host()
	}
	if cookie.SameSite == http.SameSiteDefaultMode {
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Secure = true
	}
	r.headers["set-cookie"] = append(r.headers["set-cookie"], cookie.String())
	return r
}

// Send serializes body and returns the finished envelope. Strings and
// byte slices are sent as-is; nil sends an empty body; anything else is
// encoded as JSON.
func (r *Response) Send(body any) *ResponseBody {
	var out string
	switch b := body.(type) {
	case nil:
	case string:
		out = b
		r.defaultContentType(ContentTypeText)
	case []byte:
		out = string(b)
		r.defaultContentType(ContentTypeText)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			r.status = http.StatusInternalServerError
			data = []byte(`{"message":"Internal Server Error"}`)
		}
		out = string(data)
		r.SetHeader("content-type", ContentTypeJSON)
	}

	return &ResponseBody{
		StatusCode:        r.status,
		Body:              out,
		MultiValueHeaders: r.headers,
	}
}

func (r *Response) defaultContentType(ct string) {
	if _, ok := r.headers["content-type"]; !ok {
		r.SetHeader("content-type", ct)
	}
}

func (r *Response) setDefaultHeaders() {
	if !r.req.defaults.AllowLocalhost {
		r.SetHeader("strict-transport-security", "max-age=31536000")
	}
	r.SetHeader("x-frame-options", "DENY")
	r.SetHeader("cache-control", "no-store")
	r.SetHeader("x-content-type-options", "nosniff")
	r.SetHeader("content-security-policy", "'self'")
	r.SetHeader("x-aws-request-id", r.req.RequestID())
}

func (r *Response) setCORSHeaders() {
	if origin := allowedOrigin(r.req); origin != "" {
		r.SetHeader("access-control-allow-origin", origin)
	}
	r.SetHeader("access-control-allow-credentials", "true")
}

func allowedOrigin(req *Request) string {
	origin := req.Origin()
	allowed := req.defaults.AllowedOrigins
	if len(allowed) == 0 || slices.Contains(allowed, "*") || slices.Contains(allowed, origin) {
		return origin
	}
	return ""
}

// errorBody is the user-visible shape of a failed request.
type errorBody struct {
	Message      string         `json:"message"`
	ErrorCode    ErrorCode      `json:"errorCode,omitempty"`
	Errors       []FieldError   `json:"errors,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	AWSRequestID string         `json:"awsRequestId,omitempty"`
}

// FromError converts err into a response. Known API errors keep their
// status, code and message; anything else becomes a 500 with a generic
// message and no error code. The raw error never reaches the body.
func FromError(req *Request, err error, opts ...ResponseOption) *ResponseBody {
	if req == nil {
		req = NewRequest(events.APIGatewayProxyRequest{})
	}

	apiErr, ok := AsAPIError(err)
	if !ok {
		return NewResponse(req, http.StatusInternalServerError, opts...).Send(errorBody{
			Message:      http.StatusText(http.StatusInternalServerError),
			AWSRequestID: req.RequestID(),
		})
	}

	msg := apiErr.Message
	if msg == "" {
		msg = http.StatusText(apiErr.Status)
	}
	body := errorBody{
		Message:      msg,
		ErrorCode:    apiErr.Code,
		Metadata:     apiErr.Metadata,
		AWSRequestID: req.RequestID(),
	}
	if apiErr.Code == CodeValidationError {
		body.Errors = apiErr.Fields
	}
	return NewResponse(req, apiErr.Status, opts...).Send(body)
}
