package switchboard

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// RequestKind distinguishes the shapes of incoming invocations.
type RequestKind int

// Request kinds.
const (
	KindUnknown RequestKind = iota
	KindHTTP
	KindEvent
	KindAuthorizer
)

func (k RequestKind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindEvent:
		return "event"
	case KindAuthorizer:
		return "authorizer"
	default:
		return "unknown"
	}
}

// GenericRequest is the envelope every strategy receives. The concrete
// type is *Request, *EventRequest or *AuthorizerRequest.
type GenericRequest interface {
	Kind() RequestKind
	Metadata() *Metadata
}

// ResponseDefaults configures headers the Response builder adds.
type ResponseDefaults struct {
	// AllowedOrigins lists origins echoed in Access-Control-Allow-Origin.
	// "*" or an empty list allows every origin.
	AllowedOrigins []string

	// AllowLocalhost disables the Strict-Transport-Security header.
	AllowLocalhost bool
}

// RequestOption configures a Request.
type RequestOption func(*Request)

// WithResponseDefaults sets the defaults responses built from the request use.
func WithResponseDefaults(d ResponseDefaults) RequestOption {
	return func(r *Request) {
		r.defaults = d
	}
}

// Request is the normalized form of an API Gateway proxy event.
type Request struct {
	event    events.APIGatewayProxyRequest
	meta     *Metadata
	defaults ResponseDefaults

	method   string
	path     string
	resource string
	headers  map[string][]string
	cookies  map[string][]string
	query    map[string]string
	params   map[string]string
	body     string
}

// NewRequest builds a Request from a proxy event.
func NewRequest(e events.APIGatewayProxyRequest, opts ...RequestOption) *Request {
	r := &Request{
		event:    e,
		meta:     NewMetadata(),
		defaults: ResponseDefaults{AllowedOrigins: []string{"*"}},
		method:   strings.ToUpper(strings.TrimSpace(e.HTTPMethod)),
		path:     e.Path,
		resource: e.Resource,
		headers:  parseHeaders(e),
		query:    copyStrings(e.QueryStringParameters),
		params:   copyStrings(e.PathParameters),
		body:     e.Body,
	}
	if r.method == "" {
		r.method = http.MethodGet
	}
	if e.IsBase64Encoded && e.Body != "" {
		if b, err := base64.StdEncoding.DecodeString(e.Body); err == nil {
			r.body = string(b)
		}
	}
	r.cookies = parseCookies(r.headers["cookie"])
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Kind implements GenericRequest.
func (r *Request) Kind() RequestKind { return KindHTTP }

// Metadata implements GenericRequest.
func (r *Request) Metadata() *Metadata { return r.meta }

// Event returns the raw proxy event.
func (r *Request) Event() events.APIGatewayProxyRequest { return r.event }

// Method returns the upper-cased HTTP method.
func (r *Request) Method() string { return r.method }

// Path returns the actual request path.
func (r *Request) Path() string { return r.path }

// Resource returns the route template the platform matched, which may be
// a wildcard placeholder such as "/{proxy+}".
func (r *Request) Resource() string { return r.resource }

// Body returns the raw (base64-decoded) body.
func (r *Request) Body() string { return r.body }

// SetBody replaces the raw body.
func (r *Request) SetBody(body string) { r.body = body }

// Headers returns the normalized, lower-cased multi-value headers.
func (r *Request) Headers() map[string][]string { return r.headers }

// Header returns the values of the named header joined by ",".
func (r *Request) Header(name string) string {
	return strings.Join(r.headers[strings.ToLower(name)], ",")
}

// Query returns the query string parameters.
func (r *Request) Query() map[string]string { return r.query }

// QueryParam returns a single query string parameter.
func (r *Request) QueryParam(name string) string { return r.query[name] }

// SetQuery replaces the query string parameters.
func (r *Request) SetQuery(q map[string]string) { r.query = q }

// PathParams returns the path parameters.
func (r *Request) PathParams() map[string]string { return r.params }

// PathParam returns a single path parameter.
func (r *Request) PathParam(name string) string { return r.params[name] }

// SetPathParams replaces the path parameters.
func (r *Request) SetPathParams(p map[string]string) { r.params = p }

// Cookies returns all cookies keyed by lower-cased name.
func (r *Request) Cookies() map[string][]string { return r.cookies }

// Cookie returns the first value of the named cookie.
func (r *Request) Cookie(name string) string {
	values := r.cookies[strings.ToLower(name)]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// EnvCookie returns the value of the named cookie that is prefixed with
// "<env>---". When strip is true the prefix is removed.
func (r *Request) EnvCookie(name, env string, strip bool) string {
	prefix := env + "---"
	for _, v := range r.cookies[strings.ToLower(name)] {
		if strings.HasPrefix(v, prefix) {
			if strip {
				return strings.TrimPrefix(v, prefix)
			}
			return v
		}
	}
	return ""
}

// RequestID returns the platform request id.
func (r *Request) RequestID() string { return r.event.RequestContext.RequestID }

// Stage returns the deployment stage.
func (r *Request) Stage() string { return r.event.RequestContext.Stage }

// SourceIP returns the caller address.
func (r *Request) SourceIP() string { return r.event.RequestContext.Identity.SourceIP }

// UserAgent returns the caller user agent.
func (r *Request) UserAgent() string { return r.event.RequestContext.Identity.UserAgent }

// AccountID returns the caller account id.
func (r *Request) AccountID() string { return r.event.RequestContext.Identity.AccountID }

// Origin returns the Origin header.
func (r *Request) Origin() string { return r.Header("origin") }

// Host returns the Host header.
func (r *Request) Host() string { return r.Header("host") }

// ForwardedProto returns the X-Forwarded-Proto header.
func (r *Request) ForwardedProto() string { return r.Header("x-forwarded-proto") }

// ForwardedIPs returns the X-Forwarded-For values.
func (r *Request) ForwardedIPs() []string {
	var ips []string
	for _, v := range r.headers["x-forwarded-for"] {
		for _, ip := range strings.Split(v, ",") {
			if ip = strings.TrimSpace(ip); ip != "" {
				ips = append(ips, ip)
			}
		}
	}
	return ips
}

// FullRequestHost returns scheme://host/stage followed by path.
func (r *Request) FullRequestHost(path string) string {
	return fmt.Sprintf("%s://%s/%s%s", r.scheme(), r.Host(), r.Stage(), path)
}

// FullRequestBaseHost returns scheme://host.
func (r *Request) FullRequestBaseHost() string {
	return fmt.Sprintf("%s://%s", r.scheme(), r.Host())
}

func (r *Request) scheme() string {
	if p := r.ForwardedProto(); p != "" {
		return p
	}
	return "https"
}

// IsLocalhost reports whether the request originates from localhost.
func (r *Request) IsLocalhost() bool {
	return strings.Contains(r.Origin(), "localhost")
}

// Bind decodes the body into v according to the content type, then runs
// v's Validate method when it has one.
//
// JSON bodies decode with encoding/json; urlencoded bodies decode into
// *url.Values or *map[string]string. Malformed bodies are bad requests.
func (r *Request) Bind(v any) error {
	if r.body == "" {
		return NewBadRequest("Request body is empty")
	}

	contentType := r.Header("content-type")
	switch {
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		values, err := url.ParseQuery(r.body)
		if err != nil {
			return NewBadRequest("Request body contains an invalid form").Wrap(err)
		}
		switch dst := v.(type) {
		case *url.Values:
			*dst = values
		case *map[string]string:
			m := make(map[string]string, len(values))
			for k := range values {
				m[k] = values.Get(k)
			}
			*dst = m
		default:
			return NewBadRequest("Form bodies bind to url.Values or map[string]string only")
		}
	default:
		if err := json.Unmarshal([]byte(r.body), v); err != nil {
			return NewBadRequest("Request body contains invalid JSON").Wrap(err)
		}
	}

	return validate(v)
}

func parseHeaders(e events.APIGatewayProxyRequest) map[string][]string {
	headers := make(map[string][]string, len(e.MultiValueHeaders)+len(e.Headers))
	for k, v := range e.Headers {
		headers[strings.ToLower(k)] = []string{v}
	}
	for k, v := range e.MultiValueHeaders {
		headers[strings.ToLower(k)] = append([]string(nil), v...)
	}

	// Both spellings show up in the wild.
	if v, ok := headers["referrer"]; ok {
		headers["referer"] = v
		delete(headers, "referrer")
	}
	return headers
}

func parseCookies(lines []string) map[string][]string {
	cookies := make(map[string][]string)
	for _, line := range lines {
		for _, part := range strings.Split(line, ";") {
			parsed, err := http.ParseCookie(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			for _, c := range parsed {
				k := strings.ToLower(c.Name)
				cookies[k] = append(cookies[k], c.Value)
			}
		}
	}
	return cookies
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
