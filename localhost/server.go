// Package localhost serves a switchboard EntryPoint over plain HTTP for
// local development. Incoming requests are translated into proxy events
// the way API Gateway would send them, with the catch-all resource
// "/{proxy+}".
package localhost

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bjaus/switchboard"
)

// Stage is the stage name reported by local requests.
const Stage = "local"

// Invoker runs one raw invocation. *switchboard.EntryPoint implements it.
type Invoker interface {
	Invoke(ctx context.Context, raw json.RawMessage) (any, error)
}

// Server routes local HTTP traffic to an Invoker.
type Server struct {
	router  chi.Router
	invoker Invoker
	logger  *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.router.Method(http.MethodGet, "/metrics", h)
	}
}

// New creates a Server that forwards every request to inv.
func New(inv Invoker, opts ...Option) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer)

	s := &Server{router: r, invoker: inv, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	r.Handle("/*", http.HandlerFunc(s.invoke))
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	event, err := ProxyEvent(r)
	if err != nil {
		s.write(w, switchboard.FromError(nil, switchboard.NewBadRequest("Request body could not be read").Wrap(err)))
		return
	}
	raw, err := json.Marshal(event)
	if err != nil {
		s.write(w, switchboard.FromError(nil, err))
		return
	}

	out, err := s.invoker.Invoke(r.Context(), raw)
	if err != nil {
		s.logger.Error("invocation failed", zap.Error(err), zap.String("path", r.URL.Path))
		s.write(w, switchboard.FromError(nil, err))
		return
	}

	resp, ok := out.(*switchboard.ResponseBody)
	if !ok {
		b, err := json.Marshal(out)
		if err != nil {
			s.write(w, switchboard.FromError(nil, err))
			return
		}
		resp = &switchboard.ResponseBody{
			StatusCode:        http.StatusOK,
			Body:              string(b),
			MultiValueHeaders: map[string][]string{"content-type": {switchboard.ContentTypeJSON}},
		}
	}
	s.write(w, resp)
}

func (s *Server) write(w http.ResponseWriter, resp *switchboard.ResponseBody) {
	for name, values := range resp.MultiValueHeaders {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.WriteString(w, resp.Body); err != nil {
		s.logger.Warn("writing response failed", zap.Error(err))
	}
}

// ProxyEvent translates r into the proxy event API Gateway would deliver
// for the catch-all resource. Bodies that are not valid UTF-8 are base64
// encoded.
func ProxyEvent(r *http.Request) (events.APIGatewayProxyRequest, error) {
	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return events.APIGatewayProxyRequest{}, err
		}
		body = b
	}

	headers := make(map[string]string, len(r.Header)+1)
	multi := make(map[string][]string, len(r.Header)+1)
	for name, values := range r.Header {
		headers[name] = strings.Join(values, ",")
		multi[name] = values
	}
	if r.Host != "" {
		headers["Host"] = r.Host
		multi["Host"] = []string{r.Host}
	}

	query := r.URL.Query()
	single := make(map[string]string, len(query))
	for k := range query {
		single[k] = query.Get(k)
	}

	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	e := events.APIGatewayProxyRequest{
		Resource:                        "/" + switchboard.ProxySegment,
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		Headers:                         headers,
		MultiValueHeaders:               multi,
		QueryStringParameters:           single,
		MultiValueQueryStringParameters: query,
		PathParameters:                  map[string]string{"proxy": strings.TrimPrefix(r.URL.Path, "/")},
		RequestContext: events.APIGatewayProxyRequestContext{
			RequestID:    requestID,
			Stage:        Stage,
			HTTPMethod:   r.Method,
			Path:         r.URL.Path,
			ResourcePath: "/" + switchboard.ProxySegment,
			Identity: events.APIGatewayRequestIdentity{
				SourceIP:  remoteIP(r.RemoteAddr),
				UserAgent: r.UserAgent(),
			},
		},
	}
	if utf8.Valid(body) {
		e.Body = string(body)
	} else {
		e.Body = base64.StdEncoding.EncodeToString(body)
		e.IsBase64Encoded = true
	}
	return e, nil
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
