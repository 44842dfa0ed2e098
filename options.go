package switchboard

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// originPattern compiles an allow-list entry into a pattern matching the
// entry's domain and its subdomains over http or https.
func originPattern(entry string) *regexp.Regexp {
	return regexp.MustCompile(`^https?://([\w-]+\.)*` + regexp.QuoteMeta(entry) + `$`)
}

// validateOrigin returns the origin when no allow-list is configured or
// when the origin is on it.
func (h *Handler) validateOrigin(origin string) (string, error) {
	if len(h.originPatterns) == 0 {
		return origin, nil
	}

	h.logger.Debug("validating origin", zap.String("origin", origin))
	for _, p := range h.originPatterns {
		if p.MatchString(origin) {
			return origin, nil
		}
	}

	h.logger.Error("origin isn't allowed", zap.String("origin", origin))
	return "", NewForbidden("origin isn't allowed")
}

// optionsResponse answers a preflight request for the routes registered
// at one path. Credentials are allowed when the handler or any route
// allows them; headers are the ordered union of all declarations.
func (h *Handler) optionsResponse(req *Request, routes []*Route) (*ResponseBody, error) {
	origin, err := h.validateOrigin(req.Origin())
	if err != nil {
		return nil, err
	}

	credentials := h.cors.AllowCredentials
	exposed := appendUnique(nil, h.cors.ExposedHeaders...)
	allowed := appendUnique(nil, h.cors.AllowHeaders...)
	methods := []string{http.MethodOptions}
	for _, r := range routes {
		methods = append(methods, strings.ToUpper(r.Method))
		if r.CORS == nil {
			continue
		}
		credentials = credentials || r.CORS.AllowCredentials
		exposed = appendUnique(exposed, r.CORS.ExposedHeaders...)
		allowed = appendUnique(allowed, r.CORS.AllowHeaders...)
	}

	return &ResponseBody{
		StatusCode: http.StatusOK,
		MultiValueHeaders: map[string][]string{
			"Access-Control-Expose-Headers":    {strings.Join(exposed, ",")},
			"Access-Control-Allow-Methods":     {strings.Join(methods, ",")},
			"Access-Control-Allow-Headers":     {strings.Join(allowed, ",")},
			"Access-Control-Allow-Origin":      {origin},
			"Access-Control-Allow-Credentials": {strconv.FormatBool(credentials)},
		},
	}, nil
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		dup := false
		for _, d := range dst {
			if strings.EqualFold(d, v) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}
