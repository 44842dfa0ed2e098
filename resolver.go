package switchboard

import (
	"strings"

	"go.uber.org/zap"
)

// ProxySegment is the path segment the platform uses for a greedy
// catch-all resource.
const ProxySegment = "{proxy+}"

// PathMatcher is the compiled form of a route template. It has one
// segment pattern per template segment.
type PathMatcher struct {
	Path         string
	ParamIndices []int

	segments []segment
}

type segment struct {
	literal string
	param   bool
}

func compileMatcher(path string) *PathMatcher {
	parts := splitPath(path)
	m := &PathMatcher{
		Path:     path,
		segments: make([]segment, len(parts)),
	}
	for i, p := range parts {
		if isParamSegment(p) {
			m.segments[i] = segment{param: true}
			m.ParamIndices = append(m.ParamIndices, i)
			continue
		}
		m.segments[i] = segment{literal: p}
	}
	return m
}

// Match reports whether path has the same number of segments as the
// template and every literal segment is equal. Parameter segments match
// any non-empty value.
func (m *PathMatcher) Match(path string) bool {
	parts := splitPath(path)
	if len(parts) != len(m.segments) {
		return false
	}
	for i, s := range m.segments {
		if s.param {
			if parts[i] == "" {
				return false
			}
			continue
		}
		if parts[i] != s.literal {
			return false
		}
	}
	return true
}

// Resolution is the outcome of resolving a request against the route
// table.
type Resolution struct {
	// Resource is the route template to look routes up by.
	Resource string

	// Proxy is true when the platform matched a catch-all resource and the
	// actual path was re-resolved against the registered templates.
	Proxy bool

	// Matcher is the template that matched when Proxy is true.
	Matcher *PathMatcher
}

// PathResolver matches requests to routes. It is built once per handler
// and is read-only while requests are served.
type PathResolver struct {
	routes   []*Route
	matchers []*PathMatcher
	logger   *zap.Logger
}

// NewPathResolver compiles a matcher for every route.
func NewPathResolver(routes []*Route, logger *zap.Logger) *PathResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &PathResolver{logger: logger}
	for _, r := range routes {
		p.add(r)
	}
	return p
}

func (p *PathResolver) add(r *Route) {
	p.routes = append(p.routes, r)
	for _, m := range p.matchers {
		if m.Path == r.Path {
			return
		}
	}
	p.matchers = append(p.matchers, compileMatcher(r.Path))
}

// RouteFinder returns the route whose method and path equal the given
// pair, ignoring case and surrounding space.
func (p *PathResolver) RouteFinder(method, resource string) *Route {
	for _, r := range p.routes {
		if equalTrimmedFold(r.Method, method) && equalTrimmedFold(r.Path, resource) {
			return r
		}
	}
	return nil
}

// RouteByPathFinder returns every route registered at resource,
// regardless of method.
func (p *PathResolver) RouteByPathFinder(resource string) []*Route {
	var out []*Route
	for _, r := range p.routes {
		if equalTrimmedFold(r.Path, resource) {
			out = append(out, r)
		}
	}
	return out
}

// IsProxyPath reports whether resource contains the catch-all segment.
func (p *PathResolver) IsProxyPath(resource string) bool {
	for _, s := range strings.Split(resource, "/") {
		if s == ProxySegment {
			return true
		}
	}
	return false
}

// FuzzyResource resolves the route template for a request. A concrete
// resource is returned as-is. A catch-all resource is re-resolved by
// matching path against the compiled templates; the first registered
// template that matches wins. The boolean is false when a catch-all
// resource matches no template.
func (p *PathResolver) FuzzyResource(resource, path string) (Resolution, bool) {
	p.logger.Debug("resolving resource", zap.String("resource", resource), zap.String("path", path))

	if !p.IsProxyPath(resource) {
		return Resolution{Resource: resource}, true
	}

	m := p.resourceFromPath(path)
	if m == nil {
		return Resolution{Resource: resource, Proxy: true}, false
	}
	return Resolution{Resource: m.Path, Proxy: true, Matcher: m}, true
}

func (p *PathResolver) resourceFromPath(path string) *PathMatcher {
	var found *PathMatcher
	for _, m := range p.matchers {
		if !m.Match(path) {
			continue
		}
		if found != nil {
			p.logger.Debug("ambiguous route templates",
				zap.String("path", path),
				zap.String("selected", found.Path),
				zap.String("shadowed", m.Path),
			)
			continue
		}
		found = m
	}

	if found != nil {
		p.logger.Debug("resolved proxy path", zap.String("path", path), zap.String("resource", found.Path))
	}
	return found
}

// ResolvePathParams extracts the parameter values of path at the
// template's parameter positions. Names are the template segments with
// braces (and a trailing "+") stripped.
func (p *PathResolver) ResolvePathParams(path string, m *PathMatcher) map[string]string {
	params := make(map[string]string, len(m.ParamIndices))
	parts := splitPath(path)
	tmpl := splitPath(m.Path)
	for _, i := range m.ParamIndices {
		if i >= len(parts) || i >= len(tmpl) {
			continue
		}
		params[paramName(tmpl[i])] = parts[i]
	}

	p.logger.Debug("resolved path params", zap.Any("params", params))
	return params
}

// splitPath splits a path on "/". The root path has zero segments.
func splitPath(path string) []string {
	if path == "/" || path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func isParamSegment(s string) bool {
	return len(s) > 2 && strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

func paramName(s string) string {
	return strings.TrimSuffix(strings.Trim(s, "{}"), "+")
}

func equalTrimmedFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
