// SPDX-FileCopyrightText: The go-mail Authors
//
// SPDX-License-Identifier: MIT

// Package routing builds absolute URLs for named routes and serves the unsubscribe endpoint.
package routing

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	dispatch "github.com/wneessen/go-mail-dispatch"
)

// UnsubscribePattern is the path pattern of the unsubscribe route
const UnsubscribePattern = "/email/unsubscribe/{" + dispatch.ParamIDHash + "}"

var (
	// ErrUnknownRoute is returned by AbsoluteURL for a route name that is not registered.
	ErrUnknownRoute = errors.New("unknown route")

	// ErrMissingParam is returned by AbsoluteURL if a path parameter has no value.
	ErrMissingParam = errors.New("missing route parameter")
)

var paramRegexp = regexp.MustCompile(`\{([^{}/]+)\}`)

// Router maps route names to path patterns below a base URL. It implements dispatch.URLBuilder.
// A Router must not be modified while in use.
type Router struct {
	base   *url.URL
	routes map[string]string
}

// New returns a Router for the given absolute base URL with the unsubscribe route registered.
func New(baseURL string) (*Router, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	r := &Router{base: u, routes: make(map[string]string)}
	r.Handle(dispatch.RouteUnsubscribe, UnsubscribePattern)
	return r, nil
}

// Handle registers the path pattern for the route name. Path parameters are written as {name}.
func (r *Router) Handle(name, pattern string) {
	r.routes[name] = pattern
}

// Pattern returns the path pattern of the route name.
func (r *Router) Pattern(name string) (string, bool) {
	p, ok := r.routes[name]
	return p, ok
}

// AbsoluteURL returns the absolute URL of the named route with the path parameters filled in.
// Parameters that do not appear in the pattern are added to the query string.
func (r *Router) AbsoluteURL(route string, params map[string]string) (string, error) {
	pattern, ok := r.routes[route]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRoute, route)
	}

	used := make(map[string]bool)
	var missing []string
	path := paramRegexp.ReplaceAllStringFunc(pattern, func(match string) string {
		name := match[1 : len(match)-1]
		val, ok := params[name]
		if !ok || val == "" {
			missing = append(missing, name)
			return match
		}
		used[name] = true
		return url.PathEscape(val)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s for route %s", ErrMissingParam, strings.Join(missing, ", "), route)
	}

	var b strings.Builder
	b.WriteString(r.base.Scheme + "://" + r.base.Host)
	b.WriteString(r.base.EscapedPath())
	b.WriteString(path)
	query := url.Values{}
	for k, v := range params {
		if !used[k] {
			query.Set(k, v)
		}
	}
	if len(query) > 0 {
		b.WriteString("?" + query.Encode())
	}
	return b.String(), nil
}
