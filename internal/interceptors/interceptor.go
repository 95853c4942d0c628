// Package interceptors holds named HTTP middleware that services attach to
// individual routes by profile.
package interceptors

import (
	"fmt"
	"log/slog"
	"net/http"
)

// Middleware is an HTTP middleware function.
type Middleware func(http.Handler) http.Handler

// NewInterceptor builds a middleware from one profile table.
type NewInterceptor func(conf map[string]any, log *slog.Logger) (Middleware, error)

// Build resolves [http.interceptors.<name>.profiles.<profile>] and constructs
// the named interceptor from it.
func Build(interceptorsCfg map[string]map[string]any, name, profile string, log *slog.Logger) (Middleware, error) {
	newFn, ok := Get(name)
	if !ok {
		return nil, fmt.Errorf("interceptor %q is not registered", name)
	}
	conf, err := GetProfileConfig(interceptorsCfg, name, profile)
	if err != nil {
		return nil, err
	}
	mw, err := newFn(conf, log.With("interceptor", name, "profile", profile))
	if err != nil {
		return nil, fmt.Errorf("build %s profile %q: %w", name, profile, err)
	}
	return mw, nil
}

// Chain wraps h with mws, the first being outermost. Nil entries are skipped.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}
