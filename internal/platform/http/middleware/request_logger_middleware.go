// Package middleware provides always-on transport middleware for HTTP servers.
package middleware

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MahdiBaghbani/askings-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/askings-go/internal/platform/http/realip"
)

// RequestLogger attaches a logger carrying request_id, method, path and
// client_ip to the request context. It must run after chi's RequestID.
func RequestLogger(base *slog.Logger, proxies *realip.TrustedProxies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := appctx.WithLogger(r.Context(), baseFields(base, proxies, r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func baseFields(base *slog.Logger, proxies *realip.TrustedProxies, r *http.Request) *slog.Logger {
	return base.With(
		"request_id", chimw.GetReqID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
		"client_ip", proxies.GetClientIPString(r),
	)
}
