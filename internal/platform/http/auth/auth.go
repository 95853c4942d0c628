// Package auth provides caller-resolution middleware for HTTP routes.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MahdiBaghbani/askings-go/internal/components/api"
	"github.com/MahdiBaghbani/askings-go/internal/components/identity"
	"github.com/MahdiBaghbani/askings-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/askings-go/internal/platform/logutil"
)

type contextKey string

const callerContextKey contextKey = "caller"

// SessionCookie is the cookie consulted when no authorization header is sent.
const SessionCookie = "session"

// CallerResolver turns a credential into a caller.
type CallerResolver interface {
	Resolve(ctx context.Context, token string) (*identity.Caller, error)
}

// RequireCaller resolves the caller once per request and attaches it to the
// context. Routes that do not use it stay public.
func RequireCaller(resolver CallerResolver, log *slog.Logger) func(http.Handler) http.Handler {
	log = logutil.NoopIfNil(log)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := resolver.Resolve(r.Context(), ExtractToken(r))
			switch {
			case errors.Is(err, identity.ErrUnauthenticated):
				api.WriteUnauthorized(w, api.ReasonUnauthenticated, "No token provided")
				return
			case errors.Is(err, identity.ErrInvalidToken):
				api.WriteUnauthorized(w, api.ReasonInvalidToken, "Invalid token")
				return
			case err != nil:
				requestLogger(r.Context(), log).Error("caller resolution failed", "error", err)
				api.WriteInternalError(w, api.ReasonInternalError, "Error verifying token", err.Error())
				return
			}

			ctx := WithCaller(r.Context(), caller)
			// Handler logs carry the caller; the access log does not.
			reqLogger := requestLogger(ctx, log).With("caller_id", caller.ID)
			ctx = appctx.WithLogger(ctx, reqLogger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestLogger(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := appctx.LoggerFromContext(ctx); ok {
		return l
	}
	return fallback
}

// ExtractToken reads the authorization header, accepting both a raw token and
// "Bearer <token>", then falls back to the session cookie.
func ExtractToken(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		return identity.StripBearer(h)
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// WithCaller returns ctx carrying caller.
func WithCaller(ctx context.Context, caller *identity.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}

// CallerFromContext returns the caller attached by RequireCaller, or nil.
func CallerFromContext(ctx context.Context) *identity.Caller {
	caller, _ := ctx.Value(callerContextKey).(*identity.Caller)
	return caller
}
