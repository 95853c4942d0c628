// Package ratelimit is a fixed-window rate limiting interceptor backed by the
// cache counter.
package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MahdiBaghbani/askings-go/internal/components/api"
	svccfg "github.com/MahdiBaghbani/askings-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/askings-go/internal/interceptors"
	"github.com/MahdiBaghbani/askings-go/internal/platform/cache"
	"github.com/MahdiBaghbani/askings-go/internal/platform/deps"
	"github.com/MahdiBaghbani/askings-go/internal/platform/http/auth"
	"github.com/MahdiBaghbani/askings-go/internal/platform/logutil"
)

func init() {
	interceptors.Register("ratelimit", New)
}

// Key strategies.
const (
	KeyByIP     = "ip"
	KeyByCaller = "caller"
)

// Config is one [http.interceptors.ratelimit.profiles.<name>] table.
type Config struct {
	RequestsPerWindow int64 `mapstructure:"requests_per_window"`
	WindowSeconds     int   `mapstructure:"window_seconds"`

	// KeyBy is "ip" (default) or "caller". Caller keying falls back to the
	// client address on routes without an authenticated caller.
	KeyBy string `mapstructure:"key_by"`
}

// ApplyDefaults sets unconfigured fields.
func (c *Config) ApplyDefaults() {
	if c.RequestsPerWindow == 0 {
		c.RequestsPerWindow = 100
	}
	if c.WindowSeconds == 0 {
		c.WindowSeconds = 60
	}
	if c.KeyBy == "" {
		c.KeyBy = KeyByIP
	}
}

// Limiter counts requests per key in the cache.
type Limiter struct {
	counter cache.Counter
	keyFunc func(*http.Request) string
	limit   int64
	window  time.Duration
	log     *slog.Logger
}

// NewLimiter builds a limiter around an explicit counter and key function.
func NewLimiter(counter cache.Counter, keyFunc func(*http.Request) string, limit int64, window time.Duration, log *slog.Logger) *Limiter {
	return &Limiter{
		counter: counter,
		keyFunc: keyFunc,
		limit:   limit,
		window:  window,
		log:     logutil.NoopIfNil(log),
	}
}

// New builds the interceptor from a profile table. It needs the shared cache
// and trusted proxy list.
func New(conf map[string]any, log *slog.Logger) (interceptors.Middleware, error) {
	var c Config
	if err := svccfg.Decode(conf, &c); err != nil {
		return nil, err
	}
	if c.RequestsPerWindow < 0 || c.WindowSeconds < 0 {
		return nil, errors.New("requests_per_window and window_seconds must not be negative")
	}

	d := deps.GetDeps()
	if d == nil || d.Cache == nil {
		return nil, errors.New("ratelimit needs the shared cache")
	}

	byIP := func(r *http.Request) string { return KeyByIP + ":" + d.RealIP.GetClientIPString(r) }
	var keyFunc func(*http.Request) string
	switch c.KeyBy {
	case KeyByIP:
		keyFunc = byIP
	case KeyByCaller:
		keyFunc = func(r *http.Request) string {
			if caller := auth.CallerFromContext(r.Context()); caller != nil {
				return KeyByCaller + ":" + caller.ID
			}
			return byIP(r)
		}
	default:
		return nil, fmt.Errorf("unknown key_by %q", c.KeyBy)
	}

	limiter := NewLimiter(d.Cache, keyFunc, c.RequestsPerWindow, time.Duration(c.WindowSeconds)*time.Second, log)
	return limiter.Wrap, nil
}

// Wrap applies the limit. Counter failures let the request through.
func (l *Limiter) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.keyFunc(r)
		count, resetAt, err := l.counter.Increment(r.Context(), "ratelimit:"+key, 1, l.window)
		if err != nil {
			l.log.Warn("rate limit check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if count > l.limit {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			l.log.Debug("rate limited", "key", key, "count", count)
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			api.WriteTooManyRequests(w, "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}
