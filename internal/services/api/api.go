// Package api mounts the /api endpoints: health and session management.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/askings-go/internal/components/api"
	"github.com/MahdiBaghbani/askings-go/internal/frameworks/service"
	svccfg "github.com/MahdiBaghbani/askings-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/askings-go/internal/interceptors"
	"github.com/MahdiBaghbani/askings-go/internal/platform/deps"
	"github.com/MahdiBaghbani/askings-go/internal/platform/http/auth"
	"github.com/MahdiBaghbani/askings-go/internal/platform/logutil"
)

func init() {
	service.MustRegister("api", New)
}

// Config is decoded from [http.services.api].
type Config struct {
	Ratelimit RatelimitConfig `mapstructure:"ratelimit"`
}

// RatelimitConfig names the profile under [http.interceptors.ratelimit.profiles]
// applied to login. Empty disables limiting.
type RatelimitConfig struct {
	Profile string `mapstructure:"profile"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {}

// Service is the API service.
type Service struct {
	router chi.Router
	log    *slog.Logger
}

// New creates a new API service.
func New(m map[string]any, log *slog.Logger) (service.Service, error) {
	log = logutil.NoopIfNil(log)

	var c Config
	unused, err := svccfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "service", "api", "unused_keys", unused)
	}

	d := deps.GetDeps()
	if d == nil {
		return nil, errors.New("shared deps not initialized")
	}
	if d.Parties == nil || d.Sessions == nil || d.UserAuth == nil || d.Resolver == nil {
		return nil, errors.New("api: identity dependencies missing")
	}

	var (
		interceptorsCfg map[string]map[string]any
		ttl             time.Duration
	)
	if d.Config != nil {
		interceptorsCfg = d.Config.HTTP.Interceptors
		ttl = d.Config.SessionTTL()
	}

	var loginLimit interceptors.Middleware
	if c.Ratelimit.Profile != "" {
		loginLimit, err = interceptors.Build(interceptorsCfg, "ratelimit", c.Ratelimit.Profile, log)
		if err != nil {
			return nil, fmt.Errorf("api: %w", err)
		}
	}

	authHandler := NewAuthHandler(d.Parties, d.Sessions, d.UserAuth, ttl, log)
	requireCaller := auth.RequireCaller(d.Resolver, log)

	r := chi.NewRouter()
	r.Get("/healthz", api.HealthHandler)

	r.Route("/auth", func(r chi.Router) {
		r.With(loginLimitOrPass(loginLimit)).Post("/login", authHandler.Login)
		r.With(requireCaller).Post("/logout", authHandler.Logout)
		r.With(requireCaller).Get("/me", authHandler.Me)
	})

	return &Service{router: r, log: log}, nil
}

func loginLimitOrPass(mw interceptors.Middleware) func(http.Handler) http.Handler {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}

func (s *Service) Handler() http.Handler {
	return s.router
}

func (s *Service) Prefix() string {
	return "api"
}

// Unprotected lists routes served without a caller.
func (s *Service) Unprotected() []string {
	return []string{"/healthz", "/auth/login"}
}

func (s *Service) Close() error {
	return nil
}
