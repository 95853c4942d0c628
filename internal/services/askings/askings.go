// Package askings mounts the booking routes at the server root.
package askings

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MahdiBaghbani/askings-go/internal/components/askings"
	"github.com/MahdiBaghbani/askings-go/internal/frameworks/service"
	svccfg "github.com/MahdiBaghbani/askings-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/askings-go/internal/frameworks/service/httpwrap"
	"github.com/MahdiBaghbani/askings-go/internal/interceptors"
	"github.com/MahdiBaghbani/askings-go/internal/platform/deps"
	"github.com/MahdiBaghbani/askings-go/internal/platform/http/auth"
	"github.com/MahdiBaghbani/askings-go/internal/platform/logutil"
)

func init() {
	service.MustRegister("askings", New)
}

// Config is decoded from [http.services.askings].
type Config struct {
	// ListingPolicy is "legacy" or "subject_or_admin".
	ListingPolicy string `mapstructure:"listing_policy"`

	// PatchMode is "permissive" or "restricted".
	PatchMode string `mapstructure:"patch_mode"`

	// Ratelimit applies to the mutating routes.
	Ratelimit RatelimitConfig `mapstructure:"ratelimit"`
}

type RatelimitConfig struct {
	Profile string `mapstructure:"profile"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {
	if c.ListingPolicy == "" {
		c.ListingPolicy = string(askings.ListingLegacy)
	}
	if c.PatchMode == "" {
		c.PatchMode = string(askings.PatchPermissive)
	}
}

// Service serves the asking lifecycle.
type Service struct {
	router chi.Router
	engine *askings.Service
}

// New builds the engine over the shared asking repository and user directory.
func New(m map[string]any, log *slog.Logger) (service.Service, error) {
	log = logutil.NoopIfNil(log)

	var c Config
	unused, err := svccfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "service", "askings", "unused_keys", unused)
	}

	policy, err := askings.ParseListingPolicy(c.ListingPolicy)
	if err != nil {
		return nil, fmt.Errorf("askings: %w", err)
	}
	patchMode, err := askings.ParsePatchMode(c.PatchMode)
	if err != nil {
		return nil, fmt.Errorf("askings: %w", err)
	}

	d := deps.GetDeps()
	if d == nil {
		return nil, errors.New("shared deps not initialized")
	}
	if d.Askings == nil || d.Resolver == nil {
		return nil, errors.New("askings: repository and resolver are required")
	}

	var names askings.NameResolver
	if d.Directory != nil {
		names = d.Directory
	}

	var mutationLimit interceptors.Middleware
	if c.Ratelimit.Profile != "" {
		var interceptorsCfg map[string]map[string]any
		if d.Config != nil {
			interceptorsCfg = d.Config.HTTP.Interceptors
		}
		mutationLimit, err = interceptors.Build(interceptorsCfg, "ratelimit", c.Ratelimit.Profile, log)
		if err != nil {
			return nil, fmt.Errorf("askings: %w", err)
		}
	}

	engine := askings.NewService(d.Askings, names, askings.Options{
		ListingPolicy: policy,
		PatchMode:     patchMode,
	}, log)
	h := askings.NewHandler(engine, log)

	log.Info("askings service configured",
		"listing_policy", string(policy),
		"patch_mode", string(patchMode),
		"ratelimit_profile", c.Ratelimit.Profile,
	)

	// The caller is resolved before rate limiting so limits can key on it.
	mutating := []func(http.Handler) http.Handler{auth.RequireCaller(d.Resolver, log)}
	if mutationLimit != nil {
		mutating = append(mutating, mutationLimit)
	}

	r := chi.NewRouter()
	r.Get("/asking", h.ListAll)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireCaller(d.Resolver, log))
		r.Get("/asking/{id}", h.Get)
		r.Get("/askings/mentor/{mentor_id}", h.ListByMentor)
		r.Get("/askings/user/{user_id}", h.ListByUser)
	})

	r.Group(func(r chi.Router) {
		r.Use(mutating...)
		r.Post("/asking", h.Create)
		r.Patch("/asking/{id}", h.Update)
		r.Delete("/asking/{id}", h.Delete)
		r.Patch("/accept-asking/{id}", h.Transition)
	})

	return &Service{router: r, engine: engine}, nil
}

func (s *Service) Handler() http.Handler {
	return httpwrap.ClearRawPath(s.router)
}

// Prefix is empty: the booking routes live at the root.
func (s *Service) Prefix() string {
	return ""
}

func (s *Service) Unprotected() []string {
	return []string{"GET /asking"}
}

func (s *Service) Close() error {
	return nil
}
