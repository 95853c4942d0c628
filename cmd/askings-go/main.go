// Package main is the entrypoint for the askings-go server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/MahdiBaghbani/askings-go/internal/components/askings"
	"github.com/MahdiBaghbani/askings-go/internal/components/identity"
	"github.com/MahdiBaghbani/askings-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/askings-go/internal/platform/cache"
	"github.com/MahdiBaghbani/askings-go/internal/platform/config"
	"github.com/MahdiBaghbani/askings-go/internal/platform/deps"
	"github.com/MahdiBaghbani/askings-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/askings-go/internal/platform/http/server"
	"github.com/MahdiBaghbani/askings-go/internal/platform/logutil"
	"github.com/MahdiBaghbani/askings-go/internal/platform/store"

	_ "github.com/MahdiBaghbani/askings-go/internal/platform/cache/loader"
	_ "github.com/MahdiBaghbani/askings-go/internal/platform/store/loader"
	_ "github.com/MahdiBaghbani/askings-go/internal/services/loader"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	modeFlag := flag.String("mode", "", "Operating mode: strict or dev (overrides config)")
	envFile := flag.String("env-file", ".env", "Dotenv file merged under the environment (ignored when missing)")
	listenAddr := flag.String("listen", "", "Listen address (overrides config)")
	publicOrigin := flag.String("public-origin", "", "Public origin (overrides config)")
	tlsMode := flag.String("tls-mode", "", "TLS mode: off, static, selfsigned, or acme (overrides config)")
	storeDriver := flag.String("store-driver", "", "Asking store: json, sqlite, or postgres (overrides config)")
	storeDataDir := flag.String("store-data-dir", "", "Data directory for the json and sqlite stores (overrides config)")
	adminUsername := flag.String("admin-username", "", "Bootstrap admin username (overrides config)")
	adminPassword := flag.String("admin-password", "", "Bootstrap admin password (overrides config)")
	loggingLevel := flag.String("logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	flag.Parse()

	// Config errors are reported before the configured logger exists.
	bootstrapLogger := logutil.New("info")

	cfg, err := config.Load(config.LoaderOptions{
		ConfigPath: *configPath,
		ModeFlag:   *modeFlag,
		EnvFile:    *envFile,
		FlagOverrides: config.FlagOverrides{
			ListenAddr:    listenAddr,
			PublicOrigin:  publicOrigin,
			TLSMode:       tlsMode,
			StoreDriver:   storeDriver,
			StoreDataDir:  storeDataDir,
			AdminUsername: adminUsername,
			AdminPassword: adminPassword,
			LoggingLevel:  loggingLevel,
		},
		Logger: bootstrapLogger,
	})
	if err != nil {
		bootstrapLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logutil.New(cfg.Logging.Level)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// app is the wired process: storage, cache, identity and the HTTP server.
type app struct {
	srv      *server.Server
	sessions identity.SessionRepo
	closers  []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// setup opens every backend and constructs the server without listening.
func setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	driver, askingStore, err := store.Open(ctx, &store.DriverConfig{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
		DSN:     cfg.Store.DSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, driver.Close)
	logger.Info("asking store ready", "driver", driver.Name())

	cacheInstance, err := cache.NewFromConfig(cfg.Cache.Driver, cfg.Cache.Drivers, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create cache: %w", err)
	}
	a.closers = append(a.closers, cacheInstance.Close)

	parties := identity.NewMemoryPartyRepo()
	sessions := identity.NewMemorySessionRepo()
	userAuth := identity.NewUserAuth(0)
	a.sessions = sessions

	if err := bootstrapUsers(ctx, cfg, parties, userAuth, logger); err != nil {
		a.close()
		return nil, err
	}

	proxies, err := realip.New(cfg.Server.TrustedProxies)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	deps.SetDeps(&deps.Deps{
		Parties:   parties,
		Sessions:  sessions,
		UserAuth:  userAuth,
		Resolver:  identity.NewResolver(sessions, parties),
		Directory: identity.NewDirectory(parties, cacheInstance, cache.TTLDisplayName, logger),
		Askings:   askings.NewStoreRepo(askingStore),
		Config:    cfg,
		Cache:     cacheInstance,
		RealIP:    proxies,
	})

	services, err := buildServices(cfg, logger)
	if err != nil {
		a.close()
		return nil, err
	}

	a.srv, err = server.New(cfg, logger, services)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create server: %w", err)
	}
	return a, nil
}

func run(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("effective configuration", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	go identity.SweepSessions(ctx, a.sessions, cfg.SessionSweepInterval(), logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.srv.Start(ctx)
	}()

	logger.Info("server started, press Ctrl+C to stop")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return a.srv.Shutdown(shutdownCtx)
}

// bootstrapUsers creates the super admin and any seeded users.
func bootstrapUsers(ctx context.Context, cfg *config.Config, parties identity.PartyRepo, userAuth *identity.UserAuth, logger *slog.Logger) error {
	bootstrap := identity.NewBootstrap(parties, userAuth, logger)

	admin := cfg.Server.BootstrapAdmin
	if err := bootstrap.EnsureSuperAdmin(ctx, admin.Username, admin.Password, admin.Password != ""); err != nil {
		return fmt.Errorf("bootstrap super admin: %w", err)
	}

	seeded := make([]identity.SeededUser, 0, len(cfg.Server.SeededUsers))
	for _, u := range cfg.Server.SeededUsers {
		seeded = append(seeded, identity.SeededUser{
			ID:       u.ID,
			Username: u.Username,
			Password: u.Password,
			Email:    u.Email,
			Pseudo:   u.Pseudo,
			Roles:    u.Roles,
		})
	}
	created, err := bootstrap.Run(ctx, seeded)
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	logger.Info("users bootstrapped", "seeded", len(seeded), "created", created)
	return nil
}

// buildServices constructs every core service plus any other registered
// service that has an [http.services.<name>] table.
func buildServices(cfg *config.Config, logger *slog.Logger) (map[string]service.Service, error) {
	names := append([]string{}, service.CoreServices...)
	for _, name := range service.RegisteredServices() {
		if _, configured := cfg.HTTP.Services[name]; configured && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	services := make(map[string]service.Service, len(names))
	for _, name := range names {
		newFn := service.Get(name)
		if newFn == nil {
			return nil, fmt.Errorf("service %q is not registered", name)
		}
		svc, err := newFn(cfg.BuildServiceConfig(name), logger.With("service", name))
		if err != nil {
			return nil, fmt.Errorf("construct service %q: %w", name, err)
		}
		services[name] = svc
	}
	return services, nil
}
