package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeStrict Mode = "strict"
	ModeDev    Mode = "dev"
)

// ParseMode parses a mode string; empty selects strict.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict", "":
		return ModeStrict, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of strict, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is an optional TOML file. A missing or invalid file fails the load.
	ConfigPath string

	// ModeFlag is the -mode flag value and wins over the file.
	ModeFlag string

	// EnvFile is an optional dotenv file. A missing file is ignored.
	EnvFile string

	// Environ replaces the process environment when non-nil.
	Environ map[string]string

	FlagOverrides FlagOverrides

	// Logger receives warnings such as undecoded keys. Nil means slog.Default().
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values. Nil or empty pointers leave the config alone.
type FlagOverrides struct {
	ListenAddr    *string
	PublicOrigin  *string
	TLSMode       *string
	StoreDriver   *string
	StoreDataDir  *string
	AdminUsername *string
	AdminPassword *string
	LoggingLevel  *string
}

// fileConfig mirrors Config with pointer sections to detect presence.
type fileConfig struct {
	Mode         string `toml:"mode"`
	PublicOrigin string `toml:"public_origin"`
	ListenAddr   string `toml:"listen_addr"`

	Server  *serverFileConfig `toml:"server"`
	TLS     *tlsFileConfig    `toml:"tls"`
	Store   *StoreConfig      `toml:"store"`
	Cache   *CacheConfig      `toml:"cache"`
	Logging *LoggingConfig    `toml:"logging"`
	HTTP    *HTTPConfig       `toml:"http"`
}

type serverFileConfig struct {
	TrustedProxies      []string              `toml:"trusted_proxies"`
	BootstrapAdmin      *BootstrapAdminConfig `toml:"bootstrap_admin"`
	SeededUsers         []SeededUserConfig    `toml:"seeded_users"`
	SessionTTLHours     int                   `toml:"session_ttl_hours"`
	SessionSweepSeconds int                   `toml:"session_sweep_seconds"`
}

type tlsFileConfig struct {
	Mode          string          `toml:"mode"`
	CertFile      string          `toml:"cert_file"`
	KeyFile       string          `toml:"key_file"`
	HTTPPort      int             `toml:"http_port"`
	HTTPSPort     int             `toml:"https_port"`
	SelfSignedDir string          `toml:"self_signed_dir"`
	ACME          *acmeFileConfig `toml:"acme"`
}

type acmeFileConfig struct {
	Email      string `toml:"email"`
	Domain     string `toml:"domain"`
	Directory  string `toml:"directory"`
	StorageDir string `toml:"storage_dir"`
	UseStaging *bool  `toml:"use_staging"`
	RootCAFile string `toml:"root_ca_file"`
}

// Load builds the effective configuration:
//  1. mode: -mode flag > file > strict
//  2. mode preset
//  3. TOML file
//  4. environment (ASKINGS_*, optionally seeded from a dotenv file)
//  5. CLI flags
//  6. validation
//
// Undecoded TOML keys are logged, not fatal.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig
	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	modeStr := fc.Mode
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}
	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := presetForMode(mode)
	overlayFileConfig(cfg, &fc)

	ov, err := loadEnv(opts.EnvFile, opts.Environ)
	if err != nil {
		return nil, err
	}
	overlayEnv(cfg, ov)

	overlayFlags(cfg, opts.FlagOverrides)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return StrictConfig()
}

// StrictConfig returns production defaults.
func StrictConfig() *Config {
	return &Config{
		Mode:         string(ModeStrict),
		PublicOrigin: "https://localhost:9200",
		ListenAddr:   ":9200",
		Server: ServerConfig{
			TrustedProxies:      []string{"127.0.0.0/8", "::1/128"},
			BootstrapAdmin:      BootstrapAdminConfig{Username: "admin"},
			SessionTTLHours:     24,
			SessionSweepSeconds: 300,
		},
		TLS: TLSConfig{
			Mode:          "selfsigned",
			HTTPPort:      9280,
			HTTPSPort:     9200,
			SelfSignedDir: ".askings/certs",
			ACME: ACMEConfig{
				StorageDir: ".askings/acme",
			},
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: ".askings/data",
		},
		Cache:   CacheConfig{Driver: "memory"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// DevConfig returns development defaults: plain HTTP, JSON file store, debug logs.
func DevConfig() *Config {
	cfg := StrictConfig()
	cfg.Mode = string(ModeDev)
	cfg.PublicOrigin = "http://localhost:9200"
	cfg.TLS.Mode = "off"
	cfg.TLS.ACME.UseStaging = true
	cfg.Store.Driver = "json"
	cfg.Logging.Level = "debug"
	return cfg
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func overlayFileConfig(cfg *Config, fc *fileConfig) {
	setString(&cfg.PublicOrigin, fc.PublicOrigin)
	setString(&cfg.ListenAddr, fc.ListenAddr)

	if s := fc.Server; s != nil {
		if len(s.TrustedProxies) > 0 {
			cfg.Server.TrustedProxies = s.TrustedProxies
		}
		if s.BootstrapAdmin != nil {
			setString(&cfg.Server.BootstrapAdmin.Username, s.BootstrapAdmin.Username)
			cfg.Server.BootstrapAdmin.Password = s.BootstrapAdmin.Password
		}
		if len(s.SeededUsers) > 0 {
			cfg.Server.SeededUsers = s.SeededUsers
		}
		setInt(&cfg.Server.SessionTTLHours, s.SessionTTLHours)
		setInt(&cfg.Server.SessionSweepSeconds, s.SessionSweepSeconds)
	}

	if t := fc.TLS; t != nil {
		setString(&cfg.TLS.Mode, t.Mode)
		setString(&cfg.TLS.CertFile, t.CertFile)
		setString(&cfg.TLS.KeyFile, t.KeyFile)
		setInt(&cfg.TLS.HTTPPort, t.HTTPPort)
		setInt(&cfg.TLS.HTTPSPort, t.HTTPSPort)
		setString(&cfg.TLS.SelfSignedDir, t.SelfSignedDir)
		if a := t.ACME; a != nil {
			setString(&cfg.TLS.ACME.Email, a.Email)
			setString(&cfg.TLS.ACME.Domain, a.Domain)
			setString(&cfg.TLS.ACME.Directory, a.Directory)
			setString(&cfg.TLS.ACME.StorageDir, a.StorageDir)
			setString(&cfg.TLS.ACME.RootCAFile, a.RootCAFile)
			if a.UseStaging != nil {
				cfg.TLS.ACME.UseStaging = *a.UseStaging
			}
		}
	}

	if s := fc.Store; s != nil {
		setString(&cfg.Store.Driver, s.Driver)
		setString(&cfg.Store.DataDir, s.DataDir)
		setString(&cfg.Store.DSN, s.DSN)
	}

	if c := fc.Cache; c != nil {
		setString(&cfg.Cache.Driver, c.Driver)
		if len(c.Drivers) > 0 {
			cfg.Cache.Drivers = c.Drivers
		}
	}

	if fc.Logging != nil {
		setString(&cfg.Logging.Level, fc.Logging.Level)
	}

	if h := fc.HTTP; h != nil {
		for name, svcCfg := range h.Services {
			if cfg.HTTP.Services == nil {
				cfg.HTTP.Services = make(map[string]map[string]any)
			}
			cfg.HTTP.Services[name] = svcCfg
		}
		for name, intCfg := range h.Interceptors {
			if cfg.HTTP.Interceptors == nil {
				cfg.HTTP.Interceptors = make(map[string]map[string]any)
			}
			cfg.HTTP.Interceptors[name] = intCfg
		}
	}
}

func overlayFlags(cfg *Config, f FlagOverrides) {
	apply := func(dst *string, src *string) {
		if src != nil {
			setString(dst, *src)
		}
	}
	apply(&cfg.ListenAddr, f.ListenAddr)
	apply(&cfg.PublicOrigin, f.PublicOrigin)
	apply(&cfg.TLS.Mode, f.TLSMode)
	apply(&cfg.Store.Driver, f.StoreDriver)
	apply(&cfg.Store.DataDir, f.StoreDataDir)
	apply(&cfg.Server.BootstrapAdmin.Username, f.AdminUsername)
	apply(&cfg.Server.BootstrapAdmin.Password, f.AdminPassword)
	apply(&cfg.Logging.Level, f.LoggingLevel)
}

func validate(cfg *Config) error {
	switch cfg.TLS.Mode {
	case "off", "static", "selfsigned", "acme":
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static, selfsigned, acme", cfg.TLS.Mode)
	}

	switch cfg.Store.Driver {
	case "json", "sqlite":
		if cfg.Store.DataDir == "" {
			return fmt.Errorf("store.data_dir is required for the %s driver", cfg.Store.Driver)
		}
	case "postgres":
		if cfg.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of json, sqlite, postgres", cfg.Store.Driver)
	}

	switch cfg.Cache.Driver {
	case "", "memory", "valkey":
	default:
		return fmt.Errorf("invalid cache.driver %q: must be one of memory, valkey", cfg.Cache.Driver)
	}

	switch cfg.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of trace, debug, info, warn, error", cfg.Logging.Level)
	}

	if cfg.Server.SessionTTLHours <= 0 {
		return fmt.Errorf("server.session_ttl_hours must be positive")
	}
	if cfg.Server.SessionSweepSeconds <= 0 {
		return fmt.Errorf("server.session_sweep_seconds must be positive")
	}
	for i, u := range cfg.Server.SeededUsers {
		if u.Username == "" {
			return fmt.Errorf("server.seeded_users[%d].username is required", i)
		}
	}

	if err := validateRatelimitConfig(cfg); err != nil {
		return err
	}
	return validatePublicOrigin(cfg.PublicOrigin)
}

// validateRatelimitConfig checks that every [http.services.<svc>.ratelimit]
// profile exists under [http.interceptors.ratelimit.profiles].
func validateRatelimitConfig(cfg *Config) error {
	profiles := make(map[string]bool)
	if rlCfg, ok := cfg.HTTP.Interceptors["ratelimit"]; ok {
		if raw, ok := rlCfg["profiles"]; ok {
			m, ok := raw.(map[string]any)
			if !ok {
				return fmt.Errorf("http.interceptors.ratelimit.profiles must be a map")
			}
			for name, p := range m {
				if _, ok := p.(map[string]any); !ok {
					return fmt.Errorf("http.interceptors.ratelimit.profiles.%s must be a map", name)
				}
				profiles[name] = true
			}
		}
	}

	for svcName, svcCfg := range cfg.HTTP.Services {
		rl, ok := svcCfg["ratelimit"].(map[string]any)
		if !ok {
			continue
		}
		if name, ok := rl["profile"].(string); ok && !profiles[name] {
			return fmt.Errorf("http.services.%s.ratelimit references undefined profile %q", svcName, name)
		}
	}
	return nil
}

// validatePublicOrigin requires an absolute http(s) origin without userinfo,
// query, fragment or path.
func validatePublicOrigin(origin string) error {
	if origin == "" {
		return nil
	}
	if origin != strings.TrimSpace(origin) {
		return fmt.Errorf("invalid public_origin %q: must not contain leading or trailing whitespace", origin)
	}
	u, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid public_origin %q: %w", origin, err)
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("invalid public_origin %q: scheme must be http or https", origin)
	case u.Host == "":
		return fmt.Errorf("invalid public_origin %q: must include a host", origin)
	case u.User != nil:
		return fmt.Errorf("invalid public_origin %q: must not include userinfo", origin)
	case u.RawQuery != "" || u.Fragment != "":
		return fmt.Errorf("invalid public_origin %q: must not include a query or fragment", origin)
	case u.Path != "" && u.Path != "/":
		return fmt.Errorf("invalid public_origin %q: must not include a path", origin)
	}
	return nil
}
