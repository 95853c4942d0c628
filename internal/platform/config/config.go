// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Mode is the operating mode: strict or dev.
	Mode string `toml:"mode"`

	// PublicOrigin is the externally visible origin, e.g. "https://askings.example.org".
	PublicOrigin string `toml:"public_origin"`

	// ListenAddr is the address to listen on, e.g. ":9200".
	ListenAddr string `toml:"listen_addr"`

	Server  ServerConfig  `toml:"server"`
	TLS     TLSConfig     `toml:"tls"`
	Store   StoreConfig   `toml:"store"`
	Cache   CacheConfig   `toml:"cache"`
	Logging LoggingConfig `toml:"logging"`

	// HTTP holds per-service and per-interceptor configuration.
	HTTP HTTPConfig `toml:"http"`
}

// HTTPConfig holds raw config maps under [http.services.<name>] and
// [http.interceptors.<name>]. Each consumer decodes its own map.
type HTTPConfig struct {
	Services map[string]map[string]any `toml:"services"`

	// Ratelimit profiles live at [http.interceptors.ratelimit.profiles.<name>];
	// a service opts in with [http.services.<svc>.ratelimit] profile = "<name>".
	Interceptors map[string]map[string]any `toml:"interceptors"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `toml:"level"`
}

// StoreConfig selects the asking persistence driver.
type StoreConfig struct {
	// Driver is json, sqlite or postgres.
	Driver string `toml:"driver"`

	// DataDir holds askings.json or askings.db.
	DataDir string `toml:"data_dir"`

	// DSN is the PostgreSQL connection string.
	DSN string `toml:"dsn"`
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	// Driver is "memory" (default) or "valkey".
	Driver string `toml:"driver"`

	// Drivers holds per-driver tables, e.g. [cache.drivers.valkey].
	Drivers map[string]any `toml:"drivers"`
}

// ServerConfig holds server-level settings.
type ServerConfig struct {
	// TrustedProxies lists CIDRs whose forwarding headers are honored.
	TrustedProxies []string `toml:"trusted_proxies"`

	BootstrapAdmin BootstrapAdminConfig `toml:"bootstrap_admin"`

	// SeededUsers are created at startup when missing.
	SeededUsers []SeededUserConfig `toml:"seeded_users"`

	// SessionTTLHours bounds the lifetime of login tokens.
	SessionTTLHours int `toml:"session_ttl_hours"`

	// SessionSweepSeconds is the interval of the expired-session sweeper.
	SessionSweepSeconds int `toml:"session_sweep_seconds"`
}

// BootstrapAdminConfig holds super admin credentials. An empty password on
// first boot produces a generated one, logged once.
type BootstrapAdminConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// SeededUserConfig is one [[server.seeded_users]] entry.
type SeededUserConfig struct {
	ID       string   `toml:"id"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	Email    string   `toml:"email"`
	Pseudo   string   `toml:"pseudo"`
	Roles    []string `toml:"roles"`
}

// TLSConfig holds TLS-related settings.
type TLSConfig struct {
	// Mode is one of off, static, selfsigned, acme.
	Mode string `toml:"mode"`

	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`

	// HTTPPort serves ACME challenges and HTTPS redirects in acme mode.
	HTTPPort  int `toml:"http_port"`
	HTTPSPort int `toml:"https_port"`

	SelfSignedDir string `toml:"self_signed_dir"`

	ACME ACMEConfig `toml:"acme"`
}

// ACMEConfig holds ACME settings.
type ACMEConfig struct {
	Email      string `toml:"email"`
	Domain     string `toml:"domain"`
	Directory  string `toml:"directory"`
	StorageDir string `toml:"storage_dir"`
	UseStaging bool   `toml:"use_staging"`

	// RootCAFile is a PEM bundle trusted when talking to a private directory.
	RootCAFile string `toml:"root_ca_file"`
}

// SessionTTL returns the configured session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Server.SessionTTLHours) * time.Hour
}

// SessionSweepInterval returns the sweeper period.
func (c *Config) SessionSweepInterval() time.Duration {
	return time.Duration(c.Server.SessionSweepSeconds) * time.Second
}

// BuildServiceConfig returns a copy of [http.services.<name>], or nil.
func (c *Config) BuildServiceConfig(serviceName string) map[string]any {
	svcCfg, ok := c.HTTP.Services[serviceName]
	if !ok {
		return nil
	}
	result := make(map[string]any, len(svcCfg))
	for k, v := range svcCfg {
		result[k] = v
	}
	return result
}

// PublicHostname returns the host part of PublicOrigin, or "localhost".
func (c *Config) PublicHostname() string {
	u, err := url.Parse(c.PublicOrigin)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return strings.ToLower(u.Hostname())
}

// Redacted renders the config for logging with secrets masked.
func (c *Config) Redacted() string {
	var sb strings.Builder
	w := func(format string, args ...any) { fmt.Fprintf(&sb, format, args...) }

	w("Config{\n")
	w("  Mode: %q,\n", c.Mode)
	w("  PublicOrigin: %q,\n", c.PublicOrigin)
	w("  ListenAddr: %q,\n", c.ListenAddr)
	w("  Server: {\n")
	w("    TrustedProxies: %v,\n", c.Server.TrustedProxies)
	w("    BootstrapAdmin: {Username: %q, Password: [REDACTED]},\n", c.Server.BootstrapAdmin.Username)
	w("    SeededUsersCount: %d,\n", len(c.Server.SeededUsers))
	w("    SessionTTLHours: %d,\n", c.Server.SessionTTLHours)
	w("    SessionSweepSeconds: %d,\n", c.Server.SessionSweepSeconds)
	w("  },\n")
	w("  TLS: {Mode: %q, CertFile: %q, KeyFile: %q, HTTPPort: %d, HTTPSPort: %d, SelfSignedDir: %q, ACME.Domain: %q},\n",
		c.TLS.Mode, c.TLS.CertFile, c.TLS.KeyFile, c.TLS.HTTPPort, c.TLS.HTTPSPort, c.TLS.SelfSignedDir, c.TLS.ACME.Domain)
	dsn := ""
	if c.Store.DSN != "" {
		dsn = "[REDACTED]"
	}
	w("  Store: {Driver: %q, DataDir: %q, DSN: %s},\n", c.Store.Driver, c.Store.DataDir, dsn)
	w("  Cache: {Driver: %q, Drivers: %v},\n", c.Cache.Driver, sortedKeys(c.Cache.Drivers))
	w("  Logging: {Level: %q},\n", c.Logging.Level)
	services := make(map[string]any, len(c.HTTP.Services))
	for k := range c.HTTP.Services {
		services[k] = nil
	}
	interceptors := make(map[string]any, len(c.HTTP.Interceptors))
	for k := range c.HTTP.Interceptors {
		interceptors[k] = nil
	}
	w("  HTTP: {Services: %v, Interceptors: %v},\n", sortedKeys(services), sortedKeys(interceptors))
	w("}")
	return sb.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
