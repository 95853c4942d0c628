package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func strPtr(s string) *string { return &s }

func load(t *testing.T, opts LoaderOptions) *Config {
	t.Helper()
	if opts.Environ == nil {
		opts.Environ = map[string]string{}
	}
	opts.Logger = quietLogger()
	cfg, err := Load(opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

func TestLoad_Presets(t *testing.T) {
	strict := load(t, LoaderOptions{})
	if strict.Mode != "strict" || strict.TLS.Mode != "selfsigned" || strict.Store.Driver != "sqlite" {
		t.Errorf("strict preset = %+v", strict)
	}
	if strict.SessionTTL().Hours() != 24 || strict.SessionSweepInterval().Seconds() != 300 {
		t.Errorf("session defaults = %v / %v", strict.SessionTTL(), strict.SessionSweepInterval())
	}

	dev := load(t, LoaderOptions{ModeFlag: "dev"})
	if dev.TLS.Mode != "off" || dev.Store.Driver != "json" || dev.Logging.Level != "debug" {
		t.Errorf("dev preset = %+v", dev)
	}
}

func TestLoad_FileOverlay(t *testing.T) {
	path := writeFile(t, "askings.toml", `
mode = "dev"
listen_addr = ":8080"

[server]
session_ttl_hours = 2

[[server.seeded_users]]
username = "bob"
password = "pw"
pseudo = "Bob"
roles = ["mentor"]

[store]
driver = "postgres"
dsn = "postgres://u:p@db/askings"

[cache]
driver = "valkey"

[cache.drivers.valkey]
addr = "cache:6379"

[http.services.askings]
listing_policy = "subject_or_admin"

[http.services.askings.ratelimit]
profile = "writes"

[http.interceptors.ratelimit.profiles.writes]
requests_per_window = 10
window_seconds = 60
`)
	cfg := load(t, LoaderOptions{ConfigPath: path})

	if cfg.Mode != "dev" || cfg.ListenAddr != ":8080" {
		t.Errorf("top level = %q %q", cfg.Mode, cfg.ListenAddr)
	}
	if cfg.Server.SessionTTLHours != 2 || cfg.Server.SessionSweepSeconds != 300 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if len(cfg.Server.SeededUsers) != 1 || cfg.Server.SeededUsers[0].Roles[0] != "mentor" {
		t.Errorf("seeded users = %+v", cfg.Server.SeededUsers)
	}
	if cfg.Store.Driver != "postgres" || cfg.Store.DSN == "" {
		t.Errorf("store = %+v", cfg.Store)
	}
	vk, ok := cfg.Cache.Drivers["valkey"].(map[string]any)
	if !ok || vk["addr"] != "cache:6379" {
		t.Errorf("cache drivers = %v", cfg.Cache.Drivers)
	}
	svc := cfg.BuildServiceConfig("askings")
	if svc["listing_policy"] != "subject_or_admin" {
		t.Errorf("service config = %v", svc)
	}
	svc["listing_policy"] = "mutated"
	if cfg.HTTP.Services["askings"]["listing_policy"] != "subject_or_admin" {
		t.Error("BuildServiceConfig must return a copy")
	}
	if cfg.BuildServiceConfig("missing") != nil {
		t.Error("expected nil for unconfigured service")
	}
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "askings.toml", `
listen_addr = ":1000"
[logging]
level = "warn"
`)
	envFile := writeFile(t, ".env", "ASKINGS_LISTEN_ADDR=:2000\nASKINGS_LOG_LEVEL=error\nASKINGS_VALKEY_ADDR=vk:6379\n")

	cfg := load(t, LoaderOptions{
		ConfigPath: path,
		EnvFile:    envFile,
		Environ:    map[string]string{"ASKINGS_LISTEN_ADDR": ":3000", "ASKINGS_ADMIN_PASSWORD": "from-env"},
		FlagOverrides: FlagOverrides{
			LoggingLevel: strPtr("trace"),
			ListenAddr:   strPtr(""),
		},
	})

	if cfg.ListenAddr != ":3000" {
		t.Errorf("ListenAddr = %q, want the process environment to beat the dotenv file", cfg.ListenAddr)
	}
	if cfg.Logging.Level != "trace" {
		t.Errorf("Logging.Level = %q, want flag to win", cfg.Logging.Level)
	}
	if cfg.Server.BootstrapAdmin.Password != "from-env" {
		t.Errorf("admin password not taken from env")
	}
	vk, _ := cfg.Cache.Drivers["valkey"].(map[string]any)
	if vk["addr"] != "vk:6379" {
		t.Errorf("valkey addr = %v", cfg.Cache.Drivers)
	}
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	load(t, LoaderOptions{EnvFile: filepath.Join(t.TempDir(), "absent.env")})
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		toml    string
		mode    string
		wantErr string
	}{
		{name: "bad mode", mode: "interop", wantErr: "invalid mode"},
		{name: "bad tls", toml: "[tls]\nmode = \"maybe\"", wantErr: "tls.mode"},
		{name: "bad store", toml: "[store]\ndriver = \"mongo\"", wantErr: "store.driver"},
		{name: "postgres without dsn", toml: "[store]\ndriver = \"postgres\"", wantErr: "store.dsn"},
		{name: "bad cache", toml: "[cache]\ndriver = \"redis\"", wantErr: "cache.driver"},
		{name: "bad level", toml: "[logging]\nlevel = \"loud\"", wantErr: "logging.level"},
		{name: "seeded user without name", toml: "[[server.seeded_users]]\npassword = \"x\"", wantErr: "seeded_users[0]"},
		{name: "undefined profile", toml: "[http.services.askings.ratelimit]\nprofile = \"nope\"", wantErr: "undefined profile"},
		{name: "origin with path", toml: "public_origin = \"https://a.example/x\"", wantErr: "public_origin"},
		{name: "origin bad scheme", toml: "public_origin = \"ftp://a.example\"", wantErr: "public_origin"},
		{name: "invalid toml", toml: "listen_addr = ", wantErr: "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := LoaderOptions{ModeFlag: tt.mode, Environ: map[string]string{}, Logger: quietLogger()}
			if tt.toml != "" {
				opts.ConfigPath = writeFile(t, "c.toml", tt.toml)
			}
			_, err := Load(opts)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(LoaderOptions{ConfigPath: "/nonexistent/askings.toml", Environ: map[string]string{}})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRedacted(t *testing.T) {
	cfg := StrictConfig()
	cfg.Server.BootstrapAdmin.Password = "hunter2"
	cfg.Store.DSN = "postgres://u:secret@db/askings"
	cfg.Cache.Drivers = map[string]any{"valkey": map[string]any{"password": "vk-secret"}}

	out := cfg.Redacted()
	for _, secret := range []string{"hunter2", "secret@db", "vk-secret"} {
		if strings.Contains(out, secret) {
			t.Errorf("Redacted() leaks %q:\n%s", secret, out)
		}
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("expected redaction marker")
	}
}

func TestPublicHostname(t *testing.T) {
	cfg := &Config{PublicOrigin: "https://Askings.Example.org:9200"}
	if got := cfg.PublicHostname(); got != "askings.example.org" {
		t.Errorf("PublicHostname() = %q", got)
	}
	cfg.PublicOrigin = ""
	if got := cfg.PublicHostname(); got != "localhost" {
		t.Errorf("empty origin = %q", got)
	}
}
