package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envOverrides lists the ASKINGS_* variables honored by Load.
type envOverrides struct {
	ListenAddr    string `env:"ASKINGS_LISTEN_ADDR"`
	PublicOrigin  string `env:"ASKINGS_PUBLIC_ORIGIN"`
	TLSMode       string `env:"ASKINGS_TLS_MODE"`
	StoreDriver   string `env:"ASKINGS_STORE_DRIVER"`
	StoreDataDir  string `env:"ASKINGS_STORE_DATA_DIR"`
	StoreDSN      string `env:"ASKINGS_STORE_DSN"`
	AdminUsername string `env:"ASKINGS_ADMIN_USERNAME"`
	AdminPassword string `env:"ASKINGS_ADMIN_PASSWORD"`
	LogLevel      string `env:"ASKINGS_LOG_LEVEL"`
	CacheDriver   string `env:"ASKINGS_CACHE_DRIVER"`
	ValkeyAddr    string `env:"ASKINGS_VALKEY_ADDR"`
}

// loadEnv merges the dotenv file under the environment (real variables win)
// and parses the result.
func loadEnv(envFile string, environ map[string]string) (envOverrides, error) {
	var ov envOverrides

	if environ == nil {
		environ = env.ToMap(os.Environ())
	}
	merged := make(map[string]string, len(environ))
	if envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ov, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
		for k, v := range fileVars {
			merged[k] = v
		}
	}
	for k, v := range environ {
		merged[k] = v
	}

	if err := env.ParseWithOptions(&ov, env.Options{Environment: merged}); err != nil {
		return ov, fmt.Errorf("failed to parse environment: %w", err)
	}
	return ov, nil
}

func overlayEnv(cfg *Config, ov envOverrides) {
	setString(&cfg.ListenAddr, ov.ListenAddr)
	setString(&cfg.PublicOrigin, ov.PublicOrigin)
	setString(&cfg.TLS.Mode, ov.TLSMode)
	setString(&cfg.Store.Driver, ov.StoreDriver)
	setString(&cfg.Store.DataDir, ov.StoreDataDir)
	setString(&cfg.Store.DSN, ov.StoreDSN)
	setString(&cfg.Server.BootstrapAdmin.Username, ov.AdminUsername)
	setString(&cfg.Server.BootstrapAdmin.Password, ov.AdminPassword)
	setString(&cfg.Logging.Level, ov.LogLevel)
	setString(&cfg.Cache.Driver, ov.CacheDriver)

	if ov.ValkeyAddr != "" {
		if cfg.Cache.Drivers == nil {
			cfg.Cache.Drivers = make(map[string]any)
		}
		vk, _ := cfg.Cache.Drivers["valkey"].(map[string]any)
		if vk == nil {
			vk = make(map[string]any)
		}
		vk["addr"] = ov.ValkeyAddr
		cfg.Cache.Drivers["valkey"] = vk
	}
}
