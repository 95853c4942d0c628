// Package valkey provides a Valkey/Redis cache driver built on valkey-go.
package valkey

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/valkey-io/valkey-go"

	svccfg "github.com/MahdiBaghbani/askings-go/internal/frameworks/service/cfg"
	"github.com/MahdiBaghbani/askings-go/internal/platform/cache"
	"github.com/MahdiBaghbani/askings-go/internal/platform/logutil"
)

func init() {
	cache.RegisterDriver("valkey", func(conf map[string]any, log *slog.Logger) (cache.CacheWithCounter, error) {
		cfg := DefaultConfig()
		if err := svccfg.Decode(conf, cfg); err != nil {
			return nil, err
		}
		c, err := New(cfg)
		if err != nil {
			return nil, err
		}
		logutil.NoopIfNil(log).Info("valkey cache connected", "addr", cfg.Addr, "db", cfg.DB)
		return c, nil
	})
}

// Config holds the connection settings from [cache.drivers.valkey].
type Config struct {
	Addr              string `mapstructure:"addr"`
	Password          string `mapstructure:"password"`
	DB                int    `mapstructure:"db"`
	DialTimeoutMS     int    `mapstructure:"dial_timeout_ms"`
	WriteTimeoutMS    int    `mapstructure:"write_timeout_ms"`
	DefaultTTLSeconds int    `mapstructure:"default_ttl_seconds"`
}

// DefaultConfig returns defaults for a local Valkey.
func DefaultConfig() *Config {
	return &Config{
		Addr:              "localhost:6379",
		DialTimeoutMS:     5000,
		WriteTimeoutMS:    3000,
		DefaultTTLSeconds: int(cache.TTLDisplayName / time.Second),
	}
}

// Cache talks to Valkey directly; there is no in-memory fallback.
type Cache struct {
	client     valkey.Client
	defaultTTL time.Duration
}

// New connects and pings once so a misconfigured address fails at startup.
func New(cfg *Config) (*Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:      []string{cfg.Addr},
		Password:         cfg.Password,
		SelectDB:         cfg.DB,
		Dialer:           net.Dialer{Timeout: time.Duration(cfg.DialTimeoutMS) * time.Millisecond},
		ConnWriteTimeout: time.Duration(cfg.WriteTimeoutMS) * time.Millisecond,
		DisableCache:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Addr, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.DialTimeoutMS)*time.Millisecond)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Addr, err)
	}

	ttl := time.Duration(cfg.DefaultTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = cache.TTLDisplayName
	}
	return &Cache{client: client, defaultTTL: ttl}, nil
}

func (c *Cache) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return c.defaultTTL
	}
	return ttl
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, cache.ErrNotFound
	}
	return b, err
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := c.client.B().Set().Key(key).Value(valkey.BinaryString(value)).
		PxMilliseconds(c.ttl(ttl).Milliseconds()).Build()
	return c.client.Do(ctx, cmd).Error()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Do(ctx, c.client.B().Del().Key(key).Build()).Error()
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Do(ctx, c.client.B().Exists().Key(key).Build()).AsInt64()
	return n > 0, err
}

// Increment uses INCRBY and sets the expiry only on the first hit of a window,
// so the window does not slide.
func (c *Cache) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, time.Time, error) {
	ttl = c.ttl(ttl)
	n, err := c.client.Do(ctx, c.client.B().Incrby().Key(key).Increment(delta).Build()).AsInt64()
	if err != nil {
		return 0, time.Time{}, err
	}
	if n == delta {
		if err := c.client.Do(ctx, c.client.B().Pexpire().Key(key).Milliseconds(ttl.Milliseconds()).Build()).Error(); err != nil {
			return 0, time.Time{}, err
		}
		return n, time.Now().Add(ttl), nil
	}

	pttl, err := c.client.Do(ctx, c.client.B().Pttl().Key(key).Build()).AsInt64()
	if err != nil {
		return 0, time.Time{}, err
	}
	if pttl < 0 {
		// Counter lost its expiry (e.g. created by another client); re-arm it.
		if err := c.client.Do(ctx, c.client.B().Pexpire().Key(key).Milliseconds(ttl.Milliseconds()).Build()).Error(); err != nil {
			return 0, time.Time{}, err
		}
		pttl = ttl.Milliseconds()
	}
	return n, time.Now().Add(time.Duration(pttl) * time.Millisecond), nil
}

func (c *Cache) GetCount(ctx context.Context, key string) (int64, error) {
	n, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).AsInt64()
	if valkey.IsValkeyNil(err) {
		return 0, nil
	}
	return n, err
}

func (c *Cache) Reset(ctx context.Context, key string) error {
	return c.Delete(ctx, key)
}

func (c *Cache) Close() error {
	c.client.Close()
	return nil
}

var _ cache.CacheWithCounter = (*Cache)(nil)
