package cache_test

import (
	"strings"
	"testing"

	"github.com/MahdiBaghbani/askings-go/internal/platform/cache"
	_ "github.com/MahdiBaghbani/askings-go/internal/platform/cache/loader"
)

func TestNewFromConfig_DefaultsToMemory(t *testing.T) {
	c, err := cache.NewFromConfig("", nil, nil)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	defer c.Close()
}

func TestNewFromConfig_UnknownDriver(t *testing.T) {
	_, err := cache.NewFromConfig("memcached", nil, nil)
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if !strings.Contains(err.Error(), "memcached") {
		t.Errorf("error should name the driver, got %v", err)
	}
}

func TestNewFromConfig_DriverTableMustBeMap(t *testing.T) {
	_, err := cache.NewFromConfig("memory", map[string]any{"memory": "nope"}, nil)
	if err == nil {
		t.Fatal("expected error for non-table driver config")
	}
}

func TestDrivers_IncludesBuiltins(t *testing.T) {
	names := cache.Drivers()
	want := map[string]bool{"memory": false, "valkey": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, found := range want {
		if !found {
			t.Errorf("driver %q not registered, have %v", n, names)
		}
	}
}
