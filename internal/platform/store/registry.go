package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DriverConfig holds configuration for driver selection and initialization.
type DriverConfig struct {
	// Driver is the driver name: json, sqlite, postgres.
	Driver string `json:"driver"`

	// DataDir holds the json files or the sqlite database.
	DataDir string `json:"data_dir"`

	// DSN is the connection string for network databases (postgres).
	DSN string `json:"dsn"`
}

// DriverFactory is a function that creates a driver instance.
type DriverFactory func(cfg *DriverConfig) (Driver, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]DriverFactory)
)

// Register registers a driver factory by name.
// This is typically called from init() in driver packages.
func Register(name string, factory DriverFactory) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[name] = factory
}

// New creates a driver instance based on the configuration.
func New(cfg *DriverConfig) (Driver, error) {
	driversMu.RLock()
	factory, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown store driver %q (available: %v)", cfg.Driver, AvailableDrivers())
	}

	return factory(cfg)
}

// Open creates, initializes and type-checks a driver in one step.
func Open(ctx context.Context, cfg *DriverConfig) (Driver, AskingStore, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Init(ctx); err != nil {
		return nil, nil, fmt.Errorf("init %s store: %w", cfg.Driver, err)
	}
	as, ok := d.(AskingStore)
	if !ok {
		d.Close()
		return nil, nil, fmt.Errorf("store driver %q does not persist askings", cfg.Driver)
	}
	return d, as, nil
}

// AvailableDrivers returns the sorted list of registered driver names.
func AvailableDrivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()

	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
