// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MahdiBaghbani/askings-go/internal/platform/store"
	"github.com/MahdiBaghbani/askings-go/internal/platform/store/gormstore"
)

// DBFile is the database file name inside data_dir.
const DBFile = "askings.db"

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements store.Driver and store.AskingStore using SQLite.
type Driver struct {
	*gormstore.Store
	dataDir string
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}
	return &Driver{dataDir: cfg.DataDir}, nil
}

func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens the database file and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(filepath.Join(d.dataDir, DBFile)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.Store = gormstore.New(db)
	return d.Migrate(ctx)
}

// Close is a no-op before Init.
func (d *Driver) Close() error {
	if d.Store == nil {
		return nil
	}
	return d.Store.Close()
}

var (
	_ store.Driver      = (*Driver)(nil)
	_ store.AskingStore = (*Driver)(nil)
)
