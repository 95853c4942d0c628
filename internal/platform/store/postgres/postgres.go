// Package postgres implements a PostgreSQL persistence driver using GORM.
package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MahdiBaghbani/askings-go/internal/platform/store"
	"github.com/MahdiBaghbani/askings-go/internal/platform/store/gormstore"
)

func init() {
	store.Register("postgres", NewDriver)
}

// Pool limits applied after connecting.
const (
	maxOpenConns    = 20
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// Driver implements store.Driver and store.AskingStore using PostgreSQL.
type Driver struct {
	*gormstore.Store
	dsn string
}

// NewDriver creates a new PostgreSQL driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn is required for postgres driver")
	}
	return &Driver{dsn: cfg.DSN}, nil
}

func (d *Driver) Name() string {
	return "postgres"
}

// Init connects, checks the connection and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	db, err := gorm.Open(postgres.Open(d.dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return fmt.Errorf("failed to ping postgres: %w", err)
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
