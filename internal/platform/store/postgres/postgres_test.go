package postgres_test

import (
	"os"
	"testing"

	"github.com/MahdiBaghbani/askings-go/internal/platform/store"
	_ "github.com/MahdiBaghbani/askings-go/internal/platform/store/postgres"
	"github.com/MahdiBaghbani/askings-go/internal/platform/store/testutil"
)

func TestPostgresDriverRequiresDSN(t *testing.T) {
	if _, err := store.New(&store.DriverConfig{Driver: "postgres"}); err == nil {
		t.Fatal("expected error without dsn")
	}
}

// Runs only when ASKINGS_TEST_POSTGRES_DSN points at a disposable database.
func TestPostgresDriver(t *testing.T) {
	dsn := os.Getenv("ASKINGS_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ASKINGS_TEST_POSTGRES_DSN not set")
	}
	testutil.RunDriverTests(t, &store.DriverConfig{Driver: "postgres", DSN: dsn})
}
