// Package loader registers asking store drivers via blank imports.
package loader

import (
	_ "github.com/MahdiBaghbani/askings-go/internal/platform/store/json"
	_ "github.com/MahdiBaghbani/askings-go/internal/platform/store/postgres"
	_ "github.com/MahdiBaghbani/askings-go/internal/platform/store/sqlite"
)
