// Package loader registers every service and interceptor through blank imports.
package loader

import (
	_ "github.com/MahdiBaghbani/askings-go/internal/interceptors/ratelimit"
	_ "github.com/MahdiBaghbani/askings-go/internal/services/api"
	_ "github.com/MahdiBaghbani/askings-go/internal/services/askings"
)
