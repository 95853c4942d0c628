// Package deps holds the dependencies shared by every HTTP service.
package deps

import (
	"sync"

	"github.com/MahdiBaghbani/askings-go/internal/components/askings"
	"github.com/MahdiBaghbani/askings-go/internal/components/identity"
	"github.com/MahdiBaghbani/askings-go/internal/platform/cache"
	"github.com/MahdiBaghbani/askings-go/internal/platform/config"
	"github.com/MahdiBaghbani/askings-go/internal/platform/http/realip"
)

var (
	sharedDeps     *Deps
	sharedDepsOnce sync.Once
)

// Deps is built once in main and read by service constructors.
type Deps struct {
	// Identity
	Parties   identity.PartyRepo
	Sessions  identity.SessionRepo
	UserAuth  *identity.UserAuth
	Resolver  *identity.Resolver
	Directory *identity.Directory

	// Askings persistence, already initialized by the store driver.
	Askings askings.Repo

	Config *config.Config

	// Cache backs display-name memoization and rate limiting.
	Cache cache.CacheWithCounter

	// RealIP is the only source of client addresses for logs and rate limits.
	RealIP *realip.TrustedProxies
}

// SetDeps sets the shared dependencies. Only the first call has an effect.
func SetDeps(d *Deps) {
	sharedDepsOnce.Do(func() {
		sharedDeps = d
	})
}

// GetDeps returns the shared dependencies, or nil before SetDeps.
func GetDeps() *Deps {
	return sharedDeps
}

// ResetDeps is for testing only.
func ResetDeps() {
	sharedDeps = nil
	sharedDepsOnce = sync.Once{}
}
