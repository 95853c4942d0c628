package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MahdiBaghbani/askings-go/internal/platform/cache"
	"github.com/MahdiBaghbani/askings-go/internal/platform/logutil"
)

// Directory answers display-name lookups for listings, fronted by a TTL cache.
type Directory struct {
	parties PartyRepo
	cache   cache.Cache
	ttl     time.Duration
	log     *slog.Logger
}

// NewDirectory builds a Directory. A nil cache disables caching.
func NewDirectory(parties PartyRepo, c cache.Cache, ttl time.Duration, log *slog.Logger) *Directory {
	if ttl <= 0 {
		ttl = cache.TTLDisplayName
	}
	return &Directory{parties: parties, cache: c, ttl: ttl, log: logutil.NoopIfNil(log)}
}

func displayNameKey(userID string) string {
	return "pseudo:" + userID
}

// DisplayName returns the user's pseudo. Missing users yield ErrUserNotFound
// and are not cached, so a user created later shows up immediately.
func (d *Directory) DisplayName(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrUserNotFound
	}

	key := displayNameKey(userID)
	if d.cache != nil {
		b, err := d.cache.Get(ctx, key)
		if err == nil {
			return string(b), nil
		}
		if !errors.Is(err, cache.ErrNotFound) && !errors.Is(err, cache.ErrExpired) {
			d.log.Debug("display name cache read failed", "user_id", userID, "error", err)
		}
	}

	u, err := d.parties.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	name := u.DisplayName()

	if d.cache != nil {
		if err := d.cache.Set(ctx, key, []byte(name), d.ttl); err != nil {
			d.log.Debug("display name cache write failed", "user_id", userID, "error", err)
		}
	}
	return name, nil
}

// Forget drops a cached display name.
func (d *Directory) Forget(ctx context.Context, userID string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Delete(ctx, displayNameKey(userID)); err != nil {
		d.log.Debug("display name cache delete failed", "user_id", userID, "error", err)
	}
}
