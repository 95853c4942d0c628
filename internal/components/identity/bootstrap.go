package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/askings-go/internal/platform/logutil"
)

// seedNamespace scopes deterministic ids for configured users.
var seedNamespace = uuid.MustParse("8d4c5e0a-3f0b-4c1e-9d6a-2b7e5f1a9c30")

// SeededID derives a stable id from a username, so askings stored in a
// durable driver keep pointing at the same users after a restart.
func SeededID(username string) string {
	return uuid.NewSHA1(seedNamespace, []byte(username)).String()
}

// SeededUser is a user declared in config.
type SeededUser struct {
	ID       string
	Username string
	Password string
	Email    string
	Pseudo   string
	Roles    []string
}

// Bootstrap creates the super admin and seeded users idempotently.
type Bootstrap struct {
	repo PartyRepo
	auth *UserAuth
	log  *slog.Logger
}

func NewBootstrap(repo PartyRepo, auth *UserAuth, log *slog.Logger) *Bootstrap {
	return &Bootstrap{repo: repo, auth: auth, log: logutil.NoopIfNil(log)}
}

// Run creates any seeded users that do not exist yet; returns the count created.
func (b *Bootstrap) Run(ctx context.Context, seeded []SeededUser) (int, error) {
	var created int
	for _, s := range seeded {
		n, err := b.ensureUser(ctx, s)
		if err != nil {
			return created, err
		}
		created += n
	}
	return created, nil
}

// EnsureSuperAdmin creates the super admin when none exists.
// An empty password is replaced by a random one that is logged once.
// An existing super admin only has its password rotated when explicitPasswordSet is true.
func (b *Bootstrap) EnsureSuperAdmin(ctx context.Context, username, password string, explicitPasswordSet bool) error {
	if username == "" {
		username = "admin"
	}
	users, err := b.repo.List(ctx)
	if err != nil {
		return err
	}

	for _, u := range users {
		if !u.IsSuperAdmin() {
			continue
		}
		if explicitPasswordSet && password != "" {
			hash, err := b.auth.HashPassword(password)
			if err != nil {
				return err
			}
			u.PasswordHash = hash
			if err := b.repo.Update(ctx, u); err != nil {
				return err
			}
			b.log.Info("super admin password rotated", "username", u.Username)
		}
		return nil
	}

	generated := false
	if password == "" {
		password = generateRandomPassword()
		generated = true
	}
	hash, err := b.auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin := &User{
		ID:           SeededID(username),
		Username:     username,
		Pseudo:       "Administrator",
		PasswordHash: hash,
		Roles:        []string{RoleSuperAdmin},
		CreatedAt:    time.Now(),
	}
	if err := b.repo.Create(ctx, admin); err != nil {
		return err
	}

	if generated {
		b.log.Info("super admin created with auto-generated password",
			"username", username,
			"password", password,
			"user_id", admin.ID)
	} else {
		b.log.Info("super admin created", "username", username, "user_id", admin.ID)
	}
	return nil
}

func generateRandomPassword() string {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "changeme-" + uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func (b *Bootstrap) ensureUser(ctx context.Context, s SeededUser) (int, error) {
	_, err := b.repo.GetByUsername(ctx, s.Username)
	if err == nil {
		b.log.Debug("user already exists", "username", s.Username)
		return 0, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return 0, err
	}

	hash, err := b.auth.HashPassword(s.Password)
	if err != nil {
		return 0, err
	}

	roles := make([]string, 0, len(s.Roles))
	for _, r := range s.Roles {
		roles = append(roles, NormalizeRole(r))
	}
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}
	id := s.ID
	if id == "" {
		id = SeededID(s.Username)
	}

	user := &User{
		ID:           id,
		Username:     s.Username,
		Pseudo:       s.Pseudo,
		Email:        s.Email,
		PasswordHash: hash,
		Roles:        roles,
		CreatedAt:    time.Now(),
	}
	if err := b.repo.Create(ctx, user); err != nil {
		return 0, err
	}

	b.log.Info("created user", "username", s.Username, "user_id", id, "roles", roles)
	return 1, nil
}
