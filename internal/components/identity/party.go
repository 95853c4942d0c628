// Package identity provides users, sessions and the caller resolution used by every
// authenticated route.
package identity

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrEmailExists          = errors.New("email already in use")
	ErrInvalidPassword      = errors.New("invalid password")
	ErrSessionExpired       = errors.New("session expired")
	ErrSessionNotFound      = errors.New("session not found")
	ErrSuperAdminProtected  = errors.New("super admin cannot be deleted or demoted")
	ErrSuperAdminRoleChange = errors.New("super admin role cannot be changed")
)

const (
	RoleUser       = "user"
	RoleMentor     = "mentor"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// NormalizeRole lowercases a role and strips a legacy "ROLE_" prefix,
// so "ROLE_ADMIN" and "admin" are the same role.
func NormalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	return strings.TrimPrefix(r, "role_")
}

// HasRole reports whether roles contains role after normalization.
func HasRole(roles []string, role string) bool {
	want := NormalizeRole(role)
	for _, r := range roles {
		if NormalizeRole(r) == want {
			return true
		}
	}
	return false
}

// User is a directory record: a requester, a mentor or an administrator.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Pseudo       string    `json:"pseudo"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) IsAdmin() bool {
	return HasRole(u.Roles, RoleAdmin) || HasRole(u.Roles, RoleSuperAdmin)
}

func (u *User) IsSuperAdmin() bool {
	return HasRole(u.Roles, RoleSuperAdmin)
}

// DisplayName is the pseudo, falling back to the username.
func (u *User) DisplayName() string {
	if u.Pseudo != "" {
		return u.Pseudo
	}
	return u.Username
}

func (u *User) clone() *User {
	c := *u
	c.Roles = append([]string(nil), u.Roles...)
	return &c
}

// PartyRepo provides user storage operations.
type PartyRepo interface {
	// Create creates a new user. Returns ErrUserExists if username is taken.
	Create(ctx context.Context, user *User) error

	// Get retrieves a user by ID. Returns ErrUserNotFound if not found.
	Get(ctx context.Context, id string) (*User, error)

	// GetByUsername retrieves a user by username. Returns ErrUserNotFound if not found.
	GetByUsername(ctx context.Context, username string) (*User, error)

	Update(ctx context.Context, user *User) error

	Delete(ctx context.Context, id string) error

	// List returns all users ordered by username.
	List(ctx context.Context) ([]*User, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryPartyRepo stores users in memory with username and email indexes.
type MemoryPartyRepo struct {
	mu         sync.RWMutex
	users      map[string]*User  // by ID
	byUsername map[string]string // username -> ID
	byEmail    map[string]string // normalized email -> ID
}

func NewMemoryPartyRepo() *MemoryPartyRepo {
	return &MemoryPartyRepo{
		users:      make(map[string]*User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func (r *MemoryPartyRepo) Create(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byUsername[user.Username]; exists {
		return ErrUserExists
	}
	if norm := normalizeEmail(user.Email); norm != "" {
		if _, exists := r.byEmail[norm]; exists {
			return ErrEmailExists
		}
	}

	if user.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		user.ID = id.String()
	}
	if _, exists := r.users[user.ID]; exists {
		return ErrUserExists
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	r.users[user.ID] = user.clone()
	r.byUsername[user.Username] = user.ID
	if norm := normalizeEmail(user.Email); norm != "" {
		r.byEmail[norm] = user.ID
	}
	return nil
}

func (r *MemoryPartyRepo) Get(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user.clone(), nil
}

func (r *MemoryPartyRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return r.users[id].clone(), nil
}

func (r *MemoryPartyRepo) Update(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	if existing.IsSuperAdmin() && !user.IsSuperAdmin() {
		return ErrSuperAdminRoleChange
	}
	if existing.Username != user.Username {
		if _, taken := r.byUsername[user.Username]; taken {
			return ErrUserExists
		}
	}
	oldNorm, newNorm := normalizeEmail(existing.Email), normalizeEmail(user.Email)
	if oldNorm != newNorm && newNorm != "" {
		if owner, exists := r.byEmail[newNorm]; exists && owner != user.ID {
			return ErrEmailExists
		}
	}

	if existing.Username != user.Username {
		delete(r.byUsername, existing.Username)
		r.byUsername[user.Username] = user.ID
	}
	if oldNorm != newNorm {
		if oldNorm != "" {
			delete(r.byEmail, oldNorm)
		}
		if newNorm != "" {
			r.byEmail[newNorm] = user.ID
		}
	}

	r.users[user.ID] = user.clone()
	return nil
}

func (r *MemoryPartyRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	if user.IsSuperAdmin() {
		return ErrSuperAdminProtected
	}

	delete(r.byUsername, user.Username)
	if norm := normalizeEmail(user.Email); norm != "" {
		delete(r.byEmail, norm)
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryPartyRepo) List(ctx context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*User, 0, len(r.users))
	for _, user := range r.users {
		result = append(result, user.clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

var _ PartyRepo = (*MemoryPartyRepo)(nil)
