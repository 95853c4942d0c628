// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2026 askings-go Authors

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnauthenticated means no credential was presented.
	ErrUnauthenticated = errors.New("no token provided")
	// ErrInvalidToken means the credential matched no live session or user.
	ErrInvalidToken = errors.New("invalid token")
)

// Caller is the identity behind one request.
type Caller struct {
	ID       string
	Username string
	Roles    []string
}

// IsAdmin is true for admin and super_admin.
func (c *Caller) IsAdmin() bool {
	if c == nil {
		return false
	}
	return HasRole(c.Roles, RoleAdmin) || HasRole(c.Roles, RoleSuperAdmin)
}

// Resolver turns a bearer token into a Caller. Every call reads the
// session and the user again; nothing is cached between requests.
type Resolver struct {
	sessions SessionRepo
	parties  PartyRepo
}

func NewResolver(sessions SessionRepo, parties PartyRepo) *Resolver {
	return &Resolver{sessions: sessions, parties: parties}
}

// Resolve accepts the raw token or the full "Bearer <token>" header value.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Caller, error) {
	token = StripBearer(token)
	if token == "" {
		return nil, ErrUnauthenticated
	}

	sess, err := r.sessions.Get(ctx, token)
	if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	user, err := r.parties.Get(ctx, sess.UserID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", sess.UserID, err)
	}

	return &Caller{
		ID:       user.ID,
		Username: user.Username,
		Roles:    append([]string(nil), user.Roles...),
	}, nil
}

// StripBearer trims whitespace and an optional case-insensitive "Bearer " scheme.
func StripBearer(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		v = strings.TrimSpace(v[7:])
	}
	return v
}
