// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2026 askings-go Authors

package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MahdiBaghbani/askings-go/internal/components/identity"
)

type failingSessions struct {
	identity.SessionRepo
}

func (failingSessions) Get(context.Context, string) (*identity.Session, error) {
	return nil, errors.New("backend down")
}

func newResolverFixture(t *testing.T) (*identity.Resolver, *identity.MemoryPartyRepo, *identity.MemorySessionRepo) {
	t.Helper()
	parties := identity.NewMemoryPartyRepo()
	sessions := identity.NewMemorySessionRepo()
	return identity.NewResolver(sessions, parties), parties, sessions
}

func TestResolver_Resolve(t *testing.T) {
	r, parties, sessions := newResolverFixture(t)
	ctx := context.Background()

	mentor := &identity.User{Username: "mia", Roles: []string{identity.RoleMentor}}
	_ = parties.Create(ctx, mentor)
	s, _ := sessions.Create(ctx, mentor.ID, time.Hour)

	for _, tok := range []string{s.Token, "Bearer " + s.Token, "bearer  " + s.Token + " "} {
		c, err := r.Resolve(ctx, tok)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", tok, err)
		}
		if c.ID != mentor.ID || c.Username != "mia" {
			t.Errorf("unexpected caller %+v", c)
		}
		if c.IsAdmin() {
			t.Error("mentor must not be admin")
		}
	}
}

func TestResolver_Errors(t *testing.T) {
	r, parties, sessions := newResolverFixture(t)
	ctx := context.Background()

	gone := &identity.User{Username: "gone"}
	_ = parties.Create(ctx, gone)
	orphan, _ := sessions.Create(ctx, gone.ID, time.Hour)
	_ = parties.Delete(ctx, gone.ID)

	expired, _ := sessions.Create(ctx, "whoever", time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", identity.ErrUnauthenticated},
		{"blank bearer", "Bearer   ", identity.ErrUnauthenticated},
		{"unknown", "nope", identity.ErrInvalidToken},
		{"expired", expired.Token, identity.ErrInvalidToken},
		{"user deleted", orphan.Token, identity.ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Resolve(ctx, tt.token); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestResolver_BackendFailureIsNotAuthError(t *testing.T) {
	r := identity.NewResolver(failingSessions{}, identity.NewMemoryPartyRepo())

	_, err := r.Resolve(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, identity.ErrInvalidToken) || errors.Is(err, identity.ErrUnauthenticated) {
		t.Errorf("backend failures must not look like auth failures: %v", err)
	}
}

func TestStripBearer(t *testing.T) {
	tests := map[string]string{
		"":           "",
		"abc":        "abc",
		" abc ":      "abc",
		"Bearer abc": "abc",
		"BEARER abc": "abc",
		"Bearerabc":  "Bearerabc",
		"Basic abc":  "Basic abc",
	}
	for in, want := range tests {
		if got := identity.StripBearer(in); got != want {
			t.Errorf("StripBearer(%q) = %q, want %q", in, got, want)
		}
	}
}
