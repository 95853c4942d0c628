package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MahdiBaghbani/askings-go/internal/components/identity"
	"github.com/MahdiBaghbani/askings-go/internal/platform/cache/memory"
)

func TestDirectory_DisplayName(t *testing.T) {
	parties := identity.NewMemoryPartyRepo()
	c := memory.New(time.Minute, 0)
	defer c.Close()
	dir := identity.NewDirectory(parties, c, time.Minute, nil)
	ctx := context.Background()

	withPseudo := &identity.User{Username: "alice", Pseudo: "Alice"}
	noPseudo := &identity.User{Username: "bob"}
	_ = parties.Create(ctx, withPseudo)
	_ = parties.Create(ctx, noPseudo)

	if got, err := dir.DisplayName(ctx, withPseudo.ID); err != nil || got != "Alice" {
		t.Errorf("expected Alice, got %q (%v)", got, err)
	}
	if got, err := dir.DisplayName(ctx, noPseudo.ID); err != nil || got != "bob" {
		t.Errorf("expected username fallback bob, got %q (%v)", got, err)
	}
	if _, err := dir.DisplayName(ctx, "missing"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := dir.DisplayName(ctx, ""); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound for empty id, got %v", err)
	}
}

func TestDirectory_ServesFromCache(t *testing.T) {
	parties := identity.NewMemoryPartyRepo()
	c := memory.New(time.Minute, 0)
	defer c.Close()
	dir := identity.NewDirectory(parties, c, time.Minute, nil)
	ctx := context.Background()

	u := &identity.User{Username: "alice", Pseudo: "Alice"}
	_ = parties.Create(ctx, u)
	_, _ = dir.DisplayName(ctx, u.ID)

	u.Pseudo = "Renamed"
	_ = parties.Update(ctx, u)

	if got, _ := dir.DisplayName(ctx, u.ID); got != "Alice" {
		t.Errorf("expected cached Alice, got %q", got)
	}

	dir.Forget(ctx, u.ID)
	if got, _ := dir.DisplayName(ctx, u.ID); got != "Renamed" {
		t.Errorf("expected Renamed after Forget, got %q", got)
	}
}

func TestDirectory_NilCache(t *testing.T) {
	parties := identity.NewMemoryPartyRepo()
	dir := identity.NewDirectory(parties, nil, 0, nil)
	ctx := context.Background()

	u := &identity.User{Username: "alice", Pseudo: "Alice"}
	_ = parties.Create(ctx, u)
	if got, err := dir.DisplayName(ctx, u.ID); err != nil || got != "Alice" {
		t.Errorf("expected Alice, got %q (%v)", got, err)
	}
	dir.Forget(ctx, u.ID)
}
