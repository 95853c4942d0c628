package identity_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MahdiBaghbani/askings-go/internal/components/identity"
)

func TestUserAuth_HashAndVerify(t *testing.T) {
	auth := identity.NewUserAuthFast()

	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "s3cret" {
		t.Fatal("hash must not equal the password")
	}
	if err := auth.VerifyPassword(hash, "s3cret"); err != nil {
		t.Errorf("expected match, got %v", err)
	}
	if err := auth.VerifyPassword(hash, "wrong"); !errors.Is(err, identity.ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
	if err := auth.VerifyPassword("not-a-hash", "s3cret"); !errors.Is(err, identity.ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword for garbage hash, got %v", err)
	}
}

func TestUserAuth_Authenticate(t *testing.T) {
	repo := identity.NewMemoryPartyRepo()
	auth := identity.NewUserAuthFast()
	ctx := context.Background()

	hash, _ := auth.HashPassword("pw")
	_ = repo.Create(ctx, &identity.User{Username: "alice", PasswordHash: hash})

	u, err := auth.Authenticate(ctx, repo, "alice", "pw")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if u.Username != "alice" {
		t.Errorf("unexpected user %q", u.Username)
	}

	if _, err := auth.Authenticate(ctx, repo, "alice", "nope"); !errors.Is(err, identity.ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
	if _, err := auth.Authenticate(ctx, repo, "ghost", "pw"); !errors.Is(err, identity.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestNewUserAuth_LowCostFallsBack(t *testing.T) {
	auth := identity.NewUserAuth(1)
	hash, err := auth.HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}
	// bcrypt encodes the cost as "$2a$10$..."
	if hash[4:6] != "10" {
		t.Errorf("expected default cost 10, got hash %q", hash)
	}
}
