// Package testutil provides shared test helpers for store driver tests.
package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MahdiBaghbani/askings-go/internal/platform/store"
)

// base is a fixed instant so drivers that round-trip through text compare cleanly.
var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

// TestAsking builds a pending asking with the given id, created offset minutes after base.
func TestAsking(id string, offset int) *store.Asking {
	created := base.Add(time.Duration(offset) * time.Minute)
	return &store.Asking{
		ID:          id,
		Title:       "Go review",
		Description: "Look at my service layout",
		UserID:      "user-1",
		MentorID:    "mentor-1",
		StartDate:   base,
		EndDate:     base.Add(time.Hour),
		State:       "pending",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

// OpenDriver creates and initializes a driver, closing it when the test ends.
func OpenDriver(t *testing.T, cfg *store.DriverConfig) store.AskingStore {
	t.Helper()
	d, as, err := store.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to open %s driver: %v", cfg.Driver, err)
	}
	t.Cleanup(func() { d.Close() })
	if d.Name() != cfg.Driver {
		t.Errorf("expected driver name %q, got %q", cfg.Driver, d.Name())
	}
	return as
}

// RunDriverTests runs the standard test suite against a driver.
func RunDriverTests(t *testing.T, cfg *store.DriverConfig) {
	s := OpenDriver(t, cfg)

	t.Run("AskingCRUD", func(t *testing.T) {
		TestAskingCRUD(t, context.Background(), s)
	})
	t.Run("ListFilters", func(t *testing.T) {
		TestListFilters(t, context.Background(), s)
	})
}

// TestAskingCRUD covers create, read, full update and delete.
func TestAskingCRUD(t *testing.T, ctx context.Context, s store.AskingStore) {
	a := TestAsking("crud-1", 0)
	if err := s.CreateAsking(ctx, a); err != nil {
		t.Fatalf("CreateAsking failed: %v", err)
	}
	if err := s.CreateAsking(ctx, TestAsking("crud-1", 0)); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists on duplicate id, got %v", err)
	}

	got, err := s.GetAsking(ctx, "crud-1")
	if err != nil {
		t.Fatalf("GetAsking failed: %v", err)
	}
	if got.Title != a.Title || got.MentorID != a.MentorID || got.State != "pending" {
		t.Errorf("unexpected asking: %+v", got)
	}
	if !got.EndDate.Equal(a.StartDate.Add(time.Hour)) {
		t.Errorf("end date not preserved: %v", got.EndDate)
	}

	got.State = "accepted"
	got.Title = ""
	if err := s.UpdateAsking(ctx, got); err != nil {
		t.Fatalf("UpdateAsking failed: %v", err)
	}
	updated, err := s.GetAsking(ctx, "crud-1")
	if err != nil {
		t.Fatalf("GetAsking after update failed: %v", err)
	}
	if updated.State != "accepted" {
		t.Errorf("expected state accepted, got %q", updated.State)
	}
	if updated.Title != "" {
		t.Errorf("expected zero-value title to be written, got %q", updated.Title)
	}
	if !updated.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", a.CreatedAt, updated.CreatedAt)
	}

	if err := s.UpdateAsking(ctx, TestAsking("missing", 0)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating missing asking, got %v", err)
	}

	if err := s.DeleteAsking(ctx, "crud-1"); err != nil {
		t.Fatalf("DeleteAsking failed: %v", err)
	}
	if err := s.DeleteAsking(ctx, "crud-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := s.GetAsking(ctx, "crud-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

// TestListFilters checks filtering and creation ordering.
func TestListFilters(t *testing.T, ctx context.Context, s store.AskingStore) {
	second := TestAsking("list-b", 20)
	first := TestAsking("list-a", 10)
	other := TestAsking("list-c", 30)
	other.UserID = "user-2"
	other.MentorID = "mentor-2"

	for _, a := range []*store.Asking{second, first, other} {
		if err := s.CreateAsking(ctx, a); err != nil {
			t.Fatalf("CreateAsking(%s) failed: %v", a.ID, err)
		}
	}

	all, err := s.ListAskings(ctx, store.AskingFilter{})
	if err != nil {
		t.Fatalf("ListAskings failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 askings, got %d", len(all))
	}
	if all[0].ID != "list-a" || all[1].ID != "list-b" || all[2].ID != "list-c" {
		t.Errorf("unexpected order: %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}

	byMentor, err := s.ListAskings(ctx, store.AskingFilter{MentorID: "mentor-1"})
	if err != nil {
		t.Fatalf("ListAskings by mentor failed: %v", err)
	}
	if len(byMentor) != 2 {
		t.Errorf("expected 2 askings for mentor-1, got %d", len(byMentor))
	}

	byUser, err := s.ListAskings(ctx, store.AskingFilter{UserID: "user-2"})
	if err != nil {
		t.Fatalf("ListAskings by user failed: %v", err)
	}
	if len(byUser) != 1 || byUser[0].ID != "list-c" {
		t.Errorf("expected only list-c for user-2, got %v", byUser)
	}

	none, err := s.ListAskings(ctx, store.AskingFilter{UserID: "nobody"})
	if err != nil {
		t.Fatalf("ListAskings for unknown user failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no askings, got %d", len(none))
	}
}
