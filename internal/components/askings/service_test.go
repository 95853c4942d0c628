package askings_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/MahdiBaghbani/askings-go/internal/components/askings"
	"github.com/MahdiBaghbani/askings-go/internal/components/identity"
	"github.com/MahdiBaghbani/askings-go/internal/platform/store"
	_ "github.com/MahdiBaghbani/askings-go/internal/platform/store/json"
	"github.com/MahdiBaghbani/askings-go/internal/platform/store/testutil"
)

var (
	alice  = &identity.Caller{ID: "alice", Roles: []string{identity.RoleUser}}
	bob    = &identity.Caller{ID: "bob", Roles: []string{identity.RoleMentor}}
	carol  = &identity.Caller{ID: "carol", Roles: []string{identity.RoleMentor}}
	admin  = &identity.Caller{ID: "root", Roles: []string{identity.RoleAdmin}}
	tenAM  = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	fixedT = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

type stubNames map[string]string

func (s stubNames) DisplayName(_ context.Context, id string) (string, error) {
	if n, ok := s[id]; ok {
		return n, nil
	}
	return "", identity.ErrUserNotFound
}

// brokenRepo fails every call with err.
type brokenRepo struct{ err error }

func (b brokenRepo) Insert(context.Context, *askings.Asking) error { return b.err }
func (b brokenRepo) FindByID(context.Context, string) (*askings.Asking, error) {
	return nil, b.err
}
func (b brokenRepo) Find(context.Context, askings.Filter) ([]*askings.Asking, error) {
	return nil, b.err
}
func (b brokenRepo) Save(context.Context, *askings.Asking) error { return b.err }
func (b brokenRepo) Remove(context.Context, string) error        { return b.err }

func newService(t *testing.T, opts askings.Options) *askings.Service {
	t.Helper()
	s := testutil.OpenDriver(t, &store.DriverConfig{Driver: "json", DataDir: t.TempDir()})
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedT }
	}
	names := stubNames{"alice": "Alice", "bob": "Bob", "carol": "Carol"}
	return askings.NewService(askings.NewStoreRepo(s), names, opts, nil)
}

func mustCreate(t *testing.T, svc *askings.Service, caller *identity.Caller, mentorID string) *askings.Asking {
	t.Helper()
	a, err := svc.Create(context.Background(), caller, askings.CreateInput{
		Title:       "Go review",
		Description: "channels",
		StartDate:   tenAM,
		MentorID:    mentorID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return a
}

func TestService_Create(t *testing.T) {
	svc := newService(t, askings.Options{})
	a := mustCreate(t, svc, alice, "bob")

	if a.ID == "" {
		t.Error("expected an assigned id")
	}
	if a.State != askings.StatePending {
		t.Errorf("State = %q, want pending", a.State)
	}
	if want := time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC); !a.EndDate.Equal(want) {
		t.Errorf("EndDate = %v, want %v", a.EndDate, want)
	}
	if a.UserID != "alice" || a.MentorID != "bob" {
		t.Errorf("parties = %s/%s", a.UserID, a.MentorID)
	}
	if !a.CreatedAt.Equal(fixedT) {
		t.Errorf("CreatedAt = %v, want %v", a.CreatedAt, fixedT)
	}

	got, err := svc.Get(context.Background(), alice, a.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.EndDate.Equal(got.StartDate.Add(time.Hour)) {
		t.Errorf("stored window = %v..%v", got.StartDate, got.EndDate)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc := newService(t, askings.Options{})
	ctx := context.Background()

	if _, err := svc.Create(ctx, nil, askings.CreateInput{StartDate: tenAM}); !errors.Is(err, identity.ErrUnauthenticated) {
		t.Errorf("nil caller: err = %v, want ErrUnauthenticated", err)
	}
	if _, err := svc.Create(ctx, alice, askings.CreateInput{MentorID: "bob"}); !errors.Is(err, askings.ErrValidation) {
		t.Errorf("zero start: err = %v, want ErrValidation", err)
	}
}

func TestService_ListingPolicies(t *testing.T) {
	tests := []struct {
		policy    askings.ListingPolicy
		caller    *identity.Caller
		subject   string
		byMentor  bool
		wantAllow bool
	}{
		{askings.ListingLegacy, bob, "bob", true, false},
		{askings.ListingLegacy, alice, "bob", true, true},
		{askings.ListingLegacy, admin, "bob", true, true},
		{askings.ListingLegacy, alice, "alice", false, false},
		{askings.ListingLegacy, carol, "alice", false, true},
		{askings.ListingSubjectOrAdmin, bob, "bob", true, true},
		{askings.ListingSubjectOrAdmin, alice, "bob", true, false},
		{askings.ListingSubjectOrAdmin, admin, "alice", false, true},
		{askings.ListingSubjectOrAdmin, alice, "alice", false, true},
	}

	for _, tt := range tests {
		name := string(tt.policy) + "/" + tt.caller.ID + "->" + tt.subject
		t.Run(name, func(t *testing.T) {
			svc := newService(t, askings.Options{ListingPolicy: tt.policy})
			mustCreate(t, svc, alice, "bob")

			var (
				items []askings.Detail
				err   error
			)
			if tt.byMentor {
				items, err = svc.ListByMentor(context.Background(), tt.caller, tt.subject)
			} else {
				items, err = svc.ListByUser(context.Background(), tt.caller, tt.subject)
			}

			if !tt.wantAllow {
				if !errors.Is(err, askings.ErrForbidden) {
					t.Fatalf("err = %v, want ErrForbidden", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(items) != 1 {
				t.Fatalf("len = %d, want 1", len(items))
			}
			if items[0].User.Pseudo != "Alice" || items[0].Mentor.Pseudo != "Bob" {
				t.Errorf("expanded = %+v / %+v", items[0].User, items[0].Mentor)
			}
		})
	}
}

func TestService_Transition(t *testing.T) {
	svc := newService(t, askings.Options{})
	ctx := context.Background()
	a := mustCreate(t, svc, alice, "bob")

	if _, err := svc.Transition(ctx, carol, a.ID, askings.StateAccepted); !errors.Is(err, askings.ErrNotMentor) {
		t.Errorf("other mentor: err = %v, want ErrNotMentor", err)
	}
	if _, err := svc.Transition(ctx, admin, a.ID, askings.StateAccepted); !errors.Is(err, askings.ErrForbidden) {
		t.Errorf("admin: err = %v, want ErrForbidden", err)
	}
	if _, err := svc.Transition(ctx, bob, "missing", askings.StateAccepted); !errors.Is(err, askings.ErrNotFound) {
		t.Errorf("missing: err = %v, want ErrNotFound", err)
	}

	got, err := svc.Transition(ctx, bob, a.ID, "maybe-later")
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if got.State != "maybe-later" {
		t.Errorf("State = %q, want verbatim value", got.State)
	}

	// No terminal state.
	got, err = svc.Transition(ctx, bob, a.ID, askings.StateDeclined)
	if err != nil || got.State != askings.StateDeclined {
		t.Errorf("second transition = %v, %v", got, err)
	}
}

func patchOf(t *testing.T, raw string) askings.Patch {
	t.Helper()
	var p askings.Patch
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("bad patch fixture: %v", err)
	}
	return p
}

func TestService_UpdatePermissive(t *testing.T) {
	svc := newService(t, askings.Options{})
	ctx := context.Background()
	a := mustCreate(t, svc, alice, "bob")

	got, err := svc.Update(ctx, carol, a.ID, patchOf(t, `{"state":"anything","mentor_id":"carol","id":"hijack","color":"red"}`))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("ID changed to %q", got.ID)
	}
	if got.State != "anything" || got.MentorID != "carol" {
		t.Errorf("merged = %+v", got)
	}
	if !got.CreatedAt.Equal(a.CreatedAt) {
		t.Errorf("CreatedAt changed: %v", got.CreatedAt)
	}

	if _, err := svc.Update(ctx, carol, "missing", patchOf(t, `{"title":"x"}`)); !errors.Is(err, askings.ErrNotFound) {
		t.Errorf("missing: err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Update(ctx, carol, a.ID, patchOf(t, `{"start_date":"tomorrow"}`)); !errors.Is(err, askings.ErrValidation) {
		t.Errorf("bad date: err = %v, want ErrValidation", err)
	}
}

func TestService_UpdateRestricted(t *testing.T) {
	svc := newService(t, askings.Options{PatchMode: askings.PatchRestricted})
	ctx := context.Background()
	a := mustCreate(t, svc, alice, "bob")

	if _, err := svc.Update(ctx, alice, a.ID, patchOf(t, `{"user_id":"mallory"}`)); !errors.Is(err, askings.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	got, err := svc.Update(ctx, alice, a.ID, patchOf(t, `{"title":"New","state":"accepted"}`))
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Title != "New" || got.State != "accepted" || got.UserID != "alice" {
		t.Errorf("merged = %+v", got)
	}
}

func TestService_DeleteTwice(t *testing.T) {
	svc := newService(t, askings.Options{})
	ctx := context.Background()
	a := mustCreate(t, svc, alice, "bob")

	if err := svc.Delete(ctx, carol, a.ID); err != nil {
		t.Fatalf("first Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, carol, a.ID); !errors.Is(err, askings.ErrNotFound) {
		t.Errorf("second Delete() err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Get(ctx, carol, a.ID); !errors.Is(err, askings.ErrNotFound) {
		t.Errorf("Get after delete err = %v, want ErrNotFound", err)
	}
}

func TestService_ListAll(t *testing.T) {
	svc := newService(t, askings.Options{})
	ctx := context.Background()

	if _, err := svc.ListAll(ctx); !errors.Is(err, askings.ErrEmptyResult) {
		t.Fatalf("empty store err = %v, want ErrEmptyResult", err)
	}

	mustCreate(t, svc, alice, "bob")
	mustCreate(t, svc, &identity.Caller{ID: "ghost"}, "nobody")

	items, err := svc.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	var ghost *askings.Detail
	for i := range items {
		if items[i].User.ID == "ghost" {
			ghost = &items[i]
		}
	}
	if ghost == nil {
		t.Fatal("ghost asking missing")
	}
	if ghost.User.Pseudo != askings.PseudoNotFound || ghost.Mentor.Pseudo != askings.PseudoNotFound {
		t.Errorf("placeholder not applied: %+v", ghost)
	}
}

func TestService_PersistenceError(t *testing.T) {
	boom := errors.New("disk full")
	svc := askings.NewService(brokenRepo{err: boom}, nil, askings.Options{}, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, alice, askings.CreateInput{StartDate: tenAM})
	var perr *askings.PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want *PersistenceError", err)
	}
	if perr.Op != "create" || !errors.Is(err, boom) {
		t.Errorf("PersistenceError = %+v", perr)
	}

	if _, err := svc.ListAll(ctx); !errors.As(err, &perr) {
		t.Errorf("ListAll err = %v, want *PersistenceError", err)
	}
	if _, err := svc.Get(ctx, alice, "x"); !errors.As(err, &perr) {
		t.Errorf("Get err = %v, want *PersistenceError", err)
	}
	if err := svc.Delete(ctx, alice, "x"); !errors.As(err, &perr) {
		t.Errorf("Delete err = %v, want *PersistenceError", err)
	}
}
