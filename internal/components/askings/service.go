// SPDX-License-Identifier: AGPL-3.0-or-later
// SPDX-FileCopyrightText: 2026 askings-go Authors

package askings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/askings-go/internal/components/identity"
	"github.com/MahdiBaghbani/askings-go/internal/platform/appctx"
	"github.com/MahdiBaghbani/askings-go/internal/platform/logutil"
)

// NameResolver expands a party reference to its display name.
type NameResolver interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// Options tunes the engine. Zero values select the legacy behavior.
type Options struct {
	ListingPolicy ListingPolicy
	PatchMode     PatchMode
	// Now is the clock used for bookkeeping timestamps.
	Now func() time.Time
}

// Service enforces who may act on an asking and drives its state.
// Callers are passed explicitly; a nil caller on a gated operation
// yields identity.ErrUnauthenticated.
type Service struct {
	repo  Repo
	names NameResolver
	opts  Options
	log   *slog.Logger
}

func NewService(repo Repo, names NameResolver, opts Options, log *slog.Logger) *Service {
	if opts.ListingPolicy == "" {
		opts.ListingPolicy = ListingLegacy
	}
	if opts.PatchMode == "" {
		opts.PatchMode = PatchPermissive
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{repo: repo, names: names, opts: opts, log: logutil.NoopIfNil(log)}
}

// Options returns the effective options.
func (s *Service) Options() Options {
	return s.opts
}

func (s *Service) logger(ctx context.Context) *slog.Logger {
	if l, ok := appctx.LoggerFromContext(ctx); ok {
		return l
	}
	return s.log
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}

// Create books a one-hour slot starting at in.StartDate for the caller.
func (s *Service) Create(ctx context.Context, caller *identity.Caller, in CreateInput) (*Asking, error) {
	if caller == nil {
		return nil, identity.ErrUnauthenticated
	}
	if in.StartDate.IsZero() {
		return nil, validationErr("start_date", "is required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, persistErr("create", fmt.Errorf("generate id: %w", err))
	}
	now := s.now()
	start := in.StartDate.UTC()
	a := &Asking{
		ID:          id.String(),
		Title:       in.Title,
		Description: in.Description,
		UserID:      caller.ID,
		MentorID:    in.MentorID,
		StartDate:   start,
		EndDate:     start.Add(SlotDuration),
		State:       StatePending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Insert(ctx, a); err != nil {
		return nil, persistErr("create", err)
	}

	s.logger(ctx).Info("asking created",
		"asking_id", a.ID, "caller_id", caller.ID, "mentor_id", a.MentorID, "state", a.State)
	return a, nil
}

// ListByMentor returns the askings addressed to mentorID.
func (s *Service) ListByMentor(ctx context.Context, caller *identity.Caller, mentorID string) ([]Detail, error) {
	return s.listBySubject(ctx, caller, mentorID, Filter{MentorID: mentorID})
}

// ListByUser returns the askings requested by userID.
func (s *Service) ListByUser(ctx context.Context, caller *identity.Caller, userID string) ([]Detail, error) {
	return s.listBySubject(ctx, caller, userID, Filter{UserID: userID})
}

func (s *Service) listBySubject(ctx context.Context, caller *identity.Caller, subjectID string, f Filter) ([]Detail, error) {
	if caller == nil {
		return nil, identity.ErrUnauthenticated
	}
	if !s.opts.ListingPolicy.Allows(caller, subjectID) {
		s.logger(ctx).Debug("listing rejected",
			"caller_id", caller.ID, "subject_id", subjectID, "policy", string(s.opts.ListingPolicy))
		return nil, ErrForbidden
	}

	items, err := s.repo.Find(ctx, f)
	if err != nil {
		return nil, persistErr("list", err)
	}
	return s.expandAll(ctx, items), nil
}

// Get returns one asking with both parties expanded.
func (s *Service) Get(ctx context.Context, caller *identity.Caller, id string) (*Detail, error) {
	if caller == nil {
		return nil, identity.ErrUnauthenticated
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	d := s.expand(ctx, a, map[string]string{})
	return &d, nil
}

// Transition sets the state of an asking. Only its mentor may do so.
func (s *Service) Transition(ctx context.Context, caller *identity.Caller, id, state string) (*Asking, error) {
	if caller == nil {
		return nil, identity.ErrUnauthenticated
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(caller, a) {
		return nil, ErrNotMentor
	}

	prev := a.State
	a.State = state
	a.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, a); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistErr("transition", err)
	}

	s.logger(ctx).Info("asking transitioned",
		"asking_id", a.ID, "caller_id", caller.ID, "from", prev, "state", a.State)
	return a, nil
}

// Update merges patch into an asking according to the configured PatchMode.
func (s *Service) Update(ctx context.Context, caller *identity.Caller, id string, patch Patch) (*Asking, error) {
	if caller == nil {
		return nil, identity.ErrUnauthenticated
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(a, s.opts.PatchMode); err != nil {
		return nil, err
	}
	a.ID = id
	a.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, a); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistErr("update", err)
	}

	s.logger(ctx).Info("asking updated",
		"asking_id", a.ID, "caller_id", caller.ID, "state", a.State, "fields", len(patch))
	return a, nil
}

// Delete removes an asking for good.
func (s *Service) Delete(ctx context.Context, caller *identity.Caller, id string) error {
	if caller == nil {
		return identity.ErrUnauthenticated
	}
	if err := s.repo.Remove(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return persistErr("delete", err)
	}
	s.logger(ctx).Info("asking deleted", "asking_id", id, "caller_id", caller.ID)
	return nil
}

// ListAll returns every asking. It requires no caller and fails with
// ErrEmptyResult when there is nothing to return.
func (s *Service) ListAll(ctx context.Context) ([]Detail, error) {
	items, err := s.repo.Find(ctx, Filter{})
	if err != nil {
		return nil, persistErr("list", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyResult
	}
	return s.expandAll(ctx, items), nil
}

func (s *Service) load(ctx context.Context, id string) (*Asking, error) {
	a, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("get", err)
	}
	return a, nil
}

func (s *Service) expandAll(ctx context.Context, items []*Asking) []Detail {
	seen := make(map[string]string)
	out := make([]Detail, 0, len(items))
	for _, a := range items {
		out = append(out, s.expand(ctx, a, seen))
	}
	return out
}

func (s *Service) expand(ctx context.Context, a *Asking, seen map[string]string) Detail {
	return Detail{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		State:       a.State,
		StartDate:   a.StartDate,
		EndDate:     a.EndDate,
		User:        PartyRef{ID: a.UserID, Pseudo: s.pseudo(ctx, a.UserID, seen)},
		Mentor:      PartyRef{ID: a.MentorID, Pseudo: s.pseudo(ctx, a.MentorID, seen)},
	}
}

// pseudo never fails: unresolvable references become PseudoNotFound.
func (s *Service) pseudo(ctx context.Context, userID string, seen map[string]string) string {
	if name, ok := seen[userID]; ok {
		return name
	}
	name := PseudoNotFound
	if s.names != nil && userID != "" {
		n, err := s.names.DisplayName(ctx, userID)
		switch {
		case err == nil && n != "":
			name = n
		case err != nil && !errors.Is(err, identity.ErrUserNotFound):
			s.logger(ctx).Warn("display name lookup failed", "user_id", userID, "error", err)
		}
	}
	seen[userID] = name
	return name
}
