package askings

import (
	"context"
	"errors"

	"github.com/MahdiBaghbani/askings-go/internal/platform/store"
)

// Filter narrows Repo.Find. Empty fields match everything.
type Filter struct {
	UserID   string
	MentorID string
}

// Repo is the persistence port of the service. Implementations return
// ErrNotFound for absent ids and raw errors for everything else.
type Repo interface {
	Insert(ctx context.Context, a *Asking) error
	FindByID(ctx context.Context, id string) (*Asking, error)
	Find(ctx context.Context, f Filter) ([]*Asking, error)
	Save(ctx context.Context, a *Asking) error
	Remove(ctx context.Context, id string) error
}

// StoreRepo adapts a store.AskingStore.
type StoreRepo struct {
	s store.AskingStore
}

func NewStoreRepo(s store.AskingStore) *StoreRepo {
	return &StoreRepo{s: s}
}

func (r *StoreRepo) Insert(ctx context.Context, a *Asking) error {
	return mapStoreErr(r.s.CreateAsking(ctx, toRecord(a)))
}

func (r *StoreRepo) FindByID(ctx context.Context, id string) (*Asking, error) {
	rec, err := r.s.GetAsking(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return fromRecord(rec), nil
}

func (r *StoreRepo) Find(ctx context.Context, f Filter) ([]*Asking, error) {
	recs, err := r.s.ListAskings(ctx, store.AskingFilter{UserID: f.UserID, MentorID: f.MentorID})
	if err != nil {
		return nil, mapStoreErr(err)
	}
	out := make([]*Asking, 0, len(recs))
	for _, rec := range recs {
		out = append(out, fromRecord(rec))
	}
	return out, nil
}

func (r *StoreRepo) Save(ctx context.Context, a *Asking) error {
	return mapStoreErr(r.s.UpdateAsking(ctx, toRecord(a)))
}

func (r *StoreRepo) Remove(ctx context.Context, id string) error {
	return mapStoreErr(r.s.DeleteAsking(ctx, id))
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func toRecord(a *Asking) *store.Asking {
	return &store.Asking{
		ID:          a.ID,
		Title:       a.Title,
		Description: a.Description,
		UserID:      a.UserID,
		MentorID:    a.MentorID,
		StartDate:   a.StartDate,
		EndDate:     a.EndDate,
		State:       a.State,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func fromRecord(rec *store.Asking) *Asking {
	return &Asking{
		ID:          rec.ID,
		Title:       rec.Title,
		Description: rec.Description,
		UserID:      rec.UserID,
		MentorID:    rec.MentorID,
		StartDate:   rec.StartDate.UTC(),
		EndDate:     rec.EndDate.UTC(),
		State:       rec.State,
		CreatedAt:   rec.CreatedAt.UTC(),
		UpdatedAt:   rec.UpdatedAt.UTC(),
	}
}
