// Package gormstore implements store.AskingStore on top of a *gorm.DB.
// The sqlite and postgres drivers share it and differ only in how they open the DB.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/MahdiBaghbani/askings-go/internal/platform/store"
)

// Store persists askings through GORM.
type Store struct {
	db *gorm.DB
}

// New wraps an open database. Call Migrate before use.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&store.Asking{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) CreateAsking(ctx context.Context, a *store.Asking) error {
	err := s.db.WithContext(ctx).Create(a).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return store.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetAsking(ctx context.Context, id string) (*store.Asking, error) {
	var a store.Asking
	err := s.db.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListAskings(ctx context.Context, f store.AskingFilter) ([]*store.Asking, error) {
	q := s.db.WithContext(ctx)
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.MentorID != "" {
		q = q.Where("mentor_id = ?", f.MentorID)
	}

	var out []*store.Asking
	if err := q.Order("created_at, id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) UpdateAsking(ctx context.Context, a *store.Asking) error {
	res := s.db.WithContext(ctx).Model(&store.Asking{}).
		Where("id = ?", a.ID).
		Select("*").Omit("id", "created_at").
		Updates(a)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteAsking(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&store.Asking{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

var _ store.AskingStore = (*Store)(nil)
