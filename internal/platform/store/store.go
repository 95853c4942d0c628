// Package store provides persistence primitives and the driver registry.
package store

import (
	"context"
	"errors"
	"time"
)

// Common errors for store operations.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrClosed        = errors.New("store closed")
)

// Driver defines the interface for a persistence backend.
// Implementations must be safe for concurrent use.
type Driver interface {
	// Init opens connections, creates tables or loads files.
	Init(ctx context.Context) error

	Close() error

	// Name returns the driver name (json, sqlite, postgres).
	Name() string
}

// AskingStore persists booking requests.
type AskingStore interface {
	CreateAsking(ctx context.Context, a *Asking) error
	GetAsking(ctx context.Context, id string) (*Asking, error)
	// ListAskings returns matches ordered by creation time, then id.
	ListAskings(ctx context.Context, f AskingFilter) ([]*Asking, error)
	// UpdateAsking replaces every column except created_at. Returns ErrNotFound when absent.
	UpdateAsking(ctx context.Context, a *Asking) error
	DeleteAsking(ctx context.Context, id string) error
}

// AskingFilter narrows ListAskings. Empty fields match everything.
type AskingFilter struct {
	UserID   string
	MentorID string
}

// Matches reports whether a satisfies the filter.
func (f AskingFilter) Matches(a *Asking) bool {
	if f.UserID != "" && a.UserID != f.UserID {
		return false
	}
	if f.MentorID != "" && a.MentorID != f.MentorID {
		return false
	}
	return true
}

// Asking is the persisted form of a booking request.
type Asking struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	UserID      string    `json:"user_id" gorm:"index"`
	MentorID    string    `json:"mentor_id" gorm:"index"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	State       string    `json:"state"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a copy safe to hand out from in-memory drivers.
func (a *Asking) Clone() *Asking {
	c := *a
	return &c
}
