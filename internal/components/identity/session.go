package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"sync"
	"time"

	"github.com/MahdiBaghbani/askings-go/internal/platform/logutil"
)

// DefaultSessionTTL applies when config leaves the TTL unset.
const DefaultSessionTTL = 24 * time.Hour

// Session is an issued bearer token.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SessionRepo provides session storage operations.
type SessionRepo interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (*Session, error)

	// Get returns ErrSessionNotFound or ErrSessionExpired for unusable tokens.
	Get(ctx context.Context, token string) (*Session, error)

	// Delete is idempotent.
	Delete(ctx context.Context, token string) error

	DeleteByUser(ctx context.Context, userID string) error

	// DeleteExpired removes expired sessions and returns how many were removed.
	DeleteExpired(ctx context.Context) (int, error)
}

// GenerateToken creates a 256-bit random URL-safe token.
func GenerateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MemorySessionRepo is an in-memory implementation of SessionRepo.
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*Session            // by token
	byUser   map[string]map[string]struct{} // userID -> tokens
}

func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]map[string]struct{}),
	}
}

func (r *MemorySessionRepo) Create(ctx context.Context, userID string, ttl time.Duration) (*Session, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	token, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{Token: token, UserID: userID, CreatedAt: now, ExpiresAt: now.Add(ttl)}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[token] = s
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]struct{})
	}
	r.byUser[userID][token] = struct{}{}

	out := *s
	return &out, nil
}

func (r *MemorySessionRepo) Get(ctx context.Context, token string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.IsExpired() {
		return nil, ErrSessionExpired
	}
	out := *s
	return &out, nil
}

// remove deletes one session. Caller holds r.mu.
func (r *MemorySessionRepo) remove(token string) {
	s, ok := r.sessions[token]
	if !ok {
		return
	}
	if tokens := r.byUser[s.UserID]; tokens != nil {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(r.byUser, s.UserID)
		}
	}
	delete(r.sessions, token)
}

func (r *MemorySessionRepo) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(token)
	return nil
}

func (r *MemorySessionRepo) DeleteByUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token := range r.byUser[userID] {
		delete(r.sessions, token)
	}
	delete(r.byUser, userID)
	return nil
}

func (r *MemorySessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var count int
	now := time.Now()
	for token, s := range r.sessions {
		if now.After(s.ExpiresAt) {
			r.remove(token)
			count++
		}
	}
	return count, nil
}

// SweepSessions calls DeleteExpired every interval until ctx is done.
func SweepSessions(ctx context.Context, repo SessionRepo, interval time.Duration, log *slog.Logger) {
	log = logutil.NoopIfNil(log)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx)
			if err != nil {
				log.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.Debug("expired sessions removed", "count", n)
			}
		}
	}
}

var _ SessionRepo = (*MemorySessionRepo)(nil)
