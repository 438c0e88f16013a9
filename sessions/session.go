package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Profile is the user identity captured when a session is created.
type Profile struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Roles  []string `json:"roles"`
}

// Session binds an opaque id to an authenticated user's profile. It is created at
// sign-in or SSO completion and removed on sign-out or when its TTL lapses.
type Session struct {
	ID        string        `json:"id"`
	Tenant    string        `json:"tenant"`
	Profile   Profile       `json:"profile"`
	CreatedAt time.Time     `json:"created_at"`
	TTL       time.Duration `json:"ttl"`
}

// New creates a session with a fresh random id.
func New(tenant string, profile Profile, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Tenant:    tenant,
		Profile:   profile,
		CreatedAt: now,
		TTL:       ttl,
	}
}

// ExpiresAt returns when the session lapses. A zero TTL never lapses.
func (s *Session) ExpiresAt() time.Time {
	if s.TTL <= 0 {
		return time.Time{}
	}
	return s.CreatedAt.Add(s.TTL)
}

// Store is the shared session cache consulted at the gateway and at every
// downstream service boundary. Get returns errors.ErrSessionNotFound from
// internal/errors on a miss.
type Store interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}
