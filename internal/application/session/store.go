package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JohanRGustafsson/valuation-model/pkg/errors"
)

// DefaultTTL bounds how long an idle session is kept.
const DefaultTTL = 30 * time.Minute

// Session is one user's form state. Nothing outlives ExpiresAt.
type Session struct {
	ID        string    `json:"id"`
	Form      Form      `json:"form"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session has lapsed at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists sessions for their TTL. Get returns an independent copy;
// callers change it and call Save. Save extends the expiry.
type Store interface {
	Create(ctx context.Context) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

func newSession(now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Form:      DefaultForm(),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

func notFound(id string) error {
	return errors.Newf(errors.CodeSessionNotFound, "session %s not found", id)
}

func expired(id string) error {
	return errors.Newf(errors.CodeSessionExpired, "session %s expired", id)
}

// ValidID reports whether id looks like a session id issued by a Store.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
