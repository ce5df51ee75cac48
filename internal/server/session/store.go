// Package session binds authenticated requests to a server-side login session.
// A client holds an HS256 token whose sid claim names a stored session; revoking
// the stored session invalidates the token before its own expiry.
package session

import (
	"context"
	"errors"
	"time"

	"chessaroo/internal/server/storage"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrInvalid  = errors.New("invalid or expired session")
)

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store persists sessions. Load must not return expired sessions.
type Store interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context, id string, now time.Time) (*Session, error)
	Delete(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, userID string) error
}

// Sweeper is implemented by stores that need explicit expiry cleanup
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

// SQLStore keeps sessions in the relational sessions table
type SQLStore struct {
	db *storage.Store
}

func NewSQLStore(db *storage.Store) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Save(ctx context.Context, sess Session) error {
	return s.db.CreateSession(ctx, storage.SessionRecord{
		SessionID: sess.ID,
		UserID:    sess.UserID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (s *SQLStore) Load(ctx context.Context, id string, now time.Time) (*Session, error) {
	rec, err := s.db.GetSession(ctx, id, now)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &Session{ID: rec.SessionID, UserID: rec.UserID, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt}, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	return s.db.DeleteSession(ctx, id)
}

func (s *SQLStore) DeleteUser(ctx context.Context, userID string) error {
	return s.db.DeleteSessionsByUserID(ctx, userID)
}

func (s *SQLStore) Sweep(ctx context.Context, now time.Time) (int64, error) {
	return s.db.DeleteExpiredSessions(ctx, now)
}
