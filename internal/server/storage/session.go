package storage

import (
	"context"
	"time"
)

// CreateSession stores a login session; a user may hold several
func (s *Store) CreateSession(ctx context.Context, record SessionRecord) error {
	query := s.rebind(`INSERT INTO sessions (session_id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, record.SessionID, record.UserID, record.CreatedAt, record.ExpiresAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetSession retrieves an unexpired session by ID
func (s *Store) GetSession(ctx context.Context, sessionID string, now time.Time) (*SessionRecord, error) {
	var session SessionRecord
	query := s.rebind(`SELECT session_id, user_id, created_at, expires_at FROM sessions WHERE session_id = ? AND expires_at > ?`)

	err := s.db.QueryRowContext(ctx, query, sessionID, now).Scan(
		&session.SessionID, &session.UserID, &session.CreatedAt, &session.ExpiresAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

// DeleteSession removes a session
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE session_id = ?`), sessionID)
	return err
}

// DeleteSessionsByUserID removes all sessions for a user
func (s *Store) DeleteSessionsByUserID(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE user_id = ?`), userID)
	return err
}

// DeleteExpiredSessions removes expired sessions
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM sessions WHERE expires_at < ?`), now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
