package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const userColumns = `user_id, username, email, password_hash, created_at, updated_at, last_login`

func scanUser(row interface{ Scan(...any) error }) (*UserRecord, error) {
	var user UserRecord
	err := row.Scan(
		&user.UserID, &user.Username, &user.Email, &user.PasswordHash,
		&user.CreatedAt, &user.UpdatedAt, &user.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a user; a taken id, username or email yields ErrDuplicate
func (s *Store) CreateUser(ctx context.Context, record UserRecord) error {
	query := s.rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		record.UserID, record.Username, record.Email, record.PasswordHash,
		record.CreatedAt, record.UpdatedAt, record.LastLogin,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// UserIDExists checks a candidate public identifier for collisions
func (s *Store) UserIDExists(ctx context.Context, userID string) (bool, error) {
	var count int
	query := s.rebind(`SELECT COUNT(*) FROM users WHERE user_id = ?`)
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// UsernameTaken reports whether another user holds the username
func (s *Store) UsernameTaken(ctx context.Context, username, exceptUserID string) (bool, error) {
	return s.taken(ctx, "username", username, exceptUserID)
}

// EmailTaken reports whether another user holds the email
func (s *Store) EmailTaken(ctx context.Context, email, exceptUserID string) (bool, error) {
	return s.taken(ctx, "email", email, exceptUserID)
}

func (s *Store) taken(ctx context.Context, column, value, exceptUserID string) (bool, error) {
	var count int
	query := s.rebind(`SELECT COUNT(*) FROM users WHERE ` + column + ` = ? AND user_id <> ?`)
	if err := s.db.QueryRowContext(ctx, query, value, exceptUserID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByID retrieves user by unique user ID
func (s *Store) GetUserByID(ctx context.Context, userID string) (*UserRecord, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE user_id = ?`)
	user, err := scanUser(s.db.QueryRowContext(ctx, query, userID))
	return user, notFound(err)
}

// GetUserByLogin matches the identifier against username or lowercased email.
// An email match wins over a username spelled like someone else's email.
func (s *Store) GetUserByLogin(ctx context.Context, username, email string) (*UserRecord, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE username = ? OR email = ?
	ORDER BY CASE WHEN email = ? THEN 0 ELSE 1 END LIMIT 1`)
	user, err := scanUser(s.db.QueryRowContext(ctx, query, username, email, email))
	return user, notFound(err)
}

// UpdateUserProfile sets username and email
func (s *Store) UpdateUserProfile(ctx context.Context, userID, username, email string, at time.Time) error {
	query := s.rebind(`UPDATE users SET username = ?, email = ?, updated_at = ? WHERE user_id = ?`)
	res, err := s.db.ExecContext(ctx, query, username, email, at, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update profile for user %s: %w", userID, err)
	}
	return requireAffected(res)
}

// UpdateUserPassword updates user password hash
func (s *Store) UpdateUserPassword(ctx context.Context, userID, passwordHash string, at time.Time) error {
	query := s.rebind(`UPDATE users SET password_hash = ?, updated_at = ? WHERE user_id = ?`)
	res, err := s.db.ExecContext(ctx, query, passwordHash, at, userID)
	if err != nil {
		return fmt.Errorf("failed to update password for user %s: %w", userID, err)
	}
	return requireAffected(res)
}

// UpdateUserLastLogin updates user last login time
func (s *Store) UpdateUserLastLogin(ctx context.Context, userID string, loginTime time.Time) error {
	query := s.rebind(`UPDATE users SET last_login = ? WHERE user_id = ?`)
	_, err := s.db.ExecContext(ctx, query, loginTime, userID)
	if err != nil {
		return fmt.Errorf("failed to update last login for user %s: %w", userID, err)
	}
	return nil
}

// GetAllUsers retrieves all users, newest first
func (s *Store) GetAllUsers(ctx context.Context) ([]UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []UserRecord
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}

	return users, rows.Err()
}

// DeleteUser removes a user; games, moves, sessions and imports cascade
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	query := s.rebind(`DELETE FROM users WHERE user_id = ?`)
	res, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", userID, err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
