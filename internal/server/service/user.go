package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"chessaroo/internal/server/core"
	"chessaroo/internal/server/session"
	"chessaroo/internal/server/storage"

	"github.com/google/uuid"
	"github.com/lixenwraith/auth"
	"go.uber.org/zap"
)

const (
	MinPasswordLength        = 6
	MinUsernameLength        = 3
	MaxUsernameLength        = 100
	MaxProfileUsernameLength = 50
)

// Register creates an account after validating and normalizing its fields
func (s *Service) Register(ctx context.Context, username, email, password string) (*core.UserInfo, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if password == "" || username == "" || email == "" {
		return nil, core.Validation(core.ErrInvalidRequest, "Password, username, and email are required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, core.Validation(core.ErrInvalidRequest, "Password must be at least 6 characters long")
	}
	if err := checkUsername(username, MaxUsernameLength); err != nil {
		return nil, err
	}
	if !validEmail(email) {
		return nil, core.Validation(core.ErrInvalidRequest, "Please enter a valid email address")
	}

	if taken, err := s.store.UsernameTaken(ctx, username, ""); err != nil {
		return nil, s.persistFailure("Registration failed", err)
	} else if taken {
		return nil, core.Conflict(core.ErrConflict, "Username is already taken")
	}
	if taken, err := s.store.EmailTaken(ctx, email, ""); err != nil {
		return nil, s.persistFailure("Registration failed", err)
	} else if taken {
		return nil, core.Conflict(core.ErrConflict, "Email is already registered")
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, s.persistFailure("Registration failed", fmt.Errorf("hash password: %w", err))
	}

	userID, err := s.generateUniqueUserID(ctx)
	if err != nil {
		return nil, s.persistFailure("Registration failed", err)
	}

	now := s.now()
	record := storage.UserRecord{
		UserID:       userID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, record); err != nil {
		// Lost a race with a concurrent registration
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, core.Conflict(core.ErrConflict, "Username or email is already registered")
		}
		return nil, s.persistFailure("Registration failed", err, zap.String("username", username))
	}

	s.log.Info("user registered", zap.String("user_id", userID), zap.String("username", username))
	return userInfo(&record), nil
}

// Authenticate verifies credentials. The identifier matches the username as
// given or the email lowercased. Unknown users and wrong passwords fail alike.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*core.UserInfo, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, core.Validation(core.ErrInvalidRequest, "Username or email and password are required")
	}

	record, err := s.store.GetUserByLogin(ctx, identifier, strings.ToLower(identifier))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, s.persistFailure("Login failed", err)
		}
		// Always hash to prevent timing attacks
		_, _ = auth.HashPassword(password)
		return nil, core.Unauthorized("Invalid username/email or password")
	}

	if err := auth.VerifyPassword(password, record.PasswordHash); err != nil {
		return nil, core.Unauthorized("Invalid username/email or password")
	}

	loginAt := s.now()
	if err := s.store.UpdateUserLastLogin(ctx, record.UserID, loginAt); err != nil {
		s.log.Warn("failed to update last login", zap.String("user_id", record.UserID), zap.Error(err))
	} else {
		record.LastLogin = &loginAt
	}

	s.log.Info("user logged in", zap.String("username", record.Username))
	return userInfo(record), nil
}

// GetUser retrieves the account of an authenticated owner
func (s *Service) GetUser(ctx context.Context, userID string) (*core.UserInfo, error) {
	record, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, core.NotFound(core.ErrNotFound, "User not found")
	}
	if err != nil {
		return nil, s.persistFailure("Failed to load user", err)
	}
	return userInfo(record), nil
}

// UpdateProfile changes username and email. Uniqueness is only checked for
// values that actually change.
func (s *Service) UpdateProfile(ctx context.Context, userID, username, email string) (*core.UserInfo, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" || email == "" {
		return nil, core.Validation(core.ErrInvalidRequest, "Username and email are required")
	}
	if err := checkUsername(username, MaxProfileUsernameLength); err != nil {
		return nil, err
	}

	current, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, core.NotFound(core.ErrNotFound, "User not found")
	}
	if err != nil {
		return nil, s.persistFailure("Failed to update profile", err)
	}

	if username != current.Username {
		if taken, err := s.store.UsernameTaken(ctx, username, userID); err != nil {
			return nil, s.persistFailure("Failed to update profile", err)
		} else if taken {
			return nil, core.Conflict(core.ErrConflict, "Username is already in use")
		}
	}
	if email != current.Email {
		if taken, err := s.store.EmailTaken(ctx, email, userID); err != nil {
			return nil, s.persistFailure("Failed to update profile", err)
		} else if taken {
			return nil, core.Conflict(core.ErrConflict, "Email is already in use")
		}
	}

	now := s.now()
	if err := s.store.UpdateUserProfile(ctx, userID, username, email, now); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, core.Conflict(core.ErrConflict, "Username or email is already in use")
		}
		return nil, s.persistFailure("Failed to update profile", err, zap.String("user_id", userID))
	}

	current.Username = username
	current.Email = email
	current.UpdatedAt = now
	return userInfo(current), nil
}

// ChangePassword replaces the credential after verifying the current one and
// ends every open session of the user
func (s *Service) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return core.Validation(core.ErrInvalidRequest, "Current password and new password are required")
	}
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return core.Validation(core.ErrInvalidRequest, "New password must be at least 6 characters long")
	}

	record, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.NotFound(core.ErrNotFound, "User not found")
	}
	if err != nil {
		return s.persistFailure("Failed to change password", err)
	}

	if err := auth.VerifyPassword(currentPassword, record.PasswordHash); err != nil {
		return core.Unauthorized("Current password is incorrect")
	}

	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return s.persistFailure("Failed to change password", fmt.Errorf("hash password: %w", err))
	}
	if err := s.store.UpdateUserPassword(ctx, userID, passwordHash, s.now()); err != nil {
		return s.persistFailure("Failed to change password", err, zap.String("user_id", userID))
	}

	// Sessions opened with the old password end here
	if err := s.sessions.RevokeUser(ctx, userID); err != nil {
		s.log.Warn("failed to revoke sessions after password change", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

// ListUsers returns every account, newest first
func (s *Service) ListUsers(ctx context.Context) ([]core.UserInfo, error) {
	records, err := s.store.GetAllUsers(ctx)
	if err != nil {
		return nil, s.persistFailure("Failed to list users", err)
	}
	users := make([]core.UserInfo, 0, len(records))
	for i := range records {
		users = append(users, *userInfo(&records[i]))
	}
	return users, nil
}

// StartSession opens a login session and returns its token
func (s *Service) StartSession(ctx context.Context, user *core.UserInfo) (string, error) {
	claims := map[string]any{
		"username": user.Username,
		"email":    user.Email,
	}
	token, _, err := s.sessions.Issue(ctx, user.UserID, claims)
	if err != nil {
		return "", s.persistFailure("Failed to start session", err, zap.String("user_id", user.UserID))
	}
	return token, nil
}

// ResolveSession maps a session token to its owner's user ID
func (s *Service) ResolveSession(ctx context.Context, token string) (string, error) {
	sess, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		if !errors.Is(err, session.ErrInvalid) {
			s.log.Warn("session lookup failed", zap.Error(err))
		}
		return "", core.Unauthorized("Authentication required")
	}
	return sess.UserID, nil
}

// EndSession revokes the session behind a token
func (s *Service) EndSession(ctx context.Context, token string) error {
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return s.persistFailure("Failed to end session", err)
	}
	return nil
}

// SessionTTL is the lifetime of issued session tokens
func (s *Service) SessionTTL() time.Duration {
	return s.sessions.TTL()
}

// generateUniqueUserID creates a unique user ID with collision detection
func (s *Service) generateUniqueUserID(ctx context.Context) (string, error) {
	const maxAttempts = 10

	for i := 0; i < maxAttempts; i++ {
		id := uuid.New().String()

		exists, err := s.store.UserIDExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique ID after %d attempts", maxAttempts)
}

func checkUsername(username string, maxLen int) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength {
		return core.Validation(core.ErrInvalidRequest, "Username must be at least 3 characters long")
	}
	if n > maxLen {
		return core.Validation(core.ErrInvalidRequest, fmt.Sprintf("Username must be %d characters or less", maxLen))
	}
	return nil
}

// validEmail requires an @ and a dot somewhere in the domain part
func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	return strings.Contains(email[at+1:], ".")
}

func userInfo(r *storage.UserRecord) *core.UserInfo {
	return &core.UserInfo{
		UserID:    r.UserID,
		Username:  r.Username,
		Email:     r.Email,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		LastLogin: r.LastLogin,
	}
}
