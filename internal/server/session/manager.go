package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lixenwraith/auth"
)

const (
	DefaultTTL = 7 * 24 * time.Hour
	claimSID   = "sid"
)

// Manager issues and resolves session tokens
type Manager struct {
	store  Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(store Store, secret []byte, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		store:  store,
		secret: secret,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue opens a session for userID and returns its signed token. Extra claims
// are carried in the token for clients; only sid is trusted on resolve.
func (m *Manager) Issue(ctx context.Context, userID string, claims map[string]any) (string, *Session, error) {
	now := m.now()
	sess := Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return "", nil, fmt.Errorf("save session: %w", err)
	}

	all := make(map[string]any, len(claims)+1)
	for k, v := range claims {
		all[k] = v
	}
	all[claimSID] = sess.ID

	token, err := auth.GenerateHS256Token(m.secret, userID, all, m.ttl)
	if err != nil {
		_ = m.store.Delete(ctx, sess.ID)
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return token, &sess, nil
}

// Resolve validates a token and returns the live session it names
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	userID, sid, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	sess, err := m.store.Load(ctx, sid, m.now())
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalid
	}
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrInvalid
	}
	return sess, nil
}

// Revoke ends the session behind a token. Invalid tokens are ignored.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	_, sid, err := m.parse(token)
	if err != nil {
		return nil
	}
	return m.store.Delete(ctx, sid)
}

// RevokeUser ends every session of a user
func (m *Manager) RevokeUser(ctx context.Context, userID string) error {
	return m.store.DeleteUser(ctx, userID)
}

// Sweep drops expired sessions when the store needs it
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	sw, ok := m.store.(Sweeper)
	if !ok {
		return 0, nil
	}
	return sw.Sweep(ctx, m.now())
}

func (m *Manager) parse(token string) (string, string, error) {
	if token == "" {
		return "", "", ErrInvalid
	}
	userID, claims, err := auth.ValidateHS256Token(m.secret, token)
	if err != nil {
		return "", "", ErrInvalid
	}
	sid, _ := claims[claimSID].(string)
	if sid == "" || userID == "" {
		return "", "", ErrInvalid
	}
	return userID, sid, nil
}
