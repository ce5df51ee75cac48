package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chessaroo/internal/server/chesscom"
	"chessaroo/internal/server/core"
	"chessaroo/internal/server/session"
	"chessaroo/internal/server/storage"

	"go.uber.org/zap"
)

const (
	DefaultGameListLimit = 10
	MaxGameListLimit     = 100
	CleanupJobInterval   = 1 * time.Hour
)

// GameFetcher retrieves an external game payload by its site ID
type GameFetcher interface {
	Fetch(ctx context.Context, gameID string) (*chesscom.Payload, error)
}

// Service coordinates accounts, game records, imports and storage
type Service struct {
	store    *storage.Store
	sessions *session.Manager
	fetcher  GameFetcher
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces the wall clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a service over an opened, migrated store
func New(store *storage.Store, sessions *session.Manager, fetcher GameFetcher, opts ...Option) *Service {
	s := &Service{
		store:    store,
		sessions: sessions,
		fetcher:  fetcher,
		log:      zap.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetStorageHealth returns the storage component status
func (s *Service) GetStorageHealth(ctx context.Context) string {
	if s.store == nil {
		return "disabled"
	}
	if s.store.IsHealthy(ctx) {
		return "ok"
	}
	return "degraded"
}

// Shutdown releases the store
func (s *Service) Shutdown() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RunCleanupJob periodically purges expired sessions until ctx is done
func (s *Service) RunCleanupJob(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = CleanupJobInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupExpired(ctx)
		}
	}
}

func (s *Service) cleanupExpired(ctx context.Context) {
	if s.sessions == nil {
		return
	}
	deleted, err := s.sessions.Sweep(ctx)
	if err != nil {
		s.log.Warn("cleanup: failed to delete expired sessions", zap.Error(err))
		return
	}
	if deleted > 0 {
		s.log.Info("cleanup: deleted expired sessions", zap.Int64("count", deleted))
	}
}

// persistFailure logs the storage cause and hides it from the caller
func (s *Service) persistFailure(message string, err error, fields ...zap.Field) error {
	s.log.Error(message, append(fields, zap.Error(err))...)
	return core.Persistence(message, err)
}
