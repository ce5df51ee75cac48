package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions as JSON values whose key TTL matches the session
// expiry, so no sweeping is needed. A per-user set indexes session IDs for
// bulk revocation.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// DialRedis parses a redis:// URL and checks the server answers
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) keySession(id string) string  { return "session:" + strings.TrimSpace(id) }
func (s *RedisStore) keyUserIdx(uid string) string { return "session:user:" + strings.TrimSpace(uid) }

func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return ErrInvalid
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.keySession(sess.ID), raw, ttl)
	pipe.SAdd(ctx, s.keyUserIdx(sess.UserID), sess.ID)
	pipe.Expire(ctx, s.keyUserIdx(sess.UserID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Load(ctx context.Context, id string, now time.Time) (*Session, error) {
	raw, err := s.rdb.Get(ctx, s.keySession(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, err
	}
	if !sess.ExpiresAt.After(now) {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	raw, err := s.rdb.Get(ctx, s.keySession(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err == nil {
		_ = s.rdb.SRem(ctx, s.keyUserIdx(sess.UserID), id).Err()
	}
	return s.rdb.Del(ctx, s.keySession(id)).Err()
}

func (s *RedisStore) DeleteUser(ctx context.Context, userID string) error {
	ids, err := s.rdb.SMembers(ctx, s.keyUserIdx(userID)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.keySession(id))
	}
	keys = append(keys, s.keyUserIdx(userID))
	return s.rdb.Del(ctx, keys...).Err()
}
