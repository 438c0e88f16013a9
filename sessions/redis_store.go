package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions as JSON values whose Redis expiry equals the session TTL.
type RedisStore struct {
	db     redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(db redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{db: db, prefix: prefix}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Create(ctx context.Context, session *Session) error {
	if session.ID == "" {
		return errors.New("RedisStore.Create: session id is required")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return apperrors.Wrapf(err, "RedisStore.Create marshal")
	}
	if err := s.db.Set(ctx, s.key(session.ID), data, session.TTL).Err(); err != nil {
		return apperrors.Wrapf(err, "RedisStore.Create set")
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, apperrors.ErrSessionNotFound
	}
	data, err := s.db.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "RedisStore.Get")
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, apperrors.Wrapf(err, "RedisStore.Get unmarshal")
	}
	return &session, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := s.db.Del(ctx, s.key(id)).Err(); err != nil {
		return apperrors.Wrapf(err, "RedisStore.Delete")
	}
	return nil
}

// ConnectRedis parses url and pings the server until it answers or ctx is done.
func ConnectRedis(ctx context.Context, url string, attempts int, interval time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("sessions.ConnectRedis parse: %w", err)
	}

	var lastErr error
	for range max(attempts, 1) {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("sessions.ConnectRedis: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
	return nil, fmt.Errorf("sessions.ConnectRedis: %w", lastErr)
}
