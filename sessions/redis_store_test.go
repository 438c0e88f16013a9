package sessions_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// memRedis answers the commands RedisStore sends. Anything else panics through
// the nil embedded client.
type memRedis struct {
	redis.UniversalClient
	values map[string]string
	ttls   map[string]time.Duration
	err    error
	lock   sync.Mutex
}

func newMemRedis() *memRedis {
	return &memRedis{
		values: make(map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (m *memRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.err != nil {
		return redis.NewStatusResult("", m.err)
	}
	data, ok := value.([]byte)
	if !ok {
		return redis.NewStatusResult("", errors.New("unexpected value type"))
	}
	m.values[key] = string(data)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *memRedis) Get(_ context.Context, key string) *redis.StringCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.err != nil {
		return redis.NewStringResult("", m.err)
	}
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	var n int64
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			delete(m.values, k)
			delete(m.ttls, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	db := newMemRedis()
	store := sessions.NewRedisStore(db, "session:")

	profile := sessions.Profile{UserID: "user-1", Name: "Jane Doe", Email: "jane@acme.com", Roles: []string{"tenant_user"}}
	s := sessions.New("acme", profile, time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC), 30*time.Minute)

	t.Run("create keeps ttl as key expiry", func(t *testing.T) {
		require.NoError(t, store.Create(ctx, s))
		require.Contains(t, db.values, "session:"+s.ID)
		require.Equal(t, 30*time.Minute, db.ttls["session:"+s.ID])
	})

	t.Run("get round trips the session", func(t *testing.T) {
		got, err := store.Get(ctx, s.ID)
		require.NoError(t, err)
		require.Equal(t, s.ID, got.ID)
		require.Equal(t, "acme", got.Tenant)
		require.Equal(t, profile, got.Profile)
		require.Equal(t, s.TTL, got.TTL)
	})

	t.Run("missing key is session not found", func(t *testing.T) {
		_, err := store.Get(ctx, "nope")
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)

		_, err = store.Get(ctx, "")
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, s.ID))
		_, err := store.Get(ctx, s.ID)
		require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
		require.NoError(t, store.Delete(ctx, s.ID))
		require.NoError(t, store.Delete(ctx, ""))
	})

	t.Run("create requires an id", func(t *testing.T) {
		require.Error(t, store.Create(ctx, &sessions.Session{Tenant: "acme"}))
	})

	t.Run("corrupt value", func(t *testing.T) {
		db.values["session:bad"] = "{not json"
		_, err := store.Get(ctx, "bad")
		require.Error(t, err)
		require.False(t, errors.Is(err, apperrors.ErrSessionNotFound))
	})

	t.Run("connection errors are not misses", func(t *testing.T) {
		db.err = errors.New("connection reset")
		defer func() { db.err = nil }()

		_, err := store.Get(ctx, s.ID)
		require.Error(t, err)
		require.False(t, errors.Is(err, apperrors.ErrSessionNotFound))
		require.Error(t, store.Create(ctx, sessions.New("acme", profile, time.Now(), time.Minute)))
		require.Error(t, store.Delete(ctx, s.ID))
	})
}

func TestConnectRedisRejectsBadURL(t *testing.T) {
	_, err := sessions.ConnectRedis(context.Background(), "not-a-redis-url", 1, time.Millisecond)
	require.Error(t, err)
}
