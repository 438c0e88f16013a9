package sessionrepofakes

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/jrsteele09/workspark/internal/errors"
	"github.com/jrsteele09/workspark/sessions"
)

var _ sessions.Store = (*FakeSessionStore)(nil)

type FakeSessionStore struct {
	sessions map[string]*sessions.Session
	lock     sync.RWMutex
	gets     atomic.Int64
	nowFunc  func() time.Time
}

func NewFakeSessionStore() *FakeSessionStore {
	return &FakeSessionStore{
		sessions: make(map[string]*sessions.Session),
		nowFunc:  time.Now,
	}
}

// WithNowFunc replaces the clock used for TTL checks.
func (s *FakeSessionStore) WithNowFunc(now func() time.Time) *FakeSessionStore {
	s.nowFunc = now
	return s
}

func (s *FakeSessionStore) Create(_ context.Context, session *sessions.Session) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *FakeSessionStore) Get(_ context.Context, id string) (*sessions.Session, error) {
	s.gets.Add(1)
	s.lock.RLock()
	defer s.lock.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	if exp := session.ExpiresAt(); !exp.IsZero() && !s.nowFunc().Before(exp) {
		return nil, apperrors.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *FakeSessionStore) Delete(_ context.Context, id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.sessions, id)
	return nil
}

// Gets returns how many lookups the store has served.
func (s *FakeSessionStore) Gets() int64 {
	return s.gets.Load()
}
