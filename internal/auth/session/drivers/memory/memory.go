// Package memory provides an in-process session store. It is used in tests
// and in single-node deployments where no Redis is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/inkwellhq/inkwell/internal/auth/domain"
	"github.com/inkwellhq/inkwell/internal/auth/session"
)

type entry struct {
	sc        domain.SessionContext
	expiresAt time.Time
}

type Store struct {
	mu       sync.Mutex
	sessions map[string]entry
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]entry)}
}

func (s *Store) Get(ctx context.Context, id string) (domain.SessionContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok || time.Now().After(e.expiresAt) {
		delete(s.sessions, id)
		return domain.SessionContext{}, session.ErrNotFound
	}
	return e.sc, nil
}

func (s *Store) Put(ctx context.Context, id string, sc domain.SessionContext, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = entry{sc: sc, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *Store) Rename(ctx context.Context, oldID, newID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[oldID]
	if !ok || time.Now().After(e.expiresAt) {
		delete(s.sessions, oldID)
		return session.ErrNotFound
	}
	delete(s.sessions, oldID)
	e.expiresAt = time.Now().Add(ttl)
	s.sessions[newID] = e
	return nil
}

// DeleteByUser removes every session belonging to userID except keepID. The
// map is in-process and small, so a scan does the job without an index.
func (s *Store) DeleteByUser(ctx context.Context, userID, keepID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.sessions {
		if e.sc.UserID == userID && id != keepID {
			delete(s.sessions, id)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Sweep drops expired entries. The housekeeping loop calls this periodically
// since the map does not expire entries on its own.
func (s *Store) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, e := range s.sessions {
		if now.After(e.expiresAt) {
			delete(s.sessions, id)
		}
	}
}

// Len reports the number of live entries, expired or not. Test helper.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
