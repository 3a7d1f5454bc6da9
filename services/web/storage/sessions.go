package storage

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/services/web/feed"
)

type session struct {
	controller *feed.Controller
	lastSeen   time.Time
}

// SessionStore maps visitor session IDs to their feed controllers.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session
	newFeed  func(id string) *feed.Controller
	idle     time.Duration
	capacity int
	now      func() time.Time
}

// NewSessionStore creates a store that builds controllers with newFeed, forgets
// sessions idle for longer than idle and never holds more than capacity of them.
func NewSessionStore(newFeed func(id string) *feed.Controller, idle time.Duration, capacity int) *SessionStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &SessionStore{
		sessions: make(map[string]*session),
		newFeed:  newFeed,
		idle:     idle,
		capacity: capacity,
		now:      time.Now,
	}
}

// Get returns the controller of id, creating it on first use.
func (s *SessionStore) Get(id string) *feed.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.sessions[id]; ok {
		sess.lastSeen = now
		return sess.controller
	}

	if len(s.sessions) >= s.capacity {
		s.evictOldestLocked()
	}
	sess := &session{controller: s.newFeed(id), lastSeen: now}
	s.sessions[id] = sess
	return sess.controller
}

// Lookup returns the controller of id without creating one.
func (s *SessionStore) Lookup(id string) (*feed.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess.controller, true
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, sess := range s.sessions {
		if oldestID == "" || sess.lastSeen.Before(oldest) {
			oldestID, oldest = id, sess.lastSeen
		}
	}
	delete(s.sessions, oldestID)
}

// Sweep removes sessions idle for longer than the idle period and returns how many went.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := s.now().Add(-s.idle)
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper sweeps every interval until ctx is done.
func (s *SessionStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Printf("Cleaned up %d idle sessions", n)
				}
			}
		}
	}()
}
