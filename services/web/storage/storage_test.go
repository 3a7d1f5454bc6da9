package storage

import (
	"fmt"
	"testing"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/feed"
)

func headline(i int) models.Article {
	return models.Article{Title: fmt.Sprintf("Headline %d", i), URL: fmt.Sprintf("https://example.com/%d", i)}
}

func TestHeadlineStoreDeduplicatesByURL(t *testing.T) {
	s := NewHeadlineStore(10)
	if !s.Add(headline(1)) {
		t.Fatal("first add should be new")
	}
	dup := headline(1)
	dup.Title = "Same URL, new title"
	if s.Add(dup) {
		t.Error("same URL should be rejected")
	}
	if s.Count() != 1 {
		t.Errorf("expected 1 headline, got %d", s.Count())
	}
}

func TestHeadlineStoreCapacityAndOrder(t *testing.T) {
	s := NewHeadlineStore(3)
	for i := 1; i <= 5; i++ {
		s.Add(headline(i))
	}

	got := s.Latest(0)
	if len(got) != 3 {
		t.Fatalf("expected capacity 3, got %d", len(got))
	}
	for i, want := range []int{5, 4, 3} {
		if got[i].URL != headline(want).URL {
			t.Errorf("position %d = %s, want %s", i, got[i].URL, headline(want).URL)
		}
	}
	if top := s.Latest(1); len(top) != 1 || top[0].URL != headline(5).URL {
		t.Errorf("Latest(1) = %+v", top)
	}
	// Evicted URLs may come back.
	if !s.Add(headline(1)) {
		t.Error("evicted headline should be accepted again")
	}
}

func newTestSessions(idle time.Duration, capacity int) (*SessionStore, *time.Time) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSessionStore(func(string) *feed.Controller { return feed.New(nil, feed.Options{}) }, idle, capacity)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestSessionStoreReusesController(t *testing.T) {
	s, _ := newTestSessions(time.Minute, 10)
	a := s.Get("a")
	if s.Get("a") != a {
		t.Error("expected the same controller for the same session")
	}
	if s.Get("b") == a {
		t.Error("expected distinct controllers per session")
	}
	if _, ok := s.Lookup("missing"); ok {
		t.Error("Lookup must not create sessions")
	}
}

func TestSessionStoreSweep(t *testing.T) {
	s, now := newTestSessions(time.Minute, 10)
	s.Get("old")
	*now = now.Add(45 * time.Second)
	s.Get("fresh")
	*now = now.Add(30 * time.Second)

	if n := s.Sweep(); n != 1 {
		t.Errorf("expected 1 idle session removed, got %d", n)
	}
	if _, ok := s.Lookup("old"); ok {
		t.Error("idle session survived the sweep")
	}
	if _, ok := s.Lookup("fresh"); !ok {
		t.Error("active session was swept")
	}
}

func TestSessionStoreEvictsOldestAtCapacity(t *testing.T) {
	s, now := newTestSessions(time.Hour, 2)
	s.Get("first")
	*now = now.Add(time.Second)
	s.Get("second")
	*now = now.Add(time.Second)
	s.Get("third")

	if s.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", s.Len())
	}
	if _, ok := s.Lookup("first"); ok {
		t.Error("expected the least recently seen session to be evicted")
	}
}
