package storage

import (
	"log"
	"sync"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"
)

// HeadlineStore keeps the most recent headlines received from the warmer in memory.
type HeadlineStore struct {
	mu       sync.RWMutex
	seen     map[string]struct{} // Key: article URL
	latest   []models.Article    // Oldest first
	capacity int
}

// NewHeadlineStore creates a store that keeps at most capacity headlines.
func NewHeadlineStore(capacity int) *HeadlineStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &HeadlineStore{
		seen:     make(map[string]struct{}),
		latest:   make([]models.Article, 0, capacity),
		capacity: capacity,
	}
}

// Add stores a headline unless its URL is already present. It reports whether the headline was new.
func (s *HeadlineStore) Add(article models.Article) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[article.URL]; exists {
		return false
	}

	if len(s.latest) == s.capacity {
		oldest := s.latest[0]
		delete(s.seen, oldest.URL)
		s.latest = append(s.latest[:0], s.latest[1:]...)
	}
	s.latest = append(s.latest, article)
	s.seen[article.URL] = struct{}{}

	log.Printf("Added headline: '%s'", article.Title)
	return true
}

// Latest returns up to n headlines, newest first. n <= 0 returns all of them.
func (s *HeadlineStore) Latest(n int) []models.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 || n > len(s.latest) {
		n = len(s.latest)
	}
	result := make([]models.Article, 0, n)
	for i := len(s.latest) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, s.latest[i])
	}
	return result
}

// Count returns how many headlines are held.
func (s *HeadlineStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.latest)
}
