// Package events carries feed lifecycle and headline notifications between
// the parts of the web service.
package events

import (
	"sync"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"
)

type Kind string

const (
	FeedLoading Kind = "feed.loading"
	FeedLoaded  Kind = "feed.loaded"
	FeedFailed  Kind = "feed.failed"
	Headline    Kind = "headline"
)

// Event is one notification. Session is empty for process-wide events such as headlines.
type Event struct {
	Kind    Kind            `json:"type"`
	Session string          `json:"-"`
	Query   models.Query    `json:"-"`
	Page    int             `json:"page,omitempty"`
	Error   string          `json:"error,omitempty"`
	Article *models.Article `json:"article,omitempty"`
}

type subscriber struct {
	ch     chan Event
	filter func(Event) bool
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber whose
// buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe registers a subscriber that receives events accepted by filter (all
// events if filter is nil). The returned cancel func removes the subscription and
// closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe(buffer int, filter func(Event) bool) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	s := &subscriber{ch: make(chan Event, buffer), filter: filter}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, cancel
}

// Publish delivers e to every matching subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if s.filter != nil && !s.filter(e) {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// ForSession accepts events addressed to session plus process-wide ones.
func ForSession(session string) func(Event) bool {
	return func(e Event) bool {
		return e.Session == "" || e.Session == session
	}
}
