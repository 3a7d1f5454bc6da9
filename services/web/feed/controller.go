// Package feed owns the pagination and infinite-scroll state of one visitor's article feed.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"
)

var (
	// ErrInFlight means a fetch for this feed is already running; the request was skipped.
	ErrInFlight = errors.New("feed: fetch already in flight")
	// ErrNoMore means every page has been loaded (or the page cap was reached).
	ErrNoMore = errors.New("feed: no more pages")
	// ErrStale means the query changed while the fetch ran and its result was dropped.
	ErrStale = errors.New("feed: result superseded by a newer query")
)

// Source returns one page of articles for a query. Pages are 1-based.
type Source interface {
	Fetch(ctx context.Context, q models.Query, page, pageSize int) (models.Page, error)
}

type Status int

const (
	StatusLoading Status = iota
	StatusLoaded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Notification describes a fetch lifecycle change.
type Notification struct {
	Query  models.Query
	Page   int
	Status Status
	Err    error
}

type Options struct {
	PageSize int
	// MaxPages caps how far LoadMore and JumpTo go. Zero means no cap.
	MaxPages int
	// Listener, if set, is called outside the controller lock for every lifecycle change.
	Listener func(Notification)
}

// State is a snapshot of a feed.
type State struct {
	Query        models.Query
	Articles     []models.Article
	Page         int
	TotalResults int
	Loading      bool
	// Loaded is set once a fetch for Query has completed, successfully or not.
	Loaded bool
	Err    error
}

// HasMore reports whether the source reported more articles than have been accumulated.
func (s State) HasMore() bool {
	return len(s.Articles) < s.TotalResults
}

// Empty reports whether loading finished cleanly with nothing to show.
func (s State) Empty() bool {
	return s.Loaded && !s.Loading && s.Err == nil && len(s.Articles) == 0
}

// Controller serialises all state changes of one feed. The lock is never held
// while the source is being called.
type Controller struct {
	source Source
	opts   Options

	mu       sync.Mutex
	state    State
	started  bool
	gen      uint64
	inflight *ticket
}

type ticket struct {
	gen     uint64
	query   models.Query
	page    int
	replace bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(source Source, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = 15
	}
	return &Controller{source: source, opts: opts}
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.Articles = append([]models.Article(nil), c.state.Articles...)
	return s
}

// PageSize returns the number of articles requested per page.
func (c *Controller) PageSize() int { return c.opts.PageSize }

// MaxPages returns how many numbered pages the current total supports, honouring the cap.
func (c *Controller) MaxPages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxPagesLocked()
}

func (c *Controller) maxPagesLocked() int {
	n := (c.state.TotalResults + c.opts.PageSize - 1) / c.opts.PageSize
	if c.opts.MaxPages > 0 && n > c.opts.MaxPages {
		n = c.opts.MaxPages
	}
	return n
}

// SetQuery switches the feed to q. A different query (or a feed that has not loaded
// cleanly yet) resets the collection and fetches page 1, cancelling whatever was in
// flight. Asking again for the current query is a no-op, except that it waits for
// an in-flight first page.
func (c *Controller) SetQuery(ctx context.Context, q models.Query) error {
	c.mu.Lock()
	for c.started && q == c.state.Query && c.state.Loading &&
		c.inflight != nil && c.inflight.page == 1 && c.inflight.replace {
		done := c.inflight.done
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
		if q == c.state.Query && c.state.Loaded {
			err := c.state.Err
			c.mu.Unlock()
			return err
		}
	}
	if c.started && q == c.state.Query && c.state.Loaded &&
		(c.state.Err == nil || len(c.state.Articles) > 0) {
		c.mu.Unlock()
		return nil
	}

	c.started = true
	c.gen++
	if c.inflight != nil {
		c.inflight.cancel()
		c.inflight = nil
	}
	c.state = State{Query: q}
	t := c.begin(ctx, 1, true)
	c.mu.Unlock()

	_, err := c.run(t)
	return err
}

// LoadMore fetches the next page and appends it. It returns the new articles.
func (c *Controller) LoadMore(ctx context.Context) ([]models.Article, error) {
	c.mu.Lock()
	return c.loadMoreLocked(ctx)
}

// LoadMoreAfter is LoadMore for a client that last saw page of q. It returns
// ErrStale without fetching when the feed has since moved to another query or page.
func (c *Controller) LoadMoreAfter(ctx context.Context, q models.Query, page int) ([]models.Article, error) {
	c.mu.Lock()
	if c.started && (c.state.Query != q || c.state.Page != page) {
		c.mu.Unlock()
		return nil, ErrStale
	}
	return c.loadMoreLocked(ctx)
}

// loadMoreLocked runs with c.mu held and releases it.
func (c *Controller) loadMoreLocked(ctx context.Context) ([]models.Article, error) {
	if !c.started {
		c.mu.Unlock()
		return nil, ErrNoMore
	}
	if c.state.Loading {
		c.mu.Unlock()
		return nil, ErrInFlight
	}
	if !c.state.HasMore() || (c.opts.MaxPages > 0 && c.state.Page >= c.opts.MaxPages) {
		c.mu.Unlock()
		return nil, ErrNoMore
	}
	t := c.begin(ctx, c.state.Page+1, false)
	c.mu.Unlock()

	return c.run(t)
}

// JumpTo replaces the collection with the given page, for numbered page buttons.
func (c *Controller) JumpTo(ctx context.Context, page int) ([]models.Article, error) {
	if page < 1 {
		return nil, fmt.Errorf("feed: invalid page %d", page)
	}

	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil, ErrNoMore
	}
	if c.state.Loading {
		c.mu.Unlock()
		return nil, ErrInFlight
	}
	if c.state.Loaded && c.state.Err == nil && c.state.Page == page {
		articles := append([]models.Article(nil), c.state.Articles...)
		c.mu.Unlock()
		return articles, nil
	}
	if c.state.Loaded && page > c.maxPagesLocked() && page > 1 {
		c.mu.Unlock()
		return nil, ErrNoMore
	}
	t := c.begin(ctx, page, true)
	c.mu.Unlock()

	return c.run(t)
}

// begin marks the feed as loading. The caller holds c.mu.
func (c *Controller) begin(ctx context.Context, page int, replace bool) *ticket {
	fctx, cancel := context.WithCancel(ctx)
	t := &ticket{
		gen:     c.gen,
		query:   c.state.Query,
		page:    page,
		replace: replace,
		ctx:     fctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.inflight = t
	c.state.Loading = true
	c.state.Err = nil
	return t
}

func (c *Controller) run(t *ticket) ([]models.Article, error) {
	defer close(t.done)
	c.notify(Notification{Query: t.query, Page: t.page, Status: StatusLoading})

	res, err := c.source.Fetch(t.ctx, t.query, t.page, c.opts.PageSize)
	cancelled := t.ctx.Err() != nil
	t.cancel()

	c.mu.Lock()
	if t.gen != c.gen {
		c.mu.Unlock()
		return nil, ErrStale
	}
	c.inflight = nil
	c.state.Loading = false

	if err != nil {
		// A caller that went away is not a source failure; leave the page unloaded
		// but still close the loading notification.
		if cancelled && errors.Is(err, context.Canceled) {
			c.mu.Unlock()
			c.notify(Notification{Query: t.query, Page: t.page, Status: StatusFailed, Err: err})
			return nil, err
		}
		c.state.Loaded = true
		c.state.Err = err
		c.mu.Unlock()
		c.notify(Notification{Query: t.query, Page: t.page, Status: StatusFailed, Err: err})
		return nil, err
	}

	if t.replace {
		c.state.Articles = append([]models.Article(nil), res.Articles...)
	} else {
		c.state.Articles = append(c.state.Articles, res.Articles...)
	}
	c.state.Page = t.page
	c.state.TotalResults = res.TotalResults
	c.state.Loaded = true
	// An empty page while the total says otherwise ends the scroll instead of looping on it.
	if !t.replace && len(res.Articles) == 0 && c.state.HasMore() {
		c.state.TotalResults = len(c.state.Articles)
	}
	c.mu.Unlock()

	c.notify(Notification{Query: t.query, Page: t.page, Status: StatusLoaded})
	return res.Articles, nil
}

func (c *Controller) notify(n Notification) {
	if c.opts.Listener != nil {
		c.opts.Listener(n)
	}
}
