// Package handlers serves the feed, reader and headline endpoints of the web service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/events"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/feed"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/reader"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/storage"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/view"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const SessionCookie = "nf_session"

// Extractor produces the reader form of an article page.
type Extractor interface {
	Extract(ctx context.Context, url string) (*models.ExtractedArticle, error)
}

type Options struct {
	Sessions  *storage.SessionStore
	Headlines *storage.HeadlineStore
	Bus       *events.Bus
	Extractor Extractor
	Renderer  *view.Renderer
	Site      view.Site

	// Paged renders numbered page buttons instead of infinite scroll.
	Paged bool
	// ChunkSize is the number of sentences per reader paragraph.
	ChunkSize int
	// Debounce is the quiet period before a websocket query intent is acted on.
	Debounce time.Duration
	// PrefetchTimeout bounds a prefetch started from a websocket intent.
	PrefetchTimeout time.Duration
}

// Handler holds the dependencies of every web endpoint.
type Handler struct {
	opts     Options
	site     atomic.Pointer[view.Site]
	upgrader websocket.Upgrader
	now      func() time.Time
}

func New(opts Options) *Handler {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = reader.DefaultChunkSize
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.PrefetchTimeout <= 0 {
		opts.PrefetchTimeout = 15 * time.Second
	}
	h := &Handler{
		opts: opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		now: time.Now,
	}
	h.SetSite(opts.Site)
	return h
}

// SetSite swaps the page chrome settings; safe to call while serving.
func (h *Handler) SetSite(s view.Site) {
	h.site.Store(&s)
}

func (h *Handler) Site() view.Site {
	return *h.site.Load()
}

// Routes registers every endpoint on a new mux. limit wraps the endpoints that
// reach out to third parties.
func (h *Handler) Routes(limit func(http.Handler) http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.Feed)
	mux.HandleFunc("/feed/more", h.More)
	mux.Handle("/article", limit(http.HandlerFunc(h.Article)))
	mux.Handle("/api/articles/latest", limit(http.HandlerFunc(h.GetLatestArticles)))
	mux.HandleFunc("/ws", h.WS)
	mux.HandleFunc("/health", HealthCheck)
	mux.Handle("/assets/", view.Assets())
	return mux
}

// NewSessionFeed returns a controller factory whose lifecycle notifications are
// published on bus, scoped to the owning session.
func NewSessionFeed(src feed.Source, opts feed.Options, bus *events.Bus) func(id string) *feed.Controller {
	return func(id string) *feed.Controller {
		o := opts
		o.Listener = func(n feed.Notification) {
			e := events.Event{Session: id, Query: n.Query, Page: n.Page}
			switch n.Status {
			case feed.StatusLoading:
				e.Kind = events.FeedLoading
			case feed.StatusLoaded:
				e.Kind = events.FeedLoaded
			case feed.StatusFailed:
				e.Kind = events.FeedFailed
				e.Error = n.Err.Error()
			}
			bus.Publish(e)
		}
		return feed.New(src, o)
	}
}

// sessionID returns the visitor's session, issuing a new cookie when there is none.
func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) string {
	if id, ok := existingSession(r); ok {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, sessionCookie(id))
	return id
}

func existingSession(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

func sessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// QueryFromRequest reads the feed selection from the URL. "home" is the
// top-headlines feed, like no category at all.
func QueryFromRequest(r *http.Request) models.Query {
	v := r.URL.Query()
	q := models.Query{
		Category: strings.ToLower(strings.TrimSpace(v.Get("category"))),
		Search:   strings.TrimSpace(v.Get("search")),
		Language: strings.ToLower(strings.TrimSpace(v.Get("language"))),
	}
	if q.Category == "home" {
		q.Category = ""
	}
	return q
}

// Feed renders the full feed page for the requested query.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := h.sessionID(w, r)
	ctrl := h.opts.Sessions.Get(id)
	q := QueryFromRequest(r)

	err := ctrl.SetQuery(r.Context(), q)
	if err == nil && h.opts.Paged {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		if _, err = ctrl.JumpTo(r.Context(), page); errors.Is(err, feed.ErrNoMore) || errors.Is(err, feed.ErrInFlight) {
			err = nil
		}
	}
	if err != nil {
		log.Printf("Loading feed %+v for session %s: %v", q, id, err)
	}

	page := view.NewFeedPage(h.Site(), ctrl.Snapshot(), h.opts.Paged, ctrl.MaxPages(), h.now())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.opts.Renderer.Feed(w, page); err != nil {
		log.Printf("Error rendering feed: %v", err)
	}
}

// More appends the next page of the session's feed as an HTML fragment.
func (h *Handler) More(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, ok := existingSession(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	ctrl, ok := h.opts.Sessions.Lookup(id)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	q := QueryFromRequest(r)
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		w.Header().Set("X-Has-More", "false")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// The page that asked may no longer be the session's current feed.
	articles, err := ctrl.LoadMoreAfter(r.Context(), q, page)
	switch {
	case errors.Is(err, feed.ErrNoMore), errors.Is(err, feed.ErrInFlight), errors.Is(err, feed.ErrStale):
		w.Header().Set("X-Has-More", strconv.FormatBool(errors.Is(err, feed.ErrInFlight)))
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		log.Printf("Loading more for session %s: %v", id, err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusBadGateway)
		if err := h.opts.Renderer.Banner(w, "Could not load more articles."); err != nil {
			log.Printf("Error rendering banner: %v", err)
		}
		return
	}

	s := ctrl.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Has-More", strconv.FormatBool(s.HasMore() && s.Page < ctrl.MaxPages()))
	w.Header().Set("X-More-URL", view.MoreURL(q, s.Page))
	if err := h.opts.Renderer.Items(w, articles); err != nil {
		log.Printf("Error rendering items: %v", err)
	}
}

// Article renders the reader view of the page at ?q=, preferring the image at ?img=.
func (h *Handler) Article(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	target := r.URL.Query().Get("q")
	if _, err := reader.ParseURL(target); err != nil {
		h.renderError(w, http.StatusBadRequest, "That does not look like an article link.")
		return
	}

	a, err := h.opts.Extractor.Extract(r.Context(), target)
	if err != nil {
		log.Printf("Extracting %s: %v", target, err)
		h.renderError(w, http.StatusBadGateway, "Something went wrong...")
		return
	}

	chunks := reader.Chunk(a.TextContent, h.opts.ChunkSize)
	page := view.NewReaderPage(h.Site(), a, target, r.URL.Query().Get("img"), chunks)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.opts.Renderer.Article(w, page); err != nil {
		log.Printf("Error rendering article: %v", err)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.opts.Renderer.Error(w, view.ErrorPage{Site: h.Site(), Message: msg}); err != nil {
		log.Printf("Error rendering error page: %v", err)
	}
}

// GetLatestArticles returns the headlines received from the warmer, newest first.
// An optional ?limit= trims the list.
func (h *Handler) GetLatestArticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	articles := h.opts.Headlines.Latest(limit)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(articles); err != nil {
		log.Printf("Error encoding response: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	log.Printf("Served %d latest articles", len(articles))
}

// HealthCheck reports that the service is up.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Web service is healthy!"))
}
