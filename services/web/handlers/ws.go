package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ArjunKumar-Q/newsfeeder/internal/models"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/events"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/feed"
	"github.com/ArjunKumar-Q/newsfeeder/services/web/view"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// clientMessage is what the browser sends over the socket.
type clientMessage struct {
	Type     string `json:"type"`
	Category string `json:"category"`
	Search   string `json:"search"`
	Language string `json:"language"`
}

func (m clientMessage) query() models.Query {
	q := models.Query{
		Category: strings.ToLower(strings.TrimSpace(m.Category)),
		Search:   strings.TrimSpace(m.Search),
		Language: strings.ToLower(strings.TrimSpace(m.Language)),
	}
	if q.Category == "home" {
		q.Category = ""
	}
	return q
}

type navigateMessage struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// conn serialises writes; gorilla connections allow one concurrent writer.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// WS streams the session's feed status and process-wide headlines, and turns
// debounced query intents into prefetches followed by a navigate message.
func (h *Handler) WS(w http.ResponseWriter, r *http.Request) {
	id, ok := existingSession(r)
	header := http.Header{}
	if !ok {
		id = uuid.NewString()
		header.Add("Set-Cookie", sessionCookie(id).String())
	}

	ws, err := h.upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}
	c := &conn{ws: ws}
	defer ws.Close()

	stream, cancel := h.opts.Bus.Subscribe(32, func(e events.Event) bool {
		return e.Kind == events.Headline || e.Session == id
	})
	defer cancel()

	debounce := events.NewDebouncer(h.opts.Debounce)
	defer debounce.Stop()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			var msg clientMessage
			if err := ws.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("Websocket read for session %s: %v", id, err)
				}
				return
			}
			if msg.Type != "query" {
				continue
			}
			q := msg.query()
			debounce.Trigger(func() { h.prefetch(r.Context(), c, id, q) })
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case e, ok := <-stream:
			if !ok {
				return
			}
			if err := c.writeJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

// prefetch loads q into the session's feed and tells the browser where to go.
// The fetch outlives the request context, so a page navigation that closes the
// socket still leaves a warm feed behind.
func (h *Handler) prefetch(parent context.Context, c *conn, id string, q models.Query) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), h.opts.PrefetchTimeout)
	defer cancel()

	err := h.opts.Sessions.Get(id).SetQuery(ctx, q)
	if errors.Is(err, feed.ErrStale) {
		return
	}
	if err != nil {
		log.Printf("Prefetching feed %+v for session %s: %v", q, id, err)
	}
	if err := c.writeJSON(navigateMessage{Type: "navigate", URL: view.FeedURL(q, 0)}); err != nil {
		log.Printf("Sending navigate to session %s: %v", id, err)
	}
}
