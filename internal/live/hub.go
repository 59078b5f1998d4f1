// Package live pushes standings updates to websocket clients watching a
// league group.
package live

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/utakatalp/volley-simulator/internal/league"
)

const (
	clientSendBuf = 64
	writeDeadline = 5 * time.Second
	pongWait      = 30 * time.Second
	pingInterval  = 20 * time.Second
)

const (
	EventResult    = "result"
	EventStandings = "standings"
)

// Event is the wire format of a message sent to subscribers.
type Event struct {
	Type      string        `json:"type"`
	League    string        `json:"league"`
	Group     string        `json:"group"`
	Match     *league.Match `json:"match,omitempty"`
	Table     *league.Table `json:"table,omitempty"`
	Timestamp time.Time     `json:"ts"`
}

type client struct {
	league string
	group  string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
}

// wants reports whether the client subscribed to the event. An empty group
// subscription receives every group of the league.
func (c *client) wants(evt Event) bool {
	if c.league != evt.League {
		return false
	}
	return c.group == "" || c.group == evt.Group
}

// Hub fans out events to connected websocket clients.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub creates a hub. checkOrigin may be nil to accept any origin.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		clients:  make(map[*client]struct{}),
	}
}

// Publish serializes evt and enqueues it for every matching client without
// blocking. Clients whose buffer is full miss the message.
func (h *Hub) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		log.Warn().Err(err).Str("type", evt.Type).Msg("Failed to marshal live event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if !c.wants(evt) {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Warn().Str("league", c.league).Str("group", c.group).Msg("Dropping live message for slow client")
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request. Clients connect with ?league=vsl and an
// optional &group=.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	leagueID := r.URL.Query().Get("league")
	if leagueID == "" {
		http.Error(w, "missing ?league= query param", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	c := &client{
		league: leagueID,
		group:  r.URL.Query().Get("group"),
		conn:   conn,
		send:   make(chan []byte, clientSendBuf),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	log.Debug().Str("league", c.league).Str("group", c.group).Msg("Live client connected")

	go h.writePump(c)
	go h.readPump(c)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

// writePump owns the client lifecycle: on exit it unregisters the client
// and closes the connection.
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		h.removeClient(c)
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Debug().Err(err).Str("league", c.league).Msg("Live write failed")
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only consumes pongs and close frames. It never closes c.send.
func (h *Hub) readPump(c *client) {
	defer close(c.done)

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		log.Debug().Str("league", c.league).Str("group", c.group).Msg("Live client disconnected")
	}
}
