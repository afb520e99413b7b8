package pagecraft

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pagecraft/pagecraft/pkg/events"
	"github.com/pagecraft/pagecraft/pkg/metrics"
)

const (
	feedBuffer   = 64
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Hub streams bus events to websocket clients. Each client has a bounded
// queue; when a slow client's queue is full further events for it are
// dropped and counted.
type Hub struct {
	bus      *events.Bus
	log      zerolog.Logger
	metrics  *metrics.Metrics
	origins  []string
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*feedClient
}

type feedClient struct {
	id      string
	send    chan events.Event
	dropped int
}

// NewHub returns a hub feeding from bus. Browsers may connect from the
// server's own host or from one of origins; "*" allows any origin.
func NewHub(bus *events.Bus, log zerolog.Logger, m *metrics.Metrics, origins []string) *Hub {
	h := &Hub{
		bus:     bus,
		log:     log.With().Str("component", "hub").Logger(),
		metrics: m,
		origins: origins,
		clients: make(map[string]*feedClient),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin admits requests without an Origin header (non-browser
// clients), same-host origins and the configured ones.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if slices.Contains(h.origins, "*") || slices.ContainsFunc(h.origins, func(o string) bool { return strings.EqualFold(o, origin) }) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// ServeHTTP upgrades the request and streams events until the client goes
// away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.Close()

	c := &feedClient{id: uuid.NewString(), send: make(chan events.Event, feedBuffer)}
	unsubscribe := h.add(c)
	defer unsubscribe()
	h.log.Info().Str("subscriber", c.id).Str("remote", r.RemoteAddr).Msg("feed client connected")

	// The reader only notices the close frame; clients send nothing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	if err := ws.WriteJSON(map[string]string{"subscriber": c.id}); err != nil {
		return
	}
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case ev := <-c.send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(ev); err != nil {
				h.log.Debug().Err(err).Str("subscriber", c.id).Msg("feed write failed")
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case <-closed:
			h.log.Info().Str("subscriber", c.id).Msg("feed client disconnected")
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Hub) add(c *feedClient) func() {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	unsubscribe := h.bus.Subscribe(events.SubscriberFunc(func(ev events.Event) {
		h.deliver(c, ev)
	}))
	h.gauge()
	return func() {
		unsubscribe()
		h.mu.Lock()
		delete(h.clients, c.id)
		h.mu.Unlock()
		h.gauge()
	}
}

func (h *Hub) deliver(c *feedClient, ev events.Event) {
	select {
	case c.send <- ev:
	default:
		h.mu.Lock()
		c.dropped++
		n := c.dropped
		h.mu.Unlock()
		h.log.Warn().Str("subscriber", c.id).Int("dropped", n).Msg("feed client too slow, event dropped")
	}
}

func (h *Hub) gauge() {
	if h.metrics == nil {
		return
	}
	h.metrics.Subscribers.Set(float64(h.Len()))
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
