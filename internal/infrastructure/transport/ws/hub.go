package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"script-agent/internal/application/port/input"
	"script-agent/internal/application/port/output"
	"script-agent/internal/infrastructure/events"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type Config struct {
	WriteWait  time.Duration
	PongWait   time.Duration
	ReadLimit  int64
	SendBuffer int
	// MessagesPerSecond throttles inbound frames per client.
	MessagesPerSecond float64
	Burst             int
	// AllowedOrigins empty means any origin.
	AllowedOrigins []string
}

func DefaultConfig() Config {
	return Config{
		WriteWait:         10 * time.Second,
		PongWait:          60 * time.Second,
		ReadLimit:         4 << 20,
		SendBuffer:        64,
		MessagesPerSecond: 10,
		Burst:             20,
	}
}

func (c Config) pingPeriod() time.Duration {
	return c.PongWait * 9 / 10
}

// Hub upgrades operator connections and pairs each with its session.
type Hub struct {
	sessions input.SessionProvider
	bus      output.EventBus
	logger   output.LoggerPort
	cfg      Config
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	clients map[*Client]struct{}
	wg      sync.WaitGroup
}

func NewHub(sessions input.SessionProvider, bus output.EventBus, logger output.LoggerPort, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		sessions: sessions,
		bus:      bus,
		logger:   logger.WithField("component", "ws_hub"),
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// ServeWS handles GET /ws. A "session" query parameter resumes a session.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", "error", err)
		return
	}

	sess := h.sessions.Attach(h.ctx, r.URL.Query().Get("session"))
	eventsCh, unsubscribe := h.bus.Subscribe(events.ForSession(sess.ID()))

	c := &Client{
		id:          uuid.NewString(),
		hub:         h,
		conn:        conn,
		session:     sess,
		send:        make(chan []byte, h.cfg.SendBuffer),
		done:        make(chan struct{}),
		limiter:     rate.NewLimiter(rate.Limit(h.cfg.MessagesPerSecond), h.cfg.Burst),
		unsubscribe: unsubscribe,
	}
	c.logger = h.logger.WithFields(map[string]any{"client": c.id, "session": sess.ID()})

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	c.logger.Info("Client connected")

	c.greet()

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		c.writePump(eventsCh)
	}()
	go func() {
		defer h.wg.Done()
		c.readPump(h.ctx)
		h.remove(c)
	}()
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if !ok {
		return
	}

	h.sessions.Release(c.session.ID())
	c.logger.Info("Client disconnected")
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and waits for their pumps.
func (h *Hub) Close() {
	h.cancel()

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.stop()
	}
	h.wg.Wait()
}
