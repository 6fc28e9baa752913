// Package websocket pushes manifest updates to browsers so pages can reload
// after webpack finishes a build in watch and dev-server mode.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/templpack/internal/logging"
	"github.com/conneroisu/templpack/internal/manifest"
)

const (
	writeTimeout = 10 * time.Second
	pingPeriod   = 54 * time.Second
	sendBuffer   = 16
)

// MessageManifest announces a newly saved manifest.
const MessageManifest = "manifest"

// UpdateMessage is sent to every connected browser.
type UpdateMessage struct {
	Type      string    `json:"type"`
	Names     []string  `json:"names,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewManifestMessage describes m.
func NewManifestMessage(m manifest.Manifest) UpdateMessage {
	return UpdateMessage{Type: MessageManifest, Names: m.Names(), Timestamp: time.Now()}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub accepts websocket connections and broadcasts update messages.
type Hub struct {
	allowedHosts []string
	logger       logging.Logger

	mu       sync.RWMutex
	clients  map[*client]struct{}
	shutdown bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a hub accepting connections from allowedHosts
// ("localhost:8080"). An empty list only allows localhost origins.
func NewHub(allowedHosts []string, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		allowedHosts: allowedHosts,
		logger:       logger.WithComponent("websocket"),
		clients:      make(map[*client]struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// checkOrigin only accepts http(s) origins from the allowed hosts.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	if len(h.allowedHosts) == 0 {
		host := originURL.Hostname()
		return host == "localhost" || host == "127.0.0.1"
	}

	return slices.Contains(h.allowedHosts, originURL.Host)
}

func (h *Hub) originPatterns() []string {
	if len(h.allowedHosts) == 0 {
		return []string{"localhost", "localhost:*", "127.0.0.1", "127.0.0.1:*"}
	}

	return h.allowedHosts
}

// ServeHTTP upgrades the request and keeps the connection until the client
// goes away or the hub shuts down.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns()})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.unregister(c)

	// Reading is only needed to process control frames.
	ctx := conn.CloseRead(h.ctx)
	h.writeLoop(ctx, c)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.shutdown {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug(h.ctx, "WebSocket client connected", "clients", len(h.clients))

	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Broadcast sends message to every client. Clients whose buffer is full
// are dropped.
func (h *Hub) Broadcast(message UpdateMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error(h.ctx, err, "Failed to marshal update message")
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.unregister(c)
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Shutdown closes every connection. The hub rejects new connections
// afterwards.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.shutdown = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	h.cancel()
	for _, c := range clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
