package chat

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/omochice/toy-irc-bridge/internal/irc"
	"github.com/omochice/toy-irc-bridge/internal/metrics"
	"github.com/omochice/toy-irc-bridge/pkg/logger"
)

// Sender is the producer handle of a session's outbound queue.
type Sender interface {
	Send(ctx context.Context, msg irc.Message) error
}

// Client is a registered client session.
type Client struct {
	Nick   string
	Addr   string
	Sender Sender
}

// Hub tracks registered sessions and fans backend chat events out to them.
// Both TCP and WebSocket sessions share a single Hub instance.
type Hub struct {
	log     logger.Logger
	clients map[*Client]bool
	mu      sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub(log logger.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[*Client]bool),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		h.clients[client] = true
		metrics.ActiveSessions.Inc()
	}
}

// Unregister removes a client from the hub. Unknown clients are ignored.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		delete(h.clients, client)
		metrics.ActiveSessions.Dec()
	}
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Nicks returns the sorted nicknames of connected clients.
func (h *Hub) Nicks() []string {
	h.mu.RLock()
	nicks := make([]string, 0, len(h.clients))
	for c := range h.clients {
		nicks = append(nicks, c.Nick)
	}
	h.mu.RUnlock()

	sort.Strings(nicks)
	return nicks
}

// Broadcast delivers ev to every client, one wire message per line.
// An empty ev.Target addresses each client by its own nick.
func (h *Hub) Broadcast(ctx context.Context, ev irc.ChatEvent) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		e := ev
		if e.Target == "" {
			e.Target = c.Nick
		}
		for _, msg := range irc.Lines(e) {
			if err := c.Sender.Send(ctx, msg); err != nil {
				h.log.Warn("Dropping event for client", slog.String("nick", c.Nick), slog.String("error", err.Error()))
				break
			}
		}
	}
}
