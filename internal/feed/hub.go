// Package feed implements the live change-feed: a WebSocket hub that pushes
// committed version changes to subscribers. It is a best-effort complement to
// the polled /changes endpoint, which stays authoritative for catch-up.
package feed

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/veritail/veritail/internal/metrics"
)

// Hub channel buffer sizes.
const (
	broadcastBuffer = 256
	registerBuffer  = 64
)

// maxClients caps concurrent feed connections.
const maxClients = 1000

// Event is the structured message sent to feed subscribers.
type Event struct {
	Type string          `json:"type"`
	ID   uint64          `json:"id"`
	Data json.RawMessage `json:"data"`
	Time time.Time       `json:"time"`
}

// Hub manages active feed clients and broadcasts change events.
// All client map mutations happen exclusively in the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{} // closed when Run has finished draining
	count      atomic.Int64
	seq        atomic.Uint64
	log        *logrus.Logger
}

// NewHub creates a new Hub instance.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, registerBuffer),
		unregister: make(chan *Client, registerBuffer),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub event loop. It should be run as a goroutine and exits
// when the context is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				client.closeSend()
			}
			h.count.Store(0)
			metrics.FeedConnections.Set(0)

			return

		case client := <-h.register:
			if len(h.clients) >= maxClients {
				h.log.Warn("feed connection limit reached, dropping client")
				client.closeSend()
				continue
			}
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			metrics.FeedConnections.Set(float64(len(h.clients)))
			h.log.WithField("total", len(h.clients)).Info("feed client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
			}
			h.count.Store(int64(len(h.clients)))
			metrics.FeedConnections.Set(float64(len(h.clients)))

		case msg := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- msg:
				default:
					// Slow consumer; drop it rather than stall the loop.
					client.closeSend()
					delete(h.clients, client)
				}
			}
			h.count.Store(int64(len(h.clients)))
		}
	}
}

// Done returns a channel that is closed once Run has exited and every client
// send channel has been closed. Shutdown waits on it so the process does not
// exit while connections are still being torn down.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// BroadcastChange assigns a sequence ID and broadcasts a typed event to all
// connected clients. Non-blocking; drops the event if the loop is saturated.
func (h *Hub) BroadcastChange(eventType string, data json.RawMessage) {
	evt := Event{
		Type: eventType,
		ID:   h.seq.Add(1),
		Data: data,
		Time: time.Now(),
	}

	msg, err := json.Marshal(evt)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal feed event")
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("feed broadcast channel full, dropping event")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	default:
		h.log.Warn("feed register channel full, dropping client")
		c.closeSend()
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	default:
		// Run loop already exited; cleanup happened during shutdown.
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}
